// Package ledger contains the vehicle ledger entry type and its pure rules.
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Vehicle types charged by the facility.
const (
	VehicleTrailer    = "Trailer"
	VehicleSixWheeler = "6 Wheeler"
	VehicleFourWheel  = "4 Wheeler"
	VehicleTwoWheel   = "2 Wheeler"
)

// Payment modes.
const (
	ModeCash = "Cash"
	ModeCard = "Card"
	ModeUPI  = "UPI"
)

// PaymentStatus is the settlement state of an entry.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "Unpaid"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentPending  PaymentStatus = "Pending"
	PaymentRefunded PaymentStatus = "Refunded"
)

// Entry status values, derived from the exit time.
const (
	StatusParked = "Parked"
	StatusExited = "Exited"
)

// Entry is one vehicle parking session with its payment facts.
type Entry struct {
	ID             string          `json:"id"`
	VehicleNumber  string          `json:"vehicle_number"`
	VehicleType    string          `json:"vehicle_type"`
	TransportName  string          `json:"transport_name,omitempty"`
	DriverName     string          `json:"driver_name,omitempty"`
	EntryTime      time.Time       `json:"entry_time"`
	ExitTime       *time.Time      `json:"exit_time,omitempty"`
	Fee            decimal.Decimal `json:"fee"`
	PaymentTime    *time.Time      `json:"payment_time,omitempty"`
	PaymentMode    string          `json:"payment_mode,omitempty"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	ShiftSessionID string          `json:"shift_session_id,omitempty"`
}

// Status returns Parked while the vehicle has no exit time.
func (e *Entry) Status() string {
	if e.ExitTime == nil {
		return StatusParked
	}
	return StatusExited
}

// IsParked reports whether the vehicle is still inside.
func (e *Entry) IsParked() bool {
	return e.ExitTime == nil
}

// IsPaid reports whether the payment is settled.
func (e *Entry) IsPaid() bool {
	return e.PaymentStatus == PaymentPaid
}

// NormalizeVehicleNumber trims and upper-cases a registration number.
func NormalizeVehicleNumber(n string) string {
	return strings.ToUpper(strings.TrimSpace(n))
}

// NormalizeVehicleType maps loose input ("trailer", "6 wheeler") onto the
// canonical spelling. Unknown types are returned trimmed.
func NormalizeVehicleType(t string) string {
	t = strings.TrimSpace(t)
	for _, known := range []string{VehicleTrailer, VehicleSixWheeler, VehicleFourWheel, VehicleTwoWheel} {
		if strings.EqualFold(t, known) {
			return known
		}
	}
	return t
}

// NormalizePaymentMode maps loose input onto Cash, Card or UPI.
// The second value is false for unknown modes.
func NormalizePaymentMode(m string) (string, bool) {
	m = strings.TrimSpace(m)
	for _, known := range []string{ModeCash, ModeCard, ModeUPI} {
		if strings.EqualFold(m, known) {
			return known, true
		}
	}
	return m, false
}
