package primary

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/core/fee"
	"github.com/example/shiftdesk/internal/core/ledger"
)

// LedgerService records vehicle entries, exits and payments.
type LedgerService interface {
	// RecordEntry creates a parked entry and links it to the active shift.
	RecordEntry(ctx context.Context, req RecordEntryRequest) (*LedgerResponse, error)

	// RecordExit prices and closes a parked entry.
	RecordExit(ctx context.Context, req RecordExitRequest) (*LedgerResponse, error)

	// RecordPayment marks an entry paid.
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*LedgerResponse, error)

	// GetEntry retrieves an entry by ID.
	GetEntry(ctx context.Context, id string) (*ledger.Entry, error)

	// ListParked lists vehicles currently inside.
	ListParked(ctx context.Context) ([]*ledger.Entry, error)

	// FeeSchedule returns the tariff in force.
	FeeSchedule() fee.Schedule
}

// RecordEntryRequest contains parameters for a vehicle entry.
type RecordEntryRequest struct {
	VehicleNumber string     `json:"vehicle_number"`
	VehicleType   string     `json:"vehicle_type"`
	TransportName string     `json:"transport_name,omitempty"`
	DriverName    string     `json:"driver_name,omitempty"`
	EntryTime     *time.Time `json:"entry_time,omitempty"`
}

// RecordExitRequest contains parameters for a vehicle exit.
type RecordExitRequest struct {
	EntryID  string     `json:"entry_id"`
	ExitTime *time.Time `json:"exit_time,omitempty"`
}

// RecordPaymentRequest contains parameters for a payment. A zero amount
// means the computed fee.
type RecordPaymentRequest struct {
	EntryID     string          `json:"entry_id"`
	PaymentMode string          `json:"payment_mode"`
	Amount      decimal.Decimal `json:"amount,omitempty"`
}

// LedgerResponse returns the entry and the outcome of its linkage call.
type LedgerResponse struct {
	Entry *ledger.Entry    `json:"entry"`
	Fee   *fee.Calculation `json:"fee,omitempty"`
	Link  *LinkResult      `json:"link,omitempty"`
}
