// Package primary defines the primary ports (driving adapters) for the application.
// These are the operations the CLI and HTTP surface call.
package primary

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/core/shift"
)

// ShiftRegistry owns the single active shift slot.
type ShiftRegistry interface {
	// GetActiveShift returns the active shift, or nil when none is active.
	GetActiveShift(ctx context.Context) (*shift.Session, error)

	// GetShift retrieves a shift by ID.
	GetShift(ctx context.Context, shiftID string) (*shift.Session, error)

	// ListShifts lists shifts oldest first.
	ListShifts(ctx context.Context, req ListShiftsRequest) ([]*shift.Session, error)

	// StartShift opens a shift. Fails with shift.ErrConflict while another
	// shift is active.
	StartShift(ctx context.Context, req StartShiftRequest) (*shift.Session, error)

	// EndShift closes the active shift with the attested closing cash.
	EndShift(ctx context.Context, req EndShiftRequest) (*shift.Session, error)

	// EmergencyEnd closes the active shift without a successor.
	EmergencyEnd(ctx context.Context, req EmergencyEndRequest) (*shift.Session, error)
}

// StartShiftRequest contains parameters for starting a shift.
type StartShiftRequest struct {
	EmployeeID   string          `json:"employee_id"`
	EmployeeName string          `json:"employee_name"`
	OpeningCash  decimal.Decimal `json:"opening_cash"`
	Notes        string          `json:"notes,omitempty"`
}

// EndShiftRequest contains parameters for ending a shift.
type EndShiftRequest struct {
	ShiftID     string          `json:"shift_id"`
	ClosingCash decimal.Decimal `json:"closing_cash"`
	Notes       string          `json:"notes,omitempty"`
}

// EmergencyEndRequest contains parameters for an emergency end.
type EmergencyEndRequest struct {
	ShiftID string `json:"shift_id"`
	Reason  string `json:"reason"`
}

// ListShiftsRequest contains filter options for listing shifts.
type ListShiftsRequest struct {
	Status string
	Limit  int
}
