package primary

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Linkage result codes. Linkage never returns an error for these outcomes.
const (
	CodeNoActiveShift   = "NO_ACTIVE_SHIFT"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeShiftNotFound   = "SHIFT_NOT_FOUND"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeAlreadyLinked   = "ALREADY_LINKED"
)

// LinkageService attaches live vehicle and payment events to shifts.
type LinkageService interface {
	// LinkParkingSession attaches a ledger entry to the active shift.
	LinkParkingSession(ctx context.Context, req LinkSessionRequest) (*LinkResult, error)

	// LinkPayment counts a payment against the active shift.
	LinkPayment(ctx context.Context, req LinkPaymentRequest) (*LinkResult, error)

	// UpdateExitStatistics counts a vehicle exit once per session.
	UpdateExitStatistics(ctx context.Context, req ExitStatsRequest) (*LinkResult, error)

	// RelinkParked moves parked entries from one shift to another.
	RelinkParked(ctx context.Context, fromShiftID, toShiftID string) (int, error)

	// BulkReconcile assigns unlinked entries to the shift whose window
	// contains their entry time.
	BulkReconcile(ctx context.Context) (*ReconcileResult, error)

	// ValidateShiftLinking reports how many entries of a shift's window are linked.
	ValidateShiftLinking(ctx context.Context, shiftID string) (*LinkingReport, error)

	// GetLiveStats returns the dashboard counters of a shift.
	GetLiveStats(ctx context.Context, shiftID string) (*LiveStats, error)
}

// LinkSessionRequest identifies the session to link.
type LinkSessionRequest struct {
	SessionID   string `json:"session_id"`
	VehicleType string `json:"vehicle_type,omitempty"`
	PaymentMode string `json:"payment_mode,omitempty"`
}

// LinkPaymentRequest describes a payment to count.
type LinkPaymentRequest struct {
	PaymentID   string          `json:"payment_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode string          `json:"payment_mode"`
	SessionID   string          `json:"session_id,omitempty"`
}

// ExitStatsRequest describes a vehicle exit.
type ExitStatsRequest struct {
	SessionID       string `json:"session_id"`
	ShiftID         string `json:"shift_id"`
	VehicleType     string `json:"vehicle_type,omitempty"`
	DurationMinutes int64  `json:"duration_minutes,omitempty"`
}

// LinkResult is the outcome of a linkage call. ErrorCode is empty on success.
type LinkResult struct {
	Success   bool   `json:"success"`
	ShiftID   string `json:"shift_id,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// ReconcileResult summarises a reconcile run.
type ReconcileResult struct {
	SessionsLinked int              `json:"sessions_linked"`
	PaymentsLinked int              `json:"payments_linked"`
	Errors         []ReconcileError `json:"errors"`
}

// ReconcileError names an entry reconcile could not place.
type ReconcileError struct {
	EntryID   string    `json:"entry_id"`
	EntryTime time.Time `json:"entry_time"`
	Reason    string    `json:"reason"`
}

// LinkingReport is the audit view of a shift's linkage.
type LinkingReport struct {
	ShiftID       string  `json:"shift_id"`
	LinkedCount   int     `json:"linked_count"`
	UnlinkedCount int     `json:"unlinked_count"`
	Ratio         float64 `json:"ratio"`
}

// LiveStats are the running counters of a shift.
type LiveStats struct {
	ShiftID                string          `json:"shift_id"`
	VehiclesEntered        int             `json:"vehicles_entered"`
	VehiclesExited         int             `json:"vehicles_exited"`
	Payments               int             `json:"payments"`
	Revenue                decimal.Decimal `json:"revenue"`
	AverageDurationMinutes float64         `json:"average_duration_minutes"`
	ExitsByType            map[string]int  `json:"exits_by_type"`
}
