package primary

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/core/report"
	"github.com/example/shiftdesk/internal/core/shift"
)

// HandoverCoordinator moves the active slot from one employee to the next.
type HandoverCoordinator interface {
	// ExecuteHandover ends the current shift, starts the incoming one with
	// the closing cash as opening cash and writes the audit record as one
	// unit, then relinks parked vehicles and reports on the outgoing shift.
	ExecuteHandover(ctx context.Context, req HandoverRequest) (*HandoverResult, error)

	// ResumeHandover completes a handover whose outgoing shift was ended but
	// whose successor or audit record is missing. Idempotent.
	ResumeHandover(ctx context.Context, req ResumeHandoverRequest) (*HandoverResult, error)

	// ListChanges returns the handover audit trail, newest first.
	ListChanges(ctx context.Context, limit int) ([]*shift.Change, error)
}

// HandoverRequest contains parameters for a handover.
type HandoverRequest struct {
	CurrentShiftID       string           `json:"current_shift_id"`
	IncomingEmployeeID   string           `json:"incoming_employee_id"`
	IncomingEmployeeName string           `json:"incoming_employee_name"`
	ClosingCash          decimal.Decimal  `json:"closing_cash"`
	HandoverNotes        string           `json:"handover_notes"`
	PendingIssues        string           `json:"pending_issues,omitempty"`
	ChangeType           shift.ChangeType `json:"change_type,omitempty"`
	SupervisorID         string           `json:"supervisor_id,omitempty"`
}

// ResumeHandoverRequest identifies a half-applied handover.
type ResumeHandoverRequest struct {
	PreviousShiftID      string           `json:"previous_shift_id"`
	IncomingEmployeeID   string           `json:"incoming_employee_id"`
	IncomingEmployeeName string           `json:"incoming_employee_name"`
	HandoverNotes        string           `json:"handover_notes"`
	PendingIssues        string           `json:"pending_issues,omitempty"`
	ChangeType           shift.ChangeType `json:"change_type,omitempty"`
	SupervisorID         string           `json:"supervisor_id,omitempty"`
}

// HandoverResult is returned by a successful (or recovered) handover.
// RelinkError and ReportError carry non-fatal step failures.
type HandoverResult struct {
	PreviousShift    *shift.Session `json:"previous_shift"`
	NewShift         *shift.Session `json:"new_shift"`
	Change           *shift.Change  `json:"change"`
	SessionsRelinked int            `json:"sessions_relinked"`
	RelinkError      string         `json:"relink_error,omitempty"`
	Report           *report.Report `json:"report,omitempty"`
	ReportError      string         `json:"report_error,omitempty"`
	Recovered        bool           `json:"recovered,omitempty"`
}
