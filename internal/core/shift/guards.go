package shift

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	// Kind is the sentinel the failure maps to (ErrValidation, ErrConflict, ...).
	Kind  error
	Field string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	switch r.Kind {
	case nil:
		return fmt.Errorf("%s", r.Reason)
	case ErrValidation:
		return &ValidationError{Field: r.Field, Reason: r.Reason}
	default:
		return fmt.Errorf("%w: %s", r.Kind, r.Reason)
	}
}

func allowed() GuardResult { return GuardResult{Allowed: true} }

func invalid(field, reason string) GuardResult {
	return GuardResult{Reason: reason, Kind: ErrValidation, Field: field}
}

func denied(kind error, format string, args ...any) GuardResult {
	return GuardResult{Reason: fmt.Sprintf(format, args...), Kind: kind}
}

// StartShiftContext provides context for shift start guards.
type StartShiftContext struct {
	EmployeeID    string
	EmployeeName  string
	OpeningCash   decimal.Decimal
	ActiveShiftID string // empty when the slot is free
}

// CanStartShift evaluates whether a shift can be started.
// Rules:
// - Employee ID and name are required
// - Opening cash must not be negative
// - No other shift may be active
func CanStartShift(ctx StartShiftContext) GuardResult {
	if strings.TrimSpace(ctx.EmployeeID) == "" {
		return invalid("employee_id", "employee id is required")
	}
	if strings.TrimSpace(ctx.EmployeeName) == "" {
		return invalid("employee_name", "employee name is required")
	}
	if ctx.OpeningCash.IsNegative() {
		return invalid("opening_cash", "opening cash must not be negative")
	}
	if ctx.ActiveShiftID != "" {
		return denied(ErrConflict, "shift %s is already active", ctx.ActiveShiftID)
	}
	return allowed()
}

// EndShiftContext provides context for normal and emergency end guards.
type EndShiftContext struct {
	ShiftID     string
	Exists      bool
	Status      Status
	ClosingCash decimal.Decimal
	Emergency   bool
	Reason      string // emergency reason
}

// CanEndShift evaluates whether a shift can leave the active slot.
// Rules:
// - Closing cash must not be negative (normal end)
// - An emergency end needs a reason
// - The shift must exist
// - The shift must still be active
func CanEndShift(ctx EndShiftContext) GuardResult {
	if ctx.Emergency {
		if strings.TrimSpace(ctx.Reason) == "" {
			return invalid("reason", "emergency end requires a reason")
		}
	} else if ctx.ClosingCash.IsNegative() {
		return invalid("closing_cash", "closing cash must not be negative")
	}
	if !ctx.Exists {
		return denied(ErrNotFound, "shift %s not found", ctx.ShiftID)
	}
	if ctx.Status != StatusActive {
		return denied(ErrAlreadyEnded, "shift %s is %s", ctx.ShiftID, ctx.Status)
	}
	return allowed()
}

// HandoverContext provides context for handover guards.
type HandoverContext struct {
	ShiftID              string
	Exists               bool
	Status               Status
	OutgoingEmployeeID   string
	IncomingEmployeeID   string
	IncomingEmployeeName string
	ClosingCash          decimal.Decimal
	HandoverNotes        string
	PendingIssues        string
	ChangeType           ChangeType
	SupervisorID         string
}

// ValidateHandoverPayload checks the request alone, before any lookup.
// Rules:
// - Incoming employee ID and name are required
// - Closing cash must not be negative
// - Handover notes must not be empty
// - Change type must be known
func ValidateHandoverPayload(ctx HandoverContext) GuardResult {
	if strings.TrimSpace(ctx.ShiftID) == "" {
		return invalid("current_shift_id", "current shift id is required")
	}
	if strings.TrimSpace(ctx.IncomingEmployeeID) == "" {
		return invalid("incoming_employee_id", "incoming employee id is required")
	}
	if strings.TrimSpace(ctx.IncomingEmployeeName) == "" {
		return invalid("incoming_employee_name", "incoming employee name is required")
	}
	if ctx.ClosingCash.IsNegative() {
		return invalid("closing_cash", "closing cash must not be negative")
	}
	if strings.TrimSpace(ctx.HandoverNotes) == "" {
		return invalid("handover_notes", "handover notes are required")
	}
	if _, ok := ParseChangeType(string(ctx.ChangeType)); !ok {
		return invalid("change_type", fmt.Sprintf("unknown change type %q", ctx.ChangeType))
	}
	return allowed()
}

// CanHandover evaluates whether the active shift can be handed over.
// Rules:
// - The payload must be valid
// - The current shift must exist
// - The current shift must be active (a stale id is a conflict)
// - The incoming employee must differ from the outgoing one
func CanHandover(ctx HandoverContext) GuardResult {
	if r := ValidateHandoverPayload(ctx); !r.Allowed {
		return r
	}
	if !ctx.Exists {
		return denied(ErrNotFound, "shift %s not found", ctx.ShiftID)
	}
	if ctx.Status != StatusActive {
		return denied(ErrConflict, "shift %s is %s, not active", ctx.ShiftID, ctx.Status)
	}
	if strings.EqualFold(strings.TrimSpace(ctx.IncomingEmployeeID), strings.TrimSpace(ctx.OutgoingEmployeeID)) {
		return invalid("incoming_employee_id", "incoming employee must differ from outgoing employee")
	}
	return allowed()
}
