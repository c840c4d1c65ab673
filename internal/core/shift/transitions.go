package shift

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EndResult captures the fields written when a session leaves the active slot.
type EndResult struct {
	Status      Status
	EndTime     time.Time
	ClosingCash decimal.NullDecimal
	Notes       string
}

// ApplyEnd closes a session normally. Closing cash is operator attested.
func ApplyEnd(s Session, closingCash decimal.Decimal, note string, now time.Time) EndResult {
	return EndResult{
		Status:      StatusCompleted,
		EndTime:     now,
		ClosingCash: decimal.NewNullDecimal(closingCash),
		Notes:       AppendNote(s.Notes, note),
	}
}

// ApplyEmergencyEnd closes a session without a successor. The closing cash
// stays unknown and the reason is appended to the notes.
func ApplyEmergencyEnd(s Session, reason string, now time.Time) EndResult {
	return EndResult{
		Status:  StatusEmergencyEnded,
		EndTime: now,
		Notes:   AppendNote(s.Notes, "EMERGENCY END: "+strings.TrimSpace(reason)),
	}
}

// AppendNote appends a line to existing notes. Notes are never rewritten.
func AppendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

// HandoverNote is the opening note of a shift started by a handover.
func HandoverNote(previous Session, handoverNotes string) string {
	return fmt.Sprintf("Handover from %s (%s): %s", previous.ID, previous.EmployeeName, strings.TrimSpace(handoverNotes))
}

// NewChange builds the audit row for a completed handover.
func NewChange(id string, previous, next Session, req HandoverContext, now time.Time) Change {
	return Change{
		ID:                 id,
		PreviousShiftID:    previous.ID,
		NewShiftID:         next.ID,
		Timestamp:          now,
		HandoverNotes:      strings.TrimSpace(req.HandoverNotes),
		CashTransferred:    req.ClosingCash,
		PendingIssues:      strings.TrimSpace(req.PendingIssues),
		OutgoingEmployeeID: previous.EmployeeID,
		IncomingEmployeeID: next.EmployeeID,
		ChangeType:         req.ChangeType,
		SupervisorID:       req.SupervisorID,
		SupervisorApproved: req.SupervisorID != "",
	}
}
