// Package shift contains the pure business logic for shift sessions and
// handovers. This is part of the Functional Core - no I/O, only pure functions.
package shift

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the possible states of a shift session.
type Status string

const (
	StatusActive         Status = "active"
	StatusCompleted      Status = "completed"
	StatusEmergencyEnded Status = "emergency_ended"
)

// IsEnded reports whether the status is terminal.
func (s Status) IsEnded() bool {
	return s == StatusCompleted || s == StatusEmergencyEnded
}

// ChangeType classifies a handover.
type ChangeType string

const (
	ChangeNormal    ChangeType = "normal"
	ChangeEmergency ChangeType = "emergency"
	ChangeExtended  ChangeType = "extended"
	ChangeOverlap   ChangeType = "overlap"
)

// ParseChangeType maps user input to a ChangeType. Empty input means normal.
func ParseChangeType(s string) (ChangeType, bool) {
	switch ChangeType(strings.ToLower(strings.TrimSpace(s))) {
	case "", ChangeNormal:
		return ChangeNormal, true
	case ChangeEmergency:
		return ChangeEmergency, true
	case ChangeExtended:
		return ChangeExtended, true
	case ChangeOverlap:
		return ChangeOverlap, true
	}
	return "", false
}

// Session is one employee's period of responsibility for the facility.
type Session struct {
	ID           string              `json:"id"`
	EmployeeID   string              `json:"employee_id"`
	EmployeeName string              `json:"employee_name"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      *time.Time          `json:"end_time,omitempty"`
	Status       Status              `json:"status"`
	OpeningCash  decimal.Decimal     `json:"opening_cash"`
	ClosingCash  decimal.NullDecimal `json:"closing_cash"`
	Notes        string              `json:"notes,omitempty"`
}

// IsActive reports whether the session currently holds the active slot.
func (s *Session) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// Change is the immutable audit row written once per handover.
type Change struct {
	ID                 string          `json:"id"`
	PreviousShiftID    string          `json:"previous_shift_id"`
	NewShiftID         string          `json:"new_shift_id"`
	Timestamp          time.Time       `json:"timestamp"`
	HandoverNotes      string          `json:"handover_notes"`
	CashTransferred    decimal.Decimal `json:"cash_transferred"`
	PendingIssues      string          `json:"pending_issues,omitempty"`
	OutgoingEmployeeID string          `json:"outgoing_employee_id"`
	IncomingEmployeeID string          `json:"incoming_employee_id"`
	ChangeType         ChangeType      `json:"change_type"`
	SupervisorID       string          `json:"supervisor_id,omitempty"`
	SupervisorApproved bool            `json:"supervisor_approved"`
}

// GenerateShiftID generates a shift ID from the current max number.
// The format is SHIFT-XXXX where XXXX is a zero-padded 4-digit number.
func GenerateShiftID(currentMax int) string {
	return fmt.Sprintf("SHIFT-%04d", currentMax+1)
}

// GenerateChangeID generates a handover record ID from the current max number.
func GenerateChangeID(currentMax int) string {
	return fmt.Sprintf("HO-%04d", currentMax+1)
}

// ParseShiftNumber extracts the numeric portion from a shift ID.
// Returns -1 if the ID format is invalid.
func ParseShiftNumber(id string) int {
	var num int
	if _, err := fmt.Sscanf(id, "SHIFT-%d", &num); err != nil {
		return -1
	}
	return num
}
