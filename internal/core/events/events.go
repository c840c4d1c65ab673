// Package events defines state-change events as data. Events describe what
// happened; publishing them is the shell's job and never affects correctness.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type identifies an event. It doubles as the broadcast topic.
type Type string

const (
	ShiftStarted        Type = "shift.started"
	ShiftEnded          Type = "shift.ended"
	ShiftEmergencyEnded Type = "shift.emergency_ended"
	HandoverCompleted   Type = "handover.completed"
	ExitStatsUpdated    Type = "exit_stats.updated"
	ReconcileCompleted  Type = "reconcile.completed"
	OperatorAlert       Type = "operator.alert"
)

// Event is the envelope sent to every subscriber.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// New encodes payload into an event envelope.
func New(id string, t Type, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return Event{ID: id, Type: t, Payload: raw, Timestamp: now}, nil
}

// ShiftPayload accompanies shift lifecycle events.
type ShiftPayload struct {
	ShiftID      string              `json:"shift_id"`
	EmployeeID   string              `json:"employee_id"`
	EmployeeName string              `json:"employee_name"`
	Status       string              `json:"status"`
	OpeningCash  decimal.Decimal     `json:"opening_cash"`
	ClosingCash  decimal.NullDecimal `json:"closing_cash"`
	Reason       string              `json:"reason,omitempty"`
}

// HandoverPayload accompanies handover.completed.
type HandoverPayload struct {
	ChangeID         string          `json:"change_id"`
	PreviousShiftID  string          `json:"previous_shift_id"`
	NewShiftID       string          `json:"new_shift_id"`
	CashTransferred  decimal.Decimal `json:"cash_transferred"`
	SessionsRelinked int             `json:"sessions_relinked"`
	Recovered        bool            `json:"recovered,omitempty"`
}

// ExitStatsPayload accompanies exit_stats.updated.
type ExitStatsPayload struct {
	ShiftID        string          `json:"shift_id"`
	VehiclesExited int             `json:"vehicles_exited"`
	Revenue        decimal.Decimal `json:"revenue"`
	Applied        int             `json:"applied"`
}

// ReconcilePayload accompanies reconcile.completed.
type ReconcilePayload struct {
	SessionsLinked int `json:"sessions_linked"`
	PaymentsLinked int `json:"payments_linked"`
	Errors         int `json:"errors"`
}

// AlertPayload accompanies operator.alert.
type AlertPayload struct {
	Severity string `json:"severity"`
	ShiftID  string `json:"shift_id,omitempty"`
	Message  string `json:"message"`
}
