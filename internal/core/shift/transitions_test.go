package shift

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestApplyEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	s := Session{ID: "SHIFT-0001", Notes: "opened"}

	result := ApplyEnd(s, decimal.NewFromInt(2500), "counted twice", now)

	if result.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", result.Status, StatusCompleted)
	}
	if !result.EndTime.Equal(now) {
		t.Errorf("EndTime = %v, want %v", result.EndTime, now)
	}
	if !result.ClosingCash.Valid || !result.ClosingCash.Decimal.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("ClosingCash = %v, want 2500", result.ClosingCash)
	}
	if result.Notes != "opened\ncounted twice" {
		t.Errorf("Notes = %q", result.Notes)
	}
}

func TestApplyEmergencyEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	result := ApplyEmergencyEnd(Session{ID: "SHIFT-0001"}, " flood ", now)

	if result.Status != StatusEmergencyEnded {
		t.Errorf("Status = %q, want %q", result.Status, StatusEmergencyEnded)
	}
	if result.ClosingCash.Valid {
		t.Error("expected closing cash to stay unknown")
	}
	if result.Notes != "EMERGENCY END: flood" {
		t.Errorf("Notes = %q", result.Notes)
	}
}

func TestAppendNote(t *testing.T) {
	tests := []struct {
		existing, note, want string
	}{
		{"", "first", "first"},
		{"first", "second", "first\nsecond"},
		{"first", "  ", "first"},
	}
	for _, tt := range tests {
		if got := AppendNote(tt.existing, tt.note); got != tt.want {
			t.Errorf("AppendNote(%q, %q) = %q, want %q", tt.existing, tt.note, got, tt.want)
		}
	}
}

func TestNewChange(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	prev := Session{ID: "SHIFT-0001", EmployeeID: "EMP-1"}
	next := Session{ID: "SHIFT-0002", EmployeeID: "EMP-2"}

	c := NewChange("HO-0001", prev, next, HandoverContext{
		ClosingCash:   decimal.NewFromInt(900),
		HandoverNotes: "gate 2 sticky",
		ChangeType:    ChangeOverlap,
		SupervisorID:  "SUP-1",
	}, now)

	if c.PreviousShiftID != "SHIFT-0001" || c.NewShiftID != "SHIFT-0002" {
		t.Errorf("unexpected link %s -> %s", c.PreviousShiftID, c.NewShiftID)
	}
	if !c.CashTransferred.Equal(decimal.NewFromInt(900)) {
		t.Errorf("CashTransferred = %s", c.CashTransferred)
	}
	if !c.SupervisorApproved {
		t.Error("expected supervisor approval when supervisor id is present")
	}
}

func TestShiftIDs(t *testing.T) {
	if got := GenerateShiftID(0); got != "SHIFT-0001" {
		t.Errorf("GenerateShiftID(0) = %q", got)
	}
	if got := GenerateChangeID(41); got != "HO-0042" {
		t.Errorf("GenerateChangeID(41) = %q", got)
	}
	if got := ParseShiftNumber("SHIFT-0042"); got != 42 {
		t.Errorf("ParseShiftNumber = %d", got)
	}
	if got := ParseShiftNumber("bogus"); got != -1 {
		t.Errorf("ParseShiftNumber(bogus) = %d", got)
	}
}

func TestPartialFailureError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&PartialFailureError{PreviousShiftID: "SHIFT-0001", Stage: StageRecordChange, Err: cause})

	if !errors.Is(err, ErrPartialFailure) {
		t.Error("expected errors.Is(err, ErrPartialFailure)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to unwrap")
	}
}
