package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/shiftdesk/internal/core/events"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/primary"
)

func startShift(t *testing.T, h *harness, employeeID, name string, opening int64) *shift.Session {
	t.Helper()
	s, err := h.registry.StartShift(context.Background(), primary.StartShiftRequest{
		EmployeeID:   employeeID,
		EmployeeName: name,
		OpeningCash:  money(opening),
	})
	if err != nil {
		t.Fatalf("StartShift(%s) failed: %v", employeeID, err)
	}
	return s
}

// ============================================================================
// StartShift Tests
// ============================================================================

func TestStartShift_Success(t *testing.T) {
	h := newHarness()

	s := startShift(t, h, "E001", "Asha", 500)

	if s.ID != "SHIFT-0001" {
		t.Errorf("expected SHIFT-0001, got %s", s.ID)
	}
	if s.Status != shift.StatusActive {
		t.Errorf("expected active, got %s", s.Status)
	}
	if !s.StartTime.Equal(t0) {
		t.Errorf("expected start %v, got %v", t0, s.StartTime)
	}
	if !s.OpeningCash.Equal(money(500)) {
		t.Errorf("expected opening cash 500, got %s", s.OpeningCash)
	}
	if s.ClosingCash.Valid {
		t.Error("expected closing cash to be null")
	}
	if got := h.publisher.count(events.ShiftStarted); got != 1 {
		t.Errorf("expected 1 shift.started event, got %d", got)
	}
}

func TestStartShift_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   primary.StartShiftRequest
		field string
	}{
		{"missing employee id", primary.StartShiftRequest{EmployeeName: "Asha"}, "employee_id"},
		{"missing employee name", primary.StartShiftRequest{EmployeeID: "E001"}, "employee_name"},
		{"negative cash", primary.StartShiftRequest{EmployeeID: "E001", EmployeeName: "Asha", OpeningCash: money(-1)}, "opening_cash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.registry.StartShift(context.Background(), tt.req)

			var verr *shift.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestStartShift_ConflictWhenActive(t *testing.T) {
	h := newHarness()
	startShift(t, h, "E001", "Asha", 500)

	_, err := h.registry.StartShift(context.Background(), primary.StartShiftRequest{
		EmployeeID: "E002", EmployeeName: "Ravi", OpeningCash: money(0),
	})

	if !errors.Is(err, shift.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if n := h.store.activeCount(); n != 1 {
		t.Errorf("expected 1 active shift, got %d", n)
	}
}

func TestStartShift_ConcurrentCallsLeaveOneActive(t *testing.T) {
	h := newHarness()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, conflicts int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.registry.StartShift(context.Background(), primary.StartShiftRequest{
				EmployeeID: "E001", EmployeeName: "Asha", OpeningCash: money(100),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, shift.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != 9 {
		t.Errorf("expected 1 success and 9 conflicts, got %d and %d", succeeded, conflicts)
	}
	if n := h.store.activeCount(); n != 1 {
		t.Errorf("expected 1 active shift, got %d", n)
	}
}

// ============================================================================
// EndShift Tests
// ============================================================================

func TestEndShift_Success(t *testing.T) {
	h := newHarness()
	s := startShift(t, h, "E001", "Asha", 500)
	h.clock.Advance(8 * time.Hour)

	ended, err := h.registry.EndShift(context.Background(), primary.EndShiftRequest{
		ShiftID: s.ID, ClosingCash: money(1200), Notes: "quiet day",
	})
	if err != nil {
		t.Fatalf("EndShift failed: %v", err)
	}

	if ended.Status != shift.StatusCompleted {
		t.Errorf("expected completed, got %s", ended.Status)
	}
	if ended.EndTime == nil || !ended.EndTime.Equal(t0.Add(8*time.Hour)) {
		t.Errorf("unexpected end time %v", ended.EndTime)
	}
	if !ended.ClosingCash.Valid || !ended.ClosingCash.Decimal.Equal(money(1200)) {
		t.Errorf("expected closing cash 1200, got %v", ended.ClosingCash)
	}
	if ended.Notes != "quiet day" {
		t.Errorf("expected notes appended, got %q", ended.Notes)
	}

	active, err := h.registry.GetActiveShift(context.Background())
	if err != nil {
		t.Fatalf("GetActiveShift failed: %v", err)
	}
	if active != nil {
		t.Errorf("expected no active shift, got %s", active.ID)
	}
}

func TestEndShift_Errors(t *testing.T) {
	h := newHarness()
	s := startShift(t, h, "E001", "Asha", 500)
	if _, err := h.registry.EndShift(context.Background(), primary.EndShiftRequest{ShiftID: s.ID, ClosingCash: money(500)}); err != nil {
		t.Fatalf("EndShift failed: %v", err)
	}

	tests := []struct {
		name string
		req  primary.EndShiftRequest
		want error
	}{
		{"unknown shift", primary.EndShiftRequest{ShiftID: "SHIFT-9999"}, shift.ErrNotFound},
		{"already ended", primary.EndShiftRequest{ShiftID: s.ID}, shift.ErrAlreadyEnded},
		{"negative cash", primary.EndShiftRequest{ShiftID: s.ID, ClosingCash: money(-5)}, shift.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.registry.EndShift(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// ============================================================================
// EmergencyEnd Tests
// ============================================================================

func TestEmergencyEnd_LeavesSlotEmpty(t *testing.T) {
	h := newHarness()
	s := startShift(t, h, "E001", "Asha", 500)

	ended, err := h.registry.EmergencyEnd(context.Background(), primary.EmergencyEndRequest{
		ShiftID: s.ID, Reason: "power outage",
	})
	if err != nil {
		t.Fatalf("EmergencyEnd failed: %v", err)
	}

	if ended.Status != shift.StatusEmergencyEnded {
		t.Errorf("expected emergency_ended, got %s", ended.Status)
	}
	if ended.ClosingCash.Valid {
		t.Error("expected closing cash to stay null")
	}
	if ended.Notes != "EMERGENCY END: power outage" {
		t.Errorf("unexpected notes %q", ended.Notes)
	}
	if n := h.store.activeCount(); n != 0 {
		t.Errorf("expected empty slot, got %d active", n)
	}
	if got := h.publisher.count(events.ShiftEmergencyEnded); got != 1 {
		t.Errorf("expected 1 emergency event, got %d", got)
	}

	// A fresh shift may start afterwards.
	next := startShift(t, h, "E002", "Ravi", 0)
	if next.ID != "SHIFT-0002" {
		t.Errorf("expected SHIFT-0002, got %s", next.ID)
	}
}

func TestEmergencyEnd_RequiresReason(t *testing.T) {
	h := newHarness()
	s := startShift(t, h, "E001", "Asha", 500)

	_, err := h.registry.EmergencyEnd(context.Background(), primary.EmergencyEndRequest{ShiftID: s.ID, Reason: "  "})

	if !errors.Is(err, shift.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := h.store.activeCount(); n != 1 {
		t.Errorf("expected shift to stay active")
	}
}

// ============================================================================
// Query Tests
// ============================================================================

func TestListShifts_OldestFirstWithFilters(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	first := startShift(t, h, "E001", "Asha", 100)
	h.clock.Advance(time.Hour)
	if _, err := h.registry.EndShift(ctx, primary.EndShiftRequest{ShiftID: first.ID, ClosingCash: money(100)}); err != nil {
		t.Fatalf("EndShift failed: %v", err)
	}
	h.clock.Advance(time.Minute)
	second := startShift(t, h, "E002", "Ravi", 100)

	all, err := h.registry.ListShifts(ctx, primary.ListShiftsRequest{})
	if err != nil {
		t.Fatalf("ListShifts failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != first.ID || all[1].ID != second.ID {
		t.Fatalf("unexpected order: %+v", all)
	}

	active, err := h.registry.ListShifts(ctx, primary.ListShiftsRequest{Status: string(shift.StatusActive)})
	if err != nil {
		t.Fatalf("ListShifts failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Errorf("expected only %s, got %+v", second.ID, active)
	}
}

func TestGetShift_NotFound(t *testing.T) {
	h := newHarness()

	_, err := h.registry.GetShift(context.Background(), "SHIFT-0042")

	if !errors.Is(err, shift.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
