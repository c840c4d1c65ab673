package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/adapters/sqlite"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

func TestShiftRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftRepository(db)
	ctx := context.Background()

	s := newShift("SHIFT-0001", "E001")
	s.Notes = "morning"
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "SHIFT-0001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.EmployeeID != "E001" || got.Notes != "morning" {
		t.Errorf("unexpected shift: %+v", got)
	}
	if !got.StartTime.Equal(t0) {
		t.Errorf("expected start %v, got %v", t0, got.StartTime)
	}
	if !got.OpeningCash.Equal(money(500)) {
		t.Errorf("expected opening cash 500, got %s", got.OpeningCash)
	}
	if got.ClosingCash.Valid {
		t.Errorf("expected null closing cash, got %s", got.ClosingCash.Decimal)
	}
	if got.EndTime != nil {
		t.Errorf("expected no end time, got %v", got.EndTime)
	}
}

func TestShiftRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftRepository(db)

	_, err := repo.GetByID(context.Background(), "SHIFT-9999")
	if !errors.Is(err, shift.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestShiftRepository_SingleActive(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newShift("SHIFT-0001", "E001")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := repo.Create(ctx, newShift("SHIFT-0002", "E002"))
	if !errors.Is(err, shift.ErrConflict) {
		t.Fatalf("expected ErrConflict for second active shift, got %v", err)
	}

	active, err := repo.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active == nil || active.ID != "SHIFT-0001" {
		t.Errorf("expected SHIFT-0001 active, got %+v", active)
	}
}

func TestShiftRepository_GetActive_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftRepository(db)

	active, err := repo.GetActive(context.Background())
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active != nil {
		t.Errorf("expected no active shift, got %+v", active)
	}
}

func TestShiftRepository_EndIfActive(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newShift("SHIFT-0001", "E001")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	end := t0.Add(8 * time.Hour)
	update := secondary.ShiftEndUpdate{
		ID:          "SHIFT-0001",
		Status:      string(shift.StatusCompleted),
		EndTime:     end,
		ClosingCash: decimal.NewNullDecimal(money(1250)),
		Notes:       "all good",
	}

	ok, err := repo.EndIfActive(ctx, update)
	if err != nil || !ok {
		t.Fatalf("expected first end to apply, got ok=%v err=%v", ok, err)
	}
	ok, err = repo.EndIfActive(ctx, update)
	if err != nil || ok {
		t.Fatalf("expected second end to be a no-op, got ok=%v err=%v", ok, err)
	}

	got, _ := repo.GetByID(ctx, "SHIFT-0001")
	if got.Status != string(shift.StatusCompleted) {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.EndTime == nil || !got.EndTime.Equal(end) {
		t.Errorf("expected end %v, got %v", end, got.EndTime)
	}
	if !got.ClosingCash.Valid || !got.ClosingCash.Decimal.Equal(money(1250)) {
		t.Errorf("expected closing cash 1250, got %+v", got.ClosingCash)
	}

	// The slot is free again.
	if err := repo.Create(ctx, newShift("SHIFT-0002", "E002")); err != nil {
		t.Errorf("expected new shift after end, got %v", err)
	}
}

func TestShiftRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftRepository(db)
	ctx := context.Background()

	for i, id := range []string{"SHIFT-0001", "SHIFT-0002", "SHIFT-0003"} {
		start := t0.Add(time.Duration(i) * 8 * time.Hour)
		seedShift(t, db, id, "E001", string(shift.StatusCompleted), start, ptrTime(start.Add(8*time.Hour)))
	}
	seedShift(t, db, "SHIFT-0004", "E002", string(shift.StatusActive), t0.Add(24*time.Hour), nil)

	all, err := repo.List(ctx, secondary.ShiftFilters{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 4 || all[0].ID != "SHIFT-0001" || all[3].ID != "SHIFT-0004" {
		t.Errorf("expected oldest first, got %v", shiftIDs(all))
	}

	newest, _ := repo.List(ctx, secondary.ShiftFilters{Limit: 2})
	if len(newest) != 2 || newest[0].ID != "SHIFT-0003" || newest[1].ID != "SHIFT-0004" {
		t.Errorf("expected newest two oldest first, got %v", shiftIDs(newest))
	}

	completed, _ := repo.List(ctx, secondary.ShiftFilters{Status: string(shift.StatusCompleted)})
	if len(completed) != 3 {
		t.Errorf("expected 3 completed shifts, got %d", len(completed))
	}
}

func TestShiftRepository_GetPredecessor(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftRepository(db)
	ctx := context.Background()

	seedShift(t, db, "SHIFT-0001", "E001", string(shift.StatusCompleted), t0, ptrTime(t0.Add(8*time.Hour)))
	seedShift(t, db, "SHIFT-0002", "E002", string(shift.StatusEmergencyEnded), t0.Add(8*time.Hour), ptrTime(t0.Add(10*time.Hour)))
	seedShift(t, db, "SHIFT-0003", "E003", string(shift.StatusActive), t0.Add(10*time.Hour), nil)

	prev, err := repo.GetPredecessor(ctx, t0.Add(10*time.Hour), "SHIFT-0003")
	if err != nil {
		t.Fatalf("GetPredecessor failed: %v", err)
	}
	if prev == nil || prev.ID != "SHIFT-0002" {
		t.Errorf("expected SHIFT-0002, got %+v", prev)
	}

	first, err := repo.GetPredecessor(ctx, t0, "SHIFT-0001")
	if err != nil {
		t.Fatalf("GetPredecessor failed: %v", err)
	}
	if first != nil {
		t.Errorf("expected no predecessor for the first shift, got %s", first.ID)
	}
}

func TestShiftRepository_GetNextID(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftRepository(db)
	ctx := context.Background()

	id, err := repo.GetNextID(ctx)
	if err != nil {
		t.Fatalf("GetNextID failed: %v", err)
	}
	if id != "SHIFT-0001" {
		t.Errorf("expected SHIFT-0001, got %s", id)
	}

	seedShift(t, db, "SHIFT-0041", "E001", string(shift.StatusCompleted), t0, ptrTime(t0.Add(time.Hour)))
	id, _ = repo.GetNextID(ctx)
	if id != "SHIFT-0042" {
		t.Errorf("expected SHIFT-0042, got %s", id)
	}
}

func shiftIDs(records []*secondary.ShiftRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
