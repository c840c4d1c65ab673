package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/shiftdesk/internal/adapters/sqlite"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

func newChange(id, prev, next string, at time.Time) *secondary.ShiftChangeRecord {
	return &secondary.ShiftChangeRecord{
		ID:                 id,
		PreviousShiftID:    prev,
		NewShiftID:         next,
		ChangedAt:          at,
		HandoverNotes:      "two trailers still inside",
		CashTransferred:    money(1250),
		OutgoingEmployeeID: "E001",
		IncomingEmployeeID: "E002",
		ChangeType:         string(shift.ChangeNormal),
	}
}

func TestShiftChangeRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftChangeRepository(db)
	ctx := context.Background()

	c := newChange("HO-0001", "SHIFT-0001", "SHIFT-0002", t0.Add(8*time.Hour))
	c.SupervisorID = "SUP-1"
	c.SupervisorApproved = true
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByPreviousShift(ctx, "SHIFT-0001")
	if err != nil {
		t.Fatalf("GetByPreviousShift failed: %v", err)
	}
	if got == nil || got.NewShiftID != "SHIFT-0002" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.CashTransferred.Equal(money(1250)) {
		t.Errorf("expected 1250 transferred, got %s", got.CashTransferred)
	}
	if got.SupervisorID != "SUP-1" || !got.SupervisorApproved {
		t.Errorf("expected supervisor approval, got %+v", got)
	}

	missing, err := repo.GetByPreviousShift(ctx, "SHIFT-0002")
	if err != nil || missing != nil {
		t.Errorf("expected nil for shift without handover, got %+v, %v", missing, err)
	}
}

func TestShiftChangeRepository_OnePerPreviousShift(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftChangeRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newChange("HO-0001", "SHIFT-0001", "SHIFT-0002", t0)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := repo.Create(ctx, newChange("HO-0002", "SHIFT-0001", "SHIFT-0003", t0))
	if !errors.Is(err, shift.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestShiftChangeRepository_ListAndNextID(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewShiftChangeRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := repo.GetNextID(ctx)
		if err != nil {
			t.Fatalf("GetNextID failed: %v", err)
		}
		prev := shift.GenerateShiftID(i)
		next := shift.GenerateShiftID(i + 1)
		if err := repo.Create(ctx, newChange(id, prev, next, t0.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	changes, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(changes) != 3 || changes[0].ID != "HO-0003" || changes[2].ID != "HO-0001" {
		t.Errorf("expected newest first, got %d records", len(changes))
	}

	limited, _ := repo.List(ctx, 1)
	if len(limited) != 1 || limited[0].ID != "HO-0003" {
		t.Errorf("expected only HO-0003, got %+v", limited)
	}
}
