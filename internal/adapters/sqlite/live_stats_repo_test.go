package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/shiftdesk/internal/adapters/sqlite"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

func TestLiveStatsRepository_ApplyIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewLiveStatsRepository(db)
	ctx := context.Background()

	events := []secondary.CounterEvent{
		{Kind: secondary.CounterEntry, Key: "V1", ShiftID: "SHIFT-0001", VehicleType: "Trailer", RecordedAt: t0},
		{Kind: secondary.CounterEntry, Key: "V2", ShiftID: "SHIFT-0001", VehicleType: "4 Wheeler", RecordedAt: t0},
		{Kind: secondary.CounterExit, Key: "V1", ShiftID: "SHIFT-0001", VehicleType: "Trailer", DurationMinutes: 90, RecordedAt: t0.Add(time.Hour)},
		{Kind: secondary.CounterRevenue, Key: "V1", ShiftID: "SHIFT-0001", Amount: money(225), RecordedAt: t0.Add(2 * time.Hour)},
		{Kind: secondary.CounterRevenue, Key: "V2", ShiftID: "SHIFT-0001", Amount: money(100), RecordedAt: t0.Add(3 * time.Hour)},
	}
	for _, ev := range events {
		applied, err := repo.Apply(ctx, ev)
		if err != nil || !applied {
			t.Fatalf("Apply(%s %s) = %v, %v", ev.Kind, ev.Key, applied, err)
		}
	}
	for _, ev := range events {
		applied, err := repo.Apply(ctx, ev)
		if err != nil || applied {
			t.Fatalf("replayed Apply(%s %s) = %v, %v", ev.Kind, ev.Key, applied, err)
		}
	}

	stats, err := repo.Get(ctx, "SHIFT-0001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stats.VehiclesEntered != 2 || stats.VehiclesExited != 1 || stats.Payments != 2 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if !stats.Revenue.Equal(money(325)) {
		t.Errorf("expected revenue 325, got %s", stats.Revenue)
	}
	if stats.TotalDurationMinutes != 90 {
		t.Errorf("expected 90 minutes, got %d", stats.TotalDurationMinutes)
	}
	if stats.ExitsByType["Trailer"] != 1 || len(stats.ExitsByType) != 1 {
		t.Errorf("unexpected exits by type: %v", stats.ExitsByType)
	}
	if stats.UpdatedAt == nil || !stats.UpdatedAt.Equal(t0.Add(3*time.Hour)) {
		t.Errorf("unexpected updated_at: %v", stats.UpdatedAt)
	}
}

func TestLiveStatsRepository_GetEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewLiveStatsRepository(db)

	stats, err := repo.Get(context.Background(), "SHIFT-0009")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stats.VehiclesEntered != 0 || !stats.Revenue.IsZero() || stats.ExitsByType == nil {
		t.Errorf("expected zero record, got %+v", stats)
	}
}

func TestLiveStatsRepository_UnknownKind(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewLiveStatsRepository(db)

	_, err := repo.Apply(context.Background(), secondary.CounterEvent{Kind: "refund", Key: "V1", ShiftID: "SHIFT-0001"})
	if err == nil {
		t.Error("expected error for unknown kind")
	}
}
