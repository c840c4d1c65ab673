package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/shiftdesk/internal/ports/secondary"
)

// LiveStatsRepository implements secondary.LiveStatsRepository with PostgreSQL.
type LiveStatsRepository struct {
	pool *pgxpool.Pool
	tx   *Transactor
}

// NewLiveStatsRepository creates a new PostgreSQL live counter repository.
func NewLiveStatsRepository(pool *pgxpool.Pool) *LiveStatsRepository {
	return &LiveStatsRepository{pool: pool, tx: NewTransactor(pool)}
}

// Apply records the event and bumps the shift counters once per (kind, key).
func (r *LiveStatsRepository) Apply(ctx context.Context, ev secondary.CounterEvent) (bool, error) {
	at := ev.RecordedAt.UTC()
	var (
		bump string
		args []any
	)
	switch ev.Kind {
	case secondary.CounterEntry:
		bump = "vehicles_entered = vehicles_entered + 1"
		args = []any{ev.ShiftID, at}
	case secondary.CounterExit:
		bump = "vehicles_exited = vehicles_exited + 1, total_duration_minutes = total_duration_minutes + $3"
		args = []any{ev.ShiftID, at, ev.DurationMinutes}
	case secondary.CounterRevenue:
		bump = "payments = payments + 1, revenue = revenue + $3::text::numeric"
		args = []any{ev.ShiftID, at, decimalParam(ev.Amount)}
	default:
		return false, fmt.Errorf("unknown counter kind %q", ev.Kind)
	}

	applied := false
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.pool)
		tag, err := q.Exec(ctx,
			`INSERT INTO live_counter_events
			 (kind, event_key, shift_id, vehicle_type, amount, duration_minutes, recorded_at)
			 VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7)
			 ON CONFLICT (kind, event_key) DO NOTHING`,
			ev.Kind, ev.Key, ev.ShiftID, nullIfEmpty(ev.VehicleType), decimalParam(ev.Amount),
			ev.DurationMinutes, at,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		_, err = q.Exec(ctx,
			"INSERT INTO shift_live_counters (shift_id) VALUES ($1) ON CONFLICT (shift_id) DO NOTHING", ev.ShiftID)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, "UPDATE shift_live_counters SET "+bump+", updated_at = $2 WHERE shift_id = $1", args...)
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply %s counter: %w", ev.Kind, err)
	}
	return applied, nil
}

// Get returns the counters of a shift, zero when nothing was recorded.
func (r *LiveStatsRepository) Get(ctx context.Context, shiftID string) (*secondary.LiveStatsRecord, error) {
	record := &secondary.LiveStatsRecord{ShiftID: shiftID, ExitsByType: map[string]int{}}
	q := conn(ctx, r.pool)

	var (
		revenue string
		updated *time.Time
	)
	err := q.QueryRow(ctx,
		`SELECT vehicles_entered, vehicles_exited, payments, revenue::text, total_duration_minutes, updated_at
		 FROM shift_live_counters WHERE shift_id = $1`, shiftID,
	).Scan(&record.VehiclesEntered, &record.VehiclesExited, &record.Payments, &revenue,
		&record.TotalDurationMinutes, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return record, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get live counters: %w", err)
	}
	record.UpdatedAt = utcPtr(updated)
	if record.Revenue, err = parseDecimal(revenue); err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT COALESCE(vehicle_type, ''), COUNT(*) FROM live_counter_events
		 WHERE shift_id = $1 AND kind = 'exit' GROUP BY vehicle_type`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to count exits by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			vehicleType string
			n           int
		)
		if err := rows.Scan(&vehicleType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan exit count: %w", err)
		}
		record.ExitsByType[vehicleType] = n
	}
	return record, rows.Err()
}

var _ secondary.LiveStatsRepository = (*LiveStatsRepository)(nil)
