package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/ports/secondary"
)

// LiveStatsRepository implements secondary.LiveStatsRepository with SQLite.
type LiveStatsRepository struct {
	db *sql.DB
	tx *Transactor
}

// NewLiveStatsRepository creates a new SQLite live counter repository.
func NewLiveStatsRepository(db *sql.DB) *LiveStatsRepository {
	return &LiveStatsRepository{db: db, tx: NewTransactor(db)}
}

// Apply records the event and bumps the shift counters once per (kind, key).
func (r *LiveStatsRepository) Apply(ctx context.Context, ev secondary.CounterEvent) (bool, error) {
	switch ev.Kind {
	case secondary.CounterEntry, secondary.CounterExit, secondary.CounterRevenue:
	default:
		return false, fmt.Errorf("unknown counter kind %q", ev.Kind)
	}

	applied := false
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		res, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO live_counter_events
			 (kind, event_key, shift_id, vehicle_type, amount, duration_minutes, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.Kind, ev.Key, ev.ShiftID, nullString(ev.VehicleType), ev.Amount, ev.DurationMinutes,
			formatTime(ev.RecordedAt),
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}

		if _, err := q.ExecContext(ctx,
			"INSERT INTO shift_live_counters (shift_id) VALUES (?) ON CONFLICT(shift_id) DO NOTHING", ev.ShiftID,
		); err != nil {
			return err
		}

		at := formatTime(ev.RecordedAt)
		switch ev.Kind {
		case secondary.CounterEntry:
			_, err = q.ExecContext(ctx,
				"UPDATE shift_live_counters SET vehicles_entered = vehicles_entered + 1, updated_at = ? WHERE shift_id = ?",
				at, ev.ShiftID)
		case secondary.CounterExit:
			_, err = q.ExecContext(ctx,
				`UPDATE shift_live_counters
				 SET vehicles_exited = vehicles_exited + 1, total_duration_minutes = total_duration_minutes + ?, updated_at = ?
				 WHERE shift_id = ?`,
				ev.DurationMinutes, at, ev.ShiftID)
		case secondary.CounterRevenue:
			var revenue decimal.Decimal
			if err := q.QueryRowContext(ctx,
				"SELECT revenue FROM shift_live_counters WHERE shift_id = ?", ev.ShiftID,
			).Scan(&revenue); err != nil {
				return err
			}
			_, err = q.ExecContext(ctx,
				"UPDATE shift_live_counters SET payments = payments + 1, revenue = ?, updated_at = ? WHERE shift_id = ?",
				revenue.Add(ev.Amount), at, ev.ShiftID)
		}
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
	q := conn(ctx, r.db)

	var updated sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT vehicles_entered, vehicles_exited, payments, revenue, total_duration_minutes, updated_at
		 FROM shift_live_counters WHERE shift_id = ?`, shiftID,
	).Scan(&record.VehiclesEntered, &record.VehiclesExited, &record.Payments, &record.Revenue,
		&record.TotalDurationMinutes, &updated)
	if err == sql.ErrNoRows {
		return record, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get live counters: %w", err)
	}
	if record.UpdatedAt, err = parseNullTime(updated); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT COALESCE(vehicle_type, ''), COUNT(*) FROM live_counter_events
		 WHERE shift_id = ? AND kind = 'exit' GROUP BY vehicle_type`, shiftID)
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

// Ensure LiveStatsRepository implements the interface
var _ secondary.LiveStatsRepository = (*LiveStatsRepository)(nil)
