package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// ShiftRepository implements secondary.ShiftRepository with PostgreSQL.
type ShiftRepository struct {
	pool *pgxpool.Pool
}

// NewShiftRepository creates a new PostgreSQL shift repository.
func NewShiftRepository(pool *pgxpool.Pool) *ShiftRepository {
	return &ShiftRepository{pool: pool}
}

const shiftSelect = `SELECT id, employee_id, employee_name, start_time, end_time, status,
	opening_cash::text, closing_cash::text, notes FROM shift_sessions`

func scanShift(row pgx.Row) (*secondary.ShiftRecord, error) {
	var (
		opening string
		closing *string
		end     *time.Time
	)
	record := &secondary.ShiftRecord{}
	err := row.Scan(&record.ID, &record.EmployeeID, &record.EmployeeName, &record.StartTime, &end,
		&record.Status, &opening, &closing, &record.Notes)
	if err != nil {
		return nil, err
	}
	record.StartTime = record.StartTime.UTC()
	record.EndTime = utcPtr(end)
	if record.OpeningCash, err = parseDecimal(opening); err != nil {
		return nil, err
	}
	if record.ClosingCash, err = parseNullDecimal(closing); err != nil {
		return nil, err
	}
	return record, nil
}

// Create persists a new shift.
func (r *ShiftRepository) Create(ctx context.Context, s *secondary.ShiftRecord) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO shift_sessions
		 (id, employee_id, employee_name, start_time, end_time, status, opening_cash, closing_cash, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::numeric, $9)`,
		s.ID, s.EmployeeID, s.EmployeeName, s.StartTime.UTC(), utcPtr(s.EndTime), s.Status,
		decimalParam(s.OpeningCash), nullDecimalParam(s.ClosingCash), s.Notes,
	)
	if isUniqueViolation(err) {
		return shift.Conflict("cannot create shift %s: another shift is active or the id is taken", s.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create shift: %w", err)
	}
	return nil
}

// GetByID retrieves a shift by its ID.
func (r *ShiftRepository) GetByID(ctx context.Context, id string) (*secondary.ShiftRecord, error) {
	record, err := scanShift(conn(ctx, r.pool).QueryRow(ctx, shiftSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shift.NotFound("shift", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return record, nil
}

// GetActive returns the active shift, or nil when the slot is free.
func (r *ShiftRepository) GetActive(ctx context.Context) (*secondary.ShiftRecord, error) {
	record, err := scanShift(conn(ctx, r.pool).QueryRow(ctx, shiftSelect+` WHERE status = 'active'`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active shift: %w", err)
	}
	return record, nil
}

// List retrieves shifts oldest first. A limit keeps the newest N.
func (r *ShiftRepository) List(ctx context.Context, filters secondary.ShiftFilters) ([]*secondary.ShiftRecord, error) {
	query := shiftSelect + ` WHERE ($1 = '' OR status = $1) ORDER BY start_time DESC, id DESC`
	args := []any{filters.Status}
	if filters.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, filters.Limit)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	defer rows.Close()

	var shifts []*secondary.ShiftRecord
	for rows.Next() {
		record, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}

	for i, j := 0, len(shifts)-1; i < j; i, j = i+1, j-1 {
		shifts[i], shifts[j] = shifts[j], shifts[i]
	}
	return shifts, nil
}

// GetPredecessor returns the ended shift that started most recently before
// the given one.
func (r *ShiftRepository) GetPredecessor(ctx context.Context, startTime time.Time, id string) (*secondary.ShiftRecord, error) {
	record, err := scanShift(conn(ctx, r.pool).QueryRow(ctx,
		shiftSelect+` WHERE id <> $1 AND end_time IS NOT NULL AND status <> 'active'
		   AND (start_time < $2 OR (start_time = $2 AND id < $1))
		 ORDER BY start_time DESC, id DESC LIMIT 1`,
		id, startTime.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preceding shift: %w", err)
	}
	return record, nil
}

// EndIfActive applies the end fields only while the shift is active.
func (r *ShiftRepository) EndIfActive(ctx context.Context, u secondary.ShiftEndUpdate) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE shift_sessions
		 SET status = $1, end_time = $2, closing_cash = $3::text::numeric, notes = $4, updated_at = now()
		 WHERE id = $5 AND status = 'active'`,
		u.Status, u.EndTime.UTC(), nullDecimalParam(u.ClosingCash), u.Notes, u.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to end shift: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetNextID returns the next available shift ID.
func (r *ShiftRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	err := conn(ctx, r.pool).QueryRow(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTRING(id FROM 7) AS INTEGER)), 0) FROM shift_sessions",
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next shift ID: %w", err)
	}
	return shift.GenerateShiftID(maxID), nil
}

var _ secondary.ShiftRepository = (*ShiftRepository)(nil)
