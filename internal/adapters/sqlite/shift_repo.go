package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// ShiftRepository implements secondary.ShiftRepository with SQLite.
type ShiftRepository struct {
	db *sql.DB
}

// NewShiftRepository creates a new SQLite shift repository.
func NewShiftRepository(db *sql.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

const shiftColumns = `id, employee_id, employee_name, start_time, end_time, status, opening_cash, closing_cash, notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShift(row rowScanner) (*secondary.ShiftRecord, error) {
	var (
		start string
		end   sql.NullString
	)
	record := &secondary.ShiftRecord{}
	err := row.Scan(&record.ID, &record.EmployeeID, &record.EmployeeName, &start, &end,
		&record.Status, &record.OpeningCash, &record.ClosingCash, &record.Notes)
	if err != nil {
		return nil, err
	}
	if record.StartTime, err = parseTime(start); err != nil {
		return nil, err
	}
	if record.EndTime, err = parseNullTime(end); err != nil {
		return nil, err
	}
	return record, nil
}

// Create persists a new shift.
func (r *ShiftRepository) Create(ctx context.Context, s *secondary.ShiftRecord) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO shift_sessions (`+shiftColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.EmployeeID, s.EmployeeName, formatTime(s.StartTime), nullTime(s.EndTime),
		s.Status, s.OpeningCash, s.ClosingCash, s.Notes,
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
	record, err := scanShift(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+shiftColumns+` FROM shift_sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, shift.NotFound("shift", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return record, nil
}

// GetActive returns the active shift, or nil when the slot is free.
func (r *ShiftRepository) GetActive(ctx context.Context) (*secondary.ShiftRecord, error) {
	record, err := scanShift(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+shiftColumns+` FROM shift_sessions WHERE status = 'active'`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active shift: %w", err)
	}
	return record, nil
}

// List retrieves shifts oldest first. A limit keeps the newest N.
func (r *ShiftRepository) List(ctx context.Context, filters secondary.ShiftFilters) ([]*secondary.ShiftRecord, error) {
	query := `SELECT ` + shiftColumns + ` FROM shift_sessions WHERE 1=1`
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	query += " ORDER BY start_time DESC, id DESC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filters.Limit)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
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
// the given one. Ties on start time are broken by ID.
func (r *ShiftRepository) GetPredecessor(ctx context.Context, startTime time.Time, id string) (*secondary.ShiftRecord, error) {
	start := formatTime(startTime)
	record, err := scanShift(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+shiftColumns+` FROM shift_sessions
		 WHERE id != ? AND end_time IS NOT NULL AND status != 'active'
		   AND (start_time < ? OR (start_time = ? AND id < ?))
		 ORDER BY start_time DESC, id DESC LIMIT 1`,
		id, start, start, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preceding shift: %w", err)
	}
	return record, nil
}

// EndIfActive applies the end fields only while the shift is active.
func (r *ShiftRepository) EndIfActive(ctx context.Context, u secondary.ShiftEndUpdate) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE shift_sessions
		 SET status = ?, end_time = ?, closing_cash = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'active'`,
		u.Status, formatTime(u.EndTime), u.ClosingCash, u.Notes, u.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to end shift: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to end shift: %w", err)
	}
	return n == 1, nil
}

// GetNextID returns the next available shift ID.
func (r *ShiftRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, 7) AS INTEGER)), 0) FROM shift_sessions",
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next shift ID: %w", err)
	}
	return shift.GenerateShiftID(maxID), nil
}

// Ensure ShiftRepository implements the interface
var _ secondary.ShiftRepository = (*ShiftRepository)(nil)
