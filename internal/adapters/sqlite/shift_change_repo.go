package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// ShiftChangeRepository implements secondary.ShiftChangeRepository with SQLite.
// Handover records are immutable - no Update or Delete operations.
type ShiftChangeRepository struct {
	db *sql.DB
}

// NewShiftChangeRepository creates a new SQLite handover repository.
func NewShiftChangeRepository(db *sql.DB) *ShiftChangeRepository {
	return &ShiftChangeRepository{db: db}
}

const changeColumns = `id, previous_shift_id, new_shift_id, changed_at, handover_notes, cash_transferred,
	pending_issues, outgoing_employee_id, incoming_employee_id, change_type, supervisor_id, supervisor_approved`

func scanChange(row rowScanner) (*secondary.ShiftChangeRecord, error) {
	var (
		changedAt  string
		supervisor sql.NullString
	)
	record := &secondary.ShiftChangeRecord{}
	err := row.Scan(&record.ID, &record.PreviousShiftID, &record.NewShiftID, &changedAt,
		&record.HandoverNotes, &record.CashTransferred, &record.PendingIssues,
		&record.OutgoingEmployeeID, &record.IncomingEmployeeID, &record.ChangeType,
		&supervisor, &record.SupervisorApproved)
	if err != nil {
		return nil, err
	}
	if record.ChangedAt, err = parseTime(changedAt); err != nil {
		return nil, err
	}
	record.SupervisorID = supervisor.String
	return record, nil
}

// Create persists a handover record.
func (r *ShiftChangeRepository) Create(ctx context.Context, c *secondary.ShiftChangeRecord) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO shift_changes (`+changeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PreviousShiftID, c.NewShiftID, formatTime(c.ChangedAt), c.HandoverNotes, c.CashTransferred,
		c.PendingIssues, c.OutgoingEmployeeID, c.IncomingEmployeeID, c.ChangeType,
		nullString(c.SupervisorID), c.SupervisorApproved,
	)
	if isUniqueViolation(err) {
		return shift.Conflict("shift %s already has a handover record", c.PreviousShiftID)
	}
	if err != nil {
		return fmt.Errorf("failed to create handover record: %w", err)
	}
	return nil
}

// GetByPreviousShift returns the record closing the given shift, or nil.
func (r *ShiftChangeRepository) GetByPreviousShift(ctx context.Context, shiftID string) (*secondary.ShiftChangeRecord, error) {
	record, err := scanChange(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+changeColumns+` FROM shift_changes WHERE previous_shift_id = ?`, shiftID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get handover record: %w", err)
	}
	return record, nil
}

// List retrieves handover records newest first.
func (r *ShiftChangeRepository) List(ctx context.Context, limit int) ([]*secondary.ShiftChangeRecord, error) {
	query := `SELECT ` + changeColumns + ` FROM shift_changes ORDER BY changed_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list handover records: %w", err)
	}
	defer rows.Close()

	var changes []*secondary.ShiftChangeRecord
	for rows.Next() {
		record, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan handover record: %w", err)
		}
		changes = append(changes, record)
	}
	return changes, rows.Err()
}

// GetNextID returns the next available handover ID.
func (r *ShiftChangeRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, 4) AS INTEGER)), 0) FROM shift_changes",
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next handover ID: %w", err)
	}
	return shift.GenerateChangeID(maxID), nil
}

// Ensure ShiftChangeRepository implements the interface
var _ secondary.ShiftChangeRepository = (*ShiftChangeRepository)(nil)
