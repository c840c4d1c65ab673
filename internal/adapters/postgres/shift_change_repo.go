package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// ShiftChangeRepository implements secondary.ShiftChangeRepository with PostgreSQL.
type ShiftChangeRepository struct {
	pool *pgxpool.Pool
}

// NewShiftChangeRepository creates a new PostgreSQL handover repository.
func NewShiftChangeRepository(pool *pgxpool.Pool) *ShiftChangeRepository {
	return &ShiftChangeRepository{pool: pool}
}

const changeSelect = `SELECT id, previous_shift_id, new_shift_id, changed_at, handover_notes,
	cash_transferred::text, pending_issues, outgoing_employee_id, incoming_employee_id, change_type,
	supervisor_id, supervisor_approved FROM shift_changes`

func scanChange(row pgx.Row) (*secondary.ShiftChangeRecord, error) {
	var (
		cash       string
		supervisor *string
	)
	record := &secondary.ShiftChangeRecord{}
	err := row.Scan(&record.ID, &record.PreviousShiftID, &record.NewShiftID, &record.ChangedAt,
		&record.HandoverNotes, &cash, &record.PendingIssues, &record.OutgoingEmployeeID,
		&record.IncomingEmployeeID, &record.ChangeType, &supervisor, &record.SupervisorApproved)
	if err != nil {
		return nil, err
	}
	record.ChangedAt = record.ChangedAt.UTC()
	record.SupervisorID = deref(supervisor)
	if record.CashTransferred, err = parseDecimal(cash); err != nil {
		return nil, err
	}
	return record, nil
}

// Create persists a handover record.
func (r *ShiftChangeRepository) Create(ctx context.Context, c *secondary.ShiftChangeRecord) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO shift_changes
		 (id, previous_shift_id, new_shift_id, changed_at, handover_notes, cash_transferred, pending_issues,
		  outgoing_employee_id, incoming_employee_id, change_type, supervisor_id, supervisor_approved)
		 VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.PreviousShiftID, c.NewShiftID, c.ChangedAt.UTC(), c.HandoverNotes, decimalParam(c.CashTransferred),
		c.PendingIssues, c.OutgoingEmployeeID, c.IncomingEmployeeID, c.ChangeType,
		nullIfEmpty(c.SupervisorID), c.SupervisorApproved,
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
	record, err := scanChange(conn(ctx, r.pool).QueryRow(ctx, changeSelect+` WHERE previous_shift_id = $1`, shiftID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get handover record: %w", err)
	}
	return record, nil
}

// List retrieves handover records newest first.
func (r *ShiftChangeRepository) List(ctx context.Context, limit int) ([]*secondary.ShiftChangeRecord, error) {
	query := changeSelect + ` ORDER BY changed_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
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
	err := conn(ctx, r.pool).QueryRow(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTRING(id FROM 4) AS INTEGER)), 0) FROM shift_changes",
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next handover ID: %w", err)
	}
	return shift.GenerateChangeID(maxID), nil
}

var _ secondary.ShiftChangeRepository = (*ShiftChangeRepository)(nil)
