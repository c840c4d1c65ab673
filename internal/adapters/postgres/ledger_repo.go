package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// LedgerRepository implements secondary.LedgerRepository with PostgreSQL.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const entrySelect = `SELECT id, vehicle_number, vehicle_type, transport_name, driver_name, entry_time, exit_time,
	fee::text, payment_time, payment_mode, payment_status, shift_session_id FROM ledger_entries`

func scanEntry(row pgx.Row) (*secondary.LedgerEntryRecord, error) {
	var (
		transport, driver, mode, shiftID *string
		exit, paid                       *time.Time
		fee                              string
	)
	record := &secondary.LedgerEntryRecord{}
	err := row.Scan(&record.ID, &record.VehicleNumber, &record.VehicleType, &transport, &driver,
		&record.EntryTime, &exit, &fee, &paid, &mode, &record.PaymentStatus, &shiftID)
	if err != nil {
		return nil, err
	}
	record.TransportName = deref(transport)
	record.DriverName = deref(driver)
	record.PaymentMode = deref(mode)
	record.ShiftSessionID = deref(shiftID)
	record.EntryTime = record.EntryTime.UTC()
	record.ExitTime = utcPtr(exit)
	record.PaymentTime = utcPtr(paid)
	if record.Fee, err = parseDecimal(fee); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *LedgerRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*secondary.LedgerEntryRecord, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*secondary.LedgerEntryRecord
	for rows.Next() {
		record, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, record)
	}
	return entries, rows.Err()
}

// Create persists a new parked entry.
func (r *LedgerRepository) Create(ctx context.Context, e *secondary.LedgerEntryRecord) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO ledger_entries
		 (id, vehicle_number, vehicle_type, transport_name, driver_name, entry_time, exit_time,
		  fee, payment_time, payment_mode, payment_status, shift_session_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::numeric, $9, $10, $11, $12)`,
		e.ID, e.VehicleNumber, e.VehicleType, nullIfEmpty(e.TransportName), nullIfEmpty(e.DriverName),
		e.EntryTime.UTC(), utcPtr(e.ExitTime), decimalParam(e.Fee), utcPtr(e.PaymentTime),
		nullIfEmpty(e.PaymentMode), e.PaymentStatus, nullIfEmpty(e.ShiftSessionID),
	)
	if isUniqueViolation(err) {
		return shift.Conflict("ledger entry %s already exists", e.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

// GetByID retrieves a ledger entry by its ID.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*secondary.LedgerEntryRecord, error) {
	record, err := scanEntry(conn(ctx, r.pool).QueryRow(ctx, entrySelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shift.NotFound("ledger entry", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return record, nil
}

// missOrConflict explains why a guarded update matched no row.
func (r *LedgerRepository) missOrConflict(ctx context.Context, id, conflict string) error {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check ledger entry: %w", err)
	}
	if !exists {
		return shift.NotFound("ledger entry", id)
	}
	return shift.Conflict("ledger entry %s %s", id, conflict)
}

// RecordExit sets exit time and fee on a parked entry. A paid entry keeps
// the amount it was paid.
func (r *LedgerRepository) RecordExit(ctx context.Context, id string, exitTime time.Time, fee decimal.Decimal) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE ledger_entries
		 SET exit_time = $1, fee = CASE WHEN payment_status = 'Paid' THEN fee ELSE $2::text::numeric END, updated_at = now()
		 WHERE id = $3 AND exit_time IS NULL`,
		exitTime.UTC(), decimalParam(fee), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record exit: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.missOrConflict(ctx, id, "already has an exit")
}

// RecordPayment marks an entry paid. The paid amount becomes the fee.
func (r *LedgerRepository) RecordPayment(ctx context.Context, id string, p secondary.PaymentUpdate) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE ledger_entries
		 SET payment_time = $1, payment_mode = $2, fee = $3::text::numeric, payment_status = 'Paid', updated_at = now()
		 WHERE id = $4 AND payment_status <> 'Paid'`,
		p.PaidAt.UTC(), p.Mode, decimalParam(p.Amount), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.missOrConflict(ctx, id, "is already paid")
}

// LinkToShift points an entry at a shift.
func (r *LedgerRepository) LinkToShift(ctx context.Context, id, shiftID string, onlyIfUnlinked bool) (bool, error) {
	query := `UPDATE ledger_entries SET shift_session_id = $1, updated_at = now() WHERE id = $2`
	if onlyIfUnlinked {
		query += " AND shift_session_id IS NULL"
	}
	tag, err := conn(ctx, r.pool).Exec(ctx, query, shiftID, id)
	if err != nil {
		return false, fmt.Errorf("failed to link ledger entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RelinkParked moves every parked entry of one shift to another.
func (r *LedgerRepository) RelinkParked(ctx context.Context, fromShiftID, toShiftID string) (int, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE ledger_entries SET shift_session_id = $1, updated_at = now()
		 WHERE shift_session_id = $2 AND exit_time IS NULL`,
		toShiftID, fromShiftID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to relink parked vehicles: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListUnlinked returns entries with no shift, oldest entry first.
func (r *LedgerRepository) ListUnlinked(ctx context.Context, limit int) ([]*secondary.LedgerEntryRecord, error) {
	query := entrySelect + ` WHERE shift_session_id IS NULL ORDER BY entry_time ASC, id ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	entries, err := r.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlinked entries: %w", err)
	}
	return entries, nil
}

// ListParked returns entries without an exit time, oldest entry first.
func (r *LedgerRepository) ListParked(ctx context.Context) ([]*secondary.LedgerEntryRecord, error) {
	entries, err := r.queryEntries(ctx, entrySelect+` WHERE exit_time IS NULL ORDER BY entry_time ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list parked vehicles: %w", err)
	}
	return entries, nil
}

// ListForWindow returns entries that entered before end and were still
// around at start, by exit or payment.
func (r *LedgerRepository) ListForWindow(ctx context.Context, start, end time.Time) ([]*secondary.LedgerEntryRecord, error) {
	entries, err := r.queryEntries(ctx,
		entrySelect+` WHERE entry_time < $1
		   AND (exit_time IS NULL OR exit_time >= $2 OR payment_time >= $2)
		 ORDER BY entry_time ASC, id ASC`,
		end.UTC(), start.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger window: %w", err)
	}
	return entries, nil
}

// CountLinked counts entries pointing at the shift.
func (r *LedgerRepository) CountLinked(ctx context.Context, shiftID string) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE shift_session_id = $1", shiftID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count linked entries: %w", err)
	}
	return count, nil
}

// CountUnlinkedBetween counts unlinked entries whose entry time lies in [start, end).
func (r *LedgerRepository) CountUnlinkedBetween(ctx context.Context, start, end time.Time) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_entries
		 WHERE shift_session_id IS NULL AND entry_time >= $1 AND entry_time < $2`,
		start.UTC(), end.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unlinked entries: %w", err)
	}
	return count, nil
}

var _ secondary.LedgerRepository = (*LedgerRepository)(nil)
