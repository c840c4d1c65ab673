package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// LedgerRepository implements secondary.LedgerRepository with SQLite.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new SQLite ledger repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const entryColumns = `id, vehicle_number, vehicle_type, transport_name, driver_name, entry_time, exit_time,
	fee, payment_time, payment_mode, payment_status, shift_session_id`

func scanEntry(row rowScanner) (*secondary.LedgerEntryRecord, error) {
	var (
		transport, driver, mode, shiftID sql.NullString
		entry                            string
		exit, paid                       sql.NullString
	)
	record := &secondary.LedgerEntryRecord{}
	err := row.Scan(&record.ID, &record.VehicleNumber, &record.VehicleType, &transport, &driver,
		&entry, &exit, &record.Fee, &paid, &mode, &record.PaymentStatus, &shiftID)
	if err != nil {
		return nil, err
	}
	record.TransportName = transport.String
	record.DriverName = driver.String
	record.PaymentMode = mode.String
	record.ShiftSessionID = shiftID.String
	if record.EntryTime, err = parseTime(entry); err != nil {
		return nil, err
	}
	if record.ExitTime, err = parseNullTime(exit); err != nil {
		return nil, err
	}
	if record.PaymentTime, err = parseNullTime(paid); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *LedgerRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*secondary.LedgerEntryRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
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
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO ledger_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.VehicleNumber, e.VehicleType, nullString(e.TransportName), nullString(e.DriverName),
		formatTime(e.EntryTime), nullTime(e.ExitTime), e.Fee, nullTime(e.PaymentTime),
		nullString(e.PaymentMode), e.PaymentStatus, nullString(e.ShiftSessionID),
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
	record, err := scanEntry(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, shift.NotFound("ledger entry", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return record, nil
}

// exists distinguishes a missing row from a guarded update that matched nothing.
func (r *LedgerRepository) exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger_entries WHERE id = ?", id).Scan(&n)
	return n > 0, err
}

// RecordExit sets exit time and fee on a parked entry. A paid entry keeps
// the amount it was paid.
func (r *LedgerRepository) RecordExit(ctx context.Context, id string, exitTime time.Time, fee decimal.Decimal) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE ledger_entries
		 SET exit_time = ?, fee = CASE WHEN payment_status = 'Paid' THEN fee ELSE ? END, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND exit_time IS NULL`,
		formatTime(exitTime), fee, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record exit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	found, err := r.exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to record exit: %w", err)
	}
	if !found {
		return shift.NotFound("ledger entry", id)
	}
	return shift.Conflict("ledger entry %s already has an exit", id)
}

// RecordPayment marks an entry paid. The paid amount becomes the fee.
func (r *LedgerRepository) RecordPayment(ctx context.Context, id string, p secondary.PaymentUpdate) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE ledger_entries
		 SET payment_time = ?, payment_mode = ?, fee = ?, payment_status = 'Paid', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND payment_status != 'Paid'`,
		formatTime(p.PaidAt), p.Mode, p.Amount, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	found, err := r.exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	if !found {
		return shift.NotFound("ledger entry", id)
	}
	return shift.Conflict("ledger entry %s is already paid", id)
}

// LinkToShift points an entry at a shift.
func (r *LedgerRepository) LinkToShift(ctx context.Context, id, shiftID string, onlyIfUnlinked bool) (bool, error) {
	query := `UPDATE ledger_entries SET shift_session_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if onlyIfUnlinked {
		query += " AND shift_session_id IS NULL"
	}
	res, err := conn(ctx, r.db).ExecContext(ctx, query, shiftID, id)
	if err != nil {
		return false, fmt.Errorf("failed to link ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to link ledger entry: %w", err)
	}
	return n > 0, nil
}

// RelinkParked moves every parked entry of one shift to another.
func (r *LedgerRepository) RelinkParked(ctx context.Context, fromShiftID, toShiftID string) (int, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE ledger_entries SET shift_session_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE shift_session_id = ? AND exit_time IS NULL`,
		toShiftID, fromShiftID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to relink parked vehicles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to relink parked vehicles: %w", err)
	}
	return int(n), nil
}

// ListUnlinked returns entries with no shift, oldest entry first.
func (r *LedgerRepository) ListUnlinked(ctx context.Context, limit int) ([]*secondary.LedgerEntryRecord, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE shift_session_id IS NULL ORDER BY entry_time ASC, id ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	entries, err := r.queryEntries(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlinked entries: %w", err)
	}
	return entries, nil
}

// ListParked returns entries without an exit time, oldest entry first.
func (r *LedgerRepository) ListParked(ctx context.Context) ([]*secondary.LedgerEntryRecord, error) {
	entries, err := r.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE exit_time IS NULL ORDER BY entry_time ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list parked vehicles: %w", err)
	}
	return entries, nil
}

// ListForWindow returns entries that entered before end and were still
// around at start, by exit or payment.
func (r *LedgerRepository) ListForWindow(ctx context.Context, start, end time.Time) ([]*secondary.LedgerEntryRecord, error) {
	from, to := formatTime(start), formatTime(end)
	entries, err := r.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE entry_time < ?
		   AND (exit_time IS NULL OR exit_time >= ? OR payment_time >= ?)
		 ORDER BY entry_time ASC, id ASC`,
		to, from, from)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger window: %w", err)
	}
	return entries, nil
}

// CountLinked counts entries pointing at the shift.
func (r *LedgerRepository) CountLinked(ctx context.Context, shiftID string) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE shift_session_id = ?", shiftID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count linked entries: %w", err)
	}
	return count, nil
}

// CountUnlinkedBetween counts unlinked entries whose entry time lies in [start, end).
func (r *LedgerRepository) CountUnlinkedBetween(ctx context.Context, start, end time.Time) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries
		 WHERE shift_session_id IS NULL AND entry_time >= ? AND entry_time < ?`,
		formatTime(start), formatTime(end),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unlinked entries: %w", err)
	}
	return count, nil
}

// Ensure LedgerRepository implements the interface
var _ secondary.LedgerRepository = (*LedgerRepository)(nil)
