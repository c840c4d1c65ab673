package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaSQL mirrors internal/db.SchemaSQL with native Postgres types.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS shift_sessions (
	id TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL,
	employee_name TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ,
	status TEXT NOT NULL CHECK (status IN ('active', 'completed', 'emergency_ended')) DEFAULT 'active',
	opening_cash NUMERIC(12,2) NOT NULL DEFAULT 0,
	closing_cash NUMERIC(12,2),
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_shift_sessions_single_active ON shift_sessions(status) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_shift_sessions_start ON shift_sessions(start_time);

CREATE TABLE IF NOT EXISTS shift_changes (
	id TEXT PRIMARY KEY,
	previous_shift_id TEXT NOT NULL UNIQUE REFERENCES shift_sessions(id),
	new_shift_id TEXT NOT NULL UNIQUE REFERENCES shift_sessions(id),
	changed_at TIMESTAMPTZ NOT NULL,
	handover_notes TEXT NOT NULL,
	cash_transferred NUMERIC(12,2) NOT NULL,
	pending_issues TEXT NOT NULL DEFAULT '',
	outgoing_employee_id TEXT NOT NULL,
	incoming_employee_id TEXT NOT NULL,
	change_type TEXT NOT NULL CHECK (change_type IN ('normal', 'emergency', 'extended', 'overlap')) DEFAULT 'normal',
	supervisor_id TEXT,
	supervisor_approved BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id TEXT PRIMARY KEY,
	vehicle_number TEXT NOT NULL,
	vehicle_type TEXT NOT NULL,
	transport_name TEXT,
	driver_name TEXT,
	entry_time TIMESTAMPTZ NOT NULL,
	exit_time TIMESTAMPTZ,
	fee NUMERIC(12,2) NOT NULL DEFAULT 0,
	payment_time TIMESTAMPTZ,
	payment_mode TEXT,
	payment_status TEXT NOT NULL CHECK (payment_status IN ('Unpaid', 'Paid', 'Pending', 'Refunded')) DEFAULT 'Unpaid',
	shift_session_id TEXT REFERENCES shift_sessions(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_entry_time ON ledger_entries(entry_time);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_exit_time ON ledger_entries(exit_time);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_shift ON ledger_entries(shift_session_id);

CREATE TABLE IF NOT EXISTS shift_live_counters (
	shift_id TEXT PRIMARY KEY,
	vehicles_entered INTEGER NOT NULL DEFAULT 0,
	vehicles_exited INTEGER NOT NULL DEFAULT 0,
	payments INTEGER NOT NULL DEFAULT 0,
	revenue NUMERIC(14,2) NOT NULL DEFAULT 0,
	total_duration_minutes BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS live_counter_events (
	kind TEXT NOT NULL CHECK (kind IN ('entry', 'exit', 'revenue')),
	event_key TEXT NOT NULL,
	shift_id TEXT NOT NULL,
	vehicle_type TEXT,
	amount NUMERIC(12,2) NOT NULL DEFAULT 0,
	duration_minutes BIGINT NOT NULL DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (kind, event_key)
);

CREATE INDEX IF NOT EXISTS idx_live_counter_events_shift ON live_counter_events(shift_id, kind);
`

// migrationLock serialises concurrent Migrate calls across processes.
const migrationLock = 4242001

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLock); err != nil {
		return fmt.Errorf("failed to take migration lock: %w", err)
	}
	if _, err := tx.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return tx.Commit(ctx)
}
