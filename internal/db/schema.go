package db

import "database/sql"

// SchemaSQL is the complete schema for fresh installs. It reflects the state
// after every migration in migrations.go.
//
// Tests load it through GetSchemaSQL so repository code that references a
// missing column fails with "no such column" instead of drifting.
//
// When adding new columns or tables:
//  1. Add a migration to migrations.go
//  2. Update SchemaSQL here
//  3. TestMigrationsMatchSchema verifies both produce the same tables
//
// Timestamps are stored as fixed-width UTC text so they compare correctly as
// strings. Money is stored as decimal text.
const SchemaSQL = `
-- Shift sessions. At most one row may be active.
CREATE TABLE IF NOT EXISTS shift_sessions (
	id TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL,
	employee_name TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT,
	status TEXT NOT NULL CHECK(status IN ('active', 'completed', 'emergency_ended')) DEFAULT 'active',
	opening_cash TEXT NOT NULL DEFAULT '0',
	closing_cash TEXT,
	notes TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_shift_sessions_single_active ON shift_sessions(status) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_shift_sessions_start ON shift_sessions(start_time);

-- Handover audit trail (append-only)
CREATE TABLE IF NOT EXISTS shift_changes (
	id TEXT PRIMARY KEY,
	previous_shift_id TEXT NOT NULL UNIQUE,
	new_shift_id TEXT NOT NULL UNIQUE,
	changed_at TEXT NOT NULL,
	handover_notes TEXT NOT NULL,
	cash_transferred TEXT NOT NULL,
	pending_issues TEXT NOT NULL DEFAULT '',
	outgoing_employee_id TEXT NOT NULL,
	incoming_employee_id TEXT NOT NULL,
	change_type TEXT NOT NULL CHECK(change_type IN ('normal', 'emergency', 'extended', 'overlap')) DEFAULT 'normal',
	supervisor_id TEXT,
	supervisor_approved INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (previous_shift_id) REFERENCES shift_sessions(id),
	FOREIGN KEY (new_shift_id) REFERENCES shift_sessions(id)
);

-- Vehicle ledger
CREATE TABLE IF NOT EXISTS ledger_entries (
	id TEXT PRIMARY KEY,
	vehicle_number TEXT NOT NULL,
	vehicle_type TEXT NOT NULL,
	transport_name TEXT,
	driver_name TEXT,
	entry_time TEXT NOT NULL,
	exit_time TEXT,
	fee TEXT NOT NULL DEFAULT '0',
	payment_time TEXT,
	payment_mode TEXT,
	payment_status TEXT NOT NULL CHECK(payment_status IN ('Unpaid', 'Paid', 'Pending', 'Refunded')) DEFAULT 'Unpaid',
	shift_session_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (shift_session_id) REFERENCES shift_sessions(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_entry_time ON ledger_entries(entry_time);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_exit_time ON ledger_entries(exit_time);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_shift ON ledger_entries(shift_session_id);

-- Live dashboard counters
CREATE TABLE IF NOT EXISTS shift_live_counters (
	shift_id TEXT PRIMARY KEY,
	vehicles_entered INTEGER NOT NULL DEFAULT 0,
	vehicles_exited INTEGER NOT NULL DEFAULT 0,
	payments INTEGER NOT NULL DEFAULT 0,
	revenue TEXT NOT NULL DEFAULT '0',
	total_duration_minutes INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT,
	FOREIGN KEY (shift_id) REFERENCES shift_sessions(id) ON DELETE CASCADE
);

-- One row per applied counter event; the key makes replays no-ops.
CREATE TABLE IF NOT EXISTS live_counter_events (
	kind TEXT NOT NULL CHECK(kind IN ('entry', 'exit', 'revenue')),
	event_key TEXT NOT NULL,
	shift_id TEXT NOT NULL,
	vehicle_type TEXT,
	amount TEXT NOT NULL DEFAULT '0',
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	recorded_at TEXT NOT NULL,
	PRIMARY KEY (kind, event_key),
	FOREIGN KEY (shift_id) REFERENCES shift_sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_live_counter_events_shift ON live_counter_events(shift_id, kind);
`

// InitSchema brings the database up to date. A fresh database gets SchemaSQL
// directly and every migration is marked applied; an existing one runs the
// pending migrations.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}
	if tableCount > 0 {
		return RunMigrations(db)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(SchemaSQL); err != nil {
		return err
	}
	if _, err := tx.Exec(schemaVersionSQL); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
