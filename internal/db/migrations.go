package db

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

const schemaVersionSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_shift_and_ledger_tables",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_live_counters",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_shift_change_type_and_supervisor",
		Up:      migrationV3,
	},
}

// LatestVersion is the schema version after every migration.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// CurrentVersion returns the highest applied migration, or 0.
func CurrentVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return v, nil
}

// RunMigrations applies every pending migration, each in its own transaction.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("running migration", "version", migration.Version, "name", migration.Name)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func execAll(tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrationV1 creates the first release schema. Handovers had no type and no
// supervisor yet.
func migrationV1(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS shift_sessions (
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
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_shift_sessions_single_active ON shift_sessions(status) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_shift_sessions_start ON shift_sessions(start_time)`,
		`CREATE TABLE IF NOT EXISTS shift_changes (
			id TEXT PRIMARY KEY,
			previous_shift_id TEXT NOT NULL UNIQUE,
			new_shift_id TEXT NOT NULL UNIQUE,
			changed_at TEXT NOT NULL,
			handover_notes TEXT NOT NULL,
			cash_transferred TEXT NOT NULL,
			pending_issues TEXT NOT NULL DEFAULT '',
			outgoing_employee_id TEXT NOT NULL,
			incoming_employee_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (previous_shift_id) REFERENCES shift_sessions(id),
			FOREIGN KEY (new_shift_id) REFERENCES shift_sessions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
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
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_entry_time ON ledger_entries(entry_time)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_exit_time ON ledger_entries(exit_time)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_shift ON ledger_entries(shift_session_id)`,
	)
}

// migrationV2 adds the idempotent live counters.
func migrationV2(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS shift_live_counters (
			shift_id TEXT PRIMARY KEY,
			vehicles_entered INTEGER NOT NULL DEFAULT 0,
			vehicles_exited INTEGER NOT NULL DEFAULT 0,
			payments INTEGER NOT NULL DEFAULT 0,
			revenue TEXT NOT NULL DEFAULT '0',
			total_duration_minutes INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT,
			FOREIGN KEY (shift_id) REFERENCES shift_sessions(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS live_counter_events (
			kind TEXT NOT NULL CHECK(kind IN ('entry', 'exit', 'revenue')),
			event_key TEXT NOT NULL,
			shift_id TEXT NOT NULL,
			vehicle_type TEXT,
			amount TEXT NOT NULL DEFAULT '0',
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (kind, event_key),
			FOREIGN KEY (shift_id) REFERENCES shift_sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_live_counter_events_shift ON live_counter_events(shift_id, kind)`,
	)
}

// migrationV3 adds the handover classification and supervisor approval.
func migrationV3(tx *sql.Tx) error {
	return execAll(tx,
		`ALTER TABLE shift_changes ADD COLUMN change_type TEXT NOT NULL CHECK(change_type IN ('normal', 'emergency', 'extended', 'overlap')) DEFAULT 'normal'`,
		`ALTER TABLE shift_changes ADD COLUMN supervisor_id TEXT`,
		`ALTER TABLE shift_changes ADD COLUMN supervisor_approved INTEGER NOT NULL DEFAULT 0`,
	)
}
