// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the single point where the database schema is loaded for
// tests. Every setup goes through db.GetSchemaSQL() so tests run against the
// authoritative schema. Do not hardcode CREATE TABLE statements in test files.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/db"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory database with the authoritative schema.
// A single connection keeps every statement on the same in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedShift inserts a shift row directly.
func seedShift(t *testing.T, testDB *sql.DB, id, employeeID, status string, start time.Time, end *time.Time) {
	t.Helper()
	var endText any
	if end != nil {
		endText = end.UTC().Format("2006-01-02T15:04:05.000000000Z")
	}
	_, err := testDB.Exec(
		`INSERT INTO shift_sessions (id, employee_id, employee_name, start_time, end_time, status, opening_cash)
		 VALUES (?, ?, ?, ?, ?, ?, '0')`,
		id, employeeID, "Employee "+employeeID, start.UTC().Format("2006-01-02T15:04:05.000000000Z"), endText, status,
	)
	if err != nil {
		t.Fatalf("failed to seed shift: %v", err)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
