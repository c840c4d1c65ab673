// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Transactor runs fn inside a store transaction. Repositories called with the
// context passed to fn take part in that transaction. Nested calls join the
// outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ShiftRepository defines the secondary port for shift session persistence.
type ShiftRepository interface {
	// Create persists a new shift. Returns shift.ErrConflict when another
	// shift is already active.
	Create(ctx context.Context, s *ShiftRecord) error

	// GetByID retrieves a shift by its ID. Returns shift.ErrNotFound.
	GetByID(ctx context.Context, id string) (*ShiftRecord, error)

	// GetActive returns the active shift, or nil when the slot is free.
	GetActive(ctx context.Context) (*ShiftRecord, error)

	// List retrieves shifts ordered by start time, oldest first.
	List(ctx context.Context, filters ShiftFilters) ([]*ShiftRecord, error)

	// GetPredecessor returns the ended shift that started most recently
	// before the given shift, or nil.
	GetPredecessor(ctx context.Context, startTime time.Time, id string) (*ShiftRecord, error)

	// EndIfActive applies the end fields only if the shift is still active.
	// Reports whether a row was updated.
	EndIfActive(ctx context.Context, update ShiftEndUpdate) (bool, error)

	// GetNextID returns the next available shift ID.
	GetNextID(ctx context.Context) (string, error)
}

// ShiftRecord represents a shift session as stored in persistence.
type ShiftRecord struct {
	ID           string
	EmployeeID   string
	EmployeeName string
	StartTime    time.Time
	EndTime      *time.Time
	Status       string
	OpeningCash  decimal.Decimal
	ClosingCash  decimal.NullDecimal
	Notes        string
}

// ShiftEndUpdate carries the fields written when a shift ends.
type ShiftEndUpdate struct {
	ID          string
	Status      string
	EndTime     time.Time
	ClosingCash decimal.NullDecimal
	Notes       string
}

// ShiftFilters contains filter options for querying shifts.
type ShiftFilters struct {
	Status string
	Limit  int // newest N, still returned oldest first
}

// ShiftChangeRepository defines the secondary port for the handover audit trail.
// Records are append-only.
type ShiftChangeRepository interface {
	// Create persists a change record. Returns shift.ErrConflict if the
	// previous shift already has one.
	Create(ctx context.Context, c *ShiftChangeRecord) error

	// GetByPreviousShift returns the record closing the given shift, or nil.
	GetByPreviousShift(ctx context.Context, shiftID string) (*ShiftChangeRecord, error)

	// List retrieves records newest first.
	List(ctx context.Context, limit int) ([]*ShiftChangeRecord, error)

	// GetNextID returns the next available change ID.
	GetNextID(ctx context.Context) (string, error)
}

// ShiftChangeRecord represents a handover as stored in persistence.
type ShiftChangeRecord struct {
	ID                 string
	PreviousShiftID    string
	NewShiftID         string
	ChangedAt          time.Time
	HandoverNotes      string
	CashTransferred    decimal.Decimal
	PendingIssues      string
	OutgoingEmployeeID string
	IncomingEmployeeID string
	ChangeType         string
	SupervisorID       string
	SupervisorApproved bool
}
