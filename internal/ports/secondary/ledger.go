package secondary

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerRepository defines the secondary port for vehicle ledger persistence.
type LedgerRepository interface {
	// Create persists a new parked entry.
	Create(ctx context.Context, e *LedgerEntryRecord) error

	// GetByID retrieves an entry. Returns shift.ErrNotFound.
	GetByID(ctx context.Context, id string) (*LedgerEntryRecord, error)

	// RecordExit sets exit time and fee on a parked entry. A paid entry
	// keeps its paid fee. Returns shift.ErrConflict when the entry already
	// has an exit.
	RecordExit(ctx context.Context, id string, exitTime time.Time, fee decimal.Decimal) error

	// RecordPayment marks an entry paid. Returns shift.ErrConflict when the
	// entry is already paid.
	RecordPayment(ctx context.Context, id string, payment PaymentUpdate) error

	// LinkToShift points an entry at a shift. With onlyIfUnlinked the write is
	// skipped for entries that already carry a shift. Reports whether a row
	// was updated.
	LinkToShift(ctx context.Context, id, shiftID string, onlyIfUnlinked bool) (bool, error)

	// RelinkParked moves every parked entry of one shift to another.
	RelinkParked(ctx context.Context, fromShiftID, toShiftID string) (int, error)

	// ListUnlinked returns entries with no shift, oldest entry first.
	ListUnlinked(ctx context.Context, limit int) ([]*LedgerEntryRecord, error)

	// ListParked returns entries without an exit time, oldest entry first.
	ListParked(ctx context.Context) ([]*LedgerEntryRecord, error)

	// ListForWindow returns every entry that can be classified against
	// [start, end): entered before end and not gone before start.
	ListForWindow(ctx context.Context, start, end time.Time) ([]*LedgerEntryRecord, error)

	// CountLinked counts entries pointing at the shift.
	CountLinked(ctx context.Context, shiftID string) (int, error)

	// CountUnlinkedBetween counts unlinked entries whose entry time lies in [start, end).
	CountUnlinkedBetween(ctx context.Context, start, end time.Time) (int, error)
}

// LedgerEntryRecord represents a ledger entry as stored in persistence.
// Empty ShiftSessionID means unlinked.
type LedgerEntryRecord struct {
	ID             string
	VehicleNumber  string
	VehicleType    string
	TransportName  string
	DriverName     string
	EntryTime      time.Time
	ExitTime       *time.Time
	Fee            decimal.Decimal
	PaymentTime    *time.Time
	PaymentMode    string
	PaymentStatus  string
	ShiftSessionID string
}

// PaymentUpdate carries the payment facts for RecordPayment.
type PaymentUpdate struct {
	PaidAt time.Time
	Mode   string
	Amount decimal.Decimal
}

// Counter kinds for live statistics.
const (
	CounterEntry   = "entry"
	CounterExit    = "exit"
	CounterRevenue = "revenue"
)

// LiveStatsRepository defines the secondary port for shift dashboard counters.
type LiveStatsRepository interface {
	// Apply records the event and bumps the shift counters once per
	// (kind, key). Returns false when the key was already applied.
	Apply(ctx context.Context, event CounterEvent) (bool, error)

	// Get returns the counters of a shift. A shift without events yields a
	// zero record.
	Get(ctx context.Context, shiftID string) (*LiveStatsRecord, error)
}

// CounterEvent is one idempotent counter increment.
type CounterEvent struct {
	Kind            string
	Key             string
	ShiftID         string
	VehicleType     string
	Amount          decimal.Decimal
	DurationMinutes int64
	RecordedAt      time.Time
}

// LiveStatsRecord represents the counters of a shift.
type LiveStatsRecord struct {
	ShiftID              string
	VehiclesEntered      int
	VehiclesExited       int
	Payments             int
	Revenue              decimal.Decimal
	TotalDurationMinutes int64
	ExitsByType          map[string]int
	UpdatedAt            *time.Time
}
