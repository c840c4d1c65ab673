package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/clock"
	"github.com/example/shiftdesk/internal/core/events"
	"github.com/example/shiftdesk/internal/core/fee"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// ============================================================================
// In-memory store
// ============================================================================

// memStore backs every mock repository. Transactions snapshot the maps and
// restore them on error unless nonTransactional is set, which mimics a store
// that commits each statement on its own.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	shifts   map[string]secondary.ShiftRecord
	changes  map[string]secondary.ShiftChangeRecord
	entries  map[string]secondary.LedgerEntryRecord
	applied  map[string]bool
	counters map[string]secondary.LiveStatsRecord

	nonTransactional bool
	failChangeCreate int
	failStartShift   int
	relinkErr        error
	windowErr        error
}

func newMemStore() *memStore {
	return &memStore{
		shifts:   make(map[string]secondary.ShiftRecord),
		changes:  make(map[string]secondary.ShiftChangeRecord),
		entries:  make(map[string]secondary.LedgerEntryRecord),
		applied:  make(map[string]bool),
		counters: make(map[string]secondary.LiveStatsRecord),
	}
}

type memSnapshot struct {
	shifts   map[string]secondary.ShiftRecord
	changes  map[string]secondary.ShiftChangeRecord
	entries  map[string]secondary.LedgerEntryRecord
	applied  map[string]bool
	counters map[string]secondary.LiveStatsRecord
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	counters := make(map[string]secondary.LiveStatsRecord, len(s.counters))
	for k, v := range s.counters {
		v.ExitsByType = copyMap(v.ExitsByType)
		counters[k] = v
	}
	return memSnapshot{
		shifts:   copyMap(s.shifts),
		changes:  copyMap(s.changes),
		entries:  copyMap(s.entries),
		applied:  copyMap(s.applied),
		counters: counters,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts = snap.shifts
	s.changes = snap.changes
	s.entries = snap.entries
	s.applied = snap.applied
	s.counters = snap.counters
}

// seedShift inserts a shift directly.
func (s *memStore) seedShift(r secondary.ShiftRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts[r.ID] = r
}

// seedEntry inserts a ledger entry directly.
func (s *memStore) seedEntry(r secondary.LedgerEntryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[r.ID] = r
}

func (s *memStore) shift(id string) secondary.ShiftRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shifts[id]
}

func (s *memStore) entry(id string) secondary.LedgerEntryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id]
}

func (s *memStore) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.shifts {
		if r.Status == string(shift.StatusActive) {
			n++
		}
	}
	return n
}

func (s *memStore) changeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.changes)
}

// ============================================================================
// Transactor
// ============================================================================

type txKey struct{}

type mockTransactor struct{ s *memStore }

func (m *mockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	snap := m.s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		if !m.s.nonTransactional {
			m.s.restore(snap)
		}
		return err
	}
	return nil
}

var _ secondary.Transactor = (*mockTransactor)(nil)

// ============================================================================
// ShiftRepository
// ============================================================================

type mockShiftRepository struct{ s *memStore }

func (m *mockShiftRepository) Create(ctx context.Context, r *secondary.ShiftRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failStartShift > 0 {
		m.s.failStartShift--
		return errors.New("disk full")
	}
	if _, ok := m.s.shifts[r.ID]; ok {
		return shift.Conflict("shift %s already exists", r.ID)
	}
	if r.Status == string(shift.StatusActive) {
		for _, existing := range m.s.shifts {
			if existing.Status == string(shift.StatusActive) {
				return shift.Conflict("shift %s is already active", existing.ID)
			}
		}
	}
	m.s.shifts[r.ID] = *r
	return nil
}

func (m *mockShiftRepository) GetByID(ctx context.Context, id string) (*secondary.ShiftRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.shifts[id]
	if !ok {
		return nil, shift.NotFound("shift", id)
	}
	return &r, nil
}

func (m *mockShiftRepository) GetActive(ctx context.Context) (*secondary.ShiftRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.shifts {
		if r.Status == string(shift.StatusActive) {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *mockShiftRepository) sorted() []*secondary.ShiftRecord {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*secondary.ShiftRecord, 0, len(m.s.shifts))
	for _, r := range m.s.shifts {
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func (m *mockShiftRepository) List(ctx context.Context, filters secondary.ShiftFilters) ([]*secondary.ShiftRecord, error) {
	var out []*secondary.ShiftRecord
	for _, r := range m.sorted() {
		if filters.Status != "" && r.Status != filters.Status {
			continue
		}
		out = append(out, r)
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[len(out)-filters.Limit:]
	}
	return out, nil
}

func (m *mockShiftRepository) GetPredecessor(ctx context.Context, startTime time.Time, id string) (*secondary.ShiftRecord, error) {
	var best *secondary.ShiftRecord
	for _, r := range m.sorted() {
		if r.ID == id || r.EndTime == nil {
			continue
		}
		if r.StartTime.After(startTime) || (r.StartTime.Equal(startTime) && r.ID >= id) {
			continue
		}
		best = r
	}
	return best, nil
}

func (m *mockShiftRepository) EndIfActive(ctx context.Context, u secondary.ShiftEndUpdate) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.shifts[u.ID]
	if !ok || r.Status != string(shift.StatusActive) {
		return false, nil
	}
	end := u.EndTime
	r.Status = u.Status
	r.EndTime = &end
	r.ClosingCash = u.ClosingCash
	r.Notes = u.Notes
	m.s.shifts[u.ID] = r
	return true, nil
}

func (m *mockShiftRepository) GetNextID(ctx context.Context) (string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	max := 0
	for id := range m.s.shifts {
		if n := shift.ParseShiftNumber(id); n > max {
			max = n
		}
	}
	return shift.GenerateShiftID(max), nil
}

var _ secondary.ShiftRepository = (*mockShiftRepository)(nil)

// ============================================================================
// ShiftChangeRepository
// ============================================================================

type mockChangeRepository struct{ s *memStore }

func (m *mockChangeRepository) Create(ctx context.Context, c *secondary.ShiftChangeRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failChangeCreate > 0 {
		m.s.failChangeCreate--
		return errors.New("database is locked")
	}
	for _, existing := range m.s.changes {
		if existing.PreviousShiftID == c.PreviousShiftID {
			return shift.Conflict("shift %s already handed over", c.PreviousShiftID)
		}
	}
	m.s.changes[c.ID] = *c
	return nil
}

func (m *mockChangeRepository) GetByPreviousShift(ctx context.Context, shiftID string) (*secondary.ShiftChangeRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.changes {
		if c.PreviousShiftID == shiftID {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockChangeRepository) List(ctx context.Context, limit int) ([]*secondary.ShiftChangeRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*secondary.ShiftChangeRecord, 0, len(m.s.changes))
	for _, c := range m.s.changes {
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockChangeRepository) GetNextID(ctx context.Context) (string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return shift.GenerateChangeID(len(m.s.changes)), nil
}

var _ secondary.ShiftChangeRepository = (*mockChangeRepository)(nil)

// ============================================================================
// LedgerRepository
// ============================================================================

type mockLedgerRepository struct{ s *memStore }

func (m *mockLedgerRepository) Create(ctx context.Context, e *secondary.LedgerEntryRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.entries[e.ID] = *e
	return nil
}

func (m *mockLedgerRepository) GetByID(ctx context.Context, id string) (*secondary.LedgerEntryRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.entries[id]
	if !ok {
		return nil, shift.NotFound("ledger entry", id)
	}
	return &e, nil
}

func (m *mockLedgerRepository) RecordExit(ctx context.Context, id string, exitTime time.Time, fee decimal.Decimal) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.entries[id]
	if !ok {
		return shift.NotFound("ledger entry", id)
	}
	if e.ExitTime != nil {
		return shift.Conflict("entry %s already exited", id)
	}
	e.ExitTime = &exitTime
	if e.PaymentStatus != "Paid" {
		e.Fee = fee
	}
	m.s.entries[id] = e
	return nil
}

func (m *mockLedgerRepository) RecordPayment(ctx context.Context, id string, p secondary.PaymentUpdate) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.entries[id]
	if !ok {
		return shift.NotFound("ledger entry", id)
	}
	if e.PaymentStatus == "Paid" {
		return shift.Conflict("entry %s already paid", id)
	}
	paid := p.PaidAt
	e.PaymentTime = &paid
	e.PaymentMode = p.Mode
	e.PaymentStatus = "Paid"
	e.Fee = p.Amount
	m.s.entries[id] = e
	return nil
}

func (m *mockLedgerRepository) LinkToShift(ctx context.Context, id, shiftID string, onlyIfUnlinked bool) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.entries[id]
	if !ok {
		return false, nil
	}
	if onlyIfUnlinked && e.ShiftSessionID != "" {
		return false, nil
	}
	e.ShiftSessionID = shiftID
	m.s.entries[id] = e
	return true, nil
}

func (m *mockLedgerRepository) RelinkParked(ctx context.Context, fromShiftID, toShiftID string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.relinkErr != nil {
		return 0, m.s.relinkErr
	}
	n := 0
	for id, e := range m.s.entries {
		if e.ShiftSessionID == fromShiftID && e.ExitTime == nil {
			e.ShiftSessionID = toShiftID
			m.s.entries[id] = e
			n++
		}
	}
	return n, nil
}

func (m *mockLedgerRepository) sorted(keep func(secondary.LedgerEntryRecord) bool) []*secondary.LedgerEntryRecord {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*secondary.LedgerEntryRecord
	for _, e := range m.s.entries {
		if keep(e) {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out
}

func (m *mockLedgerRepository) ListUnlinked(ctx context.Context, limit int) ([]*secondary.LedgerEntryRecord, error) {
	out := m.sorted(func(e secondary.LedgerEntryRecord) bool { return e.ShiftSessionID == "" })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockLedgerRepository) ListParked(ctx context.Context) ([]*secondary.LedgerEntryRecord, error) {
	return m.sorted(func(e secondary.LedgerEntryRecord) bool { return e.ExitTime == nil }), nil
}

func (m *mockLedgerRepository) ListForWindow(ctx context.Context, start, end time.Time) ([]*secondary.LedgerEntryRecord, error) {
	if m.s.windowErr != nil {
		return nil, m.s.windowErr
	}
	return m.sorted(func(e secondary.LedgerEntryRecord) bool {
		if !e.EntryTime.Before(end) {
			return false
		}
		return e.ExitTime == nil || !e.ExitTime.Before(start) || (e.PaymentTime != nil && !e.PaymentTime.Before(start))
	}), nil
}

func (m *mockLedgerRepository) CountLinked(ctx context.Context, shiftID string) (int, error) {
	return len(m.sorted(func(e secondary.LedgerEntryRecord) bool { return e.ShiftSessionID == shiftID })), nil
}

func (m *mockLedgerRepository) CountUnlinkedBetween(ctx context.Context, start, end time.Time) (int, error) {
	return len(m.sorted(func(e secondary.LedgerEntryRecord) bool {
		return e.ShiftSessionID == "" && !e.EntryTime.Before(start) && e.EntryTime.Before(end)
	})), nil
}

var _ secondary.LedgerRepository = (*mockLedgerRepository)(nil)

// ============================================================================
// LiveStatsRepository
// ============================================================================

type mockLiveStatsRepository struct{ s *memStore }

func (m *mockLiveStatsRepository) Apply(ctx context.Context, ev secondary.CounterEvent) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := ev.Kind + "|" + ev.Key
	if m.s.applied[key] {
		return false, nil
	}
	m.s.applied[key] = true

	r := m.s.counters[ev.ShiftID]
	r.ShiftID = ev.ShiftID
	r.ExitsByType = copyMap(r.ExitsByType)
	switch ev.Kind {
	case secondary.CounterEntry:
		r.VehiclesEntered++
	case secondary.CounterExit:
		r.VehiclesExited++
		r.TotalDurationMinutes += ev.DurationMinutes
		r.ExitsByType[ev.VehicleType]++
	case secondary.CounterRevenue:
		r.Payments++
		r.Revenue = r.Revenue.Add(ev.Amount)
	default:
		return false, fmt.Errorf("unknown counter kind %q", ev.Kind)
	}
	at := ev.RecordedAt
	r.UpdatedAt = &at
	m.s.counters[ev.ShiftID] = r
	return true, nil
}

func (m *mockLiveStatsRepository) Get(ctx context.Context, shiftID string) (*secondary.LiveStatsRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r := m.s.counters[shiftID]
	r.ShiftID = shiftID
	r.ExitsByType = copyMap(r.ExitsByType)
	return &r, nil
}

var _ secondary.LiveStatsRepository = (*mockLiveStatsRepository)(nil)

// ============================================================================
// EventPublisher
// ============================================================================

type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *mockPublisher) types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Type, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

func (m *mockPublisher) count(t events.Type) int {
	n := 0
	for _, got := range m.types() {
		if got == t {
			n++
		}
	}
	return n
}

var _ secondary.EventPublisher = (*mockPublisher)(nil)

// ============================================================================
// Test Harness
// ============================================================================

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// harness wires every service over one memStore.
type harness struct {
	store     *memStore
	clock     *clock.Manual
	publisher *mockPublisher
	notifier  *Notifier
	slot      *ShiftSlot

	registry *ShiftRegistryImpl
	linkage  *LinkageServiceImpl
	reports  *ReportServiceImpl
	handover *HandoverCoordinatorImpl
	ledger   *LedgerServiceImpl
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness() *harness {
	store := newMemStore()
	clk := clock.NewManual(t0)
	pub := &mockPublisher{}
	logger := discardLogger()
	tx := &mockTransactor{s: store}
	shifts := &mockShiftRepository{s: store}
	ledgerRepo := &mockLedgerRepository{s: store}

	h := &harness{
		store:     store,
		clock:     clk,
		publisher: pub,
		notifier:  NewNotifier(pub, clk, logger),
		slot:      NewShiftSlot(),
	}
	h.registry = NewShiftRegistry(shifts, tx, h.slot, h.notifier, clk, logger)
	h.linkage = NewLinkageService(h.registry, ledgerRepo, &mockLiveStatsRepository{s: store}, tx, h.notifier, clk, logger)
	h.reports = NewReportService(shifts, ledgerRepo, clk, logger)
	h.handover = NewHandoverCoordinator(h.registry, h.linkage, h.reports, &mockChangeRepository{s: store}, tx, h.slot, h.notifier, clk, logger,
		RecoveryPolicy{Attempts: 3})
	h.ledger = NewLedgerService(ledgerRepo, h.linkage, fee.NewCalculator(), clk, logger)
	return h
}

func ptrTime(t time.Time) *time.Time { return &t }

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
