package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/clock"
	"github.com/example/shiftdesk/internal/core/events"
	"github.com/example/shiftdesk/internal/core/ledger"
	"github.com/example/shiftdesk/internal/core/report"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/ports/secondary"
	"github.com/example/shiftdesk/internal/telemetry"
)

// LinkageServiceImpl implements the LinkageService interface.
// It reads the active shift without holding the ShiftSlot: a call racing a
// handover may see NO_ACTIVE_SHIFT, which callers retry or leave to reconcile.
type LinkageServiceImpl struct {
	registry primary.ShiftRegistry
	ledger   secondary.LedgerRepository
	stats    secondary.LiveStatsRepository
	tx       secondary.Transactor
	notifier *Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

// NewLinkageService creates a new LinkageService with injected dependencies.
func NewLinkageService(
	registry primary.ShiftRegistry,
	ledgerRepo secondary.LedgerRepository,
	stats secondary.LiveStatsRepository,
	tx secondary.Transactor,
	notifier *Notifier,
	clk clock.Clock,
	logger *slog.Logger,
) *LinkageServiceImpl {
	return &LinkageServiceImpl{
		registry: registry,
		ledger:   ledgerRepo,
		stats:    stats,
		tx:       tx,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
	}
}

func failed(operation, code, format string, args ...any) *primary.LinkResult {
	telemetry.LinkageResults.WithLabelValues(operation, code).Inc()
	return &primary.LinkResult{ErrorCode: code, Message: fmt.Sprintf(format, args...)}
}

func linked(operation, shiftID string, applied bool) *primary.LinkResult {
	telemetry.LinkageResults.WithLabelValues(operation, "ok").Inc()
	return &primary.LinkResult{Success: true, ShiftID: shiftID, Duplicate: !applied}
}

// errLinkedElsewhere rolls back a link that lost a race to another shift.
var errLinkedElsewhere = errors.New("session linked to another shift")

// LinkParkingSession attaches a ledger entry to the active shift and counts
// the entry once. An exited entry keeps the shift it was linked to.
func (s *LinkageServiceImpl) LinkParkingSession(ctx context.Context, req primary.LinkSessionRequest) (*primary.LinkResult, error) {
	const op = "link_session"
	if strings.TrimSpace(req.SessionID) == "" {
		return failed(op, primary.CodeInvalidRequest, "session id is required"), nil
	}
	if req.PaymentMode != "" {
		if _, ok := ledger.NormalizePaymentMode(req.PaymentMode); !ok {
			return failed(op, primary.CodeInvalidRequest, "unknown payment mode %q", req.PaymentMode), nil
		}
	}

	active, err := s.registry.GetActiveShift(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return failed(op, primary.CodeNoActiveShift, "no active shift to link session %s", req.SessionID), nil
	}

	entry, err := s.ledger.GetByID(ctx, req.SessionID)
	if errors.Is(err, shift.ErrNotFound) {
		return failed(op, primary.CodeSessionNotFound, "session %s not found", req.SessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	exited := entry.ExitTime != nil
	if exited && entry.ShiftSessionID != "" && entry.ShiftSessionID != active.ID {
		return failed(op, primary.CodeAlreadyLinked, "session %s exited under shift %s", entry.ID, entry.ShiftSessionID), nil
	}

	vehicleType := ledger.NormalizeVehicleType(req.VehicleType)
	if vehicleType == "" {
		vehicleType = entry.VehicleType
	}

	var applied bool
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		moved, err := s.ledger.LinkToShift(ctx, entry.ID, active.ID, exited)
		if err != nil {
			return fmt.Errorf("failed to link session: %w", err)
		}
		if exited && !moved && entry.ShiftSessionID != active.ID {
			return errLinkedElsewhere
		}
		ok, err := s.stats.Apply(ctx, secondary.CounterEvent{
			Kind:        secondary.CounterEntry,
			Key:         entry.ID,
			ShiftID:     active.ID,
			VehicleType: vehicleType,
			RecordedAt:  s.clock.Now(),
		})
		applied = ok
		return err
	})
	if errors.Is(err, errLinkedElsewhere) {
		return failed(op, primary.CodeAlreadyLinked, "session %s was linked to another shift", entry.ID), nil
	}
	if err != nil {
		return nil, err
	}
	return linked(op, active.ID, applied), nil
}

// LinkPayment counts a payment against the active shift. The revenue key is
// the session ID when given, so a replay or a later exit update never counts
// the same payment twice.
func (s *LinkageServiceImpl) LinkPayment(ctx context.Context, req primary.LinkPaymentRequest) (*primary.LinkResult, error) {
	const op = "link_payment"
	key := strings.TrimSpace(req.SessionID)
	if key == "" {
		key = strings.TrimSpace(req.PaymentID)
	}
	if key == "" {
		return failed(op, primary.CodeInvalidRequest, "payment id or session id is required"), nil
	}
	if req.Amount.IsNegative() {
		return failed(op, primary.CodeInvalidRequest, "amount must not be negative"), nil
	}
	mode, ok := ledger.NormalizePaymentMode(req.PaymentMode)
	if !ok {
		return failed(op, primary.CodeInvalidRequest, "unknown payment mode %q", req.PaymentMode), nil
	}

	active, err := s.registry.GetActiveShift(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return failed(op, primary.CodeNoActiveShift, "no active shift to link payment %s", key), nil
	}

	var vehicleType string
	if req.SessionID != "" {
		entry, err := s.ledger.GetByID(ctx, req.SessionID)
		if errors.Is(err, shift.ErrNotFound) {
			return failed(op, primary.CodeSessionNotFound, "session %s not found", req.SessionID), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		vehicleType = entry.VehicleType
	}

	var applied bool
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if req.SessionID != "" {
			if _, err := s.ledger.LinkToShift(ctx, req.SessionID, active.ID, true); err != nil {
				return fmt.Errorf("failed to link session: %w", err)
			}
		}
		ok, err := s.stats.Apply(ctx, secondary.CounterEvent{
			Kind:        secondary.CounterRevenue,
			Key:         key,
			ShiftID:     active.ID,
			VehicleType: vehicleType,
			Amount:      req.Amount,
			RecordedAt:  s.clock.Now(),
		})
		applied = ok
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("payment linked", "key", key, "shift_id", active.ID, "mode", mode, "applied", applied)
	return linked(op, active.ID, applied), nil
}

// UpdateExitStatistics counts a vehicle exit once per session and publishes
// the new counters.
func (s *LinkageServiceImpl) UpdateExitStatistics(ctx context.Context, req primary.ExitStatsRequest) (*primary.LinkResult, error) {
	results, err := s.ApplyExitBatch(ctx, []primary.ExitStatsRequest{req})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// ApplyExitBatch applies several exit updates and publishes one
// exit_stats.updated event per touched shift.
func (s *LinkageServiceImpl) ApplyExitBatch(ctx context.Context, reqs []primary.ExitStatsRequest) ([]*primary.LinkResult, error) {
	results := make([]*primary.LinkResult, len(reqs))
	appliedByShift := map[string]int{}
	var order []string

	for i, req := range reqs {
		res, applied, err := s.applyExit(ctx, req)
		if err != nil {
			return nil, err
		}
		results[i] = res
		if !res.Success {
			continue
		}
		if _, seen := appliedByShift[res.ShiftID]; !seen {
			order = append(order, res.ShiftID)
			appliedByShift[res.ShiftID] = 0
		}
		if applied {
			appliedByShift[res.ShiftID]++
		}
	}

	for _, shiftID := range order {
		if appliedByShift[shiftID] == 0 {
			continue
		}
		stats, err := s.stats.Get(ctx, shiftID)
		if err != nil {
			s.logger.Warn("failed to read live stats", "shift_id", shiftID, "err", err)
			continue
		}
		s.notifier.Notify(ctx, events.ExitStatsUpdated, events.ExitStatsPayload{
			ShiftID:        shiftID,
			VehiclesExited: stats.VehiclesExited,
			Revenue:        stats.Revenue,
			Applied:        appliedByShift[shiftID],
		})
	}
	return results, nil
}

func (s *LinkageServiceImpl) applyExit(ctx context.Context, req primary.ExitStatsRequest) (*primary.LinkResult, bool, error) {
	const op = "exit_stats"
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.ShiftID) == "" {
		return failed(op, primary.CodeInvalidRequest, "session id and shift id are required"), false, nil
	}
	if req.DurationMinutes < 0 {
		return failed(op, primary.CodeInvalidRequest, "duration must not be negative"), false, nil
	}

	if _, err := s.registry.GetShift(ctx, req.ShiftID); err != nil {
		if errors.Is(err, shift.ErrNotFound) {
			return failed(op, primary.CodeShiftNotFound, "shift %s not found", req.ShiftID), false, nil
		}
		return nil, false, err
	}
	entry, err := s.ledger.GetByID(ctx, req.SessionID)
	if errors.Is(err, shift.ErrNotFound) {
		return failed(op, primary.CodeSessionNotFound, "session %s not found", req.SessionID), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}

	vehicleType := ledger.NormalizeVehicleType(req.VehicleType)
	if vehicleType == "" {
		vehicleType = entry.VehicleType
	}
	duration := req.DurationMinutes
	if duration == 0 && entry.ExitTime != nil && entry.ExitTime.After(entry.EntryTime) {
		duration = int64(entry.ExitTime.Sub(entry.EntryTime) / time.Minute)
	}

	now := s.clock.Now()
	var applied bool
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.stats.Apply(ctx, secondary.CounterEvent{
			Kind:            secondary.CounterExit,
			Key:             entry.ID,
			ShiftID:         req.ShiftID,
			VehicleType:     vehicleType,
			DurationMinutes: duration,
			RecordedAt:      now,
		})
		if err != nil {
			return err
		}
		applied = ok
		if entry.PaymentStatus != string(ledger.PaymentPaid) {
			return nil
		}
		_, err = s.stats.Apply(ctx, secondary.CounterEvent{
			Kind:        secondary.CounterRevenue,
			Key:         entry.ID,
			ShiftID:     req.ShiftID,
			VehicleType: vehicleType,
			Amount:      entry.Fee,
			RecordedAt:  now,
		})
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to update exit statistics: %w", err)
	}
	return linked(op, req.ShiftID, applied), applied, nil
}

// RelinkParked moves parked entries of one shift to another.
func (s *LinkageServiceImpl) RelinkParked(ctx context.Context, fromShiftID, toShiftID string) (int, error) {
	n, err := s.ledger.RelinkParked(ctx, fromShiftID, toShiftID)
	if err != nil {
		return 0, fmt.Errorf("failed to relink parked sessions: %w", err)
	}
	return n, nil
}

// BulkReconcile assigns every unlinked entry to the shift whose
// [start, end-or-now) window contains its entry time. Entries outside every
// window are reported, never guessed. Each row is written on its own so a
// failing row does not undo the others.
func (s *LinkageServiceImpl) BulkReconcile(ctx context.Context) (*primary.ReconcileResult, error) {
	sessions, err := s.registry.ListShifts(ctx, primary.ListShiftsRequest{})
	if err != nil {
		return nil, err
	}
	rows, err := s.ledger.ListUnlinked(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlinked entries: %w", err)
	}

	now := s.clock.Now()
	windows := make([]shiftWindow, len(sessions))
	for i, sess := range sessions {
		windows[i] = shiftWindow{id: sess.ID, w: ownWindow(sess, now)}
	}

	result := &primary.ReconcileResult{Errors: []primary.ReconcileError{}}
	for _, row := range rows {
		shiftID, matches := locate(windows, row.EntryTime)
		if matches != 1 {
			reason := "no shift was active at entry time"
			switch {
			case matches > 1:
				reason = fmt.Sprintf("entry time falls in %d shift windows", matches)
			case len(windows) == 0 || row.EntryTime.Before(windows[0].w.Start):
				reason = "entry predates every known shift"
			}
			result.Errors = append(result.Errors, primary.ReconcileError{EntryID: row.ID, EntryTime: row.EntryTime, Reason: reason})
			telemetry.ReconcileRows.WithLabelValues("unresolved").Inc()
			continue
		}

		linkedRow, err := s.ledger.LinkToShift(ctx, row.ID, shiftID, true)
		if err != nil {
			s.logger.Warn("reconcile failed to link entry", "entry_id", row.ID, "shift_id", shiftID, "err", err)
			result.Errors = append(result.Errors, primary.ReconcileError{EntryID: row.ID, EntryTime: row.EntryTime, Reason: err.Error()})
			telemetry.ReconcileRows.WithLabelValues("error").Inc()
			continue
		}
		if !linkedRow {
			continue
		}
		result.SessionsLinked++
		telemetry.ReconcileRows.WithLabelValues("linked").Inc()

		if _, err := s.stats.Apply(ctx, secondary.CounterEvent{
			Kind: secondary.CounterEntry, Key: row.ID, ShiftID: shiftID, VehicleType: row.VehicleType, RecordedAt: now,
		}); err != nil {
			s.logger.Warn("reconcile failed to count entry", "entry_id", row.ID, "err", err)
		}

		if row.PaymentStatus != string(ledger.PaymentPaid) || row.PaymentTime == nil {
			continue
		}
		payShift, matches := locate(windows, *row.PaymentTime)
		if matches != 1 {
			continue
		}
		applied, err := s.stats.Apply(ctx, secondary.CounterEvent{
			Kind: secondary.CounterRevenue, Key: row.ID, ShiftID: payShift, VehicleType: row.VehicleType, Amount: row.Fee, RecordedAt: now,
		})
		if err != nil {
			s.logger.Warn("reconcile failed to count payment", "entry_id", row.ID, "err", err)
			continue
		}
		if applied {
			result.PaymentsLinked++
		}
	}

	s.notifier.Notify(ctx, events.ReconcileCompleted, events.ReconcilePayload{
		SessionsLinked: result.SessionsLinked,
		PaymentsLinked: result.PaymentsLinked,
		Errors:         len(result.Errors),
	})
	s.logger.Info("reconcile finished",
		"sessions_linked", result.SessionsLinked,
		"payments_linked", result.PaymentsLinked,
		"unresolved", len(result.Errors))
	return result, nil
}

// ValidateShiftLinking reports the linked and unlinked entries of a shift's window.
func (s *LinkageServiceImpl) ValidateShiftLinking(ctx context.Context, shiftID string) (*primary.LinkingReport, error) {
	sess, err := s.registry.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	w := ownWindow(sess, s.clock.Now())

	linkedCount, err := s.ledger.CountLinked(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to count linked entries: %w", err)
	}
	unlinkedCount, err := s.ledger.CountUnlinkedBetween(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to count unlinked entries: %w", err)
	}

	ratio := 1.0
	if total := linkedCount + unlinkedCount; total > 0 {
		ratio = float64(linkedCount) / float64(total)
	}
	return &primary.LinkingReport{
		ShiftID:       shiftID,
		LinkedCount:   linkedCount,
		UnlinkedCount: unlinkedCount,
		Ratio:         ratio,
	}, nil
}

// GetLiveStats returns the dashboard counters of a shift.
func (s *LinkageServiceImpl) GetLiveStats(ctx context.Context, shiftID string) (*primary.LiveStats, error) {
	if _, err := s.registry.GetShift(ctx, shiftID); err != nil {
		return nil, err
	}
	record, err := s.stats.Get(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get live stats: %w", err)
	}

	stats := &primary.LiveStats{
		ShiftID:         shiftID,
		VehiclesEntered: record.VehiclesEntered,
		VehiclesExited:  record.VehiclesExited,
		Payments:        record.Payments,
		Revenue:         record.Revenue,
		ExitsByType:     record.ExitsByType,
	}
	if stats.ExitsByType == nil {
		stats.ExitsByType = map[string]int{}
	}
	if record.VehiclesExited > 0 {
		avg := decimal.NewFromInt(record.TotalDurationMinutes).Div(decimal.NewFromInt(int64(record.VehiclesExited))).Round(2)
		stats.AverageDurationMinutes = avg.InexactFloat64()
	}
	return stats, nil
}

type shiftWindow struct {
	id string
	w  report.Window
}

// ownWindow is the shift's own [start, end-or-now) interval.
func ownWindow(s *shift.Session, now time.Time) report.Window {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return report.Window{Start: s.StartTime, End: end}
}

// locate returns a shift whose window contains t and the number of windows
// that do. Only a single match is a usable attribution.
func locate(windows []shiftWindow, t time.Time) (string, int) {
	var id string
	n := 0
	for _, sw := range windows {
		if sw.w.Contains(t) {
			id = sw.id
			n++
		}
	}
	return id, n
}

// Ensure LinkageServiceImpl implements the interface
var _ primary.LinkageService = (*LinkageServiceImpl)(nil)
