package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/shiftdesk/internal/clock"
	"github.com/example/shiftdesk/internal/core/events"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ctxutil"
	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/ports/secondary"
	"github.com/example/shiftdesk/internal/telemetry"
)

// ShiftRegistryImpl implements the ShiftRegistry interface.
// Every mutation holds the ShiftSlot and runs in one store transaction.
type ShiftRegistryImpl struct {
	shifts   secondary.ShiftRepository
	tx       secondary.Transactor
	slot     *ShiftSlot
	notifier *Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

// NewShiftRegistry creates a new ShiftRegistry with injected dependencies.
func NewShiftRegistry(
	shifts secondary.ShiftRepository,
	tx secondary.Transactor,
	slot *ShiftSlot,
	notifier *Notifier,
	clk clock.Clock,
	logger *slog.Logger,
) *ShiftRegistryImpl {
	return &ShiftRegistryImpl{
		shifts:   shifts,
		tx:       tx,
		slot:     slot,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
	}
}

// GetActiveShift returns the active shift, or nil when the slot is free.
func (s *ShiftRegistryImpl) GetActiveShift(ctx context.Context) (*shift.Session, error) {
	record, err := s.shifts.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active shift: %w", err)
	}
	return recordToSession(record), nil
}

// GetShift retrieves a shift by ID.
func (s *ShiftRegistryImpl) GetShift(ctx context.Context, shiftID string) (*shift.Session, error) {
	record, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	return recordToSession(record), nil
}

// ListShifts lists shifts oldest first.
func (s *ShiftRegistryImpl) ListShifts(ctx context.Context, req primary.ListShiftsRequest) ([]*shift.Session, error) {
	records, err := s.shifts.List(ctx, secondary.ShiftFilters{Status: req.Status, Limit: req.Limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	sessions := make([]*shift.Session, len(records))
	for i, r := range records {
		sessions[i] = recordToSession(r)
	}
	return sessions, nil
}

// StartShift opens a shift for an employee.
func (s *ShiftRegistryImpl) StartShift(ctx context.Context, req primary.StartShiftRequest) (*shift.Session, error) {
	guard := shift.StartShiftContext{
		EmployeeID:   req.EmployeeID,
		EmployeeName: req.EmployeeName,
		OpeningCash:  req.OpeningCash,
	}
	if r := shift.CanStartShift(guard); !r.Allowed {
		return nil, r.Error()
	}

	ctx, release, err := s.slot.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var created *secondary.ShiftRecord
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		active, err := s.shifts.GetActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to get active shift: %w", err)
		}
		if active != nil {
			guard.ActiveShiftID = active.ID
		}
		if r := shift.CanStartShift(guard); !r.Allowed {
			return r.Error()
		}

		nextID, err := s.shifts.GetNextID(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate shift ID: %w", err)
		}
		record := &secondary.ShiftRecord{
			ID:           nextID,
			EmployeeID:   strings.TrimSpace(req.EmployeeID),
			EmployeeName: strings.TrimSpace(req.EmployeeName),
			StartTime:    s.clock.Now(),
			Status:       string(shift.StatusActive),
			OpeningCash:  req.OpeningCash,
			Notes:        strings.TrimSpace(req.Notes),
		}
		if err := s.shifts.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create shift: %w", err)
		}
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	session := recordToSession(created)
	telemetry.ShiftTransitions.WithLabelValues("start").Inc()
	telemetry.ActiveShift.Set(1)
	s.notifier.Notify(ctx, events.ShiftStarted, shiftPayload(session, ""))
	s.logger.Info("shift started",
		"shift_id", session.ID,
		"employee_id", session.EmployeeID,
		"opening_cash", session.OpeningCash.String(),
		"operator", ctxutil.OperatorFromContext(ctx))
	return session, nil
}

// EndShift closes the active shift with the attested closing cash.
func (s *ShiftRegistryImpl) EndShift(ctx context.Context, req primary.EndShiftRequest) (*shift.Session, error) {
	guard := shift.EndShiftContext{ShiftID: req.ShiftID, ClosingCash: req.ClosingCash}
	ended, err := s.end(ctx, guard, func(current shift.Session, now time.Time) shift.EndResult {
		return shift.ApplyEnd(current, req.ClosingCash, req.Notes, now)
	})
	if err != nil {
		return nil, err
	}

	telemetry.ShiftTransitions.WithLabelValues("end").Inc()
	s.notifier.Notify(ctx, events.ShiftEnded, shiftPayload(ended, ""))
	s.logger.Info("shift ended",
		"shift_id", ended.ID,
		"closing_cash", req.ClosingCash.String(),
		"operator", ctxutil.OperatorFromContext(ctx))
	return ended, nil
}

// EmergencyEnd closes the active shift without a successor. The slot may
// stay empty afterwards.
func (s *ShiftRegistryImpl) EmergencyEnd(ctx context.Context, req primary.EmergencyEndRequest) (*shift.Session, error) {
	guard := shift.EndShiftContext{ShiftID: req.ShiftID, Emergency: true, Reason: req.Reason}
	ended, err := s.end(ctx, guard, func(current shift.Session, now time.Time) shift.EndResult {
		return shift.ApplyEmergencyEnd(current, req.Reason, now)
	})
	if err != nil {
		return nil, err
	}

	telemetry.ShiftTransitions.WithLabelValues("emergency_end").Inc()
	s.notifier.Notify(ctx, events.ShiftEmergencyEnded, shiftPayload(ended, req.Reason))
	s.logger.Warn("shift emergency ended",
		"shift_id", ended.ID,
		"reason", req.Reason,
		"operator", ctxutil.OperatorFromContext(ctx))
	return ended, nil
}

func (s *ShiftRegistryImpl) end(
	ctx context.Context,
	guard shift.EndShiftContext,
	apply func(current shift.Session, now time.Time) shift.EndResult,
) (*shift.Session, error) {
	ctx, release, err := s.slot.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var ended *shift.Session
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err := s.shifts.GetByID(ctx, guard.ShiftID)
		if err != nil && !errors.Is(err, shift.ErrNotFound) {
			return fmt.Errorf("failed to get shift: %w", err)
		}
		if record != nil {
			guard.Exists = true
			guard.Status = shift.Status(record.Status)
		}
		if r := shift.CanEndShift(guard); !r.Allowed {
			return r.Error()
		}

		current := recordToSession(record)
		result := apply(*current, s.clock.Now())
		updated, err := s.shifts.EndIfActive(ctx, secondary.ShiftEndUpdate{
			ID:          current.ID,
			Status:      string(result.Status),
			EndTime:     result.EndTime,
			ClosingCash: result.ClosingCash,
			Notes:       result.Notes,
		})
		if err != nil {
			return fmt.Errorf("failed to end shift: %w", err)
		}
		if !updated {
			return fmt.Errorf("%w: shift %s was ended concurrently", shift.ErrAlreadyEnded, current.ID)
		}

		current.Status = result.Status
		current.EndTime = &result.EndTime
		current.ClosingCash = result.ClosingCash
		current.Notes = result.Notes
		ended = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.ActiveShift.Set(0)
	return ended, nil
}

// Ensure ShiftRegistryImpl implements the interface
var _ primary.ShiftRegistry = (*ShiftRegistryImpl)(nil)
