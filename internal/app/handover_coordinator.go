package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/example/shiftdesk/internal/clock"
	"github.com/example/shiftdesk/internal/core/events"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ctxutil"
	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/ports/secondary"
	"github.com/example/shiftdesk/internal/telemetry"
)

var tracer = otel.Tracer("github.com/example/shiftdesk/internal/app")

// RecoveryPolicy bounds the roll-forward retries after a half-applied handover.
type RecoveryPolicy struct {
	Attempts        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRecoveryPolicy retries five times, up to two seconds apart.
func DefaultRecoveryPolicy() RecoveryPolicy {
	return RecoveryPolicy{Attempts: 5, InitialInterval: 100 * time.Millisecond, MaxInterval: 2 * time.Second}
}

// HandoverCoordinatorImpl implements the HandoverCoordinator interface.
type HandoverCoordinatorImpl struct {
	registry primary.ShiftRegistry
	linkage  primary.LinkageService
	reports  primary.ReportService
	changes  secondary.ShiftChangeRepository
	tx       secondary.Transactor
	slot     *ShiftSlot
	notifier *Notifier
	clock    clock.Clock
	logger   *slog.Logger
	recovery RecoveryPolicy
}

// NewHandoverCoordinator creates a new HandoverCoordinator with injected dependencies.
func NewHandoverCoordinator(
	registry primary.ShiftRegistry,
	linkage primary.LinkageService,
	reports primary.ReportService,
	changes secondary.ShiftChangeRepository,
	tx secondary.Transactor,
	slot *ShiftSlot,
	notifier *Notifier,
	clk clock.Clock,
	logger *slog.Logger,
	recovery RecoveryPolicy,
) *HandoverCoordinatorImpl {
	return &HandoverCoordinatorImpl{
		registry: registry,
		linkage:  linkage,
		reports:  reports,
		changes:  changes,
		tx:       tx,
		slot:     slot,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
		recovery: recovery,
	}
}

// ExecuteHandover runs the handover.
//
// Steps 1-3 (end outgoing, start incoming with the closing cash, write the
// audit record) commit together. Step 4 (relink parked vehicles) and step 5
// (outgoing report) run afterwards; their failures are reported in the result
// and left to reconcile.
func (h *HandoverCoordinatorImpl) ExecuteHandover(ctx context.Context, req primary.HandoverRequest) (*primary.HandoverResult, error) {
	ctx, span := tracer.Start(ctx, "handover.execute")
	defer span.End()
	span.SetAttributes(attribute.String("shift.id", req.CurrentShiftID))
	timer := prometheus.NewTimer(telemetry.HandoverDuration)
	defer timer.ObserveDuration()

	guard := shift.HandoverContext{
		ShiftID:              strings.TrimSpace(req.CurrentShiftID),
		IncomingEmployeeID:   strings.TrimSpace(req.IncomingEmployeeID),
		IncomingEmployeeName: strings.TrimSpace(req.IncomingEmployeeName),
		ClosingCash:          req.ClosingCash,
		HandoverNotes:        req.HandoverNotes,
		PendingIssues:        req.PendingIssues,
		ChangeType:           req.ChangeType,
		SupervisorID:         strings.TrimSpace(req.SupervisorID),
	}
	if r := shift.ValidateHandoverPayload(guard); !r.Allowed {
		telemetry.HandoverOutcomes.WithLabelValues("rejected").Inc()
		return nil, r.Error()
	}
	guard.ChangeType, _ = shift.ParseChangeType(string(req.ChangeType))

	ctx, release, err := h.slot.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var prev, next *shift.Session
	var change *shift.Change
	var wrote bool
	err = h.inTx(ctx, func(ctx context.Context) error {
		current, err := h.registry.GetShift(ctx, guard.ShiftID)
		if err != nil && !errors.Is(err, shift.ErrNotFound) {
			return err
		}
		if current != nil {
			guard.Exists = true
			guard.Status = current.Status
			guard.OutgoingEmployeeID = current.EmployeeID
		}
		if r := shift.CanHandover(guard); !r.Allowed {
			return r.Error()
		}

		prev, err = h.registry.EndShift(ctx, primary.EndShiftRequest{
			ShiftID:     guard.ShiftID,
			ClosingCash: guard.ClosingCash,
			Notes:       fmt.Sprintf("Handed over to %s (%s)", guard.IncomingEmployeeName, guard.IncomingEmployeeID),
		})
		if err != nil {
			if errors.Is(err, shift.ErrAlreadyEnded) {
				return shift.Conflict("shift %s is no longer active", guard.ShiftID)
			}
			return err
		}
		wrote = true

		next, err = h.registry.StartShift(ctx, primary.StartShiftRequest{
			EmployeeID:   guard.IncomingEmployeeID,
			EmployeeName: guard.IncomingEmployeeName,
			OpeningCash:  prev.ClosingCash.Decimal,
			Notes:        shift.HandoverNote(*prev, guard.HandoverNotes),
		})
		if err != nil {
			return fmt.Errorf("failed to start incoming shift: %w", err)
		}

		change, err = h.recordChange(ctx, *prev, *next, guard)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return h.afterFailedCommit(ctx, guard, wrote, err)
	}

	return h.finish(ctx, prev, next, change, false)
}

// afterFailedCommit decides between a clean failure and a half-applied
// handover. A failure before the outgoing shift was ended wrote nothing.
// Otherwise the outgoing shift is re-read: still active means the
// transaction rolled back.
func (h *HandoverCoordinatorImpl) afterFailedCommit(ctx context.Context, guard shift.HandoverContext, wrote bool, cause error) (*primary.HandoverResult, error) {
	if !wrote {
		telemetry.HandoverOutcomes.WithLabelValues("rejected").Inc()
		return nil, cause
	}

	current, err := h.registry.GetShift(ctx, guard.ShiftID)
	if err != nil || current.IsActive() || current.Status != shift.StatusCompleted {
		telemetry.HandoverOutcomes.WithLabelValues("rejected").Inc()
		return nil, cause
	}

	h.logger.Error("handover left outgoing shift ended, rolling forward",
		"shift_id", current.ID,
		"closing_cash", current.ClosingCash.Decimal.String(),
		"err", cause)
	return h.rollForward(ctx, current, guard, cause)
}

// ResumeHandover completes a handover whose outgoing shift is ended but whose
// successor or audit record is missing.
func (h *HandoverCoordinatorImpl) ResumeHandover(ctx context.Context, req primary.ResumeHandoverRequest) (*primary.HandoverResult, error) {
	ctx, span := tracer.Start(ctx, "handover.resume")
	defer span.End()
	span.SetAttributes(attribute.String("shift.id", req.PreviousShiftID))

	guard := shift.HandoverContext{
		ShiftID:              strings.TrimSpace(req.PreviousShiftID),
		IncomingEmployeeID:   strings.TrimSpace(req.IncomingEmployeeID),
		IncomingEmployeeName: strings.TrimSpace(req.IncomingEmployeeName),
		HandoverNotes:        req.HandoverNotes,
		PendingIssues:        req.PendingIssues,
		ChangeType:           req.ChangeType,
		SupervisorID:         strings.TrimSpace(req.SupervisorID),
	}
	if r := shift.ValidateHandoverPayload(guard); !r.Allowed {
		return nil, r.Error()
	}
	guard.ChangeType, _ = shift.ParseChangeType(string(req.ChangeType))

	ctx, release, err := h.slot.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	prev, err := h.registry.GetShift(ctx, guard.ShiftID)
	if err != nil {
		return nil, err
	}
	if prev.Status != shift.StatusCompleted {
		return nil, shift.Conflict("shift %s is %s; only a completed shift can be resumed", prev.ID, prev.Status)
	}
	if strings.EqualFold(prev.EmployeeID, guard.IncomingEmployeeID) {
		return nil, &shift.ValidationError{Field: "incoming_employee_id", Reason: "incoming employee must differ from outgoing employee"}
	}
	return h.rollForward(ctx, prev, guard, nil)
}

// rollForward makes sure the ended shift has a successor and an audit record.
// It never starts a second active shift: a successor is only started while
// the slot is free, and an active shift held by someone else is a conflict.
func (h *HandoverCoordinatorImpl) rollForward(ctx context.Context, prev *shift.Session, guard shift.HandoverContext, cause error) (*primary.HandoverResult, error) {
	closing := prev.ClosingCash.Decimal
	guard.ClosingCash = closing

	var next *shift.Session
	var change *shift.Change
	operation := func() (struct{}, error) {
		next, change = nil, nil
		err := h.inTx(ctx, func(ctx context.Context) error {
			existing, err := h.changes.GetByPreviousShift(ctx, prev.ID)
			if err != nil {
				return fmt.Errorf("failed to look up handover record: %w", err)
			}
			if existing != nil {
				change = recordToChange(existing)
				next, err = h.registry.GetShift(ctx, existing.NewShiftID)
				return err
			}

			active, err := h.registry.GetActiveShift(ctx)
			if err != nil {
				return err
			}
			switch {
			case active == nil:
				active, err = h.registry.StartShift(ctx, primary.StartShiftRequest{
					EmployeeID:   guard.IncomingEmployeeID,
					EmployeeName: guard.IncomingEmployeeName,
					OpeningCash:  closing,
					Notes:        shift.HandoverNote(*prev, guard.HandoverNotes),
				})
				if err != nil {
					return fmt.Errorf("failed to start incoming shift: %w", err)
				}
			case !strings.EqualFold(active.EmployeeID, guard.IncomingEmployeeID):
				return backoff.Permanent(shift.Conflict("shift %s is active for %s", active.ID, active.EmployeeID))
			}
			next = active

			change, err = h.recordChange(ctx, *prev, *active, guard)
			return err
		})
		return struct{}{}, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = h.recovery.InitialInterval
	policy.MaxInterval = h.recovery.MaxInterval
	attempts := h.recovery.Attempts
	if attempts == 0 {
		attempts = 1
	}

	if _, err := backoff.Retry(ctx, operation, backoff.WithBackOff(policy), backoff.WithMaxTries(attempts)); err != nil {
		stage := shift.StageRecordChange
		if next == nil {
			stage = shift.StageStartSuccessor
		}
		if cause != nil {
			err = fmt.Errorf("%w (after %v)", err, cause)
		}
		pf := &shift.PartialFailureError{PreviousShiftID: prev.ID, ClosingCash: closing, Stage: stage, Err: err}
		telemetry.HandoverOutcomes.WithLabelValues("partial_failure").Inc()
		h.logger.Error("handover recovery exhausted", "shift_id", prev.ID, "stage", stage, "err", err)
		h.notifier.Notify(ctx, events.OperatorAlert, events.AlertPayload{
			Severity: "critical",
			ShiftID:  prev.ID,
			Message:  pf.Error(),
		})
		return nil, pf
	}

	return h.finish(ctx, prev, next, change, true)
}

// finish runs the non-transactional steps and announces the handover.
func (h *HandoverCoordinatorImpl) finish(ctx context.Context, prev, next *shift.Session, change *shift.Change, recovered bool) (*primary.HandoverResult, error) {
	result := &primary.HandoverResult{
		PreviousShift: prev,
		NewShift:      next,
		Change:        change,
		Recovered:     recovered,
	}

	relinked, err := h.linkage.RelinkParked(ctx, prev.ID, next.ID)
	if err != nil {
		h.logger.Warn("relink after handover failed; run reconcile",
			"previous_shift_id", prev.ID, "new_shift_id", next.ID, "err", err)
		result.RelinkError = err.Error()
	} else {
		result.SessionsRelinked = relinked
	}

	rep, err := h.reports.GenerateReport(ctx, prev.ID)
	if err != nil {
		h.logger.Warn("report after handover failed", "shift_id", prev.ID, "err", err)
		result.ReportError = err.Error()
	} else {
		result.Report = rep
	}

	outcome := "completed"
	if recovered {
		outcome = "recovered"
	}
	telemetry.HandoverOutcomes.WithLabelValues(outcome).Inc()
	h.notifier.Notify(ctx, events.HandoverCompleted, events.HandoverPayload{
		ChangeID:         change.ID,
		PreviousShiftID:  prev.ID,
		NewShiftID:       next.ID,
		CashTransferred:  change.CashTransferred,
		SessionsRelinked: result.SessionsRelinked,
		Recovered:        recovered,
	})
	h.logger.Info("handover completed",
		"change_id", change.ID,
		"previous_shift_id", prev.ID,
		"new_shift_id", next.ID,
		"cash_transferred", change.CashTransferred.String(),
		"sessions_relinked", result.SessionsRelinked,
		"recovered", recovered,
		"operator", ctxutil.OperatorFromContext(ctx))
	return result, nil
}

// ListChanges returns the handover audit trail, newest first.
func (h *HandoverCoordinatorImpl) ListChanges(ctx context.Context, limit int) ([]*shift.Change, error) {
	records, err := h.changes.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list handovers: %w", err)
	}
	changes := make([]*shift.Change, len(records))
	for i, r := range records {
		changes[i] = recordToChange(r)
	}
	return changes, nil
}

func (h *HandoverCoordinatorImpl) recordChange(ctx context.Context, prev, next shift.Session, guard shift.HandoverContext) (*shift.Change, error) {
	nextID, err := h.changes.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate handover ID: %w", err)
	}
	c := shift.NewChange(nextID, prev, next, guard, h.clock.Now())
	if err := h.changes.Create(ctx, changeToRecord(c)); err != nil {
		return nil, fmt.Errorf("failed to record handover: %w", err)
	}
	return &c, nil
}

// inTx runs fn in a transaction and publishes the events it raised only
// after a successful commit.
func (h *HandoverCoordinatorImpl) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	bufCtx, buf := h.notifier.deferred(ctx)
	if err := h.tx.WithinTx(bufCtx, fn); err != nil {
		return err
	}
	h.notifier.flush(ctx, buf)
	return nil
}

// Ensure HandoverCoordinatorImpl implements the interface
var _ primary.HandoverCoordinator = (*HandoverCoordinatorImpl)(nil)
