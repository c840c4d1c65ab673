package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/shiftdesk/internal/clock"
	"github.com/example/shiftdesk/internal/core/fee"
	"github.com/example/shiftdesk/internal/core/ledger"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// LedgerServiceImpl implements the LedgerService interface.
// Ledger writes succeed even when linkage fails; the link outcome is
// returned next to the entry and unlinked rows are left to reconcile.
type LedgerServiceImpl struct {
	ledger  secondary.LedgerRepository
	linkage primary.LinkageService
	fees    *fee.Calculator
	clock   clock.Clock
	logger  *slog.Logger
}

// NewLedgerService creates a new LedgerService with injected dependencies.
func NewLedgerService(
	ledgerRepo secondary.LedgerRepository,
	linkage primary.LinkageService,
	fees *fee.Calculator,
	clk clock.Clock,
	logger *slog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		ledger:  ledgerRepo,
		linkage: linkage,
		fees:    fees,
		clock:   clk,
		logger:  logger,
	}
}

// RecordEntry creates a parked entry and links it to the active shift.
func (s *LedgerServiceImpl) RecordEntry(ctx context.Context, req primary.RecordEntryRequest) (*primary.LedgerResponse, error) {
	number := ledger.NormalizeVehicleNumber(req.VehicleNumber)
	if number == "" {
		return nil, &shift.ValidationError{Field: "vehicle_number", Reason: "vehicle number is required"}
	}
	vehicleType := ledger.NormalizeVehicleType(req.VehicleType)
	if vehicleType == "" {
		return nil, &shift.ValidationError{Field: "vehicle_type", Reason: "vehicle type is required"}
	}

	entryTime := s.clock.Now()
	if req.EntryTime != nil {
		entryTime = req.EntryTime.UTC()
	}

	record := &secondary.LedgerEntryRecord{
		ID:            uuid.NewString(),
		VehicleNumber: number,
		VehicleType:   vehicleType,
		TransportName: strings.TrimSpace(req.TransportName),
		DriverName:    strings.TrimSpace(req.DriverName),
		EntryTime:     entryTime,
		PaymentStatus: string(ledger.PaymentUnpaid),
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record entry: %w", err)
	}

	link := s.link(ctx, "entry", func() (*primary.LinkResult, error) {
		return s.linkage.LinkParkingSession(ctx, primary.LinkSessionRequest{SessionID: record.ID, VehicleType: vehicleType})
	})
	if link != nil && link.Success {
		record.ShiftSessionID = link.ShiftID
	}

	s.logger.Info("vehicle entered",
		"entry_id", record.ID,
		"vehicle_number", number,
		"vehicle_type", vehicleType,
		"shift_id", record.ShiftSessionID)
	return &primary.LedgerResponse{Entry: recordToEntry(record), Link: link}, nil
}

// RecordExit prices and closes a parked entry, then counts the exit against
// the shift the entry belongs to. A prepaid entry keeps its paid amount so
// the revenue of the shift that took the payment never moves.
func (s *LedgerServiceImpl) RecordExit(ctx context.Context, req primary.RecordExitRequest) (*primary.LedgerResponse, error) {
	record, err := s.ledger.GetByID(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	if record.ExitTime != nil {
		return nil, shift.Conflict("entry %s already exited at %s", record.ID, record.ExitTime.Format(time.RFC3339))
	}

	exitTime := s.clock.Now()
	if req.ExitTime != nil {
		exitTime = req.ExitTime.UTC()
	}
	calc, err := s.fees.Calculate(record.VehicleType, record.EntryTime, exitTime)
	if errors.Is(err, fee.ErrExitBeforeEntry) {
		return nil, &shift.ValidationError{Field: "exit_time", Reason: err.Error()}
	}
	if err != nil {
		return nil, err
	}

	if err := s.ledger.RecordExit(ctx, record.ID, exitTime, calc.TotalFee); err != nil {
		return nil, fmt.Errorf("failed to record exit: %w", err)
	}
	record.ExitTime = &exitTime
	if record.PaymentStatus == string(ledger.PaymentPaid) {
		if due := calc.TotalFee.Sub(record.Fee); due.IsPositive() {
			s.logger.WarnContext(ctx, "prepaid amount below exit fee",
				"entry_id", record.ID,
				"paid", record.Fee.String(),
				"fee", calc.TotalFee.String(),
				"due", due.String())
		}
	} else {
		record.Fee = calc.TotalFee
	}

	if record.ShiftSessionID == "" {
		link := s.link(ctx, "exit", func() (*primary.LinkResult, error) {
			return s.linkage.LinkParkingSession(ctx, primary.LinkSessionRequest{SessionID: record.ID})
		})
		if link == nil || !link.Success {
			return &primary.LedgerResponse{Entry: recordToEntry(record), Fee: &calc, Link: link}, nil
		}
		record.ShiftSessionID = link.ShiftID
	}

	link := s.link(ctx, "exit", func() (*primary.LinkResult, error) {
		return s.linkage.UpdateExitStatistics(ctx, primary.ExitStatsRequest{
			SessionID:       record.ID,
			ShiftID:         record.ShiftSessionID,
			VehicleType:     record.VehicleType,
			DurationMinutes: int64(exitTime.Sub(record.EntryTime) / time.Minute),
		})
	})

	s.logger.Info("vehicle exited",
		"entry_id", record.ID,
		"vehicle_number", record.VehicleNumber,
		"fee", calc.TotalFee.String(),
		"overstay", calc.IsOverstay)
	return &primary.LedgerResponse{Entry: recordToEntry(record), Fee: &calc, Link: link}, nil
}

// RecordPayment marks an entry paid. Without an amount the computed fee is
// charged; a parked vehicle is charged its stay so far.
func (s *LedgerServiceImpl) RecordPayment(ctx context.Context, req primary.RecordPaymentRequest) (*primary.LedgerResponse, error) {
	mode, ok := ledger.NormalizePaymentMode(req.PaymentMode)
	if !ok {
		return nil, &shift.ValidationError{Field: "payment_mode", Reason: fmt.Sprintf("unknown payment mode %q", req.PaymentMode)}
	}
	if req.Amount.IsNegative() {
		return nil, &shift.ValidationError{Field: "amount", Reason: "amount must not be negative"}
	}

	record, err := s.ledger.GetByID(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	if record.PaymentStatus == string(ledger.PaymentPaid) {
		return nil, shift.Conflict("entry %s is already paid", record.ID)
	}

	now := s.clock.Now()
	amount := req.Amount
	if amount.IsZero() {
		amount = record.Fee
		if record.ExitTime == nil {
			amount = s.fees.Estimate(record.VehicleType, now.Sub(record.EntryTime).Hours())
		}
	}

	if err := s.ledger.RecordPayment(ctx, record.ID, secondary.PaymentUpdate{PaidAt: now, Mode: mode, Amount: amount}); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	record.PaymentStatus = string(ledger.PaymentPaid)
	record.PaymentMode = mode
	record.PaymentTime = &now
	record.Fee = amount

	link := s.link(ctx, "payment", func() (*primary.LinkResult, error) {
		return s.linkage.LinkPayment(ctx, primary.LinkPaymentRequest{
			PaymentID:   record.ID,
			Amount:      amount,
			PaymentMode: mode,
			SessionID:   record.ID,
		})
	})
	if link != nil && link.Success && record.ShiftSessionID == "" {
		record.ShiftSessionID = link.ShiftID
	}

	s.logger.Info("payment recorded", "entry_id", record.ID, "amount", amount.String(), "mode", mode)
	return &primary.LedgerResponse{Entry: recordToEntry(record), Link: link}, nil
}

// GetEntry retrieves an entry by ID.
func (s *LedgerServiceImpl) GetEntry(ctx context.Context, id string) (*ledger.Entry, error) {
	record, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return recordToEntry(record), nil
}

// ListParked lists vehicles currently inside.
func (s *LedgerServiceImpl) ListParked(ctx context.Context) ([]*ledger.Entry, error) {
	records, err := s.ledger.ListParked(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list parked vehicles: %w", err)
	}
	entries := make([]*ledger.Entry, len(records))
	for i, r := range records {
		entries[i] = recordToEntry(r)
	}
	return entries, nil
}

// FeeSchedule returns the tariff in force.
func (s *LedgerServiceImpl) FeeSchedule() fee.Schedule {
	return s.fees.Schedule()
}

// link runs a linkage call. Linkage errors never fail the ledger write.
func (s *LedgerServiceImpl) link(ctx context.Context, event string, call func() (*primary.LinkResult, error)) *primary.LinkResult {
	res, err := call()
	if err != nil {
		s.logger.WarnContext(ctx, "linkage failed; entry left for reconcile", "event", event, "err", err)
		return nil
	}
	if !res.Success {
		s.logger.Warn("linkage rejected", "event", event, "code", res.ErrorCode, "message", res.Message)
	}
	return res
}

// Ensure LedgerServiceImpl implements the interface
var _ primary.LedgerService = (*LedgerServiceImpl)(nil)
