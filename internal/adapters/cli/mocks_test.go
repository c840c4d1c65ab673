package cli

import (
	"context"
	"errors"

	"github.com/example/shiftdesk/internal/core/fee"
	"github.com/example/shiftdesk/internal/core/ledger"
	"github.com/example/shiftdesk/internal/core/report"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/primary"
)

var errNotImplemented = errors.New("not implemented in mock")

// mockShiftRegistry implements primary.ShiftRegistry for testing.
type mockShiftRegistry struct {
	activeFn func(ctx context.Context) (*shift.Session, error)
	getFn    func(ctx context.Context, id string) (*shift.Session, error)
	listFn   func(ctx context.Context, req primary.ListShiftsRequest) ([]*shift.Session, error)
	startFn  func(ctx context.Context, req primary.StartShiftRequest) (*shift.Session, error)
	endFn    func(ctx context.Context, req primary.EndShiftRequest) (*shift.Session, error)
	emergFn  func(ctx context.Context, req primary.EmergencyEndRequest) (*shift.Session, error)
}

func (m *mockShiftRegistry) GetActiveShift(ctx context.Context) (*shift.Session, error) {
	if m.activeFn != nil {
		return m.activeFn(ctx)
	}
	return nil, nil
}

func (m *mockShiftRegistry) GetShift(ctx context.Context, id string) (*shift.Session, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, shift.NotFound("shift", id)
}

func (m *mockShiftRegistry) ListShifts(ctx context.Context, req primary.ListShiftsRequest) ([]*shift.Session, error) {
	if m.listFn != nil {
		return m.listFn(ctx, req)
	}
	return nil, nil
}

func (m *mockShiftRegistry) StartShift(ctx context.Context, req primary.StartShiftRequest) (*shift.Session, error) {
	if m.startFn != nil {
		return m.startFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockShiftRegistry) EndShift(ctx context.Context, req primary.EndShiftRequest) (*shift.Session, error) {
	if m.endFn != nil {
		return m.endFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockShiftRegistry) EmergencyEnd(ctx context.Context, req primary.EmergencyEndRequest) (*shift.Session, error) {
	if m.emergFn != nil {
		return m.emergFn(ctx, req)
	}
	return nil, errNotImplemented
}

// mockHandovers implements primary.HandoverCoordinator for testing.
type mockHandovers struct {
	executeFn func(ctx context.Context, req primary.HandoverRequest) (*primary.HandoverResult, error)
	resumeFn  func(ctx context.Context, req primary.ResumeHandoverRequest) (*primary.HandoverResult, error)
	changes   []*shift.Change
}

func (m *mockHandovers) ExecuteHandover(ctx context.Context, req primary.HandoverRequest) (*primary.HandoverResult, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockHandovers) ResumeHandover(ctx context.Context, req primary.ResumeHandoverRequest) (*primary.HandoverResult, error) {
	if m.resumeFn != nil {
		return m.resumeFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockHandovers) ListChanges(ctx context.Context, limit int) ([]*shift.Change, error) {
	return m.changes, nil
}

// mockReports implements primary.ReportService for testing.
type mockReports struct {
	report *report.Report
}

func (m *mockReports) GenerateReport(ctx context.Context, shiftID string) (*report.Report, error) {
	if m.report == nil {
		return nil, shift.NotFound("shift", shiftID)
	}
	return m.report, nil
}

// mockLedger implements primary.LedgerService for testing.
type mockLedger struct {
	entryFn  func(ctx context.Context, req primary.RecordEntryRequest) (*primary.LedgerResponse, error)
	exitFn   func(ctx context.Context, req primary.RecordExitRequest) (*primary.LedgerResponse, error)
	payFn    func(ctx context.Context, req primary.RecordPaymentRequest) (*primary.LedgerResponse, error)
	parked   []*ledger.Entry
	schedule fee.Schedule
}

func (m *mockLedger) RecordEntry(ctx context.Context, req primary.RecordEntryRequest) (*primary.LedgerResponse, error) {
	if m.entryFn != nil {
		return m.entryFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockLedger) RecordExit(ctx context.Context, req primary.RecordExitRequest) (*primary.LedgerResponse, error) {
	if m.exitFn != nil {
		return m.exitFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockLedger) RecordPayment(ctx context.Context, req primary.RecordPaymentRequest) (*primary.LedgerResponse, error) {
	if m.payFn != nil {
		return m.payFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockLedger) GetEntry(ctx context.Context, id string) (*ledger.Entry, error) {
	return nil, errNotImplemented
}

func (m *mockLedger) ListParked(ctx context.Context) ([]*ledger.Entry, error) {
	return m.parked, nil
}

func (m *mockLedger) FeeSchedule() fee.Schedule {
	return m.schedule
}

// mockLinkage implements primary.LinkageService for testing.
type mockLinkage struct {
	result    *primary.LinkResult
	reconcile *primary.ReconcileResult
	linking   *primary.LinkingReport
	stats     *primary.LiveStats
}

func (m *mockLinkage) LinkParkingSession(ctx context.Context, req primary.LinkSessionRequest) (*primary.LinkResult, error) {
	return m.result, nil
}

func (m *mockLinkage) LinkPayment(ctx context.Context, req primary.LinkPaymentRequest) (*primary.LinkResult, error) {
	return m.result, nil
}

func (m *mockLinkage) UpdateExitStatistics(ctx context.Context, req primary.ExitStatsRequest) (*primary.LinkResult, error) {
	return m.result, nil
}

func (m *mockLinkage) RelinkParked(ctx context.Context, fromShiftID, toShiftID string) (int, error) {
	return 0, nil
}

func (m *mockLinkage) BulkReconcile(ctx context.Context) (*primary.ReconcileResult, error) {
	return m.reconcile, nil
}

func (m *mockLinkage) ValidateShiftLinking(ctx context.Context, shiftID string) (*primary.LinkingReport, error) {
	return m.linking, nil
}

func (m *mockLinkage) GetLiveStats(ctx context.Context, shiftID string) (*primary.LiveStats, error) {
	return m.stats, nil
}
