package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/shiftdesk/internal/clock"
	"github.com/example/shiftdesk/internal/core/ledger"
	"github.com/example/shiftdesk/internal/core/report"
	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// ReportServiceImpl implements the ReportService interface.
// It only reads; it never takes the ShiftSlot.
type ReportServiceImpl struct {
	shifts secondary.ShiftRepository
	ledger secondary.LedgerRepository
	clock  clock.Clock
	logger *slog.Logger
}

// NewReportService creates a new ReportService with injected dependencies.
func NewReportService(shifts secondary.ShiftRepository, ledgerRepo secondary.LedgerRepository, clk clock.Clock, logger *slog.Logger) *ReportServiceImpl {
	return &ReportServiceImpl{shifts: shifts, ledger: ledgerRepo, clock: clk, logger: logger}
}

// GenerateReport computes the report of a shift. Ledger failures degrade the
// report instead of failing it.
func (s *ReportServiceImpl) GenerateReport(ctx context.Context, shiftID string) (*report.Report, error) {
	record, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	predecessor, err := s.shifts.GetPredecessor(ctx, record.StartTime, record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get preceding shift: %w", err)
	}

	in := report.Input{
		Shift:       *recordToSession(record),
		Predecessor: recordToSession(predecessor),
		Now:         s.clock.Now(),
	}
	w := report.PeriodFor(in.Shift, in.Predecessor, in.Now)

	rows, err := s.ledger.ListForWindow(ctx, w.Start, w.End)
	if err != nil {
		s.logger.Warn("report ledger query failed", "shift_id", shiftID, "err", err)
		in.LedgerErr = err
	}
	in.Entries = make([]ledger.Entry, 0, len(rows))
	for _, r := range rows {
		in.Entries = append(in.Entries, *recordToEntry(r))
	}

	return report.Build(in), nil
}

// Ensure ReportServiceImpl implements the interface
var _ primary.ReportService = (*ReportServiceImpl)(nil)
