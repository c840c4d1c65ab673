// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting but delegate
// business logic to services.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/example/shiftdesk/internal/core/report"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/primary"
)

const (
	timeFormat = "2006-01-02 15:04"
	rule       = "────────────────────────────────────────────────────────────────"
)

var (
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
	activeColor = color.New(color.FgHiGreen)
)

// ShiftAdapter translates shift and handover commands to service calls.
type ShiftAdapter struct {
	shifts    primary.ShiftRegistry
	handovers primary.HandoverCoordinator
	reports   primary.ReportService
	out       io.Writer
}

// NewShiftAdapter creates a new ShiftAdapter.
func NewShiftAdapter(shifts primary.ShiftRegistry, handovers primary.HandoverCoordinator, reports primary.ReportService, out io.Writer) *ShiftAdapter {
	return &ShiftAdapter{shifts: shifts, handovers: handovers, reports: reports, out: out}
}

// Start opens a shift.
func (a *ShiftAdapter) Start(ctx context.Context, req primary.StartShiftRequest) (*shift.Session, error) {
	s, err := a.shifts.StartShift(ctx, req)
	if err != nil {
		if errors.Is(err, shift.ErrConflict) {
			return nil, fmt.Errorf("%w\nHint: hand over the active shift with 'shiftdesk handover run'", err)
		}
		return nil, err
	}
	fmt.Fprintf(a.out, "✓ Started %s for %s (%s), opening cash %s\n",
		s.ID, s.EmployeeName, s.EmployeeID, s.OpeningCash.StringFixed(2))
	return s, nil
}

// End closes the active shift.
func (a *ShiftAdapter) End(ctx context.Context, req primary.EndShiftRequest) (*shift.Session, error) {
	s, err := a.shifts.EndShift(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "✓ Ended %s, closing cash %s\n", s.ID, s.ClosingCash.Decimal.StringFixed(2))
	return s, nil
}

// EmergencyEnd closes the active shift without a successor.
func (a *ShiftAdapter) EmergencyEnd(ctx context.Context, req primary.EmergencyEndRequest) (*shift.Session, error) {
	s, err := a.shifts.EmergencyEnd(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "%s %s emergency ended: %s\n", warnColor.Sprint("!"), s.ID, req.Reason)
	fmt.Fprintln(a.out, "No shift is active. Start one with 'shiftdesk shift start'.")
	return s, nil
}

// Active prints the active shift, if any.
func (a *ShiftAdapter) Active(ctx context.Context) (*shift.Session, error) {
	s, err := a.shifts.GetActiveShift(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		fmt.Fprintln(a.out, "No active shift.")
		return nil, nil
	}
	a.printSession(s)
	return s, nil
}

// Show prints one shift.
func (a *ShiftAdapter) Show(ctx context.Context, shiftID string) (*shift.Session, error) {
	s, err := a.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	a.printSession(s)
	return s, nil
}

func (a *ShiftAdapter) printSession(s *shift.Session) {
	status := string(s.Status)
	if s.IsActive() {
		status = activeColor.Sprint(status)
	}
	fmt.Fprintf(a.out, "\nShift:    %s\n", s.ID)
	fmt.Fprintf(a.out, "Employee: %s (%s)\n", s.EmployeeName, s.EmployeeID)
	fmt.Fprintf(a.out, "Status:   %s\n", status)
	fmt.Fprintf(a.out, "Started:  %s\n", s.StartTime.Format(timeFormat))
	if s.EndTime != nil {
		fmt.Fprintf(a.out, "Ended:    %s\n", s.EndTime.Format(timeFormat))
	}
	fmt.Fprintf(a.out, "Opening:  %s\n", s.OpeningCash.StringFixed(2))
	if s.ClosingCash.Valid {
		fmt.Fprintf(a.out, "Closing:  %s\n", s.ClosingCash.Decimal.StringFixed(2))
	}
	if s.Notes != "" {
		fmt.Fprintf(a.out, "Notes:    %s\n", s.Notes)
	}
	fmt.Fprintln(a.out)
}

// List prints shifts oldest first.
func (a *ShiftAdapter) List(ctx context.Context, req primary.ListShiftsRequest) ([]*shift.Session, error) {
	shifts, err := a.shifts.ListShifts(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(shifts) == 0 {
		fmt.Fprintln(a.out, "No shifts found.")
		return shifts, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tEMPLOYEE\tSTATUS\tSTART\tEND")
	fmt.Fprintln(w, "--\t--------\t------\t-----\t---")
	for _, s := range shifts {
		end := "-"
		if s.EndTime != nil {
			end = s.EndTime.Format(timeFormat)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.EmployeeID, s.Status, s.StartTime.Format(timeFormat), end)
	}
	w.Flush()
	return shifts, nil
}

// Handover runs a handover and prints each step's outcome.
func (a *ShiftAdapter) Handover(ctx context.Context, req primary.HandoverRequest) (*primary.HandoverResult, error) {
	res, err := a.handovers.ExecuteHandover(ctx, req)
	if err != nil {
		var partial *shift.PartialFailureError
		if errors.As(err, &partial) {
			fmt.Fprintf(a.out, "%s Handover of %s stopped at %s.\n", errColor.Sprint("✗"), partial.PreviousShiftID, partial.Stage)
			fmt.Fprintf(a.out, "  Closing cash %s is recorded. Complete it with:\n", partial.ClosingCash.StringFixed(2))
			fmt.Fprintf(a.out, "  shiftdesk handover resume %s --employee-id %s --employee-name %q\n",
				partial.PreviousShiftID, req.IncomingEmployeeID, req.IncomingEmployeeName)
		}
		return nil, err
	}
	a.printHandover(res)
	return res, nil
}

// Resume completes a half-applied handover.
func (a *ShiftAdapter) Resume(ctx context.Context, req primary.ResumeHandoverRequest) (*primary.HandoverResult, error) {
	res, err := a.handovers.ResumeHandover(ctx, req)
	if err != nil {
		return nil, err
	}
	a.printHandover(res)
	return res, nil
}

func (a *ShiftAdapter) printHandover(res *primary.HandoverResult) {
	verb := "Handed over"
	if res.Recovered {
		verb = "Recovered handover"
	}
	fmt.Fprintf(a.out, "✓ %s %s → %s (%s)\n", verb, res.PreviousShift.ID, res.NewShift.ID, res.Change.ID)
	fmt.Fprintf(a.out, "  Cash transferred: %s\n", res.Change.CashTransferred.StringFixed(2))
	if res.RelinkError != "" {
		fmt.Fprintf(a.out, "  %s parked vehicles not relinked: %s\n", warnColor.Sprint("!"), res.RelinkError)
	} else {
		fmt.Fprintf(a.out, "  Parked vehicles relinked: %d\n", res.SessionsRelinked)
	}
	if res.ReportError != "" {
		fmt.Fprintf(a.out, "  %s report unavailable: %s\n", warnColor.Sprint("!"), res.ReportError)
	} else if res.Report != nil {
		fmt.Fprintf(a.out, "  Revenue: %s over %.2fh\n",
			res.Report.FinancialSummary.TotalRevenue.StringFixed(2), res.Report.ShiftInfo.DurationHours)
	}
}

// ListHandovers prints the handover audit trail newest first.
func (a *ShiftAdapter) ListHandovers(ctx context.Context, limit int) ([]*shift.Change, error) {
	changes, err := a.handovers.ListChanges(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		fmt.Fprintln(a.out, "No handovers recorded.")
		return changes, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tTYPE\tCASH\tTIME")
	fmt.Fprintln(w, "--\t----\t--\t----\t----\t----")
	for _, c := range changes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.PreviousShiftID, c.NewShiftID, c.ChangeType,
			c.CashTransferred.StringFixed(2), c.Timestamp.Format(timeFormat))
	}
	w.Flush()
	return changes, nil
}

// Report prints a shift report summary.
func (a *ShiftAdapter) Report(ctx context.Context, shiftID string) (*report.Report, error) {
	r, err := a.reports.GenerateReport(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	info := r.ShiftInfo
	fmt.Fprintf(a.out, "\nReport: %s (%s)", info.ShiftID, info.EmployeeName)
	if info.IsLive {
		fmt.Fprint(a.out, activeColor.Sprint(" [live]"))
	}
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, rule)
	fmt.Fprintf(a.out, "Period:    %s to %s (%.2fh)\n",
		info.PeriodStart.Format(timeFormat), info.PeriodEnd.Format(timeFormat), info.DurationHours)
	if info.PreviousShiftID != "" {
		fmt.Fprintf(a.out, "Follows:   %s\n", info.PreviousShiftID)
	}

	act := r.VehicleActivity
	fmt.Fprintf(a.out, "Vehicles:  %d entered, %d exited (%d inherited), %d parked\n",
		act.EnteredCount, act.ExitedCount, act.InheritedExitCount, act.CurrentlyParkedCount)

	fin := r.FinancialSummary
	fmt.Fprintf(a.out, "Revenue:   %s from %d payments (cash %s, pending %s)\n",
		fin.TotalRevenue.StringFixed(2), fin.PaymentsCount, fin.CashRevenue.StringFixed(2), fin.PendingRevenue.StringFixed(2))
	fmt.Fprintf(a.out, "Cash:      opening %s, expected %s", fin.OpeningCash.StringFixed(2), fin.ExpectedClosingCash.StringFixed(2))
	if fin.ClosingCash.Valid {
		fmt.Fprintf(a.out, ", closing %s", fin.ClosingCash.Decimal.StringFixed(2))
	}
	fmt.Fprintln(a.out)
	if fin.Discrepancy.Valid && !fin.Discrepancy.Decimal.IsZero() {
		fmt.Fprintf(a.out, "           %s\n", warnColor.Sprintf("discrepancy %s", fin.Discrepancy.Decimal.StringFixed(2)))
	}

	perf := r.PerformanceMetrics
	fmt.Fprintf(a.out, "Rates:     %.2f vehicles/h, %s revenue/h, avg stay %.0f min\n",
		perf.VehiclesPerHour, perf.RevenuePerHour.StringFixed(2), perf.AverageSessionMinutes)

	for _, w := range r.Warnings {
		fmt.Fprintf(a.out, "%s %s\n", warnColor.Sprint("!"), w)
	}
	fmt.Fprintln(a.out)
	return r, nil
}

// since formats the time elapsed from t to now.
func since(t, now time.Time) string {
	d := now.Sub(t).Truncate(time.Minute)
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
