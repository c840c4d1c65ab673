package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/example/shiftdesk/internal/core/fee"
	"github.com/example/shiftdesk/internal/core/ledger"
	"github.com/example/shiftdesk/internal/ports/primary"
)

// VehicleAdapter translates ledger and linkage commands to service calls.
type VehicleAdapter struct {
	ledger  primary.LedgerService
	linkage primary.LinkageService
	out     io.Writer
	now     func() time.Time
}

// NewVehicleAdapter creates a new VehicleAdapter.
func NewVehicleAdapter(ledgerSvc primary.LedgerService, linkage primary.LinkageService, out io.Writer) *VehicleAdapter {
	return &VehicleAdapter{ledger: ledgerSvc, linkage: linkage, out: out, now: time.Now}
}

// Entry records a vehicle entering.
func (a *VehicleAdapter) Entry(ctx context.Context, req primary.RecordEntryRequest) (*primary.LedgerResponse, error) {
	res, err := a.ledger.RecordEntry(ctx, req)
	if err != nil {
		return nil, err
	}
	e := res.Entry
	fmt.Fprintf(a.out, "✓ %s (%s) entered at %s\n", e.VehicleNumber, e.VehicleType, e.EntryTime.Format(timeFormat))
	fmt.Fprintf(a.out, "  Entry ID: %s\n", e.ID)
	a.printLink(res.Link)
	return res, nil
}

// Exit records a vehicle leaving and prints the fee breakdown.
func (a *VehicleAdapter) Exit(ctx context.Context, req primary.RecordExitRequest) (*primary.LedgerResponse, error) {
	res, err := a.ledger.RecordExit(ctx, req)
	if err != nil {
		return nil, err
	}
	e := res.Entry
	fmt.Fprintf(a.out, "✓ %s exited at %s\n", e.VehicleNumber, e.ExitTime.Format(timeFormat))
	if res.Fee != nil {
		printFee(a.out, res.Fee)
	}
	a.printLink(res.Link)
	return res, nil
}

// Pay records a payment.
func (a *VehicleAdapter) Pay(ctx context.Context, req primary.RecordPaymentRequest) (*primary.LedgerResponse, error) {
	res, err := a.ledger.RecordPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	e := res.Entry
	fmt.Fprintf(a.out, "✓ %s paid %s by %s\n", e.VehicleNumber, e.Fee.StringFixed(2), e.PaymentMode)
	a.printLink(res.Link)
	return res, nil
}

func printFee(out io.Writer, c *fee.Calculation) {
	fmt.Fprintf(out, "  Stay: %sh, %d day(s) at %s = %s\n",
		c.DurationHours.StringFixed(2), c.Days, c.DailyRate.StringFixed(2), c.BaseFee.StringFixed(2))
	if c.IsOverstay {
		fmt.Fprintf(out, "  %s\n", warnColor.Sprintf("Overstay penalty: %d day(s), %s", c.PenaltyDays, c.PenaltyFee.StringFixed(2)))
	}
	fmt.Fprintf(out, "  Total fee: %s\n", c.TotalFee.StringFixed(2))
}

func (a *VehicleAdapter) printLink(link *primary.LinkResult) {
	switch {
	case link == nil:
	case link.Success && link.Duplicate:
		fmt.Fprintf(a.out, "  Already counted on %s\n", link.ShiftID)
	case link.Success:
		fmt.Fprintf(a.out, "  Linked to %s\n", link.ShiftID)
	default:
		fmt.Fprintf(a.out, "  %s not linked (%s): %s\n", warnColor.Sprint("!"), link.ErrorCode, link.Message)
	}
}

// Parked lists vehicles currently inside.
func (a *VehicleAdapter) Parked(ctx context.Context) ([]*ledger.Entry, error) {
	entries, err := a.ledger.ListParked(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No vehicles parked.")
		return entries, nil
	}

	now := a.now()
	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "VEHICLE\tTYPE\tENTERED\tSTAY\tSHIFT\tID")
	fmt.Fprintln(w, "-------\t----\t-------\t----\t-----\t--")
	for _, e := range entries {
		shiftID := e.ShiftSessionID
		if shiftID == "" {
			shiftID = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.VehicleNumber, e.VehicleType, e.EntryTime.Format(timeFormat), since(e.EntryTime, now), shiftID, e.ID)
	}
	w.Flush()
	return entries, nil
}

// Fees prints the tariff.
func (a *VehicleAdapter) Fees() fee.Schedule {
	sched := a.ledger.FeeSchedule()
	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TYPE\tDAILY RATE")
	fmt.Fprintln(w, "----\t----------")
	for _, line := range sched.Rates {
		fmt.Fprintf(w, "%s\t%s\n", line.VehicleType, line.DailyRate.StringFixed(2))
	}
	fmt.Fprintf(w, "other\t%s\n", sched.FallbackRate.StringFixed(2))
	w.Flush()
	fmt.Fprintf(a.out, "\nOverstay after %.0fh, penalty multiplier %s\n", sched.OverstayThresholdHours, sched.PenaltyMultiplier.String())
	return sched
}

// LinkSession links an entry to the active shift.
func (a *VehicleAdapter) LinkSession(ctx context.Context, req primary.LinkSessionRequest) (*primary.LinkResult, error) {
	return a.linkResult(a.linkage.LinkParkingSession(ctx, req))
}

// LinkPayment counts a payment against the active shift.
func (a *VehicleAdapter) LinkPayment(ctx context.Context, req primary.LinkPaymentRequest) (*primary.LinkResult, error) {
	return a.linkResult(a.linkage.LinkPayment(ctx, req))
}

// LinkExit counts an exit against a shift.
func (a *VehicleAdapter) LinkExit(ctx context.Context, req primary.ExitStatsRequest) (*primary.LinkResult, error) {
	return a.linkResult(a.linkage.UpdateExitStatistics(ctx, req))
}

func (a *VehicleAdapter) linkResult(res *primary.LinkResult, err error) (*primary.LinkResult, error) {
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return res, fmt.Errorf("%s: %s", res.ErrorCode, res.Message)
	}
	if res.Duplicate {
		fmt.Fprintf(a.out, "✓ Already counted on %s\n", res.ShiftID)
	} else {
		fmt.Fprintf(a.out, "✓ Linked to %s\n", res.ShiftID)
	}
	return res, nil
}

// Reconcile assigns unlinked entries to shifts.
func (a *VehicleAdapter) Reconcile(ctx context.Context) (*primary.ReconcileResult, error) {
	res, err := a.linkage.BulkReconcile(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "✓ Reconciled %d sessions, %d payments\n", res.SessionsLinked, res.PaymentsLinked)
	for _, e := range res.Errors {
		fmt.Fprintf(a.out, "  %s %s (%s): %s\n", warnColor.Sprint("!"), e.EntryID, e.EntryTime.Format(timeFormat), e.Reason)
	}
	return res, nil
}

// ValidateLinks prints the linkage audit of a shift.
func (a *VehicleAdapter) ValidateLinks(ctx context.Context, shiftID string) (*primary.LinkingReport, error) {
	rep, err := a.linkage.ValidateShiftLinking(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "%s: %d linked, %d unlinked (%.0f%%)\n", rep.ShiftID, rep.LinkedCount, rep.UnlinkedCount, rep.Ratio*100)
	if rep.UnlinkedCount > 0 {
		fmt.Fprintln(a.out, "Run 'shiftdesk reconcile' to link them.")
	}
	return rep, nil
}

// Stats prints the live counters of a shift.
func (a *VehicleAdapter) Stats(ctx context.Context, shiftID string) (*primary.LiveStats, error) {
	st, err := a.linkage.GetLiveStats(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "\nLive stats: %s\n", st.ShiftID)
	fmt.Fprintln(a.out, rule)
	fmt.Fprintf(a.out, "Entered:  %d\n", st.VehiclesEntered)
	fmt.Fprintf(a.out, "Exited:   %d\n", st.VehiclesExited)
	fmt.Fprintf(a.out, "Payments: %d (%s)\n", st.Payments, st.Revenue.StringFixed(2))
	fmt.Fprintf(a.out, "Avg stay: %.0f min\n", st.AverageDurationMinutes)
	types := make([]string, 0, len(st.ExitsByType))
	for t := range st.ExitsByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(a.out, "  %s: %d\n", t, st.ExitsByType[t])
	}
	fmt.Fprintln(a.out)
	return st, nil
}
