package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/core/ledger"
	"github.com/example/shiftdesk/internal/core/shift"
)

// UnknownMode labels revenue whose payment mode was not recorded.
const UnknownMode = "Unknown"

// Input is everything Build needs.
type Input struct {
	Shift       shift.Session
	Predecessor *shift.Session
	Entries     []ledger.Entry
	Now         time.Time
	// LedgerErr is set when ledger rows could not be loaded. The activity and
	// financial sections then degrade to zero values.
	LedgerErr error
}

// Report is the read model returned to operators.
type Report struct {
	ShiftInfo          ShiftInfo          `json:"shift_info"`
	VehicleActivity    VehicleActivity    `json:"vehicle_activity"`
	FinancialSummary   FinancialSummary   `json:"financial_summary"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
	Warnings           []string           `json:"warnings,omitempty"`
}

// ShiftInfo identifies the shift and its reporting window.
type ShiftInfo struct {
	ShiftID         string       `json:"shift_id"`
	EmployeeID      string       `json:"employee_id"`
	EmployeeName    string       `json:"employee_name"`
	Status          shift.Status `json:"status"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         *time.Time   `json:"end_time,omitempty"`
	PreviousShiftID string       `json:"previous_shift_id,omitempty"`
	PeriodStart     time.Time    `json:"period_start"`
	PeriodEnd       time.Time    `json:"period_end"`
	DurationHours   float64      `json:"duration_hours"`
	IsLive          bool         `json:"is_live"`
}

// VehicleDetail is one row of an activity list.
type VehicleDetail struct {
	EntryID         string               `json:"entry_id"`
	VehicleNumber   string               `json:"vehicle_number"`
	VehicleType     string               `json:"vehicle_type"`
	EntryTime       time.Time            `json:"entry_time"`
	ExitTime        *time.Time           `json:"exit_time,omitempty"`
	DurationMinutes int64                `json:"duration_minutes,omitempty"`
	Fee             decimal.Decimal      `json:"fee"`
	PaymentMode     string               `json:"payment_mode,omitempty"`
	PaymentStatus   ledger.PaymentStatus `json:"payment_status"`
	Inherited       bool                 `json:"inherited,omitempty"`
}

// TypeStats is the per vehicle type breakdown.
type TypeStats struct {
	Entered int             `json:"entered"`
	Exited  int             `json:"exited"`
	Revenue decimal.Decimal `json:"revenue"`
}

// VehicleActivity groups the classified ledger rows.
type VehicleActivity struct {
	EnteredCount         int                  `json:"entered_count"`
	ExitedCount          int                  `json:"exited_count"`
	CurrentlyParkedCount int                  `json:"currently_parked_count"`
	InheritedExitCount   int                  `json:"inherited_exit_count"`
	Entries              []VehicleDetail      `json:"entries"`
	Exits                []VehicleDetail      `json:"exits"`
	CurrentlyParked      []VehicleDetail      `json:"currently_parked"`
	TypeBreakdown        map[string]TypeStats `json:"type_breakdown"`
}

// FinancialSummary attributes revenue by payment time.
type FinancialSummary struct {
	TotalRevenue        decimal.Decimal            `json:"total_revenue"`
	CashRevenue         decimal.Decimal            `json:"cash_revenue"`
	RevenueByMode       map[string]decimal.Decimal `json:"revenue_by_mode"`
	PaymentsCount       int                        `json:"payments_count"`
	PendingRevenue      decimal.Decimal            `json:"pending_revenue"`
	OpeningCash         decimal.Decimal            `json:"opening_cash"`
	ClosingCash         decimal.NullDecimal        `json:"closing_cash"`
	ExpectedClosingCash decimal.Decimal            `json:"expected_closing_cash"`
	Discrepancy         decimal.NullDecimal        `json:"discrepancy"`
}

// PerformanceMetrics are per-hour rates over the window.
type PerformanceMetrics struct {
	RateHours             float64         `json:"rate_hours"`
	AverageSessionMinutes float64         `json:"average_session_minutes"`
	VehiclesPerHour       float64         `json:"vehicles_per_hour"`
	RevenuePerHour        decimal.Decimal `json:"revenue_per_hour"`
}

// Build computes the report for in.Shift. It never fails: inconsistent rows
// are skipped where they would corrupt an aggregate and noted in Warnings.
func Build(in Input) *Report {
	s := in.Shift
	w := PeriodFor(s, in.Predecessor, in.Now)

	r := &Report{
		ShiftInfo: ShiftInfo{
			ShiftID:       s.ID,
			EmployeeID:    s.EmployeeID,
			EmployeeName:  s.EmployeeName,
			Status:        s.Status,
			StartTime:     s.StartTime,
			EndTime:       s.EndTime,
			PeriodStart:   w.Start,
			PeriodEnd:     w.End,
			DurationHours: round2(w.Duration().Hours()),
			IsLive:        s.EndTime == nil,
		},
		VehicleActivity: VehicleActivity{
			Entries:         []VehicleDetail{},
			Exits:           []VehicleDetail{},
			CurrentlyParked: []VehicleDetail{},
			TypeBreakdown:   map[string]TypeStats{},
		},
		FinancialSummary: FinancialSummary{
			RevenueByMode: map[string]decimal.Decimal{},
			OpeningCash:   s.OpeningCash,
			ClosingCash:   s.ClosingCash,
		},
	}
	if in.Predecessor != nil {
		r.ShiftInfo.PreviousShiftID = in.Predecessor.ID
	}

	entries := in.Entries
	if in.LedgerErr != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("ledger unavailable: %v", in.LedgerErr))
		entries = nil
	}

	rows := make([]ledger.Entry, len(entries))
	copy(rows, entries)
	sort.SliceStable(rows, func(i, j int) bool { return entryLess(rows[i], rows[j]) })

	var (
		act          = &r.VehicleActivity
		fin          = &r.FinancialSummary
		totalMinutes int64
		timedExits   int
	)
	for _, e := range rows {
		c := Classify(e, w)
		vt := e.VehicleType
		if vt == "" {
			vt = UnknownMode
		}
		stats := act.TypeBreakdown[vt]
		touched := false

		if c.Entered {
			act.Entries = append(act.Entries, detail(e, false))
			stats.Entered++
			touched = true
			if !e.IsPaid() {
				fin.PendingRevenue = fin.PendingRevenue.Add(e.Fee)
			}
		}
		if c.Exited {
			d := detail(e, c.InheritedExit)
			act.Exits = append(act.Exits, d)
			stats.Exited++
			touched = true
			if c.InheritedExit {
				act.InheritedExitCount++
			}
			if e.ExitTime.Before(e.EntryTime) {
				r.Warnings = append(r.Warnings, fmt.Sprintf("entry %s exits before it enters", e.ID))
			} else {
				totalMinutes += d.DurationMinutes
				timedExits++
			}
		}
		if c.Parked {
			act.CurrentlyParked = append(act.CurrentlyParked, detail(e, false))
		}
		if c.Paid {
			mode := e.PaymentMode
			if mode == "" {
				mode = UnknownMode
			}
			fin.TotalRevenue = fin.TotalRevenue.Add(e.Fee)
			fin.RevenueByMode[mode] = fin.RevenueByMode[mode].Add(e.Fee)
			if mode == ledger.ModeCash {
				fin.CashRevenue = fin.CashRevenue.Add(e.Fee)
			}
			fin.PaymentsCount++
			stats.Revenue = stats.Revenue.Add(e.Fee)
			touched = true
		}
		if touched {
			act.TypeBreakdown[vt] = stats
		}
	}

	sort.SliceStable(act.Exits, func(i, j int) bool {
		a, b := act.Exits[i], act.Exits[j]
		if !a.ExitTime.Equal(*b.ExitTime) {
			return a.ExitTime.Before(*b.ExitTime)
		}
		return a.EntryID < b.EntryID
	})

	act.EnteredCount = len(act.Entries)
	act.ExitedCount = len(act.Exits)
	act.CurrentlyParkedCount = len(act.CurrentlyParked)

	fin.ExpectedClosingCash = fin.OpeningCash.Add(fin.TotalRevenue)
	if fin.ClosingCash.Valid {
		fin.Discrepancy = decimal.NewNullDecimal(fin.ClosingCash.Decimal.Sub(fin.ExpectedClosingCash))
	}

	hours := w.RateHours()
	perf := &r.PerformanceMetrics
	perf.RateHours = round2(hours)
	if timedExits > 0 {
		perf.AverageSessionMinutes = round2(float64(totalMinutes) / float64(timedExits))
	}
	perf.VehiclesPerHour = round2(float64(act.EnteredCount) / hours)
	perf.RevenuePerHour = fin.TotalRevenue.Div(decimal.NewFromFloat(hours)).Round(2)

	return r
}

func detail(e ledger.Entry, inherited bool) VehicleDetail {
	d := VehicleDetail{
		EntryID:       e.ID,
		VehicleNumber: e.VehicleNumber,
		VehicleType:   e.VehicleType,
		EntryTime:     e.EntryTime,
		ExitTime:      e.ExitTime,
		Fee:           e.Fee,
		PaymentMode:   e.PaymentMode,
		PaymentStatus: e.PaymentStatus,
		Inherited:     inherited,
	}
	if e.ExitTime != nil && !e.ExitTime.Before(e.EntryTime) {
		d.DurationMinutes = int64(e.ExitTime.Sub(e.EntryTime) / time.Minute)
	}
	return d
}

func entryLess(a, b ledger.Entry) bool {
	if !a.EntryTime.Equal(b.EntryTime) {
		return a.EntryTime.Before(b.EntryTime)
	}
	return a.ID < b.ID
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
