// Package fee computes parking fees. Pure functions only.
package fee

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// ErrExitBeforeEntry is returned when the exit time precedes the entry time.
var ErrExitBeforeEntry = errors.New("exit time is before entry time")

// Default tariff.
var (
	DefaultRates = map[string]decimal.Decimal{
		"Trailer":   decimal.NewFromInt(225),
		"6 Wheeler": decimal.NewFromInt(150),
		"4 Wheeler": decimal.NewFromInt(100),
		"2 Wheeler": decimal.NewFromInt(50),
	}
	DefaultFallbackRate      = decimal.NewFromInt(100)
	DefaultOverstayHours     = 24.0
	DefaultPenaltyMultiplier = decimal.NewFromFloat(1.5)
)

// Calculator holds a tariff.
type Calculator struct {
	Rates             map[string]decimal.Decimal
	FallbackRate      decimal.Decimal
	OverstayHours     float64
	PenaltyMultiplier decimal.Decimal
}

// NewCalculator returns a calculator with the default tariff.
func NewCalculator() *Calculator {
	rates := make(map[string]decimal.Decimal, len(DefaultRates))
	for k, v := range DefaultRates {
		rates[k] = v
	}
	return &Calculator{
		Rates:             rates,
		FallbackRate:      DefaultFallbackRate,
		OverstayHours:     DefaultOverstayHours,
		PenaltyMultiplier: DefaultPenaltyMultiplier,
	}
}

// Calculation is the itemised fee for one stay.
type Calculation struct {
	VehicleType   string          `json:"vehicle_type"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	Days          int             `json:"days"`
	DailyRate     decimal.Decimal `json:"daily_rate"`
	BaseFee       decimal.Decimal `json:"base_fee"`
	IsOverstay    bool            `json:"is_overstay"`
	PenaltyDays   int             `json:"penalty_days"`
	PenaltyFee    decimal.Decimal `json:"penalty_fee"`
	TotalFee      decimal.Decimal `json:"total_fee"`
}

// DailyRate returns the rate for a vehicle type, or the fallback rate.
func (c *Calculator) DailyRate(vehicleType string) decimal.Decimal {
	if r, ok := c.Rates[vehicleType]; ok {
		return r
	}
	return c.FallbackRate
}

// BillableDays counts whole days plus one for any remaining second.
// A stay shorter than a second still costs one day.
func BillableDays(d time.Duration) int {
	days := int(d / day)
	if d%day >= time.Second {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// Calculate prices a stay from entry to exit.
func (c *Calculator) Calculate(vehicleType string, entry, exit time.Time) (Calculation, error) {
	d := exit.Sub(entry)
	if d < 0 {
		return Calculation{}, ErrExitBeforeEntry
	}
	return c.calculate(vehicleType, d), nil
}

func (c *Calculator) calculate(vehicleType string, d time.Duration) Calculation {
	rate := c.DailyRate(vehicleType)
	days := BillableDays(d)
	base := rate.Mul(decimal.NewFromInt(int64(days)))
	penaltyDays := c.penaltyDays(d.Hours())
	penalty := c.penaltyFor(rate, penaltyDays)

	return Calculation{
		VehicleType:   vehicleType,
		DurationHours: decimal.NewFromFloat(d.Hours()).Round(2),
		Days:          days,
		DailyRate:     rate,
		BaseFee:       base,
		IsOverstay:    penaltyDays > 0,
		PenaltyDays:   penaltyDays,
		PenaltyFee:    penalty,
		TotalFee:      base.Add(penalty),
	}
}

func (c *Calculator) penaltyDays(hours float64) int {
	if hours <= c.OverstayHours {
		return 0
	}
	return int(math.Ceil((hours - c.OverstayHours) / 24))
}

func (c *Calculator) penaltyFor(rate decimal.Decimal, days int) decimal.Decimal {
	if days == 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(days))).Mul(c.PenaltyMultiplier.Sub(decimal.NewFromInt(1)))
}

// Estimate prices a stay of the given number of hours, penalty excluded.
func (c *Calculator) Estimate(vehicleType string, hours float64) decimal.Decimal {
	d := time.Duration(hours * float64(time.Hour))
	return c.DailyRate(vehicleType).Mul(decimal.NewFromInt(int64(BillableDays(d))))
}

// OverstayPenalty returns only the penalty part for a stay of the given hours.
func (c *Calculator) OverstayPenalty(vehicleType string, hours float64) decimal.Decimal {
	return c.penaltyFor(c.DailyRate(vehicleType), c.penaltyDays(hours))
}

// RateLine is one row of the published tariff.
type RateLine struct {
	VehicleType string          `json:"vehicle_type"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
}

// Schedule describes the tariff for display.
type Schedule struct {
	Rates                  []RateLine      `json:"rates"`
	FallbackRate           decimal.Decimal `json:"fallback_rate"`
	OverstayThresholdHours float64         `json:"overstay_threshold_hours"`
	PenaltyMultiplier      decimal.Decimal `json:"penalty_multiplier"`
	CalculationMethod      string          `json:"calculation_method"`
}

// Schedule returns the tariff sorted by vehicle type.
func (c *Calculator) Schedule() Schedule {
	lines := make([]RateLine, 0, len(c.Rates))
	for t, r := range c.Rates {
		lines = append(lines, RateLine{VehicleType: t, DailyRate: r})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].VehicleType < lines[j].VehicleType })
	return Schedule{
		Rates:                  lines,
		FallbackRate:           c.FallbackRate,
		OverstayThresholdHours: c.OverstayHours,
		PenaltyMultiplier:      c.PenaltyMultiplier,
		CalculationMethod:      "days = ceiling(hours/24), minimum 1; penalty = rate x ceiling(overstay hours/24) x (multiplier - 1)",
	}
}
