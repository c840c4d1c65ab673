// Package report computes time-windowed shift reports. It is pure and
// read-only: callers pass shift history, ledger rows and "now".
package report

import (
	"sort"
	"time"

	"github.com/example/shiftdesk/internal/core/shift"
)

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration is End minus Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// RateHours is the window length in hours floored at one hour, used as the
// denominator of per-hour rates.
func (w Window) RateHours() float64 {
	h := w.Duration().Hours()
	if h < 1 {
		return 1
	}
	return h
}

// Predecessor returns the ended shift that started most recently before s,
// or nil. Ties on start time are broken by ID.
func Predecessor(s shift.Session, history []shift.Session) *shift.Session {
	var best *shift.Session
	for i := range history {
		h := &history[i]
		if h.ID == s.ID || !h.Status.IsEnded() || h.EndTime == nil {
			continue
		}
		if !startsBefore(*h, s) {
			continue
		}
		if best == nil || startsBefore(*best, *h) {
			best = h
		}
	}
	return best
}

func startsBefore(a, b shift.Session) bool {
	if a.StartTime.Equal(b.StartTime) {
		return a.ID < b.ID
	}
	return a.StartTime.Before(b.StartTime)
}

// PeriodFor returns the reporting window of s.
// Rules:
// - Start is the predecessor's end time, or s.StartTime without one
// - End is s.EndTime, or now while s is in progress
// - End never precedes Start
func PeriodFor(s shift.Session, predecessor *shift.Session, now time.Time) Window {
	w := Window{Start: s.StartTime, End: now}
	if predecessor != nil && predecessor.EndTime != nil {
		w.Start = *predecessor.EndTime
	}
	if s.EndTime != nil {
		w.End = *s.EndTime
	}
	if w.End.Before(w.Start) {
		w.End = w.Start
	}
	return w
}

// Partition returns the window of every shift in history keyed by shift ID.
// Consecutive windows share their boundary instant.
func Partition(history []shift.Session, now time.Time) map[string]Window {
	sorted := make([]shift.Session, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return startsBefore(sorted[i], sorted[j]) })

	out := make(map[string]Window, len(sorted))
	for _, s := range sorted {
		out[s.ID] = PeriodFor(s, Predecessor(s, sorted), now)
	}
	return out
}
