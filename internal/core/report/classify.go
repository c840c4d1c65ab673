package report

import "github.com/example/shiftdesk/internal/core/ledger"

// Category flags how a ledger row relates to a window. A row may carry
// several flags at once.
type Category struct {
	Entered       bool
	Exited        bool
	Parked        bool // still inside as of the window end
	InheritedExit bool // entered before the window, left inside it
	Paid          bool // payment time inside the window
}

// Classify places e against w.
func Classify(e ledger.Entry, w Window) Category {
	var c Category
	c.Entered = w.Contains(e.EntryTime)
	if e.ExitTime != nil {
		c.Exited = w.Contains(*e.ExitTime)
		c.InheritedExit = c.Exited && e.EntryTime.Before(w.Start)
	}
	c.Parked = e.EntryTime.Before(w.End) && (e.ExitTime == nil || !e.ExitTime.Before(w.End))
	c.Paid = e.IsPaid() && e.PaymentTime != nil && w.Contains(*e.PaymentTime)
	return c
}
