package app

import (
	"context"
	"sync"
)

type slotKey struct{}

// ShiftSlot serializes every mutation of the active shift slot within the
// process. The store enforces the same rule across processes with a
// conditional update.
type ShiftSlot struct {
	ch chan struct{}
}

// NewShiftSlot creates a free slot.
func NewShiftSlot() *ShiftSlot {
	return &ShiftSlot{ch: make(chan struct{}, 1)}
}

// Acquire waits for the slot or for ctx to be done. The returned context
// marks the slot as held, so calls made with it do not wait again.
func (s *ShiftSlot) Acquire(ctx context.Context) (context.Context, func(), error) {
	if held, _ := ctx.Value(slotKey{}).(*ShiftSlot); held == s {
		return ctx, func() {}, nil
	}
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx, func() {}, ctx.Err()
	}
	var once sync.Once
	release := func() { once.Do(func() { <-s.ch }) }
	return context.WithValue(ctx, slotKey{}, s), release, nil
}
