package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/example/shiftdesk/internal/clock"
	"github.com/example/shiftdesk/internal/core/events"
	"github.com/example/shiftdesk/internal/ports/secondary"
	"github.com/example/shiftdesk/internal/telemetry"
)

// Notifier turns state changes into events and hands them to the publisher.
// Failures are logged and counted, never returned.
type Notifier struct {
	publisher secondary.EventPublisher
	clock     clock.Clock
	logger    *slog.Logger
}

// NewNotifier creates a Notifier. A nil publisher drops every event.
func NewNotifier(publisher secondary.EventPublisher, clk clock.Clock, logger *slog.Logger) *Notifier {
	return &Notifier{publisher: publisher, clock: clk, logger: logger}
}

type bufferKey struct{}

// eventBuffer holds events raised inside a transaction until it commits.
type eventBuffer struct {
	mu     sync.Mutex
	events []events.Event
}

// Notify publishes an event, or buffers it when ctx carries a buffer.
func (n *Notifier) Notify(ctx context.Context, t events.Type, payload any) {
	if n == nil || n.publisher == nil {
		return
	}
	e, err := events.New(uuid.NewString(), t, payload, n.clock.Now())
	if err != nil {
		n.logger.Warn("dropping event", "type", t, "err", err)
		return
	}
	if buf, ok := ctx.Value(bufferKey{}).(*eventBuffer); ok {
		buf.mu.Lock()
		buf.events = append(buf.events, e)
		buf.mu.Unlock()
		return
	}
	n.publish(ctx, e)
}

func (n *Notifier) publish(ctx context.Context, e events.Event) {
	if err := n.publisher.Publish(ctx, string(e.Type), e); err != nil {
		telemetry.EventsPublished.WithLabelValues("failed").Inc()
		n.logger.Warn("event publish failed", "type", e.Type, "event_id", e.ID, "err", err)
		return
	}
	telemetry.EventsPublished.WithLabelValues("sent").Inc()
}

// deferred returns a context whose events are held back until flush.
func (n *Notifier) deferred(ctx context.Context) (context.Context, *eventBuffer) {
	buf := &eventBuffer{}
	return context.WithValue(ctx, bufferKey{}, buf), buf
}

// flush publishes buffered events in order.
func (n *Notifier) flush(ctx context.Context, buf *eventBuffer) {
	if n == nil || n.publisher == nil {
		return
	}
	buf.mu.Lock()
	pending := buf.events
	buf.events = nil
	buf.mu.Unlock()
	for _, e := range pending {
		n.publish(ctx, e)
	}
}
