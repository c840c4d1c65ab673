package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/shiftdesk/internal/core/events"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// Fanout delivers every event to each publisher. One failing sink does not
// stop the others; their errors are joined.
type Fanout []secondary.EventPublisher

// Publish implements secondary.EventPublisher.
func (f Fanout) Publish(ctx context.Context, topic string, event events.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events to the logger at debug level. The CLI uses it
// when no broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish implements secondary.EventPublisher.
func (p LogPublisher) Publish(ctx context.Context, topic string, event events.Event) error {
	p.Logger.DebugContext(ctx, "event", "type", topic, "event_id", event.ID, "payload", string(event.Payload))
	return nil
}

var (
	_ secondary.EventPublisher = Fanout(nil)
	_ secondary.EventPublisher = LogPublisher{}
)
