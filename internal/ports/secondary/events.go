package secondary

import (
	"context"

	"github.com/example/shiftdesk/internal/core/events"
)

// EventPublisher defines the secondary port for broadcasting state changes.
// Delivery is best-effort; callers log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Event) error
}
