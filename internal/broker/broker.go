// Package broker defines the pub/sub transport used between services.
// Production runs on Redis Streams; tests and local development use the
// in-memory bus.
package broker

import (
	"context"

	"github.com/taskfabric/taskfabric/internal/event"
)

// Handler processes one delivered envelope. A nil return acknowledges the
// delivery; an error leaves it pending for redelivery.
type Handler func(ctx context.Context, env event.Envelope) error

// Publisher appends envelopes to a topic.
type Publisher interface {
	// Publish appends the envelope to the topic. Delivery is at-least-once;
	// consumers de-duplicate by event id.
	Publish(ctx context.Context, topic string, env event.Envelope) error
}

// Subscriber consumes a topic on behalf of a named consumer group.
type Subscriber interface {
	// Subscribe blocks, delivering envelopes to handler until ctx is
	// cancelled. Every consumer in the same group shares one cursor; an
	// envelope is acknowledged only when handler returns nil.
	Subscribe(ctx context.Context, topic, group string, handler Handler) error
}
