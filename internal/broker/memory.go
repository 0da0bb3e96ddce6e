package broker

import (
	"context"
	"sync"

	"github.com/taskfabric/taskfabric/internal/event"
)

// MemoryBus is an in-process broker for tests and local development.
// Deliveries are synchronous: Publish invokes every subscribed handler
// before returning. A handler error is returned to the publisher and the
// envelope is retained per group for ReplayPending.
type MemoryBus struct {
	mu      sync.Mutex
	subs    map[string][]groupSub // topic -> subscriptions
	pending map[string][]event.Envelope
	log     map[string][]event.Envelope
}

type groupSub struct {
	group   string
	handler Handler
}

// NewMemoryBus creates an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:    make(map[string][]groupSub),
		pending: make(map[string][]event.Envelope),
		log:     make(map[string][]event.Envelope),
	}
}

// Publish delivers the envelope to all subscribed groups synchronously.
func (b *MemoryBus) Publish(ctx context.Context, topic string, env event.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.log[topic] = append(b.log[topic], env)
	subs := make([]groupSub, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.Unlock()

	var firstErr error
	for _, s := range subs {
		if err := s.handler(ctx, env); err != nil {
			b.mu.Lock()
			b.pending[pendingKey(topic, s.group)] = append(b.pending[pendingKey(topic, s.group)], env)
			b.mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Subscribe registers the handler and blocks until ctx is cancelled.
func (b *MemoryBus) Subscribe(ctx context.Context, topic, group string, handler Handler) error {
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], groupSub{group: group, handler: handler})
	b.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

// Register attaches a handler without blocking, for tests that drive
// deliveries through Publish directly.
func (b *MemoryBus) Register(topic, group string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], groupSub{group: group, handler: handler})
}

// ReplayPending redelivers envelopes whose handler previously failed.
// Envelopes that fail again stay pending.
func (b *MemoryBus) ReplayPending(ctx context.Context, topic, group string) error {
	b.mu.Lock()
	key := pendingKey(topic, group)
	queued := b.pending[key]
	b.pending[key] = nil

	var handlers []Handler
	for _, s := range b.subs[topic] {
		if s.group == group {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.Unlock()

	var firstErr error
	for _, env := range queued {
		for _, h := range handlers {
			if err := h(ctx, env); err != nil {
				b.mu.Lock()
				b.pending[key] = append(b.pending[key], env)
				b.mu.Unlock()
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

// Published returns all envelopes appended to the topic, in order.
func (b *MemoryBus) Published(topic string) []event.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.Envelope, len(b.log[topic]))
	copy(out, b.log[topic])
	return out
}

func pendingKey(topic, group string) string {
	return topic + "/" + group
}
