// Package publisher implements the event publisher sitting between the
// services and the broker: envelope construction, bounded retries, and an
// optional replay buffer for broker outages.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"

	"github.com/taskfabric/taskfabric/internal/broker"
	"github.com/taskfabric/taskfabric/internal/clock"
	"github.com/taskfabric/taskfabric/internal/config"
	"github.com/taskfabric/taskfabric/internal/event"
)

// ErrBufferFull is returned when buffering is enabled but the replay buffer
// is at capacity; the event is dropped.
var ErrBufferFull = errors.New("publish buffer full")

type buffered struct {
	topic   string
	env     event.Envelope
	retries int
}

// Publisher wraps a broker.Publisher with retries and buffering.
type Publisher struct {
	broker broker.Publisher
	clock  clock.Clock
	cfg    config.PublisherConfig
	logger *slog.Logger

	retryUnit time.Duration

	mu     sync.Mutex
	buffer []buffered
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithRetryDelay overrides the backoff time unit (one second in production).
// Tests shrink it to keep retry paths fast.
func WithRetryDelay(unit time.Duration) Option {
	return func(p *Publisher) { p.retryUnit = unit }
}

// New creates a Publisher on top of the given broker.
func New(b broker.Publisher, clk clock.Clock, cfg config.PublisherConfig, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		broker:    b,
		clock:     clk,
		cfg:       cfg,
		logger:    logger,
		retryUnit: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish wraps the payload in an envelope and appends it to the topic,
// minting a UUIDv4 event id when the caller does not supply one. Returns the
// event id used. On exhausted retries the event is buffered when buffering
// is enabled; the publish error is returned either way.
func (p *Publisher) Publish(ctx context.Context, topic, eventType string, payload any, eventID string) (string, error) {
	if eventID == "" {
		eventID = uuid.NewString()
	}

	env, err := event.New(eventID, eventType, p.clock.Now(), payload)
	if err != nil {
		return "", err
	}

	if err := p.attempt(ctx, topic, env); err != nil {
		p.logger.ErrorContext(ctx, "publish failed after retries",
			"topic", topic,
			"event_type", eventType,
			"event_id", eventID,
			"error", err)

		if p.cfg.EnableBuffer {
			if bufErr := p.enqueue(topic, env); bufErr != nil {
				return eventID, fmt.Errorf("publish %s: %w", eventType, errors.Join(err, bufErr))
			}
		}
		return eventID, fmt.Errorf("publish %s: %w", eventType, err)
	}

	return eventID, nil
}

// attempt publishes with exponential backoff: 2^attempt time units after
// each failure, max_retries re-attempts on top of the initial try.
func (p *Publisher) attempt(ctx context.Context, topic string, env event.Envelope) error {
	return retry.Do(
		func() error { return p.broker.Publish(ctx, topic, env) },
		retry.Context(ctx),
		retry.Attempts(uint(p.cfg.MaxRetries)+1),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(1<<(n+1)) * p.retryUnit
		}),
		retry.LastErrorOnly(true),
	)
}

func (p *Publisher) enqueue(topic string, env event.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buffer) >= p.cfg.MaxBufferSize {
		return ErrBufferFull
	}
	p.buffer = append(p.buffer, buffered{topic: topic, env: env})
	return nil
}

// Flush replays buffered events. Events that publish successfully are
// removed; the rest stay buffered with their retry counters bumped. Returns
// how many events were flushed.
func (p *Publisher) Flush(ctx context.Context) int {
	p.mu.Lock()
	queued := p.buffer
	p.buffer = nil
	p.mu.Unlock()

	var flushed int
	for _, item := range queued {
		if err := p.broker.Publish(ctx, item.topic, item.env); err != nil {
			item.retries++
			p.logger.WarnContext(ctx, "buffered event replay failed",
				"topic", item.topic,
				"event_id", item.env.EventID,
				"retries", item.retries,
				"error", err)

			p.mu.Lock()
			p.buffer = append(p.buffer, item)
			p.mu.Unlock()
			continue
		}
		flushed++
	}
	return flushed
}

// BufferLen reports how many events await replay.
func (p *Publisher) BufferLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// RunFlushLoop periodically replays the buffer until ctx is cancelled.
func (p *Publisher) RunFlushLoop(ctx context.Context) {
	if !p.cfg.EnableBuffer {
		return
	}

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Flush(ctx); n > 0 {
				p.logger.InfoContext(ctx, "flushed buffered events", "count", n)
			}
		}
	}
}
