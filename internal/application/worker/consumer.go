package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/taskfabric/taskfabric/internal/broker"
	"github.com/taskfabric/taskfabric/internal/event"
	"github.com/taskfabric/taskfabric/internal/ledger"
)

// Processor is one consumer's business logic, driven by a Consumer.
type Processor interface {
	// Name is the stable consumer identity used for broker groups and
	// ledger claims.
	Name() string

	// Topic is the topic the processor subscribes to.
	Topic() string

	// Accepts filters deliveries by event type. Rejected deliveries are
	// acknowledged without claiming.
	Accepts(eventType string) bool

	// Process handles one claimed envelope. Returning an error records a
	// ledger failure and leaves the delivery un-acked for redelivery.
	Process(ctx context.Context, env event.Envelope) error
}

// Consumer runs a Processor against a subscription with idempotency: every
// accepted delivery is claimed in the ledger before processing, so redeliveries
// of an already-processed event id are acknowledged without side effects.
type Consumer struct {
	sub    broker.Subscriber
	ledger ledger.Ledger
	proc   Processor
	ttl    time.Duration
	logger *slog.Logger
}

// NewConsumer wires a Processor to its subscription and ledger.
func NewConsumer(sub broker.Subscriber, led ledger.Ledger, proc Processor, ttl time.Duration, logger *slog.Logger) *Consumer {
	return &Consumer{
		sub:    sub,
		ledger: led,
		proc:   proc,
		ttl:    ttl,
		logger: logger,
	}
}

// Run subscribes and processes deliveries until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "consumer starting",
		"consumer", c.proc.Name(),
		"topic", c.proc.Topic())

	return c.sub.Subscribe(ctx, c.proc.Topic(), c.proc.Name(), c.Handle)
}

// Handle processes one delivery. Exported so tests and the in-memory bus can
// drive the consumer without a live subscription.
func (c *Consumer) Handle(ctx context.Context, env event.Envelope) error {
	if !c.proc.Accepts(env.EventType) {
		return nil
	}

	fresh, err := c.ledger.Claim(ctx, env.EventID, c.proc.Name(), env.EventType, c.ttl)
	if err != nil {
		// Ledger unreachable: leave the delivery pending rather than risk a
		// double side effect.
		return Transient(fmt.Errorf("claim event %s: %w", env.EventID, err))
	}
	if !fresh {
		c.logger.InfoContext(ctx, "duplicate event skipped",
			"consumer", c.proc.Name(),
			"event_id", env.EventID,
			"event_type", env.EventType)
		return nil
	}

	if err := c.process(ctx, env); err != nil {
		if recErr := c.ledger.RecordFailure(ctx, env.EventID, c.proc.Name(), err); recErr != nil {
			c.logger.ErrorContext(ctx, "failed to record ledger failure",
				"consumer", c.proc.Name(),
				"event_id", env.EventID,
				"error", recErr)
		}
		c.logger.ErrorContext(ctx, "event processing failed",
			"consumer", c.proc.Name(),
			"event_id", env.EventID,
			"event_type", env.EventType,
			"error", err)
		return err
	}

	return nil
}

func (c *Consumer) process(ctx context.Context, env event.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r, StackTrace: string(debug.Stack())}
		}
	}()
	return c.proc.Process(ctx, env)
}

// RunPurgeLoop periodically evicts expired ledger entries until ctx is
// cancelled.
func RunPurgeLoop(ctx context.Context, led ledger.Ledger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := led.PurgeExpired(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "ledger purge failed", "error", err)
				continue
			}
			if purged > 0 {
				logger.InfoContext(ctx, "purged expired ledger entries", "count", purged)
			}
		}
	}
}
