// Package redisstream implements the broker interfaces on Redis Streams
// consumer groups. Deliveries are at-least-once: an entry is acknowledged
// only after the handler returns nil, and un-acked entries are reclaimed
// from crashed consumers once they sit idle past the configured threshold.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskfabric/taskfabric/internal/broker"
	"github.com/taskfabric/taskfabric/internal/config"
	"github.com/taskfabric/taskfabric/internal/event"
)

const (
	envelopeField = "envelope"
	readBatchSize = 16
)

// Connect opens a Redis client and verifies the connection.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Bus is a Redis Streams transport. One Bus may serve several topics and
// groups concurrently.
type Bus struct {
	client       *redis.Client
	logger       *slog.Logger
	blockTimeout time.Duration
	claimMinIdle time.Duration
	consumerID   string
}

// New creates a Bus over an established client. The consumer id is derived
// from the hostname so reclaimed entries can be traced to a pod.
func New(client *redis.Client, cfg config.RedisConfig, logger *slog.Logger) *Bus {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "consumer"
	}

	return &Bus{
		client:       client,
		logger:       logger,
		blockTimeout: cfg.BlockTimeout,
		claimMinIdle: cfg.ClaimMinIdle,
		consumerID:   host + "-" + uuid.NewString()[:8],
	}
}

var _ broker.Publisher = (*Bus)(nil)
var _ broker.Subscriber = (*Bus)(nil)

// Publish appends the envelope to the topic's stream.
func (b *Bus) Publish(ctx context.Context, topic string, env event.Envelope) error {
	raw, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", env.EventID, err)
	}

	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{envelopeField: raw},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes the topic on behalf of the group until ctx is
// cancelled. Each pass first reclaims entries another consumer left idle,
// then blocks for new deliveries.
func (b *Bus) Subscribe(ctx context.Context, topic, group string, handler broker.Handler) error {
	if err := b.ensureGroup(ctx, topic, group); err != nil {
		return err
	}

	b.logger.InfoContext(ctx, "consuming stream",
		"topic", topic,
		"group", group,
		"consumer", b.consumerID)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := b.reclaimIdle(ctx, topic, group, handler); err != nil {
			return err
		}

		msgs, err := b.readNew(ctx, topic, group)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.ErrorContext(ctx, "stream read failed",
				"topic", topic,
				"group", group,
				"error", err)
			continue
		}

		for _, msg := range msgs {
			b.deliver(ctx, topic, group, msg, handler)
		}
	}
}

// ensureGroup creates the consumer group at the start of the stream,
// creating the stream itself when absent. An existing group is fine.
func (b *Bus) ensureGroup(ctx context.Context, topic, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", group, topic, err)
	}
	return nil
}

func (b *Bus) readNew(ctx context.Context, topic, group string) ([]redis.XMessage, error) {
	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: b.consumerID,
		Streams:  []string{topic, ">"},
		Count:    readBatchSize,
		Block:    b.blockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var msgs []redis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	return msgs, nil
}

// reclaimIdle takes over pending entries whose consumer stopped acking.
func (b *Bus) reclaimIdle(ctx context.Context, topic, group string, handler broker.Handler) error {
	msgs, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   topic,
		Group:    group,
		Consumer: b.consumerID,
		MinIdle:  b.claimMinIdle,
		Start:    "0",
		Count:    readBatchSize,
	}).Result()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.ErrorContext(ctx, "autoclaim failed",
			"topic", topic,
			"group", group,
			"error", err)
		return nil
	}

	for _, msg := range msgs {
		b.deliver(ctx, topic, group, msg, handler)
	}
	return nil
}

// deliver decodes one stream entry and runs the handler. Acknowledged on
// success and on undecodable entries; a handler error leaves the entry
// pending for reclaim.
func (b *Bus) deliver(ctx context.Context, topic, group string, msg redis.XMessage, handler broker.Handler) {
	env, err := decodeMessage(msg)
	if err != nil {
		b.logger.WarnContext(ctx, "dropping malformed stream entry",
			"topic", topic,
			"stream_id", msg.ID,
			"error", err)
		b.ack(ctx, topic, group, msg.ID)
		return
	}

	if err := handler(ctx, env); err != nil {
		b.logger.WarnContext(ctx, "handler failed, leaving entry pending",
			"topic", topic,
			"group", group,
			"event_id", env.EventID,
			"error", err)
		return
	}

	b.ack(ctx, topic, group, msg.ID)
}

func (b *Bus) ack(ctx context.Context, topic, group, streamID string) {
	if err := b.client.XAck(ctx, topic, group, streamID).Err(); err != nil && ctx.Err() == nil {
		b.logger.ErrorContext(ctx, "xack failed",
			"topic", topic,
			"stream_id", streamID,
			"error", err)
	}
}

func decodeMessage(msg redis.XMessage) (event.Envelope, error) {
	raw, ok := msg.Values[envelopeField]
	if !ok {
		return event.Envelope{}, fmt.Errorf("entry %s has no %s field", msg.ID, envelopeField)
	}
	str, ok := raw.(string)
	if !ok {
		return event.Envelope{}, fmt.Errorf("entry %s field %s is %T, want string", msg.ID, envelopeField, raw)
	}
	return event.Decode([]byte(str))
}
