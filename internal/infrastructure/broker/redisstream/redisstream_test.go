package redisstream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskfabric/taskfabric/internal/config"
	"github.com/taskfabric/taskfabric/internal/event"
)

func newTestBus(t *testing.T) (*Bus, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.RedisConfig{
		Addr:         mr.Addr(),
		BlockTimeout: 20 * time.Millisecond,
		ClaimMinIdle: 50 * time.Millisecond,
	}
	return New(client, cfg, slog.New(slog.DiscardHandler)), client, mr
}

func makeEnvelope(t *testing.T, eventID string) event.Envelope {
	t.Helper()

	env, err := event.New(eventID, event.TypeTaskCreated, time.Now(), map[string]string{"k": "v"})
	require.NoError(t, err)
	return env
}

type recorder struct {
	mu       sync.Mutex
	got      []event.Envelope
	failures map[string]int
}

func (r *recorder) handle(_ context.Context, env event.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures[env.EventID] > 0 {
		r.failures[env.EventID]--
		return errors.New("boom")
	}
	r.got = append(r.got, env)
	return nil
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.got))
	for i, env := range r.got {
		out[i] = env.EventID
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBusPublishDeliverAck(t *testing.T) {
	bus, client, _ := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Publish(ctx, "task-events", makeEnvelope(t, "evt-1")))
	require.NoError(t, bus.Publish(ctx, "task-events", makeEnvelope(t, "evt-2")))

	rec := &recorder{}
	done := make(chan error, 1)
	go func() {
		done <- bus.Subscribe(ctx, "task-events", "test-group", rec.handle)
	}()

	waitFor(t, func() bool { return len(rec.ids()) == 2 })
	assert.Equal(t, []string{"evt-1", "evt-2"}, rec.ids())

	// Acked entries must not stay pending.
	waitFor(t, func() bool {
		pending, err := client.XPending(ctx, "task-events", "test-group").Result()
		return err == nil && pending.Count == 0
	})

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestBusHandlerErrorLeavesPendingThenReclaims(t *testing.T) {
	bus, client, _ := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Publish(ctx, "task-events", makeEnvelope(t, "evt-retry")))

	rec := &recorder{failures: map[string]int{"evt-retry": 1}}
	go func() { _ = bus.Subscribe(ctx, "task-events", "test-group", rec.handle) }()

	// First delivery fails and the entry sits in the pending list until the
	// idle threshold passes, then the reclaim pass redelivers it.
	waitFor(t, func() bool { return len(rec.ids()) == 1 })
	assert.Equal(t, []string{"evt-retry"}, rec.ids())

	waitFor(t, func() bool {
		pending, err := client.XPending(ctx, "task-events", "test-group").Result()
		return err == nil && pending.Count == 0
	})
}

func TestBusIndependentGroupsEachGetDeliveries(t *testing.T) {
	bus, _, _ := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Publish(ctx, "task-events", makeEnvelope(t, "evt-fanout")))

	recA := &recorder{}
	recB := &recorder{}
	go func() { _ = bus.Subscribe(ctx, "task-events", "group-a", recA.handle) }()
	go func() { _ = bus.Subscribe(ctx, "task-events", "group-b", recB.handle) }()

	waitFor(t, func() bool { return len(recA.ids()) == 1 && len(recB.ids()) == 1 })
}

func TestBusDropsMalformedEntry(t *testing.T) {
	bus, client, _ := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: "task-events",
		Values: map[string]any{"junk": "not an envelope"},
	}).Result()
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "task-events", makeEnvelope(t, "evt-good")))

	rec := &recorder{}
	go func() { _ = bus.Subscribe(ctx, "task-events", "test-group", rec.handle) }()

	// The malformed entry is dropped and acked; the good one still arrives.
	waitFor(t, func() bool { return len(rec.ids()) == 1 })
	assert.Equal(t, []string{"evt-good"}, rec.ids())

	waitFor(t, func() bool {
		pending, err := client.XPending(ctx, "task-events", "test-group").Result()
		return err == nil && pending.Count == 0
	})
}

func TestConnectBadAddr(t *testing.T) {
	_, err := Connect(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
