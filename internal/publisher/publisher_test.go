package publisher

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskfabric/taskfabric/internal/clock"
	"github.com/taskfabric/taskfabric/internal/config"
	"github.com/taskfabric/taskfabric/internal/event"
)

// flakyBroker fails the first failures publishes, then succeeds.
type flakyBroker struct {
	failures int
	calls    int
	topics   []string
	events   []event.Envelope
}

func (f *flakyBroker) Publish(_ context.Context, topic string, env event.Envelope) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("broker unavailable")
	}
	f.topics = append(f.topics, topic)
	f.events = append(f.events, env)
	return nil
}

func newTestPublisher(b *flakyBroker, cfg config.PublisherConfig) *Publisher {
	clk := clock.NewFake(time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC))
	return New(b, clk, cfg, slog.Default(), WithRetryDelay(time.Microsecond))
}

func TestPublishMintsEventID(t *testing.T) {
	b := &flakyBroker{}
	p := newTestPublisher(b, config.PublisherConfig{MaxRetries: 3})

	id, err := p.Publish(context.Background(), event.TopicTaskEvents, event.TypeTaskCreated, event.TaskCreated{TaskID: "t-1"}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, b.events, 1)
	assert.Equal(t, id, b.events[0].EventID)
	assert.Equal(t, event.TypeTaskCreated, b.events[0].EventType)
	assert.Equal(t, 1, b.events[0].SchemaVersion)
}

func TestPublishKeepsCallerEventID(t *testing.T) {
	b := &flakyBroker{}
	p := newTestPublisher(b, config.PublisherConfig{MaxRetries: 3})

	id, err := p.Publish(context.Background(), event.TopicTaskEvents, event.TypeTaskDeleted, event.TaskDeleted{}, "caller-chosen")
	require.NoError(t, err)
	assert.Equal(t, "caller-chosen", id)
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	b := &flakyBroker{failures: 3}
	p := newTestPublisher(b, config.PublisherConfig{MaxRetries: 3})

	_, err := p.Publish(context.Background(), event.TopicTaskEvents, event.TypeTaskCreated, event.TaskCreated{}, "")
	require.NoError(t, err)
	assert.Equal(t, 4, b.calls, "initial attempt plus three retries")
}

func TestPublishExhaustedWithoutBufferDropsEvent(t *testing.T) {
	b := &flakyBroker{failures: 100}
	p := newTestPublisher(b, config.PublisherConfig{MaxRetries: 2})

	_, err := p.Publish(context.Background(), event.TopicTaskEvents, event.TypeTaskCreated, event.TaskCreated{}, "")
	require.Error(t, err)
	assert.Equal(t, 3, b.calls)
	assert.Zero(t, p.BufferLen())
}

func TestPublishExhaustedBuffersAndFlushReplays(t *testing.T) {
	b := &flakyBroker{failures: 100}
	p := newTestPublisher(b, config.PublisherConfig{
		MaxRetries:    1,
		EnableBuffer:  true,
		MaxBufferSize: 10,
	})

	_, err := p.Publish(context.Background(), event.TopicTaskEvents, event.TypeTaskCreated, event.TaskCreated{}, "e1")
	require.Error(t, err)
	assert.Equal(t, 1, p.BufferLen())

	// Broker still down: the event stays buffered.
	assert.Zero(t, p.Flush(context.Background()))
	assert.Equal(t, 1, p.BufferLen())

	// Broker recovers.
	b.failures = b.calls
	assert.Equal(t, 1, p.Flush(context.Background()))
	assert.Zero(t, p.BufferLen())
	require.Len(t, b.events, 1)
	assert.Equal(t, "e1", b.events[0].EventID)
}

func TestPublishBufferFull(t *testing.T) {
	b := &flakyBroker{failures: 1 << 30}
	p := newTestPublisher(b, config.PublisherConfig{
		MaxRetries:    0,
		EnableBuffer:  true,
		MaxBufferSize: 1,
	})

	_, err := p.Publish(context.Background(), event.TopicTaskEvents, event.TypeTaskCreated, event.TaskCreated{}, "e1")
	require.Error(t, err)

	_, err = p.Publish(context.Background(), event.TopicTaskEvents, event.TypeTaskCreated, event.TaskCreated{}, "e2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, 1, p.BufferLen())
}
