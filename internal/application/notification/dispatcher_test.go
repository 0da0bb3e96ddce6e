package notification

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskfabric/taskfabric/internal/application/worker"
	"github.com/taskfabric/taskfabric/internal/broker"
	"github.com/taskfabric/taskfabric/internal/clock"
	"github.com/taskfabric/taskfabric/internal/config"
	"github.com/taskfabric/taskfabric/internal/directory"
	"github.com/taskfabric/taskfabric/internal/domain"
	"github.com/taskfabric/taskfabric/internal/event"
	"github.com/taskfabric/taskfabric/internal/ledger"
)

type fakeEmail struct {
	sent     []EmailMessage
	failures int
	calls    int
}

func (f *fakeEmail) Send(_ context.Context, msg EmailMessage) error {
	f.calls++
	if f.calls <= f.failures {
		return worker.Transient(errors.New("smtp timeout"))
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakePush struct {
	sent []PushMessage
	err  error
}

func (f *fakePush) Send(_ context.Context, msg PushMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeDeliveryStore struct {
	rows []*domain.Delivery
}

func (f *fakeDeliveryStore) CreateDelivery(_ context.Context, d *domain.Delivery) error {
	cp := *d
	f.rows = append(f.rows, &cp)
	return nil
}

type captureEvents struct {
	types    []string
	payloads []any
}

func (c *captureEvents) Publish(_ context.Context, _, eventType string, payload any, _ string) (string, error) {
	c.types = append(c.types, eventType)
	c.payloads = append(c.payloads, payload)
	return "e", nil
}

type fixture struct {
	dispatcher *Dispatcher
	email      *fakeEmail
	push       *fakePush
	store      *fakeDeliveryStore
	events     *captureEvents
}

func newFixture(opts ...func(*fixture)) *fixture {
	f := &fixture{
		email:  &fakeEmail{},
		push:   &fakePush{},
		store:  &fakeDeliveryStore{},
		events: &captureEvents{},
	}
	for _, opt := range opts {
		opt(f)
	}

	contacts := directory.NewStatic(map[string]directory.Contact{
		"u-1": {Email: "u1@example.com", DeviceToken: "device-1"},
	})
	clk := clock.NewFake(time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC))
	cfg := config.NotifierConfig{
		MaxRetryAttempts: 3,
		RetryBackoffBase: 2.0,
		RetryBackoffMax:  5 * time.Minute,
	}

	f.dispatcher = NewDispatcher(f.email, f.push, contacts, f.store, f.events, clk, cfg, slog.Default(),
		WithRetryDelay(time.Microsecond))
	return f
}

func dueEnvelope(t *testing.T, eventID string, channels []string) event.Envelope {
	t.Helper()
	desc := "quarterly numbers"
	env, err := event.New(eventID, event.TypeReminderDue, time.Now(), event.ReminderDue{
		ReminderID:      "r-1",
		TaskID:          "t-1",
		UserID:          "u-1",
		UserEmail:       "u1@example.com",
		TaskTitle:       "file report",
		TaskDescription: &desc,
		DueAt:           time.Date(2026, 1, 6, 15, 0, 0, 0, time.UTC),
		RemindBefore:    "PT1H",
		Channels:        channels,
	})
	require.NoError(t, err)
	return env
}

func TestDispatcherSendsAllChannels(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.dispatcher.Process(context.Background(), dueEnvelope(t, "e1", []string{"email", "push"})))

	require.Len(t, f.email.sent, 1)
	email := f.email.sent[0]
	assert.Equal(t, "u1@example.com", email.To)
	assert.Equal(t, "Reminder: file report", email.Subject)
	assert.Contains(t, email.TextBody, `"file report" is due at 2026-01-06 15:00 UTC`)
	assert.Contains(t, email.TextBody, "quarterly numbers")
	assert.Contains(t, email.HTMLBody, "<strong>file report</strong>")

	require.Len(t, f.push.sent, 1)
	assert.Equal(t, "device-1", f.push.sent[0].DeviceToken)

	assert.Equal(t, []string{event.TypeNotificationSent, event.TypeNotificationSent}, f.events.types)

	require.Len(t, f.store.rows, 2)
	for _, row := range f.store.rows {
		assert.Equal(t, domain.DeliverySent, row.Status)
		assert.Equal(t, "u-1", row.OwnerID)
		require.NotNil(t, row.TaskID)
		assert.Equal(t, "t-1", *row.TaskID)
	}
}

func TestDispatcherRetriesTransientThenSucceeds(t *testing.T) {
	f := newFixture(func(f *fixture) {
		f.email = &fakeEmail{failures: 2}
	})

	require.NoError(t, f.dispatcher.Process(context.Background(), dueEnvelope(t, "e1", []string{"email"})))

	assert.Equal(t, 3, f.email.calls)
	assert.Equal(t, []string{event.TypeNotificationSent}, f.events.types)
}

func TestDispatcherPartialFailureStillAcks(t *testing.T) {
	f := newFixture(func(f *fixture) {
		f.push = &fakePush{err: worker.Transient(errors.New("fcm unavailable"))}
	})

	// Returning nil is the ACK from the broker's perspective.
	require.NoError(t, f.dispatcher.Process(context.Background(), dueEnvelope(t, "e1", []string{"email", "push"})))

	assert.ElementsMatch(t, []string{event.TypeNotificationSent, event.TypeNotificationFailed}, f.events.types)

	require.Len(t, f.store.rows, 2)
	byChannel := map[domain.Channel]*domain.Delivery{}
	for _, row := range f.store.rows {
		byChannel[row.Channel] = row
	}
	assert.Equal(t, domain.DeliverySent, byChannel[domain.ChannelEmail].Status)
	assert.Equal(t, domain.DeliveryFailed, byChannel[domain.ChannelPush].Status)
	require.NotNil(t, byChannel[domain.ChannelPush].Error)
	assert.Contains(t, *byChannel[domain.ChannelPush].Error, "fcm unavailable")
}

func TestDispatcherPermanentErrorDoesNotRetry(t *testing.T) {
	f := newFixture(func(f *fixture) {
		f.push = &fakePush{err: errors.New("invalid device token")}
	})

	require.NoError(t, f.dispatcher.Process(context.Background(), dueEnvelope(t, "e1", []string{"push"})))

	assert.Equal(t, []string{event.TypeNotificationFailed}, f.events.types)
	failed := f.events.payloads[0].(event.NotificationFailed)
	assert.Contains(t, failed.Error, "invalid device token")
}

func TestDispatcherNoRecipientFailsChannel(t *testing.T) {
	f := newFixture()

	env, err := event.New("e1", event.TypeReminderDue, time.Now(), event.ReminderDue{
		ReminderID: "r-2",
		TaskID:     "t-2",
		UserID:     "unknown-user",
		TaskTitle:  "orphan task",
		DueAt:      time.Date(2026, 1, 6, 15, 0, 0, 0, time.UTC),
		Channels:   []string{"email"},
	})
	require.NoError(t, err)

	require.NoError(t, f.dispatcher.Process(context.Background(), env))

	assert.Equal(t, []string{event.TypeNotificationFailed}, f.events.types)
	failed := f.events.payloads[0].(event.NotificationFailed)
	assert.Contains(t, failed.Error, "no recipient")
	assert.Empty(t, f.email.sent)
}

func TestDispatcherIdempotentAcrossRedelivery(t *testing.T) {
	f := newFixture()
	clk := clock.NewFake(time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC))
	consumer := worker.NewConsumer(broker.NewMemoryBus(), ledger.NewMemory(clk), f.dispatcher, time.Hour, slog.Default())

	env := dueEnvelope(t, "e-dup", []string{"email"})
	ctx := context.Background()

	require.NoError(t, consumer.Handle(ctx, env))
	require.NoError(t, consumer.Handle(ctx, env))

	assert.Len(t, f.email.sent, 1, "duplicate delivery sends exactly one email")
	assert.Equal(t, []string{event.TypeNotificationSent}, f.events.types)
}
