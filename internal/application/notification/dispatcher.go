// Package notification implements the notification dispatcher: a consumer of
// reminder.due.v1 that fans a reminder out to its requested channels, with
// bounded retries per channel, an outcome event and a delivery record for
// every channel attempt.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"

	"github.com/taskfabric/taskfabric/internal/application/worker"
	"github.com/taskfabric/taskfabric/internal/clock"
	"github.com/taskfabric/taskfabric/internal/config"
	"github.com/taskfabric/taskfabric/internal/directory"
	"github.com/taskfabric/taskfabric/internal/domain"
	"github.com/taskfabric/taskfabric/internal/event"
)

// ConsumerName is the ledger and broker-group identity of this dispatcher.
const ConsumerName = "notification-service"

// ErrNoRecipient indicates the channel has no deliverable address for the
// user; a permanent failure.
var ErrNoRecipient = errors.New("no recipient for channel")

// EmailSender delivers rendered emails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// PushSender delivers rendered push notifications.
type PushSender interface {
	Send(ctx context.Context, msg PushMessage) error
}

// DeliveryStore records per-channel delivery outcomes.
type DeliveryStore interface {
	CreateDelivery(ctx context.Context, d *domain.Delivery) error
}

// EventPublisher is the publishing side of the event fabric.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType string, payload any, eventID string) (string, error)
}

// Dispatcher consumes reminder.due.v1 and delivers notifications.
type Dispatcher struct {
	email      EmailSender
	push       PushSender
	contacts   directory.Resolver
	deliveries DeliveryStore
	events     EventPublisher
	clock      clock.Clock
	cfg        config.NotifierConfig
	logger     *slog.Logger

	retryUnit time.Duration
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithRetryDelay overrides the backoff time unit (one second in production).
func WithRetryDelay(unit time.Duration) Option {
	return func(d *Dispatcher) { d.retryUnit = unit }
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(
	email EmailSender,
	push PushSender,
	contacts directory.Resolver,
	deliveries DeliveryStore,
	events EventPublisher,
	clk clock.Clock,
	cfg config.NotifierConfig,
	logger *slog.Logger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		email:      email,
		push:       push,
		contacts:   contacts,
		deliveries: deliveries,
		events:     events,
		clock:      clk,
		cfg:        cfg,
		logger:     logger,
		retryUnit:  time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements worker.Processor.
func (d *Dispatcher) Name() string { return ConsumerName }

// Topic implements worker.Processor.
func (d *Dispatcher) Topic() string { return event.TopicReminderEvents }

// Accepts implements worker.Processor.
func (d *Dispatcher) Accepts(eventType string) bool {
	return eventType == event.TypeReminderDue
}

// Process resolves every requested channel to a terminal outcome. Channel
// failures do not fail the delivery: each channel gets its own outcome event
// and delivery row, and the message is acknowledged once all channels are
// resolved.
func (d *Dispatcher) Process(ctx context.Context, env event.Envelope) error {
	payload, err := event.DecodeReminderDue(env)
	if err != nil {
		d.logger.ErrorContext(ctx, "undecodable reminder event dropped",
			"event_id", env.EventID, "error", err)
		return nil
	}

	contact := d.lookupContact(ctx, payload.UserID)

	for _, channel := range payload.Channels {
		message, sendErr := d.sendChannel(ctx, channel, contact, payload)
		d.recordOutcome(ctx, channel, message, payload, sendErr)
	}

	return nil
}

// lookupContact resolves the user's contact details, tolerating a missing
// record: the payload may carry enough (user_email) on its own.
func (d *Dispatcher) lookupContact(ctx context.Context, userID string) directory.Contact {
	contact, err := d.contacts.Lookup(ctx, userID)
	if err != nil {
		if !errors.Is(err, directory.ErrContactNotFound) {
			d.logger.WarnContext(ctx, "contact lookup failed",
				"user_id", userID, "error", err)
		}
		return directory.Contact{}
	}
	return contact
}

// sendChannel renders and sends on one channel with retries. It returns the
// human-readable message text (for the delivery record) and the terminal
// error, if any.
func (d *Dispatcher) sendChannel(ctx context.Context, channel string, contact directory.Contact, payload event.ReminderDue) (string, error) {
	switch domain.Channel(channel) {
	case domain.ChannelEmail:
		to := payload.UserEmail
		if to == "" {
			to = contact.Email
		}
		if to == "" {
			return "", ErrNoRecipient
		}
		msg, err := renderEmail(to, payload)
		if err != nil {
			return "", err
		}
		return msg.TextBody, d.withRetries(ctx, func() error {
			return d.email.Send(ctx, msg)
		})

	case domain.ChannelPush:
		if contact.DeviceToken == "" {
			return "", ErrNoRecipient
		}
		msg, err := renderPush(contact.DeviceToken, payload)
		if err != nil {
			return "", err
		}
		return msg.Body, d.withRetries(ctx, func() error {
			return d.push.Send(ctx, msg)
		})

	default:
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidChannel, channel)
	}
}

// withRetries re-attempts transient send failures with capped exponential
// backoff (base^attempt time units, capped at the configured max). Permanent
// errors fail immediately.
func (d *Dispatcher) withRetries(ctx context.Context, send func() error) error {
	return retry.Do(
		send,
		retry.Context(ctx),
		retry.Attempts(uint(d.cfg.MaxRetryAttempts)+1),
		retry.RetryIf(worker.IsRetryable),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			delay := time.Duration(math.Pow(d.cfg.RetryBackoffBase, float64(n+1))) * d.retryUnit
			if delay > d.cfg.RetryBackoffMax {
				delay = d.cfg.RetryBackoffMax
			}
			return delay
		}),
		retry.LastErrorOnly(true),
	)
}

// recordOutcome publishes the channel's outcome event and inserts its
// delivery row. Outcome bookkeeping failures are logged, not propagated:
// the send already happened and a redelivery would repeat it.
func (d *Dispatcher) recordOutcome(ctx context.Context, channel, message string, payload event.ReminderDue, sendErr error) {
	now := d.clock.Now()
	delivery := &domain.Delivery{
		ID:        uuid.NewString(),
		OwnerID:   payload.UserID,
		TaskID:    &payload.TaskID,
		Channel:   domain.Channel(channel),
		Message:   message,
		CreatedAt: now,
	}

	if sendErr == nil {
		delivery.Status = domain.DeliverySent
		d.publish(ctx, event.TypeNotificationSent, event.NotificationSent{
			NotificationID: delivery.ID,
			UserID:         payload.UserID,
			TaskID:         delivery.TaskID,
			Channel:        channel,
			Message:        message,
			SentAt:         now,
		})
	} else {
		errText := sendErr.Error()
		delivery.Status = domain.DeliveryFailed
		delivery.Error = &errText
		d.publish(ctx, event.TypeNotificationFailed, event.NotificationFailed{
			NotificationID: delivery.ID,
			UserID:         payload.UserID,
			TaskID:         delivery.TaskID,
			Channel:        channel,
			Message:        message,
			Error:          errText,
			FailedAt:       now,
		})
		d.logger.ErrorContext(ctx, "channel delivery failed",
			"channel", channel,
			"reminder_id", payload.ReminderID,
			"user_id", payload.UserID,
			"error", sendErr)
	}

	if err := d.deliveries.CreateDelivery(ctx, delivery); err != nil {
		d.logger.ErrorContext(ctx, "delivery record insert failed",
			"notification_id", delivery.ID,
			"channel", channel,
			"error", err)
	}
}

func (d *Dispatcher) publish(ctx context.Context, eventType string, payload any) {
	if _, err := d.events.Publish(ctx, event.TopicNotificationEvents, eventType, payload, ""); err != nil {
		d.logger.ErrorContext(ctx, "outcome event publish failed",
			"event_type", eventType,
			"error", err)
	}
}
