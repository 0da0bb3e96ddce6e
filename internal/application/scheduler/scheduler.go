// Package scheduler implements the reminder scheduler: a periodic scan of
// unsent reminders whose window has opened, publishing reminder.due.v1 and
// marking each reminder sent with a per-reminder commit.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskfabric/taskfabric/internal/clock"
	"github.com/taskfabric/taskfabric/internal/directory"
	"github.com/taskfabric/taskfabric/internal/event"
)

// DueReminder is one reminder the store selected for sending, joined with
// the fields of its owning task the notification needs.
type DueReminder struct {
	ReminderID      string
	TaskID          string
	OwnerID         string
	TaskTitle       string
	TaskDescription *string
	DueAt           time.Time
	RemindBefore    string
	Channels        []string
}

// ReminderSource is the store view the scheduler needs.
type ReminderSource interface {
	// DueReminders selects up to limit unsent reminders of non-completed,
	// due-dated tasks whose remind window has opened at now.
	DueReminders(ctx context.Context, now time.Time, limit int) ([]DueReminder, error)

	// MarkSent stamps the reminder's sent_at and commits immediately, so a
	// crash mid-tick never re-sends what already went out.
	MarkSent(ctx context.Context, reminderID string, sentAt time.Time) error
}

// EventPublisher is the publishing side of the event fabric.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType string, payload any, eventID string) (string, error)
}

// Summary reports one tick's work.
type Summary struct {
	Found int `json:"reminders_found"`
	Sent  int `json:"reminders_sent"`
}

// Scheduler publishes due reminders on a fixed cadence or on demand.
type Scheduler struct {
	source    ReminderSource
	events    EventPublisher
	contacts  directory.Resolver
	clock     clock.Clock
	logger    *slog.Logger
	batchSize int
}

// New creates a reminder scheduler.
func New(source ReminderSource, events EventPublisher, contacts directory.Resolver, clk clock.Clock, logger *slog.Logger, batchSize int) *Scheduler {
	return &Scheduler{
		source:    source,
		events:    events,
		contacts:  contacts,
		clock:     clk,
		logger:    logger,
		batchSize: batchSize,
	}
}

// RunOnce performs one tick: select, publish, mark sent. Reminders are
// independent; a failure on one is logged and skipped so the rest of the
// batch still goes out, and the unsent reminder is picked up next tick.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	now := s.clock.Now()

	due, err := s.source.DueReminders(ctx, now, s.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("select due reminders: %w", err)
	}

	summary := Summary{Found: len(due)}

	for _, rem := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := s.dispatch(ctx, rem, now); err != nil {
			s.logger.ErrorContext(ctx, "reminder dispatch failed",
				"reminder_id", rem.ReminderID,
				"task_id", rem.TaskID,
				"error", err)
			continue
		}
		summary.Sent++
	}

	s.logger.InfoContext(ctx, "scheduler tick complete",
		"found", summary.Found,
		"sent", summary.Sent)

	return summary, nil
}

func (s *Scheduler) dispatch(ctx context.Context, rem DueReminder, now time.Time) error {
	var email string
	contact, err := s.contacts.Lookup(ctx, rem.OwnerID)
	if err != nil {
		// The dispatcher can still resolve push recipients; an empty email
		// only fails the email channel downstream.
		s.logger.WarnContext(ctx, "contact lookup failed",
			"owner_id", rem.OwnerID,
			"error", err)
	} else {
		email = contact.Email
	}

	payload := event.ReminderDue{
		ReminderID:      rem.ReminderID,
		TaskID:          rem.TaskID,
		UserID:          rem.OwnerID,
		UserEmail:       email,
		TaskTitle:       rem.TaskTitle,
		TaskDescription: rem.TaskDescription,
		DueAt:           rem.DueAt,
		RemindBefore:    rem.RemindBefore,
		Channels:        rem.Channels,
	}

	if _, err := s.events.Publish(ctx, event.TopicReminderEvents, event.TypeReminderDue, payload, ""); err != nil {
		// Not marked sent: the next tick retries.
		return fmt.Errorf("publish reminder.due: %w", err)
	}

	if err := s.source.MarkSent(ctx, rem.ReminderID, now); err != nil {
		// The event is out but sent_at didn't stick; the next tick may
		// publish again and consumers de-duplicate by reminder content, not
		// event id, so surface it loudly.
		return fmt.Errorf("mark reminder sent: %w", err)
	}

	return nil
}

// RunLoop ticks at the given cadence until ctx is cancelled.
func (s *Scheduler) RunLoop(ctx context.Context, cadence time.Duration) {
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "scheduler tick failed", "error", err)
			}
		}
	}
}
