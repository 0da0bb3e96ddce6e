// Package task implements the task lifecycle service: validated writes to
// the task store plus durable lifecycle events for downstream consumers.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/taskfabric/taskfabric/internal/clock"
	"github.com/taskfabric/taskfabric/internal/domain"
	"github.com/taskfabric/taskfabric/internal/event"
	"github.com/taskfabric/taskfabric/internal/recurring"
)

// EventPublisher is the publishing side of the event fabric as seen by the
// service. An empty eventID lets the publisher mint one.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType string, payload any, eventID string) (string, error)
}

// Service provides business logic for task lifecycle management.
// Persistence failures are fatal to the operation; publish failures are
// logged and left to the publisher's buffering to deliver eventually.
type Service struct {
	repo   Repository
	events EventPublisher
	clock  clock.Clock
	logger *slog.Logger
}

// NewService creates a new task lifecycle service.
func NewService(repo Repository, events EventPublisher, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: events,
		clock:  clk,
		logger: logger,
	}
}

// RecurrenceParams describes the recurrence config of a new task.
type RecurrenceParams struct {
	Pattern    string
	Interval   int
	DaysOfWeek []int
	DayOfMonth *int
}

// ReminderParams describes one reminder of a new task.
type ReminderParams struct {
	RemindBefore string
	Channels     []string
}

// CreateTaskParams carries the input of CreateTask.
type CreateTaskParams struct {
	OwnerID     string
	Title       string
	Description *string
	Priority    string
	Tags        []string
	DueAt       *time.Time
	Recurrence  *RecurrenceParams
	Reminders   []ReminderParams
}

// CreateTask validates the input, persists the task with its optional
// recurrence config and reminders in one transaction, and publishes
// task.created.v1.
func (s *Service) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	title, err := domain.NewTitle(params.Title)
	if err != nil {
		return nil, domain.NewFieldError("title", err)
	}

	description, err := domain.NewDescription(params.Description)
	if err != nil {
		return nil, domain.NewFieldError("description", err)
	}

	priority, err := domain.NewTaskPriority(params.Priority)
	if err != nil {
		return nil, domain.NewFieldError("priority", err)
	}

	if len(params.Reminders) > 0 && params.DueAt == nil {
		return nil, domain.NewFieldError("reminders", domain.ErrReminderRequiresDue)
	}
	if params.Recurrence != nil && params.DueAt == nil {
		return nil, domain.NewFieldError("recurrence", domain.ErrRecurrenceRequiresDue)
	}

	now := s.clock.Now()

	task := &domain.Task{
		ID:          newID(),
		OwnerID:     params.OwnerID,
		Title:       title.String(),
		Description: description,
		Priority:    priority,
		Tags:        params.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if params.DueAt != nil {
		due := params.DueAt.UTC()
		task.DueAt = &due
	}

	rec, err := buildRecurrence(params.Recurrence, task, now)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		task.RecurrenceID = &rec.ID
	}

	reminders := make([]*domain.Reminder, 0, len(params.Reminders))
	for i, rp := range params.Reminders {
		offset, err := domain.NewOffset(rp.RemindBefore)
		if err != nil {
			return nil, domain.NewFieldError(fmt.Sprintf("reminders[%d].remind_before", i), err)
		}
		channels, err := domain.NewChannels(rp.Channels)
		if err != nil {
			return nil, domain.NewFieldError(fmt.Sprintf("reminders[%d].channels", i), err)
		}
		reminders = append(reminders, &domain.Reminder{
			ID:           newID(),
			TaskID:       task.ID,
			OwnerID:      params.OwnerID,
			RemindBefore: offset,
			Channels:     channels,
			CreatedAt:    now,
		})
	}

	err = s.repo.Atomic(ctx, func(repo Repository) error {
		if err := repo.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		if rec != nil {
			if err := repo.CreateRecurrence(ctx, rec); err != nil {
				return fmt.Errorf("create recurrence: %w", err)
			}
		}
		for _, rem := range reminders {
			if err := repo.CreateReminder(ctx, rem); err != nil {
				return fmt.Errorf("create reminder: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := event.TaskCreated{
		TaskID:               task.ID,
		UserID:               task.OwnerID,
		Title:                task.Title,
		Description:          task.Description,
		Priority:             string(task.Priority),
		Tags:                 task.Tags,
		DueAt:                task.DueAt,
		RecurrenceDescriptor: describeRecurrence(rec),
		CreatedAt:            task.CreatedAt,
	}
	s.publish(ctx, event.TopicTaskEvents, event.TypeTaskCreated, payload)

	return task, nil
}

// UpdateTaskParams carries the optional field updates of UpdateTask.
// Nil pointers leave the field untouched; the Clear flags reset optional
// fields to empty.
type UpdateTaskParams struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Priority         *string
	Tags             *[]string
	DueAt            *time.Time
	ClearDueAt       bool
}

// UpdateTask diffs the requested changes against the stored task. When any
// field differs it persists the new values and publishes task.updated.v1
// with an old/new map; an empty diff is a no-op with no event.
func (s *Service) UpdateTask(ctx context.Context, id, ownerID string, params UpdateTaskParams) (*domain.Task, error) {
	task, err := s.repo.FindTask(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]event.FieldChange)

	if params.Title != nil {
		title, err := domain.NewTitle(*params.Title)
		if err != nil {
			return nil, domain.NewFieldError("title", err)
		}
		if title.String() != task.Title {
			changes["title"] = event.FieldChange{Old: task.Title, New: title.String()}
			task.Title = title.String()
		}
	}

	if params.ClearDescription {
		if task.Description != nil {
			changes["description"] = event.FieldChange{Old: *task.Description, New: nil}
			task.Description = nil
		}
	} else if params.Description != nil {
		desc, err := domain.NewDescription(params.Description)
		if err != nil {
			return nil, domain.NewFieldError("description", err)
		}
		if task.Description == nil || *task.Description != *desc {
			changes["description"] = event.FieldChange{Old: optString(task.Description), New: *desc}
			task.Description = desc
		}
	}

	if params.Priority != nil {
		priority, err := domain.NewTaskPriority(*params.Priority)
		if err != nil {
			return nil, domain.NewFieldError("priority", err)
		}
		if priority != task.Priority {
			changes["priority"] = event.FieldChange{Old: string(task.Priority), New: string(priority)}
			task.Priority = priority
		}
	}

	if params.Tags != nil && !slices.Equal(*params.Tags, task.Tags) {
		changes["tags"] = event.FieldChange{Old: task.Tags, New: *params.Tags}
		task.Tags = *params.Tags
	}

	if params.ClearDueAt {
		if task.DueAt != nil {
			changes["due_at"] = event.FieldChange{Old: *task.DueAt, New: nil}
			task.DueAt = nil
		}
	} else if params.DueAt != nil {
		due := params.DueAt.UTC()
		if task.DueAt == nil || !task.DueAt.Equal(due) {
			changes["due_at"] = event.FieldChange{Old: optTime(task.DueAt), New: due}
			task.DueAt = &due
		}
	}

	if len(changes) == 0 {
		return task, nil
	}

	task.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	s.publish(ctx, event.TopicTaskEvents, event.TypeTaskUpdated, event.TaskUpdated{
		TaskID:    task.ID,
		UserID:    task.OwnerID,
		Changes:   changes,
		UpdatedAt: task.UpdatedAt,
	})

	return task, nil
}

// CompleteTask marks the task completed and publishes task.completed.v1
// carrying the task's recurrence descriptors. Completing an already
// completed task is a no-op and emits nothing.
func (s *Service) CompleteTask(ctx context.Context, id, ownerID string) (*domain.Task, error) {
	task, err := s.repo.FindTask(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if !task.MarkCompleted(s.clock.Now()) {
		return task, nil
	}

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	var descriptor event.RecurrenceDescriptor
	if task.RecurrenceID != nil {
		rec, err := s.repo.FindRecurrenceByTask(ctx, task.ID)
		if err == nil && rec.Active {
			descriptor = describeRecurrence(rec)
		} else if err != nil {
			s.logger.WarnContext(ctx, "recurrence lookup failed on completion",
				"task_id", task.ID, "error", err)
		}
	}

	s.publish(ctx, event.TopicTaskEvents, event.TypeTaskCompleted, event.TaskCompleted{
		TaskID:               task.ID,
		UserID:               task.OwnerID,
		CompletedAt:          *task.CompletedAt,
		DueAt:                task.DueAt,
		RecurrenceDescriptor: descriptor,
	})

	return task, nil
}

// ReopenTask reverses a completion, publishing task.updated.v1 with the
// completed flag's old/new values. Reopening a pending task is a no-op.
// An existing recurrence successor is left alone.
func (s *Service) ReopenTask(ctx context.Context, id, ownerID string) (*domain.Task, error) {
	task, err := s.repo.FindTask(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if !task.MarkPending(s.clock.Now()) {
		return task, nil
	}

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	s.publish(ctx, event.TopicTaskEvents, event.TypeTaskUpdated, event.TaskUpdated{
		TaskID: task.ID,
		UserID: task.OwnerID,
		Changes: map[string]event.FieldChange{
			"completed": {Old: true, New: false},
		},
		UpdatedAt: task.UpdatedAt,
	})

	return task, nil
}

// DeleteTask removes the task, cascading to its reminders and detaching its
// recurrence config. Returns false without an event when the task was
// already gone.
func (s *Service) DeleteTask(ctx context.Context, id, ownerID string) (bool, error) {
	deleted, err := s.repo.DeleteTask(ctx, id, ownerID)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}

	s.publish(ctx, event.TopicTaskEvents, event.TypeTaskDeleted, event.TaskDeleted{
		TaskID:    id,
		UserID:    ownerID,
		DeletedAt: s.clock.Now(),
	})

	return true, nil
}

// publish sends a lifecycle event, logging failures instead of surfacing
// them: state is already committed and the publisher's buffer owns
// eventual delivery.
func (s *Service) publish(ctx context.Context, topic, eventType string, payload any) {
	if _, err := s.events.Publish(ctx, topic, eventType, payload, ""); err != nil {
		s.logger.ErrorContext(ctx, "lifecycle event publish failed",
			"topic", topic,
			"event_type", eventType,
			"error", err)
	}
}

func buildRecurrence(params *RecurrenceParams, task *domain.Task, now time.Time) (*domain.Recurrence, error) {
	if params == nil {
		return nil, nil
	}

	pattern, err := domain.NewRecurrencePattern(params.Pattern)
	if err != nil {
		return nil, domain.NewFieldError("recurrence.pattern", err)
	}

	rec := &domain.Recurrence{
		ID:         newID(),
		TaskID:     &task.ID,
		Pattern:    pattern,
		Interval:   params.Interval,
		DaysOfWeek: params.DaysOfWeek,
		DayOfMonth: params.DayOfMonth,
		Active:     true,
		CreatedAt:  now,
	}
	if err := rec.Validate(); err != nil {
		return nil, domain.NewFieldError("recurrence", err)
	}

	next, err := recurring.NextOccurrence(*task.DueAt, recurring.Spec{
		Pattern:    rec.Pattern,
		Interval:   rec.Interval,
		DaysOfWeek: rec.DaysOfWeek,
		DayOfMonth: rec.DayOfMonth,
	})
	if err != nil {
		return nil, domain.NewFieldError("recurrence", err)
	}
	rec.NextFireAt = &next

	return rec, nil
}

func describeRecurrence(rec *domain.Recurrence) event.RecurrenceDescriptor {
	if rec == nil {
		return event.RecurrenceDescriptor{}
	}
	return event.RecurrenceDescriptor{
		HasRecurrence:        true,
		RecurrencePattern:    string(rec.Pattern),
		RecurrenceInterval:   rec.Interval,
		RecurrenceDaysOfWeek: rec.DaysOfWeek,
		RecurrenceDayOfMonth: rec.DayOfMonth,
	}
}

// newID mints a time-ordered UUID for entity ids. V7 keeps index pages warm
// on append-heavy tables.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Only possible if the random source is broken.
		return uuid.NewString()
	}
	return id.String()
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
