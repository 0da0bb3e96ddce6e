// Package recurrence implements the recurrence engine: a consumer of task
// completion events that mints the next occurrence of a recurring task.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taskfabric/taskfabric/internal/application/task"
	"github.com/taskfabric/taskfabric/internal/application/worker"
	"github.com/taskfabric/taskfabric/internal/domain"
	"github.com/taskfabric/taskfabric/internal/event"
	"github.com/taskfabric/taskfabric/internal/recurring"
)

// ConsumerName is the ledger and broker-group identity of this engine.
const ConsumerName = "recurring-task-service"

// TaskCreator creates successor tasks; satisfied by the task lifecycle
// service.
type TaskCreator interface {
	CreateTask(ctx context.Context, params task.CreateTaskParams) (*domain.Task, error)
}

// TaskReader reads the completed task's metadata for cloning.
type TaskReader interface {
	FindTask(ctx context.Context, id, ownerID string) (*domain.Task, error)
}

// Engine consumes task.completed.v1 and creates the next occurrence.
type Engine struct {
	tasks  TaskCreator
	reader TaskReader
	logger *slog.Logger
}

// NewEngine creates a recurrence engine.
func NewEngine(tasks TaskCreator, reader TaskReader, logger *slog.Logger) *Engine {
	return &Engine{tasks: tasks, reader: reader, logger: logger}
}

// Name implements worker.Processor.
func (e *Engine) Name() string { return ConsumerName }

// Topic implements worker.Processor.
func (e *Engine) Topic() string { return event.TopicTaskEvents }

// Accepts implements worker.Processor.
func (e *Engine) Accepts(eventType string) bool {
	return eventType == event.TypeTaskCompleted
}

// Process handles one completion. Non-recurring completions and permanently
// unusable payloads are acknowledged; store failures bubble up so the
// delivery is retried.
func (e *Engine) Process(ctx context.Context, env event.Envelope) error {
	payload, err := event.DecodeTaskCompleted(env)
	if err != nil {
		// Malformed payloads never improve on redelivery.
		e.logger.ErrorContext(ctx, "undecodable completion event dropped",
			"event_id", env.EventID, "error", err)
		return nil
	}

	if !payload.HasRecurrence {
		return nil
	}
	if payload.DueAt == nil {
		e.logger.WarnContext(ctx, "recurring completion without due anchor dropped",
			"event_id", env.EventID, "task_id", payload.TaskID)
		return nil
	}

	nextDue, err := recurring.NextOccurrence(*payload.DueAt, recurring.Spec{
		Pattern:    domain.RecurrencePattern(payload.RecurrencePattern),
		Interval:   payload.RecurrenceInterval,
		DaysOfWeek: payload.RecurrenceDaysOfWeek,
		DayOfMonth: payload.RecurrenceDayOfMonth,
	})
	if err != nil {
		// Descriptor is structurally invalid; retrying cannot fix it.
		e.logger.ErrorContext(ctx, "invalid recurrence descriptor dropped",
			"event_id", env.EventID, "task_id", payload.TaskID, "error", err)
		return nil
	}

	original, err := e.reader.FindTask(ctx, payload.TaskID, payload.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			// Deleted between completion and consumption; nothing to clone.
			e.logger.WarnContext(ctx, "completed task gone before successor creation",
				"event_id", env.EventID, "task_id", payload.TaskID)
			return nil
		}
		return worker.Transient(fmt.Errorf("load completed task %s: %w", payload.TaskID, err))
	}

	successor, err := e.tasks.CreateTask(ctx, task.CreateTaskParams{
		OwnerID:     original.OwnerID,
		Title:       original.Title,
		Description: original.Description,
		Priority:    string(original.Priority),
		Tags:        original.Tags,
		DueAt:       &nextDue,
		Recurrence: &task.RecurrenceParams{
			Pattern:    payload.RecurrencePattern,
			Interval:   payload.RecurrenceInterval,
			DaysOfWeek: payload.RecurrenceDaysOfWeek,
			DayOfMonth: payload.RecurrenceDayOfMonth,
		},
	})
	if err != nil {
		return fmt.Errorf("create successor for task %s: %w", payload.TaskID, err)
	}

	e.logger.InfoContext(ctx, "successor task created",
		"event_id", env.EventID,
		"completed_task_id", payload.TaskID,
		"successor_task_id", successor.ID,
		"next_due", nextDue)

	return nil
}
