package task

import (
	"context"

	"github.com/taskfabric/taskfabric/internal/domain"
)

// Repository defines storage operations for task lifecycle management.
// All task-scoped operations take (id, ownerID) and return
// domain.ErrTaskNotFound when either does not match.
type Repository interface {
	// CreateTask persists a new task.
	CreateTask(ctx context.Context, task *domain.Task) error

	// FindTask retrieves a task by id for the given owner.
	// Returns domain.ErrTaskNotFound if the task doesn't exist or belongs to
	// someone else.
	FindTask(ctx context.Context, id, ownerID string) (*domain.Task, error)

	// ListTasks retrieves the owner's tasks, newest first.
	ListTasks(ctx context.Context, ownerID string) ([]*domain.Task, error)

	// UpdateTask persists the task's current field values.
	// Returns domain.ErrTaskNotFound if the task doesn't exist.
	UpdateTask(ctx context.Context, task *domain.Task) error

	// DeleteTask removes a task and its reminders; the recurrence config's
	// task reference is cleared. Returns false when nothing was deleted.
	DeleteTask(ctx context.Context, id, ownerID string) (bool, error)

	// CreateRecurrence persists a new recurrence config.
	CreateRecurrence(ctx context.Context, rec *domain.Recurrence) error

	// FindRecurrenceByTask retrieves the recurrence config owned by a task.
	// Returns domain.ErrRecurrenceNotFound when the task has none.
	FindRecurrenceByTask(ctx context.Context, taskID string) (*domain.Recurrence, error)

	// DeactivateRecurrence permanently deactivates a recurrence config.
	DeactivateRecurrence(ctx context.Context, id string) error

	// CreateReminder persists a new reminder.
	CreateReminder(ctx context.Context, rem *domain.Reminder) error

	// Atomic executes fn inside a single transaction. The Repository passed
	// to fn runs every operation on that transaction; returning an error
	// rolls everything back.
	Atomic(ctx context.Context, fn func(repo Repository) error) error
}
