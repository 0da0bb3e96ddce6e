package domain

import "time"

// Task is the aggregate root of the task backbone. Every task belongs to
// exactly one owner; all reads and writes are scoped by (id, owner_id).
type Task struct {
	ID      string
	OwnerID string

	Title       string
	Description *string // Optional
	Completed   bool
	Priority    TaskPriority
	Tags        []string

	// DueAt is the optional deadline. Reminders and recurrence both anchor
	// on it; a task without DueAt can carry neither.
	DueAt *time.Time

	// RecurrenceID links a task to the recurrence config that governs it.
	// Successor tasks minted by the recurrence engine carry the successor's
	// own config id, not the predecessor's.
	RecurrenceID *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// MarkCompleted transitions the task to completed at the given instant.
// Returns false when the task was already completed (idempotent toggle).
func (t *Task) MarkCompleted(now time.Time) bool {
	if t.Completed {
		return false
	}
	t.Completed = true
	t.CompletedAt = &now
	t.UpdatedAt = now
	return true
}

// MarkPending reverses a completion. Returns false when the task was not
// completed. The inverse transition never touches any recurrence successor.
func (t *Task) MarkPending(now time.Time) bool {
	if !t.Completed {
		return false
	}
	t.Completed = false
	t.CompletedAt = nil
	t.UpdatedAt = now
	return true
}
