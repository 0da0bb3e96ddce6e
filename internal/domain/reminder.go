package domain

import "time"

// Reminder asks for a notification some offset before its task is due.
// A reminder fires at most once: SentAt is set when the scheduler publishes
// it and is never cleared, even if the task's due date later moves.
type Reminder struct {
	ID      string
	TaskID  string
	OwnerID string

	// RemindBefore is how long before the task's due timestamp the reminder
	// becomes due.
	RemindBefore Offset

	// Channels the resulting notification fans out to. Never empty.
	Channels []Channel

	SentAt    *time.Time
	CreatedAt time.Time
}

// Due reports whether the reminder should fire at the given instant for a
// task due at dueAt. Already-sent reminders are never due again.
func (r *Reminder) Due(now, dueAt time.Time) bool {
	if r.SentAt != nil {
		return false
	}
	return !dueAt.Add(-r.RemindBefore.Value()).After(now)
}
