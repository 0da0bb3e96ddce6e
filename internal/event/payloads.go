package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecurrenceDescriptor carries a task's recurrence config on lifecycle
// events so consumers never need to read the config table.
type RecurrenceDescriptor struct {
	HasRecurrence        bool   `json:"has_recurrence"`
	RecurrencePattern    string `json:"recurrence_pattern,omitempty"`
	RecurrenceInterval   int    `json:"recurrence_interval,omitempty"`
	RecurrenceDaysOfWeek []int  `json:"recurrence_days_of_week,omitempty"`
	RecurrenceDayOfMonth *int   `json:"recurrence_day_of_month,omitempty"`
}

// TaskCreated is the task.created.v1 payload.
type TaskCreated struct {
	TaskID      string     `json:"task_id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	Tags        []string   `json:"tags"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	RecurrenceDescriptor
	CreatedAt time.Time `json:"created_at"`
}

// FieldChange is one entry of a task.updated.v1 changes map.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// TaskUpdated is the task.updated.v1 payload.
type TaskUpdated struct {
	TaskID    string                 `json:"task_id"`
	UserID    string                 `json:"user_id"`
	Changes   map[string]FieldChange `json:"changes"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// TaskCompleted is the task.completed.v1 payload. DueAt carries the completed
// occurrence's deadline so the recurrence engine can anchor the successor on
// the original schedule rather than the completion instant.
type TaskCompleted struct {
	TaskID      string     `json:"task_id"`
	UserID      string     `json:"user_id"`
	CompletedAt time.Time  `json:"completed_at"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	RecurrenceDescriptor
}

// TaskDeleted is the task.deleted.v1 payload.
type TaskDeleted struct {
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ReminderDue is the reminder.due.v1 payload. It is self-contained: the
// dispatcher renders notifications from it without reading the task store.
type ReminderDue struct {
	ReminderID      string     `json:"reminder_id"`
	TaskID          string     `json:"task_id"`
	UserID          string     `json:"user_id"`
	UserEmail       string     `json:"user_email"`
	TaskTitle       string     `json:"task_title"`
	TaskDescription *string    `json:"task_description,omitempty"`
	DueAt           time.Time  `json:"due_at"`
	RemindBefore    string     `json:"remind_before"`
	Channels        []string   `json:"channels"`
}

// NotificationSent is the notification.sent.v1 payload.
type NotificationSent struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	TaskID         *string   `json:"task_id,omitempty"`
	Channel        string    `json:"channel"`
	Message        string    `json:"message"`
	SentAt         time.Time `json:"sent_at"`
}

// NotificationFailed is the notification.failed.v1 payload.
type NotificationFailed struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	TaskID         *string   `json:"task_id,omitempty"`
	Channel        string    `json:"channel"`
	Message        string    `json:"message"`
	Error          string    `json:"error"`
	FailedAt       time.Time `json:"failed_at"`
}

func decodePayload[T any](env Envelope, wantType string) (T, error) {
	var payload T
	if env.EventType != wantType {
		return payload, fmt.Errorf("%w: got %s, want %s", ErrUnknownType, env.EventType, wantType)
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", wantType, err)
	}
	return payload, nil
}

// DecodeTaskCompleted extracts a TaskCompleted payload from the envelope.
func DecodeTaskCompleted(env Envelope) (TaskCompleted, error) {
	return decodePayload[TaskCompleted](env, TypeTaskCompleted)
}

// DecodeReminderDue extracts a ReminderDue payload from the envelope.
func DecodeReminderDue(env Envelope) (ReminderDue, error) {
	return decodePayload[ReminderDue](env, TypeReminderDue)
}

// DecodeTaskCreated extracts a TaskCreated payload from the envelope.
func DecodeTaskCreated(env Envelope) (TaskCreated, error) {
	return decodePayload[TaskCreated](env, TypeTaskCreated)
}

// DecodeNotificationSent extracts a NotificationSent payload from the envelope.
func DecodeNotificationSent(env Envelope) (NotificationSent, error) {
	return decodePayload[NotificationSent](env, TypeNotificationSent)
}

// DecodeNotificationFailed extracts a NotificationFailed payload from the envelope.
func DecodeNotificationFailed(env Envelope) (NotificationFailed, error) {
	return decodePayload[NotificationFailed](env, TypeNotificationFailed)
}
