package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Topic names. Producers and consumers agree on these only.
const (
	TopicTaskEvents         = "task-events"
	TopicReminderEvents     = "reminder-events"
	TopicNotificationEvents = "notification-events"
)

// Event types. The ".v1" suffix is the payload schema version; a breaking
// payload change mints a new type rather than mutating an existing one.
const (
	TypeTaskCreated   = "task.created.v1"
	TypeTaskUpdated   = "task.updated.v1"
	TypeTaskCompleted = "task.completed.v1"
	TypeTaskDeleted   = "task.deleted.v1"

	TypeReminderDue = "reminder.due.v1"

	TypeNotificationSent   = "notification.sent.v1"
	TypeNotificationFailed = "notification.failed.v1"
)

// ErrUnknownType is returned when decoding an envelope whose type is not one
// of the closed set above.
var ErrUnknownType = errors.New("unknown event type")

// Envelope is the wire form of every event in the system.
type Envelope struct {
	// EventID is a UUIDv4 string, the idempotency key for consumers.
	EventID string `json:"event_id"`

	// EventType is one of the Type* constants.
	EventType string `json:"event_type"`

	// SchemaVersion is the numeric payload version, redundant with the type
	// suffix for quick filtering.
	SchemaVersion int `json:"schema_version"`

	// Timestamp is the publish instant, RFC 3339 UTC.
	Timestamp time.Time `json:"timestamp"`

	// Data is the type-specific payload.
	Data json.RawMessage `json:"data"`
}

// New wraps a payload into an envelope. The caller supplies the event id and
// timestamp so publishing stays deterministic under test.
func New(eventID, eventType string, ts time.Time, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return Envelope{
		EventID:       eventID,
		EventType:     eventType,
		SchemaVersion: 1,
		Timestamp:     ts.UTC(),
		Data:          data,
	}, nil
}

// Encode serializes the envelope to its JSON wire form.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an envelope from its JSON wire form.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
