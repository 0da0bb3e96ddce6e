package domain

import (
	"errors"
	"fmt"
)

// Domain errors returned by services and repository implementations.
// NotFound errors deliberately do not distinguish "does not exist" from
// "owned by someone else" so that ownership cannot be probed.

var (
	// ErrTaskNotFound indicates the task does not exist or is not owned by the caller.
	ErrTaskNotFound = errors.New("task not found")

	// ErrReminderNotFound indicates the reminder does not exist or is not owned by the caller.
	ErrReminderNotFound = errors.New("reminder not found")

	// ErrRecurrenceNotFound indicates the recurrence config does not exist.
	ErrRecurrenceNotFound = errors.New("recurrence not found")

	// ErrTitleRequired indicates an empty or whitespace-only title.
	ErrTitleRequired = errors.New("title is required")

	// ErrTitleTooLong indicates a title longer than 255 characters.
	ErrTitleTooLong = errors.New("title must be at most 255 characters")

	// ErrDescriptionTooLong indicates a description longer than 2000 characters.
	ErrDescriptionTooLong = errors.New("description must be at most 2000 characters")

	// ErrInvalidPriority indicates a priority outside {high, medium, low}.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidChannel indicates a notification channel outside {email, push}.
	ErrInvalidChannel = errors.New("invalid notification channel")

	// ErrChannelsRequired indicates a reminder with an empty channel set.
	ErrChannelsRequired = errors.New("at least one notification channel is required")

	// ErrReminderRequiresDue indicates a reminder on a task without a due timestamp.
	ErrReminderRequiresDue = errors.New("reminders require a due timestamp")

	// ErrRecurrenceRequiresDue indicates a recurrence on a task without a due timestamp.
	ErrRecurrenceRequiresDue = errors.New("recurrence requires a due timestamp")

	// ErrInvalidOffsetFormat indicates a remind-before offset outside the
	// supported PT<n>H / P<n>D / P<n>W grammar.
	ErrInvalidOffsetFormat = errors.New("invalid remind-before format")

	// ErrInvalidRecurrenceSpec indicates a recurrence config with missing or
	// malformed pattern-specific anchors.
	ErrInvalidRecurrenceSpec = errors.New("invalid recurrence spec")

	// ErrInvalidRecurrencePattern indicates a pattern outside {daily, weekly, monthly}.
	ErrInvalidRecurrencePattern = errors.New("invalid recurrence pattern")
)

// FieldError is a validation error annotated with the offending field name.
// It wraps a sentinel error so callers can both errors.Is on the kind and
// surface the field to the client edge.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// NewFieldError annotates err with the field it applies to.
func NewFieldError(field string, err error) error {
	return FieldError{Field: field, Err: err}
}

// IsValidation reports whether err is a field-level validation error.
// Validation errors must never trigger retries.
func IsValidation(err error) bool {
	var fe FieldError
	return errors.As(err, &fe)
}
