package domain

import (
	"fmt"
	"strings"
)

// TaskPriority is the coarse priority bucket of a task.
type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

// RecurrencePattern selects how successor due dates are computed.
type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
)

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Title is a validated title value object (1-255 characters).
type Title struct {
	value string
}

// NewTitle creates a new Title, validating the input.
func NewTitle(s string) (Title, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Title{}, ErrTitleRequired
	}

	if len(s) > 255 {
		return Title{}, ErrTitleTooLong
	}

	return Title{value: s}, nil
}

// String returns the title value.
func (t Title) String() string {
	return t.value
}

// NewDescription validates an optional description (max 2000 characters).
// A nil input stays nil.
func NewDescription(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	if len(*s) > 2000 {
		return nil, ErrDescriptionTooLong
	}
	return s, nil
}

// NewTaskPriority validates and creates a TaskPriority.
// An empty input defaults to medium.
func NewTaskPriority(s string) (TaskPriority, error) {
	if s == "" {
		return TaskPriorityMedium, nil
	}

	priority := TaskPriority(strings.ToLower(s))

	switch priority {
	case TaskPriorityHigh, TaskPriorityMedium, TaskPriorityLow:
		return priority, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidPriority, s)
	}
}

// NewRecurrencePattern validates and creates a RecurrencePattern.
func NewRecurrencePattern(s string) (RecurrencePattern, error) {
	pattern := RecurrencePattern(strings.ToLower(s))

	switch pattern {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return pattern, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidRecurrencePattern, s)
	}
}

// NewChannel validates and creates a Channel.
func NewChannel(s string) (Channel, error) {
	channel := Channel(strings.ToLower(s))

	switch channel {
	case ChannelEmail, ChannelPush:
		return channel, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidChannel, s)
	}
}

// NewChannels validates a non-empty channel set, de-duplicating while
// preserving first-seen order.
func NewChannels(in []string) ([]Channel, error) {
	if len(in) == 0 {
		return nil, ErrChannelsRequired
	}

	seen := make(map[Channel]struct{}, len(in))
	out := make([]Channel, 0, len(in))

	for _, s := range in {
		c, err := NewChannel(s)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	return out, nil
}
