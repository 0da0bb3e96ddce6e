package domain

import (
	"fmt"
	"time"
)

// Weekdays are numbered 0=Monday .. 6=Sunday throughout the system.
const (
	WeekdayMonday = iota
	WeekdaySunday = 6
)

// Recurrence is the per-task recurrence config. It is created together with
// its task and consumed by the recurrence engine when the task completes.
type Recurrence struct {
	ID     string
	TaskID *string // Set null when the owning task is deleted

	Pattern  RecurrencePattern
	Interval int // Every N days/weeks/months; >= 1

	// DaysOfWeek holds the weekly anchors (0=Monday .. 6=Sunday), sorted
	// ascending. Empty for daily and monthly patterns.
	DaysOfWeek []int

	// DayOfMonth holds the monthly anchor (1..31). Nil for daily and weekly.
	DayOfMonth *int

	// NextFireAt is advisory bookkeeping for the upcoming occurrence. The
	// engine computes successors from the completed task's due anchor, not
	// from this field.
	NextFireAt *time.Time

	// Active is terminal once false: a deactivated config never produces
	// successors again.
	Active bool

	CreatedAt time.Time
}

// Validate checks the pattern-specific anchors.
func (r *Recurrence) Validate() error {
	if r.Interval < 1 {
		return fmt.Errorf("%w: interval must be >= 1, got %d", ErrInvalidRecurrenceSpec, r.Interval)
	}

	switch r.Pattern {
	case RecurrenceDaily:
		return nil
	case RecurrenceWeekly:
		if len(r.DaysOfWeek) == 0 {
			return fmt.Errorf("%w: weekly pattern requires days_of_week", ErrInvalidRecurrenceSpec)
		}
		for _, d := range r.DaysOfWeek {
			if d < WeekdayMonday || d > WeekdaySunday {
				return fmt.Errorf("%w: day_of_week %d out of range [0,6]", ErrInvalidRecurrenceSpec, d)
			}
		}
		return nil
	case RecurrenceMonthly:
		if r.DayOfMonth == nil {
			return fmt.Errorf("%w: monthly pattern requires day_of_month", ErrInvalidRecurrenceSpec)
		}
		if *r.DayOfMonth < 1 || *r.DayOfMonth > 31 {
			return fmt.Errorf("%w: day_of_month %d out of range [1,31]", ErrInvalidRecurrenceSpec, *r.DayOfMonth)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidRecurrencePattern, r.Pattern)
	}
}
