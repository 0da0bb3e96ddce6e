// Package recurring computes successor occurrence dates for recurring tasks.
// It is pure calendar arithmetic; persistence and event consumption live in
// the application layer.
package recurring

import (
	"fmt"
	"sort"
	"time"

	"github.com/taskfabric/taskfabric/internal/domain"
)

// Spec is the pattern input to the calculator, decoupled from storage so
// event consumers can build it straight from a payload.
type Spec struct {
	Pattern    domain.RecurrencePattern
	Interval   int
	DaysOfWeek []int // 0=Monday .. 6=Sunday, weekly only
	DayOfMonth *int  // 1..31, monthly only
}

// NextOccurrence returns the occurrence after current, preserving
// time-of-day. All arithmetic happens in UTC.
//
//   - daily: current + interval days.
//   - weekly: the next listed weekday strictly after current's; when the week
//     wraps, (interval-1) extra weeks are added.
//   - monthly: month advances by interval, day clamps to the target month's
//     length (31 Jan -> 28 Feb, back to 31 Mar for day_of_month=31).
func NextOccurrence(current time.Time, spec Spec) (time.Time, error) {
	if spec.Interval < 1 {
		return time.Time{}, fmt.Errorf("%w: interval must be >= 1, got %d", domain.ErrInvalidRecurrenceSpec, spec.Interval)
	}

	current = current.UTC()

	switch spec.Pattern {
	case domain.RecurrenceDaily:
		return current.AddDate(0, 0, spec.Interval), nil
	case domain.RecurrenceWeekly:
		return nextWeekly(current, spec.Interval, spec.DaysOfWeek)
	case domain.RecurrenceMonthly:
		return nextMonthly(current, spec.Interval, spec.DayOfMonth)
	default:
		return time.Time{}, fmt.Errorf("%w: %s", domain.ErrInvalidRecurrencePattern, spec.Pattern)
	}
}

// mondayIndex maps Go's Sunday-based weekday to the Monday=0 numbering used
// across the system.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func nextWeekly(current time.Time, interval int, daysOfWeek []int) (time.Time, error) {
	if len(daysOfWeek) == 0 {
		return time.Time{}, fmt.Errorf("%w: weekly pattern requires days_of_week", domain.ErrInvalidRecurrenceSpec)
	}

	days := make([]int, len(daysOfWeek))
	copy(days, daysOfWeek)
	sort.Ints(days)

	for _, d := range days {
		if d < domain.WeekdayMonday || d > domain.WeekdaySunday {
			return time.Time{}, fmt.Errorf("%w: day_of_week %d out of range [0,6]", domain.ErrInvalidRecurrenceSpec, d)
		}
	}

	today := mondayIndex(current.Weekday())

	// Next listed day later in the current week.
	for _, d := range days {
		if d > today {
			return current.AddDate(0, 0, d-today), nil
		}
	}

	// Wrap to the first listed day, skipping (interval-1) full weeks.
	delta := 7 - today + days[0] + (interval-1)*7
	return current.AddDate(0, 0, delta), nil
}

func nextMonthly(current time.Time, interval int, dayOfMonth *int) (time.Time, error) {
	if dayOfMonth == nil {
		return time.Time{}, fmt.Errorf("%w: monthly pattern requires day_of_month", domain.ErrInvalidRecurrenceSpec)
	}
	if *dayOfMonth < 1 || *dayOfMonth > 31 {
		return time.Time{}, fmt.Errorf("%w: day_of_month %d out of range [1,31]", domain.ErrInvalidRecurrenceSpec, *dayOfMonth)
	}

	year, month, _ := current.Date()
	hour, min, sec := current.Clock()

	// First of the target month; time.Date normalizes month overflow.
	first := time.Date(year, month+time.Month(interval), 1, hour, min, sec, current.Nanosecond(), time.UTC)

	day := *dayOfMonth
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}

	return first.AddDate(0, 0, day-1), nil
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
