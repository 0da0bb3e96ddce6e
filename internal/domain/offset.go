package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Offset is a validated remind-before offset value object.
// Only accepts the restricted ISO 8601 forms "PT<n>H", "P<n>D" and "P<n>W"
// with n >= 1. Minutes, seconds, months and composites are rejected.
type Offset struct {
	raw   string
	value time.Duration
}

// NewOffset creates an Offset from its canonical string form.
// Examples: "PT1H", "PT24H", "P2D", "P1W".
func NewOffset(s string) (Offset, error) {
	d, err := parseOffset(s)
	if err != nil {
		return Offset{}, err
	}
	return Offset{raw: s, value: d}, nil
}

// Value returns the offset as a time.Duration.
func (o Offset) Value() time.Duration {
	return o.value
}

// String returns the canonical ISO 8601 form the offset was created from.
func (o Offset) String() string {
	return o.raw
}

func parseOffset(s string) (time.Duration, error) {
	if len(s) < 3 || s[0] != 'P' {
		return 0, fmt.Errorf("%w: %q (want PT<n>H, P<n>D or P<n>W)", ErrInvalidOffsetFormat, s)
	}

	body := s[1:]
	unit := time.Duration(0)

	switch body[len(body)-1] {
	case 'H':
		if body[0] != 'T' {
			return 0, fmt.Errorf("%w: %q (hours need the T separator, e.g. PT3H)", ErrInvalidOffsetFormat, s)
		}
		body = body[1:]
		unit = time.Hour
	case 'D':
		unit = 24 * time.Hour
	case 'W':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %q (unit must be H, D or W)", ErrInvalidOffsetFormat, s)
	}

	n, err := strconv.Atoi(body[:len(body)-1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q (count must be a positive integer)", ErrInvalidOffsetFormat, s)
	}

	return time.Duration(n) * unit, nil
}
