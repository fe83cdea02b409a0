package series

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a single UTC calendar day. All provider timestamps are collapsed
// onto UTC day boundaries before entering the pipeline.
type Day struct {
	t time.Time
}

// NewDay constructs a Day from calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return NewDay(u.Year(), u.Month(), u.Day())
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// MustParseDay parses a YYYY-MM-DD string and panics on failure.
// Intended for static catalogs and tests.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// AddDays returns the day n calendar days later (earlier when n is negative).
func (d Day) AddDays(n int) Day {
	return Day{t: d.t.AddDate(0, 0, n)}
}

// DaysUntil returns the number of calendar days from d to other.
func (d Day) DaysUntil(other Day) int {
	return int(other.t.Sub(d.t) / (24 * time.Hour))
}

// Before reports whether d falls strictly before other.
func (d Day) Before(other Day) bool { return d.t.Before(other.t) }

// After reports whether d falls strictly after other.
func (d Day) After(other Day) bool { return d.t.After(other.t) }

// Equal reports calendar-day equality.
func (d Day) Equal(other Day) bool { return d.t.Equal(other.t) }

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d.t.IsZero() }

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time { return d.t }

// String formats the day as YYYY-MM-DD.
func (d Day) String() string { return d.t.Format(dayLayout) }
