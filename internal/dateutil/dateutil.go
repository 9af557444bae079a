// Package dateutil provides the calendar arithmetic the diary core is
// built on. Everything here is a pure function of its arguments; the
// current time is always passed in explicitly.
package dateutil

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format for calendar dates
const DateLayout = "2006-01-02"

// NormalizeDay anchors a timestamp at UTC midnight using only its
// year/month/day components. A date picked in any client timezone
// round-trips to the same calendar day no matter where the server
// runs.
func NormalizeDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a normalized day
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NormalizeDay(t), nil
}

// FormatDate renders a day as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// IsWeekend reports whether the day is a Saturday or Sunday
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsWeekday reports whether the day is Monday through Friday
func IsWeekday(t time.Time) bool {
	return !IsWeekend(t)
}

// WithinRange reports whether day lies in [start, end], inclusive at
// both midnights
func WithinRange(day, start, end time.Time) bool {
	day = NormalizeDay(day)
	return !day.Before(NormalizeDay(start)) && !day.After(NormalizeDay(end))
}

// CurrentWeekendWindow returns the Saturday/Sunday pair of the most
// recently started weekend relative to ref: on a Saturday that day and
// the next, on a Sunday the previous day and that day, on a weekday
// the previous Saturday and its Sunday.
func CurrentWeekendWindow(ref time.Time) (saturday, sunday time.Time) {
	day := NormalizeDay(ref)
	switch day.Weekday() {
	case time.Saturday:
		saturday = day
	case time.Sunday:
		saturday = day.AddDate(0, 0, -1)
	default:
		// Back up to the previous Saturday
		offset := int(day.Weekday()) + 1
		saturday = day.AddDate(0, 0, -offset)
	}
	return saturday, saturday.AddDate(0, 0, 1)
}

// WeekendWindowOf returns the Saturday/Sunday pair containing the
// given weekend day. The day must be a Saturday or Sunday.
func WeekendWindowOf(day time.Time) (saturday, sunday time.Time) {
	day = NormalizeDay(day)
	if day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, -1)
	}
	return day, day.AddDate(0, 0, 1)
}
