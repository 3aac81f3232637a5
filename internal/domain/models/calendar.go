package models

import (
	"strings"
	"time"
)

// DateLayout is the calendar day format accepted and reported by the API.
const DateLayout = "2006-01-02"

// DayStart returns midnight of the day t falls on in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayBounds returns the half-open window [start, end) covering the day of t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := DayStart(t, loc)
	return start, start.AddDate(0, 0, 1)
}

// ParseDay parses a YYYY-MM-DD day in loc. An RFC 3339 timestamp is also
// accepted and names the calendar day written in it.
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, Validationf("date is required")
	}
	if day, err := time.ParseInLocation(DateLayout, value, loc); err == nil {
		return day, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, Validationf("invalid date %q, expected %s", value, DateLayout)
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc), nil
}
