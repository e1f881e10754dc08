package recurrence

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for task dates and pass periods.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into midnight UTC. Calendar dates are
// kept in UTC so day arithmetic is never affected by DST.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns the calendar date of now in loc as midnight UTC.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// DateOf truncates t to its calendar date (in t's location) as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// WeeksBetween returns whole weeks from a to b, truncated toward zero.
func WeeksBetween(a, b time.Time) int {
	return DaysBetween(a, b) / 7
}

func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// WeekStart returns the Monday on or before day.
func WeekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return AddDays(day, -offset)
}

// MonthStart returns the first day of day's month.
func MonthStart(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
}
