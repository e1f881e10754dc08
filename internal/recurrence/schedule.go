// Package recurrence decides on which calendar days a task is due.
package recurrence

import (
	"fmt"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

// Schedule is the parsed timing of a task template.
type Schedule struct {
	Repeat *model.RepeatRule
	Start  time.Time
	End    *time.Time
}

// FromTask parses the task's date fields.
func FromTask(t model.Task) (Schedule, error) {
	start, err := ParseDate(t.StartDate)
	if err != nil {
		return Schedule{}, fmt.Errorf("task %d start: %w", t.ID, err)
	}
	s := Schedule{Repeat: t.Repeat, Start: start}
	if t.EndDate != "" {
		end, err := ParseDate(t.EndDate)
		if err != nil {
			return Schedule{}, fmt.Errorf("task %d end: %w", t.ID, err)
		}
		s.End = &end
	}
	return s, nil
}

func (s Schedule) interval() int {
	if s.Repeat == nil || s.Repeat.Interval < 1 {
		return 1
	}
	return s.Repeat.Interval
}

func (s Schedule) IsDaily() bool  { return s.Repeat != nil && s.Repeat.Frequency == model.FrequencyDaily }
func (s Schedule) IsWeekly() bool { return s.Repeat != nil && s.Repeat.Frequency == model.FrequencyWeekly }

// IsRepeating reports whether the schedule has a daily or weekly rule.
func (s Schedule) IsRepeating() bool { return s.IsDaily() || s.IsWeekly() }

// IsActive reports whether day falls inside [Start, End].
func (s Schedule) IsActive(day time.Time) bool {
	if day.Before(s.Start) {
		return false
	}
	if s.End != nil && day.After(*s.End) {
		return false
	}
	return true
}

// IsDailyDue reports whether a daily task falls due on day.
func (s Schedule) IsDailyDue(day time.Time) bool {
	if !s.IsDaily() || !s.IsActive(day) {
		return false
	}
	days := DaysBetween(s.Start, day)
	return days >= 0 && days%s.interval() == 0
}

func (s Schedule) weekdays() []time.Weekday {
	var out []time.Weekday
	for _, w := range s.Repeat.WeeklyDays {
		if d, ok := w.Std(); ok {
			out = append(out, d)
		}
	}
	return out
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}

// IsWeeklyDueThisWeek reports whether a weekly task is in an active interval
// week and still has a due weekday on or after day within day's Monday-Sunday
// week.
func (s Schedule) IsWeeklyDueThisWeek(day time.Time) bool {
	if !s.IsWeekly() || !s.IsActive(day) {
		return false
	}
	interval := s.interval()
	weeks := WeeksBetween(s.Start, day)
	if weeks < 0 || weeks%interval != 0 {
		return false
	}

	days := s.weekdays()
	if len(days) == 0 {
		return true
	}

	// First listed weekday on or after the start date.
	first := s.Start
	for !containsWeekday(days, first.Weekday()) {
		first = AddDays(first, 1)
	}
	fromFirst := WeeksBetween(first, day)
	if fromFirst < 0 || fromFirst%interval != 0 {
		return false
	}

	weekStart := WeekStart(day)
	for i := 0; i < 7; i++ {
		d := AddDays(weekStart, i)
		if containsWeekday(days, d.Weekday()) && !d.Before(day) && !d.Before(s.Start) {
			return true
		}
	}
	return false
}

// IsWeeklyDueOn reports whether a weekly task falls due on day itself. With no
// listed weekdays the start date's weekday is used.
func (s Schedule) IsWeeklyDueOn(day time.Time) bool {
	if !s.IsWeeklyDueThisWeek(day) {
		return false
	}
	days := s.weekdays()
	if len(days) == 0 {
		return s.Start.Weekday() == day.Weekday()
	}
	return containsWeekday(days, day.Weekday())
}

// IsDueOn reports whether a repeating task falls due on day.
func (s Schedule) IsDueOn(day time.Time) bool {
	return s.IsDailyDue(day) || s.IsWeeklyDueOn(day)
}

// IsOneTimeDue reports whether a non-repeating task's end date is day.
func (s Schedule) IsOneTimeDue(day time.Time) bool {
	if s.IsRepeating() || !s.IsActive(day) {
		return false
	}
	return s.End != nil && s.End.Equal(day)
}

// NextDue returns the first due day strictly after day, searching a year of
// daily occurrences or 53 weeks of weekly ones.
func (s Schedule) NextDue(day time.Time) (time.Time, bool) {
	switch {
	case s.IsDaily():
		d := AddDays(day, 1)
		for i := 0; i <= 365; i++ {
			if s.IsDailyDue(d) {
				return d, true
			}
			d = AddDays(d, 1)
		}
	case s.IsWeekly():
		d := AddDays(day, 1)
		for i := 0; i <= 53*7; i++ {
			if s.IsWeeklyDueOn(d) {
				return d, true
			}
			d = AddDays(d, 1)
		}
	}
	return time.Time{}, false
}

// IsUpcoming reports whether the task will become due after day.
func (s Schedule) IsUpcoming(day time.Time) bool {
	if day.Before(s.Start) {
		return true
	}
	if !s.IsActive(day) {
		return false
	}
	if s.IsDailyDue(day) || s.IsWeeklyDueOn(day) {
		return false
	}
	if s.IsWeekly() && s.IsWeeklyDueThisWeek(day) {
		return true
	}

	if !s.IsRepeating() {
		if s.End != nil && s.End.After(day) {
			return true
		}
		if s.End == nil && !s.IsOneTimeDue(day) {
			return true
		}
		return false
	}

	next, ok := s.NextDue(day)
	if !ok {
		return false
	}
	return s.End == nil || !next.After(*s.End)
}
