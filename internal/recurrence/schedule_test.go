package recurrence

import (
	"testing"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

func date(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func TestDaysAndWeeksBetween(t *testing.T) {
	if got := DaysBetween(date("2026-03-01"), date("2026-03-31")); got != 30 {
		t.Errorf("DaysBetween = %d, want 30", got)
	}
	if got := DaysBetween(date("2026-03-10"), date("2026-03-07")); got != -3 {
		t.Errorf("DaysBetween backwards = %d, want -3", got)
	}
	if got := WeeksBetween(date("2026-03-01"), date("2026-03-14")); got != 1 {
		t.Errorf("WeeksBetween = %d, want 1", got)
	}
	if got := WeeksBetween(date("2026-03-10"), date("2026-03-07")); got != 0 {
		t.Errorf("WeeksBetween short backwards = %d, want 0", got)
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		day  string
		want string
	}{
		{"2026-10-12", "2026-10-12"}, // Monday
		{"2026-10-15", "2026-10-12"}, // Thursday
		{"2026-10-18", "2026-10-12"}, // Sunday
	}
	for _, tt := range tests {
		if got := FormatDate(WeekStart(date(tt.day))); got != tt.want {
			t.Errorf("WeekStart(%s) = %s, want %s", tt.day, got, tt.want)
		}
	}
}

func TestToday(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2026, 10, 18, 2, 30, 0, 0, time.UTC) // 22:30 on the 17th in New York
	if got := FormatDate(Today(now, loc)); got != "2026-10-17" {
		t.Errorf("Today = %s, want 2026-10-17", got)
	}
	if got := FormatDate(Today(now, nil)); got != "2026-10-18" {
		t.Errorf("Today UTC = %s, want 2026-10-18", got)
	}
}

func TestIsActive(t *testing.T) {
	s := Schedule{Start: date("2026-10-10"), End: datePtr("2026-10-20")}
	tests := []struct {
		day  string
		want bool
	}{
		{"2026-10-09", false},
		{"2026-10-10", true},
		{"2026-10-20", true},
		{"2026-10-21", false},
	}
	for _, tt := range tests {
		if got := s.IsActive(date(tt.day)); got != tt.want {
			t.Errorf("IsActive(%s) = %v, want %v", tt.day, got, tt.want)
		}
	}
}

func TestIsDailyDue(t *testing.T) {
	everyOther := Schedule{
		Repeat: &model.RepeatRule{Frequency: model.FrequencyDaily, Interval: 2},
		Start:  date("2026-10-01"),
	}
	tests := []struct {
		day  string
		want bool
	}{
		{"2026-09-30", false},
		{"2026-10-01", true},
		{"2026-10-02", false},
		{"2026-10-03", true},
		{"2026-10-31", true},
	}
	for _, tt := range tests {
		if got := everyOther.IsDailyDue(date(tt.day)); got != tt.want {
			t.Errorf("IsDailyDue(%s) = %v, want %v", tt.day, got, tt.want)
		}
	}

	zeroInterval := Schedule{Repeat: &model.RepeatRule{Frequency: model.FrequencyDaily}, Start: date("2026-10-01")}
	if !zeroInterval.IsDailyDue(date("2026-10-05")) {
		t.Error("interval 0 should behave as every day")
	}

	weekly := Schedule{Repeat: &model.RepeatRule{Frequency: model.FrequencyWeekly}, Start: date("2026-10-01")}
	if weekly.IsDailyDue(date("2026-10-01")) {
		t.Error("weekly task must not be daily due")
	}
}

func TestIsWeeklyDueOn(t *testing.T) {
	// 2026-10-05 is a Monday.
	monWed := Schedule{
		Repeat: &model.RepeatRule{Frequency: model.FrequencyWeekly, Interval: 1, WeeklyDays: []model.Weekday{model.Monday, model.Wednesday}},
		Start:  date("2026-10-05"),
	}
	tests := []struct {
		day  string
		want bool
	}{
		{"2026-10-05", true},
		{"2026-10-06", false},
		{"2026-10-07", true},
		{"2026-10-12", true},
		{"2026-10-16", false},
	}
	for _, tt := range tests {
		if got := monWed.IsWeeklyDueOn(date(tt.day)); got != tt.want {
			t.Errorf("IsWeeklyDueOn(%s) = %v, want %v", tt.day, got, tt.want)
		}
	}
}

func TestIsWeeklyDueOnNoDaysUsesStartWeekday(t *testing.T) {
	s := Schedule{
		Repeat: &model.RepeatRule{Frequency: model.FrequencyWeekly, Interval: 1},
		Start:  date("2026-10-07"), // Wednesday
	}
	if !s.IsWeeklyDueOn(date("2026-10-14")) {
		t.Error("expected due on the start weekday one week later")
	}
	if s.IsWeeklyDueOn(date("2026-10-15")) {
		t.Error("expected not due on a different weekday")
	}
}

func TestIsWeeklyDueBiweekly(t *testing.T) {
	s := Schedule{
		Repeat: &model.RepeatRule{Frequency: model.FrequencyWeekly, Interval: 2, WeeklyDays: []model.Weekday{model.Monday}},
		Start:  date("2026-10-05"),
	}
	if !s.IsWeeklyDueOn(date("2026-10-05")) {
		t.Error("expected due in the first week")
	}
	if s.IsWeeklyDueOn(date("2026-10-12")) {
		t.Error("expected not due in the off week")
	}
	if !s.IsWeeklyDueOn(date("2026-10-19")) {
		t.Error("expected due two weeks later")
	}
}

func TestIsWeeklyDueThisWeek(t *testing.T) {
	friday := Schedule{
		Repeat: &model.RepeatRule{Frequency: model.FrequencyWeekly, Interval: 1, WeeklyDays: []model.Weekday{model.Friday}},
		Start:  date("2026-10-05"),
	}
	if !friday.IsWeeklyDueThisWeek(date("2026-10-13")) {
		t.Error("Tuesday should see Friday still due this week")
	}
	if friday.IsWeeklyDueThisWeek(date("2026-10-17")) {
		t.Error("Saturday should not see Friday due this week")
	}
}

func TestIsOneTimeDue(t *testing.T) {
	s := Schedule{Start: date("2026-10-01"), End: datePtr("2026-10-10")}
	if !s.IsOneTimeDue(date("2026-10-10")) {
		t.Error("expected due on end date")
	}
	if s.IsOneTimeDue(date("2026-10-09")) {
		t.Error("expected not due before end date")
	}
	open := Schedule{Start: date("2026-10-01")}
	if open.IsOneTimeDue(date("2026-10-01")) {
		t.Error("task without end date is never one-time due")
	}
}

func TestIsUpcoming(t *testing.T) {
	today := date("2026-10-14") // Wednesday
	tests := []struct {
		name string
		s    Schedule
		want bool
	}{
		{
			name: "starts in future",
			s:    Schedule{Start: date("2026-10-20")},
			want: true,
		},
		{
			name: "daily due today",
			s:    Schedule{Repeat: &model.RepeatRule{Frequency: model.FrequencyDaily, Interval: 1}, Start: date("2026-10-01")},
			want: false,
		},
		{
			name: "daily due tomorrow",
			s:    Schedule{Repeat: &model.RepeatRule{Frequency: model.FrequencyDaily, Interval: 2}, Start: date("2026-10-01")},
			want: true,
		},
		{
			name: "daily next occurrence past end",
			s: Schedule{
				Repeat: &model.RepeatRule{Frequency: model.FrequencyDaily, Interval: 10},
				Start:  date("2026-10-01"),
				End:    datePtr("2026-10-15"),
			},
			want: false,
		},
		{
			name: "weekly later this week",
			s: Schedule{
				Repeat: &model.RepeatRule{Frequency: model.FrequencyWeekly, Interval: 1, WeeklyDays: []model.Weekday{model.Friday}},
				Start:  date("2026-10-01"),
			},
			want: true,
		},
		{
			name: "weekly next week",
			s: Schedule{
				Repeat: &model.RepeatRule{Frequency: model.FrequencyWeekly, Interval: 1, WeeklyDays: []model.Weekday{model.Monday}},
				Start:  date("2026-10-01"),
			},
			want: true,
		},
		{
			name: "one-time ending later",
			s:    Schedule{Start: date("2026-10-01"), End: datePtr("2026-10-20")},
			want: true,
		},
		{
			name: "one-time ending today",
			s:    Schedule{Start: date("2026-10-01"), End: datePtr("2026-10-14")},
			want: false,
		},
		{
			name: "expired",
			s:    Schedule{Start: date("2026-10-01"), End: datePtr("2026-10-10")},
			want: false,
		},
	}
	for _, tt := range tests {
		if got := tt.s.IsUpcoming(today); got != tt.want {
			t.Errorf("%s: IsUpcoming = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNextDue(t *testing.T) {
	s := Schedule{
		Repeat: &model.RepeatRule{Frequency: model.FrequencyWeekly, Interval: 1, WeeklyDays: []model.Weekday{model.Monday}},
		Start:  date("2026-10-05"),
	}
	next, ok := s.NextDue(date("2026-10-05"))
	if !ok {
		t.Fatal("expected a next due date")
	}
	if FormatDate(next) != "2026-10-12" {
		t.Errorf("NextDue = %s, want 2026-10-12", FormatDate(next))
	}

	oneTime := Schedule{Start: date("2026-10-05")}
	if _, ok := oneTime.NextDue(date("2026-10-05")); ok {
		t.Error("non-repeating task has no next due date")
	}
}

func TestFromTask(t *testing.T) {
	s, err := FromTask(model.Task{ID: 1, StartDate: "2026-10-01", EndDate: "2026-10-31"})
	if err != nil {
		t.Fatalf("FromTask: %v", err)
	}
	if s.End == nil || FormatDate(*s.End) != "2026-10-31" {
		t.Errorf("End = %v, want 2026-10-31", s.End)
	}
	if _, err := FromTask(model.Task{ID: 2, StartDate: "10/01/2026"}); err == nil {
		t.Error("expected error for malformed start date")
	}
}
