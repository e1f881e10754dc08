package quest

import (
	"context"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/recurrence"
)

type Category string

const (
	CategoryClaimable Category = "claimable"
	CategoryToday     Category = "today"
	CategoryOneTime   Category = "one_time"
	CategoryUpcoming  Category = "upcoming"
	CategoryNone      Category = ""
)

// Categorize classifies a merged task for display on day.
func Categorize(ct model.ChildTask, day time.Time) Category {
	if ct.Status == model.StatusCompleted {
		return CategoryClaimable
	}
	sched, err := recurrence.FromTask(ct.Task)
	if err != nil {
		return CategoryNone
	}
	if !sched.IsActive(day) && ct.Status != model.StatusAwaitingApproval {
		if day.Before(sched.Start) {
			return CategoryUpcoming
		}
		return CategoryNone
	}
	if sched.IsDailyDue(day) || (sched.IsWeekly() && sched.IsWeeklyDueOn(day)) {
		return CategoryToday
	}
	if !sched.IsRepeating() && sched.End != nil && !day.Before(sched.Start) && !day.After(*sched.End) {
		return CategoryOneTime
	}
	if !sched.IsRepeating() && day.Before(sched.Start) {
		return CategoryUpcoming
	}
	if sched.IsUpcoming(day) {
		return CategoryUpcoming
	}
	return CategoryNone
}

// Board is a child's tasks grouped for display.
type Board struct {
	Date      string            `json:"date"`
	Claimable []model.ChildTask `json:"claimable"`
	Today     []model.ChildTask `json:"today"`
	OneTime   []model.ChildTask `json:"one_time"`
	Upcoming  []model.ChildTask `json:"upcoming"`
}

// Group sorts tasks into their display categories.
func Group(tasks []model.ChildTask, day time.Time) Board {
	b := Board{
		Date:      recurrence.FormatDate(day),
		Claimable: []model.ChildTask{},
		Today:     []model.ChildTask{},
		OneTime:   []model.ChildTask{},
		Upcoming:  []model.ChildTask{},
	}
	for _, t := range tasks {
		switch Categorize(t, day) {
		case CategoryClaimable:
			b.Claimable = append(b.Claimable, t)
		case CategoryToday:
			b.Today = append(b.Today, t)
		case CategoryOneTime:
			b.OneTime = append(b.OneTime, t)
		case CategoryUpcoming:
			b.Upcoming = append(b.Upcoming, t)
		}
	}
	return b
}

// Board returns the child's grouped tasks for today in the family time zone.
func (s *Service) Board(ctx context.Context, childID int64) (*Board, error) {
	child, err := s.child(s.users, childID)
	if err != nil {
		return nil, err
	}
	loc, err := s.location(child.FamilyID)
	if err != nil {
		return nil, err
	}
	tasks, err := childTasks(s.tasks, s.completions, child)
	if err != nil {
		return nil, err
	}
	b := Group(tasks, recurrence.Today(s.now(), loc))
	return &b, nil
}
