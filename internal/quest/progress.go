package quest

import (
	"context"

	"github.com/dukerupert/questtracker/internal/model"
)

const (
	passPoints   = 5
	xpPerLevel   = 100
	gemsPerLevel = 4
)

// levelUp converts whole multiples of xpPerLevel into levels and gems.
func levelUp(p model.Progress) (model.Progress, int) {
	levels := 0
	for p.XP >= xpPerLevel {
		p.XP -= xpPerLevel
		p.Level++
		p.Gems += gemsPerLevel
		levels++
	}
	return p, levels
}

// adjust applies the daily pass credit and penalties to p. Points and XP
// never drop below zero.
func adjust(p model.Progress, completed, missed, declined int) (model.Progress, int) {
	p.Points += passPoints * (completed - missed - declined)
	if p.Points < 0 {
		p.Points = 0
	}
	p.XP += passPoints * (completed - missed)
	if p.XP < 0 {
		p.XP = 0
	}
	return levelUp(p)
}

// award adds a claimed task's rewards.
func award(p model.Progress, xp, coins int) (model.Progress, int) {
	p.XP += xp
	p.Points += coins
	return levelUp(p)
}

// StatusCounts tallies a child's tasks by state.
type StatusCounts struct {
	Completed        int `json:"completed"`
	AwaitingApproval int `json:"awaiting_approval"`
	Declined         int `json:"declined"`
	Missed           int `json:"missed"`
	Ongoing          int `json:"ongoing"`
	Total            int `json:"total"`
}

func (c *StatusCounts) add(o StatusCounts) {
	c.Completed += o.Completed
	c.AwaitingApproval += o.AwaitingApproval
	c.Declined += o.Declined
	c.Missed += o.Missed
	c.Ongoing += o.Ongoing
	c.Total += o.Total
}

// Count tallies tasks. Completed includes tasks already claimed and
// waiting for their next cycle.
func Count(tasks []model.ChildTask) StatusCounts {
	var c StatusCounts
	for _, t := range tasks {
		c.Total++
		switch t.Status {
		case model.StatusCompleted, model.StatusWaitingForReset:
			c.Completed++
		case model.StatusAwaitingApproval:
			c.AwaitingApproval++
		case model.StatusDeclined:
			c.Declined++
		case model.StatusMissed:
			c.Missed++
		default:
			c.Ongoing++
		}
	}
	return c
}

type ChildProgress struct {
	ChildID int64        `json:"child_id"`
	Name    string       `json:"name"`
	Avatar  string       `json:"avatar"`
	Level   int          `json:"level"`
	XP      int          `json:"xp"`
	Points  int          `json:"points"`
	Counts  StatusCounts `json:"counts"`
}

type FamilyProgress struct {
	Children []ChildProgress `json:"children"`
	Overall  StatusCounts    `json:"overall"`
}

// FamilyProgress reports per-child task counts and the family totals.
func (s *Service) FamilyProgress(ctx context.Context, familyID int64) (*FamilyProgress, error) {
	children, err := s.users.ListChildren(familyID)
	if err != nil {
		return nil, err
	}
	out := &FamilyProgress{Children: []ChildProgress{}}
	for i := range children {
		child := &children[i]
		tasks, err := childTasks(s.tasks, s.completions, child)
		if err != nil {
			return nil, err
		}
		counts := Count(tasks)
		out.Overall.add(counts)
		out.Children = append(out.Children, ChildProgress{
			ChildID: child.ID,
			Name:    child.Name,
			Avatar:  child.Avatar,
			Level:   child.Level,
			XP:      child.XP,
			Points:  child.Points,
			Counts:  counts,
		})
	}
	return out, nil
}
