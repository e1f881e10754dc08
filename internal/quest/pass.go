package quest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/recurrence"
	"github.com/dukerupert/questtracker/internal/store"
)

// catchUpDays bounds how far back missed cycles are recorded for a child
// who has not been processed for a while.
const catchUpDays = 7

// Summary names one task outcome of a pass.
type Summary struct {
	TaskID int64  `json:"task_id"`
	Title  string `json:"title"`
	Period string `json:"period"`
}

// PassResult reports what a daily pass changed for one child.
type PassResult struct {
	ChildID           int64     `json:"child_id"`
	Ran               bool      `json:"ran"`
	Date              string    `json:"date"`
	Missed            []Summary `json:"missed"`
	CompletedAndReset []Summary `json:"completed_and_reset"`
	Declined          []Summary `json:"declined"`
	PointsGained      int       `json:"points_gained"`
	PointsReduced     int       `json:"points_reduced"`
	XPDelta           int       `json:"xp_delta"`
	LevelsGained      int       `json:"levels_gained"`
	GemsGained        int       `json:"gems_gained"`
	Updated           int       `json:"updated"`
}

// Changed reports whether the pass produced anything worth showing the child.
func (r *PassResult) Changed() bool {
	return len(r.Missed)+len(r.CompletedAndReset)+len(r.Declined) > 0
}

type passItem struct {
	task   model.ChildTask
	period time.Time
}

// passPlan is the set of effects a pass intends to apply. Effects that
// write history are applied only if the history row is new.
type passPlan struct {
	missed     []passItem
	declined   []passItem
	completed  []passItem // non-repeating tasks claimed since the last pass
	resets     []passItem
	markMissed []model.ChildTask
}

// genuineCompletion returns the calendar date of the child's last valid
// completion, or nil.
func genuineCompletion(ct model.ChildTask, loc *time.Location) *time.Time {
	if ct.CompletedAt == nil {
		return nil
	}
	switch ct.Status {
	case model.StatusCompleted, model.StatusAwaitingApproval, model.StatusWaitingForReset:
		d := recurrence.DateOf(ct.CompletedAt.In(loc))
		return &d
	}
	return nil
}

func eligibleForReset(status model.TaskStatus) bool {
	switch status {
	case model.StatusWaitingForReset, model.StatusPending, model.StatusDeclined, model.StatusMissed:
		return true
	}
	return false
}

// missedDays returns the periods in which s was due but not completed.
// Days before notBefore are never missed.
func missedDays(s recurrence.Schedule, completedOn *time.Time, today, windowStart, notBefore time.Time) []time.Time {
	done := func(d time.Time) bool {
		return completedOn != nil && !completedOn.Before(d)
	}
	if s.End != nil && today.After(*s.End) {
		if s.End.Before(notBefore) || done(*s.End) {
			return nil
		}
		return []time.Time{*s.End}
	}
	if !s.IsRepeating() {
		return nil
	}

	var out []time.Time
	yesterday := recurrence.AddDays(today, -1)
	for d := windowStart; !d.After(yesterday); d = recurrence.AddDays(d, 1) {
		if d.Before(notBefore) || !s.IsDueOn(d) || done(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// planPass decides the effects of a pass on today for the merged tasks.
func planPass(tasks []model.ChildTask, today, windowStart time.Time, loc *time.Location, logger *slog.Logger) passPlan {
	var p passPlan
	for _, ct := range tasks {
		if ct.Status == model.StatusAwaitingApproval || ct.Status == model.StatusCompleted {
			continue
		}
		sched, err := recurrence.FromTask(ct.Task)
		if err != nil {
			logger.Warn("skipping task with bad schedule", "task_id", ct.ID, "child_id", ct.ChildID, "error", err)
			continue
		}
		completedOn := genuineCompletion(ct, loc)

		if ct.Status == model.StatusWaitingForReset && !sched.IsRepeating() {
			period := today
			if completedOn != nil {
				period = *completedOn
			}
			p.completed = append(p.completed, passItem{task: ct, period: period})
			continue
		}

		var missed []time.Time
		if ct.Status == model.StatusDeclined {
			period := today
			if ct.CompletedAt != nil {
				period = recurrence.DateOf(ct.CompletedAt.In(loc))
			}
			p.declined = append(p.declined, passItem{task: ct, period: period})
		} else {
			notBefore := recurrence.DateOf(ct.CreatedAt.In(loc))
			missed = missedDays(sched, completedOn, today, windowStart, notBefore)
			for _, d := range missed {
				p.missed = append(p.missed, passItem{task: ct, period: d})
			}
		}

		if sched.IsRepeating() && sched.IsDueOn(today) && eligibleForReset(ct.Status) &&
			(completedOn == nil || completedOn.Before(today)) {
			if ct.Status != model.StatusPending || ct.CompletedAt != nil || ct.ProofKey != "" {
				p.resets = append(p.resets, passItem{task: ct, period: today})
			}
			continue
		}
		if len(missed) > 0 && ct.Status != model.StatusMissed {
			p.markMissed = append(p.markMissed, ct)
		}
	}
	return p
}

func historyEntry(it passItem, status model.TaskStatus) model.HistoryEntry {
	return model.HistoryEntry{
		TaskID:  it.task.ID,
		ChildID: it.task.ChildID,
		Title:   it.task.Title,
		Status:  status,
		XP:      it.task.RewardXP,
		Coins:   it.task.RewardCoins,
		Source:  model.HistorySourcePass,
		Period:  recurrence.FormatDate(it.period),
	}
}

func summarize(it passItem) Summary {
	return Summary{TaskID: it.task.ID, Title: it.task.Title, Period: recurrence.FormatDate(it.period)}
}

// RunPass runs the daily pass for the child if it has not run today in the
// family's time zone. Concurrent calls for the same child share one run.
func (s *Service) RunPass(ctx context.Context, childID int64) (*PassResult, error) {
	child, err := s.child(s.users, childID)
	if err != nil {
		return nil, err
	}
	loc, err := s.location(child.FamilyID)
	if err != nil {
		return nil, err
	}
	return s.RunPassOn(ctx, childID, recurrence.Today(s.now(), loc))
}

// RunPassOn runs the daily pass treating today as the given calendar date.
func (s *Service) RunPassOn(ctx context.Context, childID int64, today time.Time) (*PassResult, error) {
	key := strconv.FormatInt(childID, 10) + "/" + recurrence.FormatDate(today)
	v, err, _ := s.passes.Do(key, func() (any, error) {
		return s.runPass(ctx, childID, today)
	})
	if err != nil {
		passRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	return v.(*PassResult), nil
}

func (s *Service) runPass(ctx context.Context, childID int64, today time.Time) (*PassResult, error) {
	date := recurrence.FormatDate(today)
	result := &PassResult{
		ChildID:           childID,
		Date:              date,
		Missed:            []Summary{},
		CompletedAndReset: []Summary{},
		Declined:          []Summary{},
	}

	child, err := s.child(s.users, childID)
	if err != nil {
		return nil, err
	}
	if last, err := recurrence.ParseDate(child.LastDailyReset); err == nil && !today.After(last) {
		passRunsTotal.WithLabelValues("skipped").Inc()
		return result, nil
	}
	loc, err := s.location(child.FamilyID)
	if err != nil {
		return nil, err
	}

	err = store.InTx(s.db, func(tx *store.Tx) error {
		claimed, err := tx.PassRuns.Claim(childID, date, uuid.NewString())
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}
		result.Ran = true

		// Re-read inside the transaction so progress reflects committed claims.
		child, err := s.child(tx.Users, childID)
		if err != nil {
			return err
		}
		tasks, err := childTasks(tx.Tasks, tx.Completions, child)
		if err != nil {
			return err
		}

		windowStart := recurrence.AddDays(today, -1)
		if last, err := recurrence.ParseDate(child.LastDailyReset); err == nil && last.Before(today) {
			windowStart = last
		}
		if floor := recurrence.AddDays(today, -catchUpDays); windowStart.Before(floor) {
			windowStart = floor
		}

		plan := planPass(tasks, today, windowStart, loc, s.logger)
		return s.applyPass(tx, child, plan, result)
	})
	if err != nil {
		return nil, fmt.Errorf("run pass for child %d: %w", childID, err)
	}

	if !result.Ran {
		passRunsTotal.WithLabelValues("skipped").Inc()
		return result, nil
	}
	passRunsTotal.WithLabelValues("ran").Inc()
	passOutcomesTotal.WithLabelValues("missed").Add(float64(len(result.Missed)))
	passOutcomesTotal.WithLabelValues("completed").Add(float64(len(result.CompletedAndReset)))
	passOutcomesTotal.WithLabelValues("declined").Add(float64(len(result.Declined)))

	s.logger.Info("daily pass",
		"child_id", childID,
		"date", date,
		"missed", len(result.Missed),
		"completed", len(result.CompletedAndReset),
		"declined", len(result.Declined),
		"updated", result.Updated,
		"points_gained", result.PointsGained,
		"points_reduced", result.PointsReduced,
	)
	if result.Changed() {
		s.notify(ctx, childID, model.Notification{
			Title:    "Daily Recap",
			Message:  recapMessage(result),
			Category: model.CategorySystem,
			Data:     model.NotificationData{Content: date, Action: "daily_recap"},
		})
	}
	return result, nil
}

func (s *Service) applyPass(tx *store.Tx, child *model.User, plan passPlan, result *PassResult) error {
	for _, it := range plan.missed {
		inserted, err := tx.History.Record(historyEntry(it, model.StatusMissed))
		if err != nil {
			return err
		}
		if inserted {
			result.Missed = append(result.Missed, summarize(it))
		}
	}
	for _, it := range plan.declined {
		inserted, err := tx.History.Record(historyEntry(it, model.StatusDeclined))
		if err != nil {
			return err
		}
		if inserted {
			result.Declined = append(result.Declined, summarize(it))
		}
	}
	for _, it := range plan.completed {
		inserted, err := tx.History.Record(historyEntry(it, model.StatusCompleted))
		if err != nil {
			return err
		}
		if inserted {
			result.CompletedAndReset = append(result.CompletedAndReset, summarize(it))
		}
	}

	for _, it := range plan.resets {
		if it.task.Status == model.StatusWaitingForReset {
			result.CompletedAndReset = append(result.CompletedAndReset, summarize(it))
		}
		err := tx.Completions.Upsert(&model.Completion{
			TaskID:  it.task.ID,
			ChildID: it.task.ChildID,
			Status:  model.StatusPending,
		})
		if err != nil {
			return err
		}
		result.Updated++
	}
	for _, ct := range plan.markMissed {
		err := tx.Completions.Upsert(&model.Completion{
			TaskID:       ct.ID,
			ChildID:      ct.ChildID,
			Status:       model.StatusMissed,
			ProofKey:     ct.ProofKey,
			CompletedAt:  ct.CompletedAt,
			NannyApprove: ct.NannyApprove,
		})
		if err != nil {
			return err
		}
		result.Updated++
	}

	before := child.Progress()
	after, levels := adjust(before, len(result.CompletedAndReset), len(result.Missed), len(result.Declined))
	result.PointsGained = passPoints * len(result.CompletedAndReset)
	result.PointsReduced = before.Points + result.PointsGained - after.Points
	result.XPDelta = (after.Level-before.Level)*xpPerLevel + after.XP - before.XP
	result.LevelsGained = levels
	result.GemsGained = after.Gems - before.Gems
	if after != before {
		if err := tx.Users.SaveProgress(child.ID, after); err != nil {
			return err
		}
	}

	if err := tx.Users.SetLastDailyReset(child.ID, result.Date); err != nil {
		return err
	}
	return tx.PassRuns.Finish(model.PassRun{
		ChildID:     child.ID,
		RunDate:     result.Date,
		Missed:      len(result.Missed),
		Completed:   len(result.CompletedAndReset),
		Declined:    len(result.Declined),
		Reset:       len(plan.resets),
		PointsDelta: after.Points - before.Points,
		XPDelta:     result.XPDelta,
	})
}

func recapMessage(r *PassResult) string {
	var parts []string
	if n := len(r.CompletedAndReset); n > 0 {
		parts = append(parts, fmt.Sprintf("%d completed", n))
	}
	if n := len(r.Missed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d missed", n))
	}
	if n := len(r.Declined); n > 0 {
		parts = append(parts, fmt.Sprintf("%d declined", n))
	}
	msg := strings.Join(parts, ", ")
	if r.PointsGained > 0 {
		msg += fmt.Sprintf(". +%d points", r.PointsGained)
	}
	if r.PointsReduced > 0 {
		msg += fmt.Sprintf(". -%d points", r.PointsReduced)
	}
	return msg
}

// RunFamilyPass runs the pass for every child of the family. Errors for one
// child are logged and do not stop the others.
func (s *Service) RunFamilyPass(ctx context.Context, familyID int64) ([]*PassResult, error) {
	children, err := s.users.ListChildren(familyID)
	if err != nil {
		return nil, err
	}
	var results []*PassResult
	for _, c := range children {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r, err := s.RunPass(ctx, c.ID)
		if err != nil {
			s.logger.Error("daily pass failed", "child_id", c.ID, "error", err)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}
