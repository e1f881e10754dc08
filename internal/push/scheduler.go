package push

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/quest"
	"github.com/dukerupert/questtracker/internal/recurrence"
	"github.com/dukerupert/questtracker/internal/store"
)

// Quests is the part of the quest service the scheduler drives.
type Quests interface {
	RunFamilyPass(ctx context.Context, familyID int64) ([]*quest.PassResult, error)
	Board(ctx context.Context, childID int64) (*quest.Board, error)
}

type OverdueProcessor interface {
	ProcessOverdue(ctx context.Context) (int, error)
}

type HistoryPruner interface {
	PruneHistory(ctx context.Context, retain time.Duration) (int64, error)
}

type Reminder interface {
	NotifyAs(ctx context.Context, userID int64, prefType string, n model.Notification)
}

const (
	// reminderWindow is how late a reminder may still go out after its time.
	reminderWindow  = 30 * time.Minute
	cleanupInterval = time.Hour
	sentRetention   = 7 * 24 * time.Hour
	historyRetain   = 90 * 24 * time.Hour
)

// SchedulerDeps collects the services the scheduler triggers. Any of them
// may be nil to skip that job.
type SchedulerDeps struct {
	Quests   Quests
	Quizzes  OverdueProcessor
	Location HistoryPruner
	Reminder Reminder
}

// Scheduler runs the periodic jobs: each family's daily pass once its
// local date changes, task reminders, quiz overdue penalties and cleanup.
type Scheduler struct {
	mu         sync.RWMutex
	deps       SchedulerDeps
	families   *store.FamilyStore
	tasks      *store.TaskStore
	users      *store.UserStore
	push       *store.PushStore
	sessions   *store.SessionStore
	loginCodes *store.LoginCodeStore
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time

	lastPass    map[int64]string
	lastCleanup time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(db *sql.DB, deps SchedulerDeps, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		deps:       deps,
		families:   store.NewFamilyStore(db),
		tasks:      store.NewTaskStore(db),
		users:      store.NewUserStore(db),
		push:       store.NewPushStore(db),
		sessions:   store.NewSessionStore(db),
		loginCodes: store.NewLoginCodeStore(db),
		interval:   time.Minute,
		logger:     logger.With("component", "scheduler"),
		now:        time.Now,
		lastPass:   make(map[int64]string),
	}
}

// Start runs one tick immediately, then one per interval until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
	s.logger.Info("scheduler started", "interval", s.interval)
}

func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick runs every job once.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	families, err := s.families.List()
	if err != nil {
		s.logger.Error("list families", "error", err)
		return
	}
	for _, f := range families {
		if ctx.Err() != nil {
			return
		}
		local := now.In(f.Location())
		s.dailyPass(ctx, &f, local)
		s.taskReminders(ctx, &f, local)
	}

	if s.deps.Quizzes != nil {
		if n, err := s.deps.Quizzes.ProcessOverdue(ctx); err != nil {
			s.logger.Error("process overdue quizzes", "error", err)
		} else if n > 0 {
			s.logger.Info("overdue quiz penalties applied", "count", n)
		}
	}

	if now.Sub(s.lastCleanup) >= cleanupInterval {
		s.cleanup(ctx, now)
		s.lastCleanup = now
	}
}

func (s *Scheduler) dailyPass(ctx context.Context, f *model.Family, local time.Time) {
	if s.deps.Quests == nil {
		return
	}
	date := recurrence.FormatDate(recurrence.DateOf(local))
	if s.lastPass[f.ID] == date {
		return
	}
	results, err := s.deps.Quests.RunFamilyPass(ctx, f.ID)
	if err != nil {
		s.logger.Error("family pass", "family_id", f.ID, "error", err)
		return
	}
	s.lastPass[f.ID] = date
	changed := 0
	for _, r := range results {
		if r.Changed() {
			changed++
		}
	}
	s.logger.Info("family pass done", "family_id", f.ID, "date", date, "children", len(results), "changed", changed)
}

// reminderDue reports whether a HH:MM reminder should go out at local.
func reminderDue(reminder string, local time.Time) bool {
	t, err := time.Parse("15:04", reminder)
	if err != nil {
		return false
	}
	at := time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, local.Location())
	return !local.Before(at) && local.Sub(at) < reminderWindow
}

func (s *Scheduler) taskReminders(ctx context.Context, f *model.Family, local time.Time) {
	if s.deps.Quests == nil || s.deps.Reminder == nil {
		return
	}
	withReminders, err := s.tasks.ListWithReminders(f.ID)
	if err != nil {
		s.logger.Error("list reminder tasks", "family_id", f.ID, "error", err)
		return
	}
	due := make(map[int64]bool)
	for _, t := range withReminders {
		if reminderDue(t.ReminderTime, local) {
			due[t.ID] = true
		}
	}
	if len(due) == 0 {
		return
	}

	children, err := s.users.ListChildren(f.ID)
	if err != nil {
		s.logger.Error("list children", "family_id", f.ID, "error", err)
		return
	}
	date := recurrence.FormatDate(recurrence.DateOf(local))
	for _, c := range children {
		board, err := s.deps.Quests.Board(ctx, c.ID)
		if err != nil {
			s.logger.Error("load board", "child_id", c.ID, "error", err)
			continue
		}
		for _, t := range board.Today {
			if !due[t.ID] || t.Status != model.StatusPending {
				continue
			}
			first, err := s.push.MarkSent(c.ID, model.NotifTypeTaskReminder, fmt.Sprintf("task-%d", t.ID), date)
			if err != nil {
				s.logger.Error("record reminder", "child_id", c.ID, "task_id", t.ID, "error", err)
				continue
			}
			if !first {
				continue
			}
			s.deps.Reminder.NotifyAs(ctx, c.ID, model.NotifTypeTaskReminder, model.Notification{
				Title:    "Quest Reminder",
				Message:  fmt.Sprintf("Don't forget: %s", t.Title),
				Category: model.CategoryTaskChange,
				Data:     model.NotificationData{Content: fmt.Sprint(t.ID), Action: "open_task"},
			})
		}
	}
}

func (s *Scheduler) cleanup(ctx context.Context, now time.Time) {
	if n, err := s.sessions.DeleteExpired(); err != nil {
		s.logger.Error("delete expired sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("expired sessions removed", "count", n)
	}
	if _, err := s.loginCodes.DeleteExpired(); err != nil {
		s.logger.Error("delete expired login codes", "error", err)
	}
	if err := s.push.CleanupSent(now.Add(-sentRetention)); err != nil {
		s.logger.Error("cleanup sent notifications", "error", err)
	}
	if s.deps.Location != nil {
		if _, err := s.deps.Location.PruneHistory(ctx, historyRetain); err != nil {
			s.logger.Error("prune location history", "error", err)
		}
	}
}
