// Package quest owns the task lifecycle: the daily recurrence and
// miss-detection pass, categorization for display, and the
// submit/approve/decline/claim workflow between children and parents.
package quest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

var (
	ErrNotFound          = errors.New("quest not found")
	ErrNotChild          = errors.New("user is not a child")
	ErrNotAssigned       = errors.New("quest is not assigned to this child")
	ErrInvalidTransition = errors.New("quest is not in a state that allows this action")
	ErrInvalidTask       = errors.New("invalid quest")
)

// Notifier delivers in-app notifications. Delivery failures are handled by
// the implementation and never surface to the caller.
type Notifier interface {
	Notify(ctx context.Context, userID int64, n model.Notification)
	NotifyParents(ctx context.Context, familyID int64, n model.Notification)
}

// ProofStore holds proof-of-completion images.
type ProofStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	db          *sql.DB
	families    *store.FamilyStore
	users       *store.UserStore
	tasks       *store.TaskStore
	completions *store.CompletionStore
	history     *store.HistoryStore
	requests    *store.QuestRequestStore
	proofs      ProofStore
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time

	passes singleflight.Group
}

// NewService wires the quest service. proofs and notifier may be nil.
func NewService(db *sql.DB, proofs ProofStore, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:          db,
		families:    store.NewFamilyStore(db),
		users:       store.NewUserStore(db),
		tasks:       store.NewTaskStore(db),
		completions: store.NewCompletionStore(db),
		history:     store.NewHistoryStore(db),
		requests:    store.NewQuestRequestStore(db),
		proofs:      proofs,
		notifier:    notifier,
		logger:      logger.With("component", "quest"),
		now:         time.Now,
	}
}

func (s *Service) notify(ctx context.Context, userID int64, n model.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, userID, n)
}

func (s *Service) notifyParents(ctx context.Context, familyID int64, n model.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyParents(ctx, familyID, n)
}

func (s *Service) deleteProof(ctx context.Context, key string) {
	if s.proofs == nil || key == "" {
		return
	}
	if err := s.proofs.Delete(ctx, key); err != nil {
		s.logger.Warn("delete proof failed", "key", key, "error", err)
	}
}

// child loads a user and checks that it is a child.
func (s *Service) child(users *store.UserStore, childID int64) (*model.User, error) {
	u, err := users.GetByID(childID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("child %d: %w", childID, ErrNotFound)
	}
	if !u.IsChild() {
		return nil, ErrNotChild
	}
	return u, nil
}

// location returns the family time zone, UTC when the family is missing.
func (s *Service) location(familyID int64) (*time.Location, error) {
	f, err := s.families.GetByID(familyID)
	if err != nil {
		return nil, err
	}
	return f.Location(), nil
}

// childTasks merges every task assigned to the child with the child's
// completion overrides. Rows are fully read before the next query runs.
func childTasks(tasks *store.TaskStore, completions *store.CompletionStore, child *model.User) ([]model.ChildTask, error) {
	templates, err := tasks.ListAssignedTo(child.FamilyID, child.ID)
	if err != nil {
		return nil, err
	}
	comps, err := completions.ListByChild(child.ID)
	if err != nil {
		return nil, err
	}
	byTask := make(map[int64]*model.Completion, len(comps))
	for i := range comps {
		byTask[comps[i].TaskID] = &comps[i]
	}
	out := make([]model.ChildTask, 0, len(templates))
	for _, t := range templates {
		out = append(out, model.Merge(t, child.ID, byTask[t.ID]))
	}
	return out, nil
}

// ChildTasks returns the child's merged task list.
func (s *Service) ChildTasks(ctx context.Context, childID int64) ([]model.ChildTask, error) {
	child, err := s.child(s.users, childID)
	if err != nil {
		return nil, err
	}
	return childTasks(s.tasks, s.completions, child)
}

// ChildTask returns one of the child's merged tasks.
func (s *Service) ChildTask(ctx context.Context, childID, taskID int64) (*model.ChildTask, error) {
	if _, err := s.child(s.users, childID); err != nil {
		return nil, err
	}
	return childTask(s.tasks, s.completions, taskID, childID)
}

// childTask loads one merged task and checks assignment.
func childTask(tasks *store.TaskStore, completions *store.CompletionStore, taskID, childID int64) (*model.ChildTask, error) {
	t, err := tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if !t.AssignedTo.Contains(childID) {
		return nil, ErrNotAssigned
	}
	c, err := completions.Get(taskID, childID)
	if err != nil {
		return nil, err
	}
	ct := model.Merge(*t, childID, c)
	return &ct, nil
}
