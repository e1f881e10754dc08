// Package quiz schedules quizzes for children, grades submissions and
// applies the points they earn or lose.
package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

var (
	ErrNotFound         = errors.New("quiz not found")
	ErrNotChild         = errors.New("user is not a child")
	ErrNotTargeted      = errors.New("quiz is not assigned to this child")
	ErrNotActive        = errors.New("quiz is not active")
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	ErrInvalidQuiz      = errors.New("invalid quiz")
)

type Notifier interface {
	Notify(ctx context.Context, userID int64, n model.Notification)
	NotifyParents(ctx context.Context, familyID int64, n model.Notification)
}

type Service struct {
	db       *sql.DB
	quizzes  *store.QuizStore
	users    *store.UserStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       db,
		quizzes:  store.NewQuizStore(db),
		users:    store.NewUserStore(db),
		notifier: notifier,
		logger:   logger.With("component", "quiz"),
		now:      time.Now,
	}
}

func (s *Service) notify(ctx context.Context, userID int64, n model.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, n)
	}
}

func (s *Service) notifyParents(ctx context.Context, familyID int64, n model.Notification) {
	if s.notifier != nil {
		s.notifier.NotifyParents(ctx, familyID, n)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuiz, fmt.Sprintf(format, args...))
}

func validateQuestion(i int, q *model.Question) error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return invalid("question %d has no text", i+1)
	}
	if q.Points < 0 {
		return invalid("question %d has negative points", i+1)
	}
	switch q.Type {
	case model.QuestionSingleChoice:
		if len(q.Options) < 2 {
			return invalid("question %d needs at least two options", i+1)
		}
		if len(q.CorrectAnswer) != 1 {
			return invalid("question %d needs exactly one correct answer", i+1)
		}
	case model.QuestionMultipleChoice:
		if len(q.Options) < 2 {
			return invalid("question %d needs at least two options", i+1)
		}
	case model.QuestionTextInput:
		if len(q.CorrectAnswer) == 0 {
			return invalid("question %d needs a correct answer", i+1)
		}
	default:
		return invalid("question %d has unknown type %q", i+1, q.Type)
	}
	return nil
}

// CreateQuiz validates and stores a quiz, then tells each targeted child.
func (s *Service) CreateQuiz(ctx context.Context, parent *model.User, q model.Quiz) (*model.Quiz, error) {
	q.Title = strings.TrimSpace(q.Title)
	if q.Title == "" {
		return nil, invalid("title is required")
	}
	if q.ScheduleStart.IsZero() || q.ScheduleEnd.IsZero() {
		return nil, invalid("schedule start and end are required")
	}
	if !q.ScheduleEnd.After(q.ScheduleStart) {
		return nil, invalid("schedule end must be after start")
	}
	if q.TargetChildIDs.Len() == 0 {
		return nil, invalid("at least one child is required")
	}
	for i := range q.Questions {
		if err := validateQuestion(i, &q.Questions[i]); err != nil {
			return nil, err
		}
	}

	children, err := s.users.ListChildren(parent.FamilyID)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(children))
	for _, c := range children {
		ids[c.ID] = true
	}
	for _, id := range q.TargetChildIDs.IDs() {
		if !ids[id] {
			return nil, invalid("user %d is not a child in this family", id)
		}
	}

	q.FamilyID = parent.FamilyID
	q.ParentID = parent.ID
	created, err := s.quizzes.Create(&q)
	if err != nil {
		return nil, err
	}
	for _, id := range created.TargetChildIDs.IDs() {
		s.notify(ctx, id, model.Notification{
			Title:    "New Quiz!",
			Message:  fmt.Sprintf("%s is ready for you", created.Title),
			Category: model.CategorySystem,
			Data:     model.NotificationData{Content: fmt.Sprint(created.ID), Action: "take_quiz"},
		})
	}
	return created, nil
}

func (s *Service) familyQuiz(familyID, quizID int64) (*model.Quiz, error) {
	q, err := s.quizzes.GetByID(quizID)
	if err != nil {
		return nil, err
	}
	if q == nil || q.FamilyID != familyID {
		return nil, ErrNotFound
	}
	return q, nil
}

func (s *Service) DeleteQuiz(ctx context.Context, familyID, quizID int64) error {
	if _, err := s.familyQuiz(familyID, quizID); err != nil {
		return err
	}
	return s.quizzes.Delete(quizID)
}

// Summary is a quiz with its submissions, as shown to parents.
type Summary struct {
	model.Quiz
	Status   model.QuizStatus    `json:"status"`
	Attempts []model.QuizAttempt `json:"attempts"`
}

func (s *Service) summarize(q model.Quiz) (Summary, error) {
	attempts, err := s.quizzes.ListAttempts(q.ID)
	if err != nil {
		return Summary{}, err
	}
	if attempts == nil {
		attempts = []model.QuizAttempt{}
	}
	return Summary{Quiz: q, Status: Status(&q, attempts, s.now()), Attempts: attempts}, nil
}

func (s *Service) Quiz(ctx context.Context, familyID, quizID int64) (*Summary, error) {
	q, err := s.familyQuiz(familyID, quizID)
	if err != nil {
		return nil, err
	}
	sum, err := s.summarize(*q)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *Service) Quizzes(ctx context.Context, familyID int64) ([]Summary, error) {
	quizzes, err := s.quizzes.ListByFamily(familyID)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(quizzes))
	for _, q := range quizzes {
		sum, err := s.summarize(q)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// Assigned is a quiz as one child sees it. Correct answers are withheld
// until the child has submitted.
type Assigned struct {
	model.Quiz
	Status  model.QuizStatus   `json:"status"`
	Attempt *model.QuizAttempt `json:"attempt,omitempty"`
}

func withoutAnswers(q model.Quiz) model.Quiz {
	questions := make([]model.Question, len(q.Questions))
	for i, qu := range q.Questions {
		qu.CorrectAnswer = nil
		questions[i] = qu
	}
	q.Questions = questions
	return q
}

func (s *Service) ChildQuizzes(ctx context.Context, childID int64) ([]Assigned, error) {
	c, err := s.users.GetByID(childID)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.IsChild() {
		return nil, ErrNotChild
	}
	quizzes, err := s.quizzes.ListForChild(c.FamilyID, childID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Assigned, 0, len(quizzes))
	for _, q := range quizzes {
		attempt, err := s.quizzes.GetAttempt(q.ID, childID)
		if err != nil {
			return nil, err
		}
		a := Assigned{Quiz: q, Status: ChildStatus(&q, attempt, now), Attempt: attempt}
		if attempt == nil {
			a.Quiz = withoutAnswers(q)
		}
		out = append(out, a)
	}
	return out, nil
}
