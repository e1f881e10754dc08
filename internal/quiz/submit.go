package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

// Submit grades a child's answers and applies the points. A passing
// score adds the points of the correctly answered questions; anything
// lower takes the same amount away.
func (s *Service) Submit(ctx context.Context, childID, quizID int64, answers map[int64][]string) (*model.QuizAttempt, error) {
	var (
		attempt *model.QuizAttempt
		quiz    *model.Quiz
		child   *model.User
	)
	now := s.now()
	err := store.InTx(s.db, func(tx *store.Tx) error {
		var err error
		child, err = tx.Users.GetByID(childID)
		if err != nil {
			return err
		}
		if child == nil || !child.IsChild() {
			return ErrNotChild
		}
		quiz, err = tx.Quizzes.GetByID(quizID)
		if err != nil {
			return err
		}
		if quiz == nil || quiz.FamilyID != child.FamilyID {
			return ErrNotFound
		}
		if !quiz.TargetChildIDs.Contains(childID) {
			return ErrNotTargeted
		}
		existing, err := tx.Quizzes.GetAttempt(quizID, childID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadySubmitted
		}
		if ChildStatus(quiz, nil, now) != model.QuizActive {
			return ErrNotActive
		}

		score, points := Score(quiz, answers)
		if answers == nil {
			answers = map[int64][]string{}
		}
		attempt, err = tx.Quizzes.CreateAttempt(&model.QuizAttempt{
			QuizID:       quizID,
			ChildID:      childID,
			Answers:      answers,
			Score:        score,
			PointsEarned: points,
			Passed:       score >= PassingScore,
			Status:       model.QuizCompleted,
			SubmittedAt:  now,
		})
		if err != nil {
			return err
		}
		if attempt == nil {
			return ErrAlreadySubmitted
		}
		delta := points
		if !attempt.Passed {
			delta = -points
		}
		return tx.Users.AddPoints(childID, delta)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quiz submitted", "quiz_id", quizID, "child_id", childID, "score", attempt.Score, "passed", attempt.Passed)
	n := model.Notification{
		Title:    "Quiz Completed Successfully",
		Message:  fmt.Sprintf("%s completed the quiz '%s' with a score of %d%%. Points reward applied.", child.Name, quiz.Title, attempt.Score),
		Category: model.CategorySystem,
		Data:     model.NotificationData{Content: fmt.Sprint(quizID), Action: "review_quiz"},
	}
	if !attempt.Passed {
		n.Title = "Quiz Completed (Below Passing)"
		n.Message = fmt.Sprintf("%s completed the quiz '%s' with a score of %d%%. A points penalty was applied.", child.Name, quiz.Title, attempt.Score)
	}
	s.notifyParents(ctx, child.FamilyID, n)
	return attempt, nil
}

// overdueLookback bounds how far back ProcessOverdue looks for quizzes
// that ended.
const overdueLookback = 30 * 24 * time.Hour

// ProcessOverdue penalizes every targeted child who never submitted a quiz
// that has ended. Each child is penalized at most once per quiz. It
// returns the number of penalties applied.
func (s *Service) ProcessOverdue(ctx context.Context) (int, error) {
	now := s.now()
	quizzes, err := s.quizzes.ListEndedBetween(now.Add(-overdueLookback), now)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, q := range quizzes {
		for _, childID := range q.TargetChildIDs.IDs() {
			ok, err := s.penalize(ctx, &q, childID)
			if err != nil {
				s.logger.Error("process overdue quiz", "quiz_id", q.ID, "child_id", childID, "error", err)
				continue
			}
			if ok {
				applied++
			}
		}
	}
	return applied, nil
}

func (s *Service) penalize(ctx context.Context, q *model.Quiz, childID int64) (bool, error) {
	child, err := s.users.GetByID(childID)
	if err != nil {
		return false, err
	}
	if child == nil {
		return false, nil
	}
	penalty := q.TotalPoints()

	applied := false
	err = store.InTx(s.db, func(tx *store.Tx) error {
		attempt, err := tx.Quizzes.GetAttempt(q.ID, childID)
		if err != nil {
			return err
		}
		if attempt != nil {
			return nil
		}
		marked, err := tx.Quizzes.MarkOverdue(q.ID, childID, penalty)
		if err != nil {
			return err
		}
		if !marked {
			return nil
		}
		applied = true
		return tx.Users.AddPoints(childID, -penalty)
	})
	if err != nil || !applied {
		return false, err
	}

	s.logger.Info("quiz overdue penalty", "quiz_id", q.ID, "child_id", childID, "points", penalty)
	data := model.NotificationData{Content: fmt.Sprint(q.ID), Action: "quiz_overdue"}
	s.notify(ctx, childID, model.Notification{
		Title:    "Quiz Overdue",
		Message:  fmt.Sprintf("You missed the quiz '%s'. %d points were deducted.", q.Title, penalty),
		Category: model.CategorySystem,
		Data:     data,
	})
	s.notifyParents(ctx, child.FamilyID, model.Notification{
		Title:    "Quiz Overdue Alert",
		Message:  fmt.Sprintf("%s's quiz '%s' has gone overdue. A points penalty has been applied.", child.Name, q.Title),
		Category: model.CategorySystem,
		Data:     data,
	})
	return true, nil
}
