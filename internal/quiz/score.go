package quiz

import (
	"strings"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

// PassingScore is the minimum percentage that earns points instead of
// losing them.
const PassingScore = 50

func trimmedSet(answers []string) map[string]struct{} {
	set := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		set[strings.TrimSpace(a)] = struct{}{}
	}
	return set
}

func first(answers []string) (string, bool) {
	if len(answers) == 0 {
		return "", false
	}
	return strings.TrimSpace(answers[0]), true
}

// Correct reports whether answer is right for q. Single choice and text
// questions compare the first answer case-insensitively; multiple choice
// needs exactly the correct set.
func Correct(q model.Question, answer []string) bool {
	if len(answer) == 0 && len(q.CorrectAnswer) > 0 {
		return false
	}
	switch q.Type {
	case model.QuestionSingleChoice, model.QuestionTextInput:
		got, ok := first(answer)
		want, wok := first(q.CorrectAnswer)
		return ok && wok && strings.EqualFold(got, want)
	case model.QuestionMultipleChoice:
		if len(answer) != len(q.CorrectAnswer) {
			return false
		}
		got, want := trimmedSet(answer), trimmedSet(q.CorrectAnswer)
		if len(got) != len(want) {
			return false
		}
		for a := range want {
			if _, ok := got[a]; !ok {
				return false
			}
		}
		return true
	}
	return false
}

// Score grades answers against the quiz. It returns the percentage of
// questions answered correctly and the points those questions carry.
func Score(q *model.Quiz, answers map[int64][]string) (score, points int) {
	if len(q.Questions) == 0 {
		return 100, 0
	}
	correct := 0
	for _, qu := range q.Questions {
		if Correct(qu, answers[qu.ID]) {
			correct++
			points += qu.Points
		}
	}
	return correct * 100 / len(q.Questions), points
}

// Status is the parent-facing state of a quiz.
func Status(q *model.Quiz, attempts []model.QuizAttempt, now time.Time) model.QuizStatus {
	if now.After(q.ScheduleEnd) {
		return model.QuizOverdue
	}
	answered := make(map[int64]bool, len(attempts))
	for _, a := range attempts {
		answered[a.ChildID] = true
	}
	all := true
	for _, id := range q.TargetChildIDs.IDs() {
		if !answered[id] {
			all = false
			break
		}
	}
	switch {
	case all:
		return model.QuizCompleted
	case !now.Before(q.ScheduleStart):
		return model.QuizActive
	default:
		return model.QuizScheduled
	}
}

// ChildStatus is the state of a quiz as one child sees it.
func ChildStatus(q *model.Quiz, attempt *model.QuizAttempt, now time.Time) model.QuizStatus {
	if attempt != nil {
		if attempt.SubmittedAt.After(q.ScheduleEnd) {
			return model.QuizOverdue
		}
		return model.QuizCompleted
	}
	switch {
	case now.Before(q.ScheduleStart):
		return model.QuizUpcoming
	case now.After(q.ScheduleEnd):
		return model.QuizOverdue
	default:
		return model.QuizActive
	}
}
