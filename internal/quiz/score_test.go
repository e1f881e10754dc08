package quiz

import (
	"testing"
	"time"

	"github.com/dukerupert/questtracker/internal/idset"
	"github.com/dukerupert/questtracker/internal/model"
)

func TestCorrect(t *testing.T) {
	single := model.Question{Type: model.QuestionSingleChoice, Options: []string{"Paris", "Rome"}, CorrectAnswer: []string{"Paris"}}
	text := model.Question{Type: model.QuestionTextInput, CorrectAnswer: []string{"Blue Whale"}}
	multi := model.Question{Type: model.QuestionMultipleChoice, Options: []string{"2", "3", "4", "5"}, CorrectAnswer: []string{"2", "3", "5"}}
	open := model.Question{Type: model.QuestionMultipleChoice, Options: []string{"a", "b"}}

	tests := []struct {
		name   string
		q      model.Question
		answer []string
		want   bool
	}{
		{"single exact", single, []string{"Paris"}, true},
		{"single case and space", single, []string{"  paris "}, true},
		{"single wrong", single, []string{"Rome"}, false},
		{"single unanswered", single, nil, false},
		{"text case-insensitive", text, []string{"blue whale"}, true},
		{"text uses first answer", text, []string{"shark", "blue whale"}, false},
		{"multi any order", multi, []string{"5", " 2", "3"}, true},
		{"multi missing one", multi, []string{"2", "3"}, false},
		{"multi extra one", multi, []string{"2", "3", "4", "5"}, false},
		{"multi duplicate answer", multi, []string{"2", "2", "3"}, false},
		{"no correct answer and none given", open, nil, true},
	}
	for _, tt := range tests {
		if got := Correct(tt.q, tt.answer); got != tt.want {
			t.Errorf("%s: Correct = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestScore(t *testing.T) {
	q := &model.Quiz{Questions: []model.Question{
		{ID: 1, Type: model.QuestionTextInput, CorrectAnswer: []string{"4"}, Points: 10},
		{ID: 2, Type: model.QuestionTextInput, CorrectAnswer: []string{"9"}, Points: 20},
		{ID: 3, Type: model.QuestionTextInput, CorrectAnswer: []string{"16"}, Points: 30},
	}}

	score, points := Score(q, map[int64][]string{1: {"4"}, 3: {"16"}})
	if score != 66 || points != 40 {
		t.Errorf("Score = %d/%d, want 66/40", score, points)
	}

	score, points = Score(&model.Quiz{}, nil)
	if score != 100 || points != 0 {
		t.Errorf("empty Score = %d/%d, want 100/0", score, points)
	}
}

func TestStatus(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	q := &model.Quiz{TargetChildIDs: idset.Of(1, 2), ScheduleStart: start, ScheduleEnd: start.Add(48 * time.Hour)}
	one := []model.QuizAttempt{{ChildID: 1}}
	both := []model.QuizAttempt{{ChildID: 1}, {ChildID: 2}}

	tests := []struct {
		name     string
		attempts []model.QuizAttempt
		now      time.Time
		want     model.QuizStatus
	}{
		{"before start", nil, start.Add(-time.Hour), model.QuizScheduled},
		{"running", one, start.Add(time.Hour), model.QuizActive},
		{"everyone answered", both, start.Add(time.Hour), model.QuizCompleted},
		{"ended", both, start.Add(72 * time.Hour), model.QuizOverdue},
	}
	for _, tt := range tests {
		if got := Status(q, tt.attempts, tt.now); got != tt.want {
			t.Errorf("%s: Status = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestChildStatus(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	q := &model.Quiz{ScheduleStart: start, ScheduleEnd: end}

	tests := []struct {
		name    string
		attempt *model.QuizAttempt
		now     time.Time
		want    model.QuizStatus
	}{
		{"not started", nil, start.Add(-time.Minute), model.QuizUpcoming},
		{"open", nil, start, model.QuizActive},
		{"missed", nil, end.Add(time.Minute), model.QuizOverdue},
		{"submitted in time", &model.QuizAttempt{SubmittedAt: end.Add(-time.Hour)}, end.Add(time.Hour), model.QuizCompleted},
		{"submitted late", &model.QuizAttempt{SubmittedAt: end.Add(time.Hour)}, end.Add(time.Hour), model.QuizOverdue},
	}
	for _, tt := range tests {
		if got := ChildStatus(q, tt.attempt, tt.now); got != tt.want {
			t.Errorf("%s: ChildStatus = %q, want %q", tt.name, got, tt.want)
		}
	}
}
