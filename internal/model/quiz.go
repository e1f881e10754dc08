package model

import (
	"time"

	"github.com/dukerupert/questtracker/internal/idset"
)

type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTextInput      QuestionType = "TEXT_INPUT"
)

type QuizStatus string

const (
	QuizScheduled QuizStatus = "SCHEDULED"
	QuizUpcoming  QuizStatus = "UPCOMING"
	QuizActive    QuizStatus = "ACTIVE"
	QuizCompleted QuizStatus = "COMPLETED"
	QuizOverdue   QuizStatus = "OVERDUE"
)

type Quiz struct {
	ID             int64      `json:"id"`
	FamilyID       int64      `json:"family_id"`
	ParentID       int64      `json:"parent_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	TargetChildIDs idset.Set  `json:"target_child_ids"`
	Questions      []Question `json:"questions"`
	ScheduleStart  time.Time  `json:"schedule_start"`
	ScheduleEnd    time.Time  `json:"schedule_end"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TotalPoints is the sum of all question points.
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, qu := range q.Questions {
		total += qu.Points
	}
	return total
}

type Question struct {
	ID            int64        `json:"id"`
	QuizID        int64        `json:"quiz_id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer []string     `json:"correct_answer"`
	Points        int          `json:"points"`
	Position      int          `json:"position"`
}

type QuizAttempt struct {
	ID           int64              `json:"id"`
	QuizID       int64              `json:"quiz_id"`
	ChildID      int64              `json:"child_id"`
	Answers      map[int64][]string `json:"answers"`
	Score        int                `json:"score"`
	PointsEarned int                `json:"points_earned"`
	Passed       bool               `json:"passed"`
	Status       QuizStatus         `json:"status"`
	SubmittedAt  time.Time          `json:"submitted_at"`
}
