package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

type QuizStore struct {
	db DBTX
}

func NewQuizStore(db DBTX) *QuizStore {
	return &QuizStore{db: db}
}

const quizCols = `id, family_id, parent_id, title, description, target_child_ids, schedule_start, schedule_end, created_at`

func scanQuiz(scanner interface{ Scan(...any) error }) (*model.Quiz, error) {
	var q model.Quiz
	err := scanner.Scan(&q.ID, &q.FamilyID, &q.ParentID, &q.Title, &q.Description, &q.TargetChildIDs,
		&q.ScheduleStart, &q.ScheduleEnd, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Create inserts the quiz and its questions atomically.
func (s *QuizStore) Create(q *model.Quiz) (*model.Quiz, error) {
	var id int64
	err := withTx(s.db, func(tx DBTX) error {
		result, err := tx.Exec(
			`INSERT INTO quizzes (family_id, parent_id, title, description, target_child_ids, schedule_start, schedule_end)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			q.FamilyID, q.ParentID, q.Title, q.Description, q.TargetChildIDs, q.ScheduleStart.UTC(), q.ScheduleEnd.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for i, qu := range q.Questions {
			options, err := json.Marshal(nonNil(qu.Options))
			if err != nil {
				return fmt.Errorf("encode options: %w", err)
			}
			correct, err := json.Marshal(nonNil(qu.CorrectAnswer))
			if err != nil {
				return fmt.Errorf("encode correct answer: %w", err)
			}
			_, err = tx.Exec(
				`INSERT INTO quiz_questions (quiz_id, position, text, type, options, correct_answer, points)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, i, qu.Text, qu.Type, string(options), string(correct), qu.Points,
			)
			if err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *QuizStore) GetByID(id int64) (*model.Quiz, error) {
	row := s.db.QueryRow(`SELECT `+quizCols+` FROM quizzes WHERE id = ?`, id)
	q, err := scanQuiz(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if q.Questions, err = s.questions(q.ID); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuizStore) questions(quizID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT id, quiz_id, position, text, type, options, correct_answer, points
		 FROM quiz_questions WHERE quiz_id = ? ORDER BY position`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		var qu model.Question
		var options, correct string
		if err := rows.Scan(&qu.ID, &qu.QuizID, &qu.Position, &qu.Text, &qu.Type, &options, &correct, &qu.Points); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(options), &qu.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		if err := json.Unmarshal([]byte(correct), &qu.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("decode correct answer: %w", err)
		}
		out = append(out, qu)
	}
	return out, rows.Err()
}

func (s *QuizStore) list(query string, args ...any) ([]model.Quiz, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quizzes = append(quizzes, *q)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Questions are loaded after the quiz cursor is closed.
	for i := range quizzes {
		if quizzes[i].Questions, err = s.questions(quizzes[i].ID); err != nil {
			return nil, err
		}
	}
	return quizzes, nil
}

func (s *QuizStore) ListByFamily(familyID int64) ([]model.Quiz, error) {
	return s.list(`SELECT `+quizCols+` FROM quizzes WHERE family_id = ? ORDER BY schedule_start DESC, id DESC`, familyID)
}

func (s *QuizStore) ListForChild(familyID, childID int64) ([]model.Quiz, error) {
	return s.list(
		`SELECT `+quizCols+` FROM quizzes
		 WHERE family_id = ? AND EXISTS (SELECT 1 FROM json_each(quizzes.target_child_ids) WHERE json_each.value = ?)
		 ORDER BY schedule_start DESC, id DESC`,
		familyID, childID,
	)
}

// ListEndedBetween returns quizzes whose schedule ended in [from, to).
func (s *QuizStore) ListEndedBetween(from, to time.Time) ([]model.Quiz, error) {
	return s.list(
		`SELECT `+quizCols+` FROM quizzes WHERE schedule_end >= ? AND schedule_end < ? ORDER BY id`,
		from.UTC(), to.UTC(),
	)
}

func (s *QuizStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM quizzes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

// --- Attempt methods ---

const attemptCols = `id, quiz_id, child_id, answers, score, points_earned, passed, status, submitted_at`

func scanAttempt(scanner interface{ Scan(...any) error }) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	var answers string
	var passed int
	err := scanner.Scan(&a.ID, &a.QuizID, &a.ChildID, &answers, &a.Score, &a.PointsEarned, &passed, &a.Status, &a.SubmittedAt)
	if err != nil {
		return nil, err
	}
	a.Passed = passed != 0
	raw := map[string][]string{}
	if err := json.Unmarshal([]byte(answers), &raw); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	a.Answers = make(map[int64][]string, len(raw))
	for k, v := range raw {
		qid, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode answer key %q: %w", k, err)
		}
		a.Answers[qid] = v
	}
	return &a, nil
}

// CreateAttempt stores a submission. It returns (nil, nil) if the child has
// already submitted this quiz.
func (s *QuizStore) CreateAttempt(a *model.QuizAttempt) (*model.QuizAttempt, error) {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO quiz_attempts (quiz_id, child_id, answers, score, points_earned, passed, status, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.QuizID, a.ChildID, string(answers), a.Score, a.PointsEarned, boolInt(a.Passed), a.Status, a.SubmittedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetAttempt(a.QuizID, a.ChildID)
}

func (s *QuizStore) GetAttempt(quizID, childID int64) (*model.QuizAttempt, error) {
	row := s.db.QueryRow(`SELECT `+attemptCols+` FROM quiz_attempts WHERE quiz_id = ? AND child_id = ?`, quizID, childID)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return a, nil
}

func (s *QuizStore) ListAttempts(quizID int64) ([]model.QuizAttempt, error) {
	rows, err := s.db.Query(`SELECT `+attemptCols+` FROM quiz_attempts WHERE quiz_id = ? ORDER BY submitted_at`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []model.QuizAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// MarkOverdue records the overdue penalty for (quizID, childID) once. It
// reports false if the penalty was already recorded.
func (s *QuizStore) MarkOverdue(quizID, childID int64, points int) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO quiz_overdue (quiz_id, child_id, points_deducted) VALUES (?, ?, ?)`,
		quizID, childID, points,
	)
	if err != nil {
		return false, fmt.Errorf("mark quiz overdue: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
