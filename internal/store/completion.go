package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

// CompletionStore persists each child's per-task completion override.
type CompletionStore struct {
	db DBTX
}

func NewCompletionStore(db DBTX) *CompletionStore {
	return &CompletionStore{db: db}
}

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.Completion, error) {
	var c model.Completion
	var completedAt sql.NullTime
	var nanny int
	err := scanner.Scan(
		&c.ID, &c.TaskID, &c.ChildID, &c.Status, &c.ProofKey, &completedAt, &nanny,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CompletedAt = timePtr(completedAt)
	c.NannyApprove = nanny != 0
	return &c, nil
}

const completionCols = `id, task_id, child_id, status, proof_key, completed_at, nanny_approve, created_at, updated_at`

func (s *CompletionStore) Get(taskID, childID int64) (*model.Completion, error) {
	row := s.db.QueryRow(`SELECT `+completionCols+` FROM task_completions WHERE task_id = ? AND child_id = ?`, taskID, childID)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *CompletionStore) ListByChild(childID int64) ([]model.Completion, error) {
	rows, err := s.db.Query(`SELECT `+completionCols+` FROM task_completions WHERE child_id = ? ORDER BY task_id`, childID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListByStatus returns the family's completions in the given status.
func (s *CompletionStore) ListByStatus(familyID int64, status model.TaskStatus) ([]model.Completion, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.task_id, c.child_id, c.status, c.proof_key, c.completed_at, c.nanny_approve, c.created_at, c.updated_at
		 FROM task_completions c JOIN tasks t ON t.id = c.task_id
		 WHERE t.family_id = ? AND c.status = ?
		 ORDER BY c.updated_at DESC`,
		familyID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions by status: %w", err)
	}
	defer rows.Close()

	var out []model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Upsert writes the full completion state for (TaskID, ChildID).
func (s *CompletionStore) Upsert(c *model.Completion) error {
	_, err := s.db.Exec(
		`INSERT INTO task_completions (task_id, child_id, status, proof_key, completed_at, nanny_approve)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(task_id, child_id) DO UPDATE SET
			status = excluded.status,
			proof_key = excluded.proof_key,
			completed_at = excluded.completed_at,
			nanny_approve = excluded.nanny_approve,
			updated_at = ?`,
		c.TaskID, c.ChildID, c.Status, c.ProofKey, nullTime(c.CompletedAt), boolInt(c.NannyApprove),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert completion: %w", err)
	}
	return nil
}

func (s *CompletionStore) Delete(taskID, childID int64) error {
	_, err := s.db.Exec(`DELETE FROM task_completions WHERE task_id = ? AND child_id = ?`, taskID, childID)
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}
