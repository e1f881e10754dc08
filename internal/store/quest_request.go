package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/questtracker/internal/model"
)

type QuestRequestStore struct {
	db DBTX
}

func NewQuestRequestStore(db DBTX) *QuestRequestStore {
	return &QuestRequestStore{db: db}
}

const questRequestCols = `id, family_id, child_id, child_name, title, description, reward_xp, reward_coins, icon,
	status, rejection_reason, task_id, created_at`

func scanQuestRequest(scanner interface{ Scan(...any) error }) (*model.QuestRequest, error) {
	var q model.QuestRequest
	var taskID sql.NullInt64
	err := scanner.Scan(&q.ID, &q.FamilyID, &q.ChildID, &q.ChildName, &q.Title, &q.Description, &q.RewardXP,
		&q.RewardCoins, &q.Icon, &q.Status, &q.RejectionReason, &taskID, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	if taskID.Valid {
		q.TaskID = &taskID.Int64
	}
	return &q, nil
}

func (s *QuestRequestStore) Create(q *model.QuestRequest) (*model.QuestRequest, error) {
	result, err := s.db.Exec(
		`INSERT INTO quest_requests (family_id, child_id, child_name, title, description, reward_xp, reward_coins, icon, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.FamilyID, q.ChildID, q.ChildName, q.Title, q.Description, q.RewardXP, q.RewardCoins, q.Icon, model.RequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert quest request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *QuestRequestStore) GetByID(id int64) (*model.QuestRequest, error) {
	row := s.db.QueryRow(`SELECT `+questRequestCols+` FROM quest_requests WHERE id = ?`, id)
	q, err := scanQuestRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quest request: %w", err)
	}
	return q, nil
}

func (s *QuestRequestStore) list(query string, args ...any) ([]model.QuestRequest, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quest requests: %w", err)
	}
	defer rows.Close()

	var out []model.QuestRequest
	for rows.Next() {
		q, err := scanQuestRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quest request: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (s *QuestRequestStore) ListByFamily(familyID int64) ([]model.QuestRequest, error) {
	return s.list(`SELECT `+questRequestCols+` FROM quest_requests WHERE family_id = ? ORDER BY created_at DESC, id DESC`, familyID)
}

func (s *QuestRequestStore) ListByChild(childID int64) ([]model.QuestRequest, error) {
	return s.list(`SELECT `+questRequestCols+` FROM quest_requests WHERE child_id = ? ORDER BY created_at DESC, id DESC`, childID)
}

// Resolve moves a pending request to status. It reports false if the
// request was no longer pending.
func (s *QuestRequestStore) Resolve(id int64, status model.RequestStatus, reason string, taskID *int64) (bool, error) {
	var tID sql.NullInt64
	if taskID != nil {
		tID = sql.NullInt64{Int64: *taskID, Valid: true}
	}
	result, err := s.db.Exec(
		`UPDATE quest_requests SET status = ?, rejection_reason = ?, task_id = ? WHERE id = ? AND status = ?`,
		status, reason, tID, id, model.RequestPending,
	)
	if err != nil {
		return false, fmt.Errorf("resolve quest request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
