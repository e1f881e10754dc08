package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

type TaskStore struct {
	db DBTX
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var repeat string
	err := scanner.Scan(
		&t.ID, &t.FamilyID, &t.CreatedBy, &t.Title, &t.Description, &t.AssignedTo,
		&t.RewardXP, &t.RewardCoins, &t.BonusReward, &repeat, &t.StartDate, &t.EndDate,
		&t.ReminderTime, &t.Icon, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if repeat != "" {
		var r model.RepeatRule
		if err := json.Unmarshal([]byte(repeat), &r); err != nil {
			return nil, fmt.Errorf("decode repeat rule: %w", err)
		}
		t.Repeat = &r
	}
	return &t, nil
}

const taskCols = `id, family_id, created_by, title, description, assigned_to, reward_xp, reward_coins,
	bonus_reward, repeat_rule, start_date, end_date, reminder_time, icon, created_at, updated_at`

func encodeRepeat(r *model.RepeatRule) (string, error) {
	if r == nil {
		return "", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode repeat rule: %w", err)
	}
	return string(b), nil
}

func (s *TaskStore) Create(t *model.Task) (*model.Task, error) {
	repeat, err := encodeRepeat(t.Repeat)
	if err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`INSERT INTO tasks (family_id, created_by, title, description, assigned_to, reward_xp, reward_coins,
			bonus_reward, repeat_rule, start_date, end_date, reminder_time, icon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.FamilyID, t.CreatedBy, t.Title, t.Description, t.AssignedTo, t.RewardXP, t.RewardCoins,
		t.BonusReward, repeat, t.StartDate, t.EndDate, t.ReminderTime, t.Icon,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) list(query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) ListByFamily(familyID int64) ([]model.Task, error) {
	return s.list(`SELECT `+taskCols+` FROM tasks WHERE family_id = ? ORDER BY id`, familyID)
}

// ListAssignedTo returns the family's tasks whose assignment list contains childID.
func (s *TaskStore) ListAssignedTo(familyID, childID int64) ([]model.Task, error) {
	return s.list(
		`SELECT `+taskCols+` FROM tasks
		 WHERE family_id = ? AND EXISTS (SELECT 1 FROM json_each(tasks.assigned_to) WHERE json_each.value = ?)
		 ORDER BY id`,
		familyID, childID,
	)
}

// ListWithReminders returns tasks that carry a reminder time.
func (s *TaskStore) ListWithReminders(familyID int64) ([]model.Task, error) {
	return s.list(`SELECT `+taskCols+` FROM tasks WHERE family_id = ? AND reminder_time != '' ORDER BY id`, familyID)
}

func (s *TaskStore) Update(t *model.Task) (*model.Task, error) {
	repeat, err := encodeRepeat(t.Repeat)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, assigned_to = ?, reward_xp = ?, reward_coins = ?,
			bonus_reward = ?, repeat_rule = ?, start_date = ?, end_date = ?, reminder_time = ?, icon = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, t.AssignedTo, t.RewardXP, t.RewardCoins, t.BonusReward, repeat,
		t.StartDate, t.EndDate, t.ReminderTime, t.Icon, time.Now().UTC(), t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(t.ID)
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
