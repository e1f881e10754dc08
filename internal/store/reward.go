package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

type RewardStore struct {
	db DBTX
}

func NewRewardStore(db DBTX) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var limit sql.NullInt64
	var requiresApproval, available int
	err := scanner.Scan(
		&r.ID, &r.FamilyID, &r.Title, &r.Description, &r.PointsRequired, &limit,
		&requiresApproval, &available, &r.Icon, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if limit.Valid {
		n := int(limit.Int64)
		r.QuantityLimit = &n
	}
	r.RequiresApproval = requiresApproval != 0
	r.Available = available != 0
	return &r, nil
}

const rewardCols = `id, family_id, title, description, points_required, quantity_limit, requires_approval, available, icon, created_at, updated_at`

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func (s *RewardStore) Create(r *model.Reward) (*model.Reward, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (family_id, title, description, points_required, quantity_limit, requires_approval, available, icon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FamilyID, r.Title, r.Description, r.PointsRequired, nullInt(r.QuantityLimit),
		boolInt(r.RequiresApproval), boolInt(r.Available), r.Icon,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) ListByFamily(familyID int64, availableOnly bool) ([]model.Reward, error) {
	query := `SELECT ` + rewardCols + ` FROM rewards WHERE family_id = ?`
	if availableOnly {
		query += ` AND available = 1`
	}
	query += ` ORDER BY points_required ASC, title ASC`

	rows, err := s.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(r *model.Reward) (*model.Reward, error) {
	_, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, points_required = ?, quantity_limit = ?,
			requires_approval = ?, available = ?, icon = ?, updated_at = ?
		 WHERE id = ?`,
		r.Title, r.Description, r.PointsRequired, nullInt(r.QuantityLimit),
		boolInt(r.RequiresApproval), boolInt(r.Available), r.Icon, time.Now().UTC(), r.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(r.ID)
}

func (s *RewardStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}

// --- Redemption methods ---

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.Redemption, error) {
	var r model.Redemption
	var approvedAt sql.NullTime
	err := scanner.Scan(&r.ID, &r.RewardID, &r.ChildID, &r.RewardTitle, &r.PointsSpent, &r.Status, &r.Notes, &approvedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.ApprovalTimestamp = timePtr(approvedAt)
	return &r, nil
}

const redemptionCols = `id, reward_id, child_id, reward_title, points_spent, status, notes, approval_timestamp, created_at`

func (s *RewardStore) CreateRedemption(r *model.Redemption) (*model.Redemption, error) {
	result, err := s.db.Exec(
		`INSERT INTO reward_redemptions (reward_id, child_id, reward_title, points_spent, status, notes, approval_timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RewardID, r.ChildID, r.RewardTitle, r.PointsSpent, r.Status, r.Notes, nullTime(r.ApprovalTimestamp),
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRedemption(id)
}

func (s *RewardStore) GetRedemption(id int64) (*model.Redemption, error) {
	row := s.db.QueryRow(`SELECT `+redemptionCols+` FROM reward_redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

func (s *RewardStore) listRedemptions(query string, args ...any) ([]model.Redemption, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var out []model.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *RewardStore) ListRedemptionsByChild(childID int64) ([]model.Redemption, error) {
	return s.listRedemptions(
		`SELECT `+redemptionCols+` FROM reward_redemptions WHERE child_id = ? ORDER BY created_at DESC, id DESC`, childID)
}

// ListRedemptionsByFamily returns redemptions for the family, optionally filtered by status.
func (s *RewardStore) ListRedemptionsByFamily(familyID int64, status model.RedemptionStatus) ([]model.Redemption, error) {
	query := `SELECT rr.id, rr.reward_id, rr.child_id, rr.reward_title, rr.points_spent, rr.status, rr.notes, rr.approval_timestamp, rr.created_at
		 FROM reward_redemptions rr JOIN rewards r ON r.id = rr.reward_id
		 WHERE r.family_id = ?`
	args := []any{familyID}
	if status != "" {
		query += ` AND rr.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY rr.created_at DESC, rr.id DESC`
	return s.listRedemptions(query, args...)
}

// CountActiveRedemptions counts redemptions of a reward that were not declined.
func (s *RewardStore) CountActiveRedemptions(rewardID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reward_redemptions WHERE reward_id = ? AND status != ?`,
		rewardID, model.RedemptionDeclined,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return n, nil
}

// SetRedemptionStatus moves a redemption from one status to another. It
// reports false when the redemption was not in the expected status.
func (s *RewardStore) SetRedemptionStatus(id int64, from, to model.RedemptionStatus, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reward_redemptions SET status = ?, approval_timestamp = ? WHERE id = ? AND status = ?`,
		to, at.UTC(), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("set redemption status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
