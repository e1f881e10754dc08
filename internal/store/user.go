package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var email sql.NullString
	var pinHash string
	var lastActive sql.NullTime
	err := scanner.Scan(
		&u.ID, &u.FamilyID, &u.Role, &u.Name, &email, &u.ParentSubRole, &u.Gender,
		&u.Avatar, &pinHash, &u.XP, &u.Level, &u.Points, &u.Gems, &u.LastDailyReset,
		&lastActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.HasPIN = pinHash != ""
	u.LastActive = timePtr(lastActive)
	return &u, nil
}

const userCols = `id, family_id, role, name, email, parent_sub_role, gender, avatar, pin_hash,
	xp, level, points, gems, last_daily_reset, last_active, created_at, updated_at`

func (s *UserStore) CreateParent(familyID int64, email, name, subRole string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (family_id, role, name, email, parent_sub_role) VALUES (?, ?, ?, ?, ?)`,
		familyID, model.RoleParent, name, strings.ToLower(email), subRole,
	)
	if err != nil {
		return nil, fmt.Errorf("insert parent: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// CreateChild inserts a child profile. pinHash must already be bcrypt-hashed.
func (s *UserStore) CreateChild(familyID int64, name, avatar, gender, pinHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (family_id, role, name, avatar, gender, pin_hash) VALUES (?, ?, ?, ?, ?, ?)`,
		familyID, model.RoleChild, name, avatar, gender, pinHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, strings.ToLower(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetChildByName(familyID int64, name string) (*model.User, error) {
	row := s.db.QueryRow(
		`SELECT `+userCols+` FROM users WHERE family_id = ? AND role = 'child' AND name = ? COLLATE NOCASE`,
		familyID, name,
	)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child by name: %w", err)
	}
	return u, nil
}

func (s *UserStore) listWhere(where string, args ...any) ([]model.User, error) {
	rows, err := s.db.Query(`SELECT `+userCols+` FROM users WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) ListByFamily(familyID int64) ([]model.User, error) {
	return s.listWhere(`family_id = ?`, familyID)
}

func (s *UserStore) ListChildren(familyID int64) ([]model.User, error) {
	return s.listWhere(`family_id = ? AND role = 'child'`, familyID)
}

func (s *UserStore) ListParents(familyID int64) ([]model.User, error) {
	return s.listWhere(`family_id = ? AND role = 'parent'`, familyID)
}

func (s *UserStore) UpdateProfile(id int64, name, avatar, gender string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, avatar = ?, gender = ?, updated_at = ? WHERE id = ?`,
		name, avatar, gender, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) SetPIN(id int64, pinHash string) error {
	_, err := s.db.Exec(`UPDATE users SET pin_hash = ?, updated_at = ? WHERE id = ?`, pinHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *UserStore) GetPINHash(id int64) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT pin_hash FROM users WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pin hash: %w", err)
	}
	return hash, nil
}

// SaveProgress overwrites the economy fields of a user.
func (s *UserStore) SaveProgress(id int64, p model.Progress) error {
	_, err := s.db.Exec(
		`UPDATE users SET xp = ?, level = ?, points = ?, gems = ?, updated_at = ? WHERE id = ?`,
		p.XP, p.Level, p.Points, p.Gems, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// AddPoints applies delta to a user's points, never going below zero.
func (s *UserStore) AddPoints(id int64, delta int) error {
	_, err := s.db.Exec(
		`UPDATE users SET points = MAX(points + ?, 0), updated_at = ? WHERE id = ?`,
		delta, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}

func (s *UserStore) SetLastDailyReset(id int64, date string) error {
	_, err := s.db.Exec(`UPDATE users SET last_daily_reset = ? WHERE id = ?`, date, id)
	if err != nil {
		return fmt.Errorf("set last daily reset: %w", err)
	}
	return nil
}

func (s *UserStore) Touch(id int64, at time.Time) error {
	_, err := s.db.Exec(`UPDATE users SET last_active = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
