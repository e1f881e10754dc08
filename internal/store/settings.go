package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

// Family setting keys.
const (
	SettingWeeklyPrize  = "weekly_prize"
	SettingMonthlyPrize = "monthly_prize"
	SettingReminders    = "reminders_enabled"
)

type SettingsStore struct {
	db DBTX
}

func NewSettingsStore(db DBTX) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns "" when the key is not set.
func (s *SettingsStore) Get(familyID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE family_id = ? AND key = ?`, familyID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) GetAll(familyID int64) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings WHERE family_id = ? ORDER BY key`, familyID)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(familyID int64, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (family_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(family_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		familyID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetPrize decodes a prize stored under key. It returns nil when unset.
func (s *SettingsStore) GetPrize(familyID int64, key string) (*model.Prize, error) {
	raw, err := s.Get(familyID, key)
	if err != nil || raw == "" {
		return nil, err
	}
	var p model.Prize
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode prize %q: %w", key, err)
	}
	return &p, nil
}

func (s *SettingsStore) SetPrize(familyID int64, key string, p model.Prize) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prize: %w", err)
	}
	return s.Set(familyID, key, string(b))
}
