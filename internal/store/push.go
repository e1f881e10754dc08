package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

// PushStore holds Web Push subscriptions, FCM device tokens, notification
// preferences and the sent-notification dedup log.
type PushStore struct {
	db DBTX
}

func NewPushStore(db DBTX) *PushStore {
	return &PushStore{db: db}
}

const subscriptionCols = `id, user_id, family_id, endpoint, p256dh_key, auth_key, device_name, created_at`

// CreateSubscription upserts a subscription keyed by endpoint.
func (s *PushStore) CreateSubscription(userID, familyID int64, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, family_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id, family_id = excluded.family_id,
			p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key, device_name = excluded.device_name`,
		userID, familyID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	var sub model.PushSubscription
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.FamilyID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt); err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return &sub, nil
}

func (s *PushStore) ListByUser(userID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *PushStore) DeleteSubscription(id, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// DeleteByEndpoint removes an expired subscription reported by the push service.
func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.FamilyID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// --- FCM device tokens ---

func (s *PushStore) SaveDeviceToken(userID int64, token, platform string) error {
	_, err := s.db.Exec(
		`INSERT INTO device_tokens (user_id, token, platform) VALUES (?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id, platform = excluded.platform, updated_at = ?`,
		userID, token, platform, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save device token: %w", err)
	}
	return nil
}

func (s *PushStore) ListDeviceTokens(userID int64) ([]model.DeviceToken, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, token, platform, created_at, updated_at FROM device_tokens WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	defer rows.Close()

	var out []model.DeviceToken
	for rows.Next() {
		var d model.DeviceToken
		if err := rows.Scan(&d.ID, &d.UserID, &d.Token, &d.Platform, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PushStore) DeleteDeviceToken(token string) error {
	if _, err := s.db.Exec(`DELETE FROM device_tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}

// --- Preferences ---

func (s *PushStore) GetPreferences(userID int64) ([]model.NotificationPreference, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, notification_type, enabled, updated_at
		 FROM notification_preferences WHERE user_id = ? ORDER BY notification_type`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get notification preferences: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		var p model.NotificationPreference
		var enabled int
		if err := rows.Scan(&p.ID, &p.UserID, &p.NotificationType, &enabled, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan notification preference: %w", err)
		}
		p.Enabled = enabled != 0
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

func (s *PushStore) SetPreference(userID int64, notifType string, enabled bool) error {
	_, err := s.db.Exec(
		`INSERT INTO notification_preferences (user_id, notification_type, enabled) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, notification_type) DO UPDATE SET enabled = excluded.enabled, updated_at = ?`,
		userID, notifType, boolInt(enabled), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set notification preference: %w", err)
	}
	return nil
}

// IsPreferenceEnabled returns true when no preference has been stored.
func (s *PushStore) IsPreferenceEnabled(userID int64, notifType string) (bool, error) {
	var enabled int
	err := s.db.QueryRow(
		`SELECT enabled FROM notification_preferences WHERE user_id = ? AND notification_type = ?`,
		userID, notifType,
	).Scan(&enabled)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check notification preference: %w", err)
	}
	return enabled != 0, nil
}

// --- Sent log ---

// MarkSent records a scheduled notification for (user, type, ref, date).
// It reports false if one was already recorded.
func (s *PushStore) MarkSent(userID int64, notifType, refID, date string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO sent_notifications (user_id, notification_type, reference_id, sent_date) VALUES (?, ?, ?, ?)`,
		userID, notifType, refID, date,
	)
	if err != nil {
		return false, fmt.Errorf("record sent notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PushStore) CleanupSent(before time.Time) error {
	_, err := s.db.Exec(`DELETE FROM sent_notifications WHERE sent_at < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return nil
}
