package store

import (
	"fmt"

	"github.com/dukerupert/questtracker/internal/model"
)

type NotificationStore struct {
	db DBTX
}

func NewNotificationStore(db DBTX) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var read, clicked int
	err := scanner.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Category, &n.Data.Content, &n.Data.Action,
		&read, &clicked, &n.Timestamp)
	if err != nil {
		return nil, err
	}
	n.Read = read != 0
	n.Clicked = clicked != 0
	return &n, nil
}

const notificationCols = `id, user_id, title, message, category, data_content, data_action, read, clicked, created_at`

func (s *NotificationStore) Create(n *model.Notification) (*model.Notification, error) {
	result, err := s.db.Exec(
		`INSERT INTO notifications (user_id, title, message, category, data_content, data_action) VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Message, n.Category, n.Data.Content, n.Data.Action,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	return scanNotification(row)
}

func (s *NotificationStore) ListByUser(userID int64, limit int) ([]model.Notification, error) {
	rows, err := s.db.Query(
		`SELECT `+notificationCols+` FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *NotificationStore) UnreadCount(userID int64) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead, MarkClicked and Delete are scoped to the owning user and
// report whether a row matched.
func (s *NotificationStore) MarkRead(id, userID int64) (bool, error) {
	return s.exec(`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
}

func (s *NotificationStore) MarkClicked(id, userID int64) (bool, error) {
	return s.exec(`UPDATE notifications SET clicked = 1, read = 1 WHERE id = ? AND user_id = ?`, id, userID)
}

func (s *NotificationStore) Delete(id, userID int64) (bool, error) {
	return s.exec(`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
}

func (s *NotificationStore) MarkAllRead(userID int64) error {
	if _, err := s.db.Exec(`UPDATE notifications SET read = 1 WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (s *NotificationStore) Clear(userID int64) error {
	if _, err := s.db.Exec(`DELETE FROM notifications WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}

func (s *NotificationStore) exec(query string, args ...any) (bool, error) {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("update notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
