package store

import (
	"fmt"

	"github.com/dukerupert/questtracker/internal/model"
)

type HelpRequestStore struct {
	db DBTX
}

func NewHelpRequestStore(db DBTX) *HelpRequestStore {
	return &HelpRequestStore{db: db}
}

const helpRequestCols = `id, user_id, user_email, feedback_type, error_details, additional_notes, status, app_version, device_info, created_at`

func scanHelpRequest(scanner interface{ Scan(...any) error }) (*model.HelpRequest, error) {
	var h model.HelpRequest
	err := scanner.Scan(&h.ID, &h.UserID, &h.UserEmail, &h.FeedbackType, &h.ErrorDetails, &h.AdditionalNotes,
		&h.Status, &h.AppVersion, &h.DeviceInfo, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *HelpRequestStore) Create(h *model.HelpRequest) (*model.HelpRequest, error) {
	result, err := s.db.Exec(
		`INSERT INTO help_requests (user_id, user_email, feedback_type, error_details, additional_notes, app_version, device_info)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.UserID, h.UserEmail, h.FeedbackType, h.ErrorDetails, h.AdditionalNotes, h.AppVersion, h.DeviceInfo,
	)
	if err != nil {
		return nil, fmt.Errorf("insert help request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+helpRequestCols+` FROM help_requests WHERE id = ?`, id)
	return scanHelpRequest(row)
}

func (s *HelpRequestStore) ListByUser(userID int64) ([]model.HelpRequest, error) {
	rows, err := s.db.Query(`SELECT `+helpRequestCols+` FROM help_requests WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list help requests: %w", err)
	}
	defer rows.Close()

	var out []model.HelpRequest
	for rows.Next() {
		h, err := scanHelpRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan help request: %w", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}
