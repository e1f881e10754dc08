package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

type BackupStore struct {
	db DBTX
}

func NewBackupStore(db DBTX) *BackupStore {
	return &BackupStore{db: db}
}

const backupCols = `id, filename, object_key, size_bytes, status, error_message, started_at, completed_at, created_at`

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	var startedAt, completedAt sql.NullTime
	err := scanner.Scan(&b.ID, &b.Filename, &b.ObjectKey, &b.SizeBytes, &b.Status, &b.ErrorMessage, &startedAt, &completedAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.StartedAt = timePtr(startedAt)
	b.CompletedAt = timePtr(completedAt)
	return &b, nil
}

func (s *BackupStore) Create(filename, objectKey string) (*model.Backup, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO backups (filename, object_key, status, started_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		filename, objectKey, model.BackupStatusPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *BackupStore) GetByID(id int64) (*model.Backup, error) {
	row := s.db.QueryRow(`SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %d: %w", id, err)
	}
	return b, nil
}

func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	rows, err := s.db.Query(`SELECT `+backupCols+` FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) UpdateStatus(id int64, status model.BackupStatus, errorMsg string) error {
	_, err := s.db.Exec(`UPDATE backups SET status = ?, error_message = ? WHERE id = ?`, status, errorMsg, id)
	if err != nil {
		return fmt.Errorf("update backup status: %w", err)
	}
	return nil
}

func (s *BackupStore) UpdateCompleted(id, sizeBytes int64) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, size_bytes = ?, completed_at = ? WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update backup completed: %w", err)
	}
	return nil
}

// DeleteOlderThan deletes backup rows created before the given time and
// returns their object keys.
func (s *BackupStore) DeleteOlderThan(before time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT object_key FROM backups WHERE created_at < ? AND object_key != ''`, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("select old backups: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := s.db.Exec(`DELETE FROM backups WHERE created_at < ?`, before.UTC()); err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	return keys, nil
}

func (s *BackupStore) LatestCompleted() (*model.Backup, error) {
	row := s.db.QueryRow(
		`SELECT `+backupCols+` FROM backups WHERE status = ? ORDER BY completed_at DESC LIMIT 1`,
		model.BackupStatusCompleted,
	)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed backup: %w", err)
	}
	return b, nil
}
