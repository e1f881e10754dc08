// Package backup snapshots the SQLite database, encrypts the snapshot with
// a passphrase and keeps it in object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

var (
	ErrDisabled = errors.New("backups are not configured")
	ErrNotFound = errors.New("backup not found")
)

// Blobs is where encrypted snapshots are kept.
type Blobs interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Passphrase    string
	Hour          int
	RetentionDays int
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager takes scheduled and on-demand backups.
type Manager struct {
	mu      sync.RWMutex
	run     sync.Mutex
	cfg     Config
	status  Status
	db      *sql.DB
	backups *store.BackupStore
	blobs   Blobs
	logger  *slog.Logger
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager returns a disabled manager when blobs is nil or no passphrase
// is set.
func NewManager(db *sql.DB, blobs Blobs, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: store.NewBackupStore(db),
		blobs:   blobs,
		logger:  logger.With("component", "backup"),
		now:     time.Now,
		status:  Status{State: StateDisabled},
	}
	if blobs != nil && cfg.Passphrase != "" {
		m.status.State = StateIdle
	}
	return m
}

func (m *Manager) enabled() bool {
	return m.blobs != nil && m.cfg.Passphrase != ""
}

// Start checks once a minute whether the daily backup is due.
func (m *Manager) Start(ctx context.Context) {
	if !m.enabled() {
		m.logger.Info("backups disabled")
		return
	}
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) checkSchedule(ctx context.Context) {
	now := m.now().UTC()
	if now.Hour() != m.cfg.Hour {
		return
	}
	latest, err := m.backups.LatestCompleted()
	if err != nil {
		m.logger.Error("latest backup", "error", err)
		return
	}
	if latest != nil && latest.CompletedAt != nil && latest.CompletedAt.UTC().Format(time.DateOnly) == now.Format(time.DateOnly) {
		return
	}
	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	}
	if err := m.Cleanup(ctx); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
}

func (m *Manager) fail(id int64, err error) error {
	if uerr := m.backups.UpdateStatus(id, model.BackupStatusFailed, err.Error()); uerr != nil {
		m.logger.Error("mark backup failed", "backup_id", id, "error", uerr)
	}
	m.setStatus(Status{State: StateError, Error: err.Error()})
	return err
}

// snapshot writes a consistent copy of the live database to a temp file
// and returns its contents.
func (m *Manager) snapshot(ctx context.Context, id int64) ([]byte, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("questtracker-backup-%d-%d.db", id, m.now().UnixNano()))
	defer os.Remove(path)
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into snapshot: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// RunNow takes a backup immediately.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	if !m.enabled() {
		return nil, ErrDisabled
	}
	m.run.Lock()
	defer m.run.Unlock()

	now := m.now().UTC()
	filename := fmt.Sprintf("backup-%s.db.enc", now.Format("2006-01-02T150405Z"))
	key := "backups/" + filename

	record, err := m.backups.Create(filename, key)
	if err != nil {
		return nil, err
	}
	m.setStatus(Status{State: StateRunning})
	if err := m.backups.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		return nil, m.fail(record.ID, err)
	}

	plain, err := m.snapshot(ctx, record.ID)
	if err != nil {
		return nil, m.fail(record.ID, err)
	}
	sealed, err := Seal(plain, m.cfg.Passphrase)
	if err != nil {
		return nil, m.fail(record.ID, err)
	}
	if err := m.blobs.Put(ctx, key, "application/octet-stream", bytes.NewReader(sealed), int64(len(sealed))); err != nil {
		return nil, m.fail(record.ID, err)
	}
	if err := m.backups.UpdateCompleted(record.ID, int64(len(sealed))); err != nil {
		return nil, m.fail(record.ID, err)
	}

	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup completed", "backup_id", record.ID, "key", key, "bytes", len(sealed))
	return m.backups.GetByID(record.ID)
}

func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	if limit <= 0 {
		limit = 50
	}
	out, err := m.backups.List(limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Backup{}
	}
	return out, nil
}

// Restore downloads and decrypts a backup and writes it to dst after an
// integrity check. The live database is never touched; swapping files is
// left to the operator.
func (m *Manager) Restore(ctx context.Context, id int64, dst string) error {
	if !m.enabled() {
		return ErrDisabled
	}
	record, err := m.backups.GetByID(id)
	if err != nil {
		return err
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return ErrNotFound
	}

	body, _, err := m.blobs.Get(ctx, record.ObjectKey)
	if err != nil {
		return err
	}
	sealed, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	plain, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, plain, 0o600); err != nil {
		return fmt.Errorf("write restored database: %w", err)
	}
	if err := checkIntegrity(dst); err != nil {
		os.Remove(dst)
		return err
	}
	m.logger.Info("backup restored", "backup_id", id, "path", dst)
	return nil
}

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Cleanup removes backups older than the retention period.
func (m *Manager) Cleanup(ctx context.Context) error {
	if !m.enabled() {
		return nil
	}
	before := m.now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)
	keys, err := m.backups.DeleteOlderThan(before)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := m.blobs.Delete(ctx, key); err != nil {
			m.logger.Warn("delete backup object", "key", key, "error", err)
		}
	}
	return nil
}
