// Package backup takes encrypted snapshots of the club database and restores
// them into a fresh file.
package backup

import (
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

	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/store"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrNoPassphrase = errors.New("backup passphrase not configured")

type Config struct {
	// Dir receives snapshots when S3 is not configured.
	Dir        string
	S3         S3Config
	Passphrase string
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
	Target     string     `json:"target,omitempty"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

type Manager struct {
	mu         sync.RWMutex
	status     Status
	callback   StatusCallback
	passphrase string

	db      *sql.DB
	backups *store.BackupStore
	storage Storage
	s3      *S3Storage
	dir     *DirStorage
	logger  *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, backups *store.BackupStore, logger *slog.Logger, callback StatusCallback) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		db:         db,
		backups:    backups,
		passphrase: cfg.Passphrase,
		callback:   callback,
		logger:     logger,
		status:     Status{State: StateDisabled},
	}
	if cfg.Dir != "" {
		m.dir = NewDirStorage(cfg.Dir)
	}
	switch {
	case cfg.S3.Enabled():
		m.s3 = NewS3Storage(cfg.S3)
		m.storage = m.s3
		m.status = Status{State: StateIdle, Target: "s3://" + cfg.S3.Bucket}
	case m.dir != nil:
		m.storage = m.dir
		m.status = Status{State: StateIdle, Target: cfg.Dir}
	}
	return m
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	s.Target = m.status.Target
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// RunNow snapshots the database, encrypts it and stores it. An empty
// passphrase falls back to the configured one.
func (m *Manager) RunNow(ctx context.Context, passphrase string) (*model.Backup, error) {
	if m.storage == nil {
		return nil, errors.New("backup not configured: set a backup directory or S3 bucket")
	}
	if passphrase == "" {
		passphrase = m.passphrase
	}
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}

	m.mu.Lock()
	if m.status.InProgress {
		m.mu.Unlock()
		return nil, errors.New("backup already in progress")
	}
	m.status.InProgress = true
	m.mu.Unlock()

	m.setStatus(Status{State: StateRunning, InProgress: true})

	filename := fmt.Sprintf("clubhouse-%s-%s.db.enc",
		time.Now().UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
	record, err := m.backups.Create(filename, "")
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	size, location, err := m.snapshot(ctx, filename, passphrase)
	if err != nil {
		if uerr := m.backups.UpdateStatus(record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("failed to record backup failure", "backup_id", record.ID, "error", uerr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}

	if err := m.backups.UpdateCompleted(record.ID, location, size); err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("record completed backup: %w", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup completed", "backup_id", record.ID, "location", location, "size_bytes", size)

	return m.backups.GetByID(record.ID)
}

func (m *Manager) snapshot(ctx context.Context, filename, passphrase string) (int64, string, error) {
	tmpDir, err := os.MkdirTemp("", "clubhouse-backup-")
	if err != nil {
		return 0, "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// VACUUM INTO writes a consistent copy, WAL included, to a new file.
	plainPath := filepath.Join(tmpDir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, plainPath); err != nil {
		return 0, "", fmt.Errorf("vacuum into snapshot: %w", err)
	}

	plaintext, err := os.ReadFile(plainPath)
	if err != nil {
		return 0, "", fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Encrypt(plaintext, passphrase)
	if err != nil {
		return 0, "", fmt.Errorf("encrypt: %w", err)
	}

	location, err := m.storage.Put(ctx, filename, sealed)
	if err != nil {
		return 0, "", err
	}
	return int64(len(sealed)), location, nil
}

func (m *Manager) storageFor(location string) (Storage, error) {
	if model.IsS3Location(location) {
		if m.s3 == nil {
			return nil, fmt.Errorf("backup %s is in S3 but S3 is not configured", location)
		}
		return m.s3, nil
	}
	if m.dir != nil {
		return m.dir, nil
	}
	return NewDirStorage(filepath.Dir(location)), nil
}

// Open returns the encrypted snapshot of a completed backup.
func (m *Manager) Open(ctx context.Context, backupID int64) (io.ReadCloser, *model.Backup, error) {
	record, err := m.backups.GetByID(backupID)
	if err != nil {
		return nil, nil, fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return nil, nil, fmt.Errorf("backup %d: %w", backupID, store.ErrNotFound)
	}
	if !record.Restorable() {
		return nil, nil, fmt.Errorf("backup %d is %s", backupID, record.Status)
	}
	st, err := m.storageFor(record.Location)
	if err != nil {
		return nil, nil, err
	}
	rc, err := st.Get(ctx, record.Location)
	if err != nil {
		return nil, nil, err
	}
	return rc, record, nil
}

// Restore decrypts a recorded backup into dstPath. The live database is
// never touched; the caller swaps files while the program is stopped.
func (m *Manager) Restore(ctx context.Context, backupID int64, passphrase, dstPath string) error {
	if passphrase == "" {
		passphrase = m.passphrase
	}
	rc, _, err := m.Open(ctx, backupID)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	return restore(data, passphrase, dstPath)
}

// RestoreFile decrypts an encrypted snapshot file into dstPath, which must not
// exist yet, and checks that the result is an intact SQLite database.
func RestoreFile(srcPath, passphrase, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	return restore(data, passphrase, dstPath)
}

func restore(data []byte, passphrase, dstPath string) error {
	plaintext, err := Decrypt(data, passphrase)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create restore target: %w", err)
	}
	if _, err := f.Write(plaintext); err != nil {
		f.Close()
		os.Remove(dstPath)
		return fmt.Errorf("write restore target: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("close restore target: %w", err)
	}

	if err := integrityCheck(dstPath); err != nil {
		os.Remove(dstPath)
		return err
	}
	return nil
}

func integrityCheck(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Cleanup deletes backups older than the retention period, records and
// stored files both.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	before := time.Now().UTC().AddDate(0, 0, -retentionDays)
	locations, err := m.backups.DeleteOlderThan(before)
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, loc := range locations {
		if loc == "" {
			continue
		}
		st, err := m.storageFor(loc)
		if err == nil {
			err = st.Delete(ctx, loc)
		}
		if err != nil {
			m.logger.Warn("failed to delete old backup", "location", loc, "error", err)
		}
	}
	return nil
}
