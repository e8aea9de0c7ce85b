// Package backup writes JSON snapshots of all user data, restores them and
// schedules recurring backups and catalog syncs.
package backup

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/events"
	"github.com/ramonehamilton/deckvault/internal/storage"
)

// Type says why a backup was taken.
type Type string

// Backup types.
const (
	TypeScheduled Type = "scheduled"
	TypePreSync   Type = "pre-sync"
	TypeManual    Type = "manual"
)

// ParseType validates a backup type name.
func ParseType(s string) (Type, bool) {
	switch t := Type(s); t {
	case TypeScheduled, TypePreSync, TypeManual:
		return t, true
	}
	return "", false
}

var (
	// ErrBackupInProgress is returned while another backup or restore runs.
	ErrBackupInProgress = errors.New("backup or restore already in progress")

	// ErrInvalidName is returned for file names that are not backup files.
	ErrInvalidName = errors.New("invalid backup file name")

	// ErrNotFound is returned when a backup file does not exist.
	ErrNotFound = errors.New("backup not found")
)

const timestampLayout = "20060102_150405"

var nameRe = regexp.MustCompile(`^backup_(scheduled|pre-sync|manual)_(\d{8}_\d{6})\.json$`)

// FileName builds the file name of a backup taken at t.
func FileName(typ Type, t time.Time) string {
	return fmt.Sprintf("backup_%s_%s.json", typ, t.UTC().Format(timestampLayout))
}

// ParseName validates a backup file name and returns its type and time.
func ParseName(name string) (Type, time.Time, error) {
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	at, err := time.ParseInLocation(timestampLayout, m[2], time.UTC)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return Type(m[1]), at, nil
}

// Info describes a backup file.
type Info struct {
	Filename  string    `json:"filename"`
	Type      Type      `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
}

// Mirror receives a copy of every backup written or deleted.
type Mirror interface {
	Upload(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// Options configures a Manager.
type Options struct {
	// Dir holds the backup files. Defaults to "backups" next to the database.
	Dir       string
	Mirror    Mirror
	Publisher events.Publisher
	Logger    *zap.Logger
}

// Manager creates, lists, deletes and restores backups. Only one backup or
// restore runs at a time.
type Manager struct {
	db        *storage.DB
	dir       string
	mirror    Mirror
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	running atomic.Bool
}

// NewManager creates a backup manager.
func NewManager(db *storage.DB, opts Options) *Manager {
	if opts.Dir == "" {
		opts.Dir = filepath.Join(filepath.Dir(db.Path()), "backups")
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		db:        db,
		dir:       opts.Dir,
		mirror:    opts.Mirror,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// Dir returns the backup directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Running reports whether a backup or restore is in flight.
func (m *Manager) Running() bool {
	return m.running.Load()
}

// Create snapshots all user data into a new backup file.
func (m *Manager) Create(ctx context.Context, typ Type) (*Info, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrBackupInProgress
	}
	defer m.running.Store(false)

	info, err := m.create(ctx, typ)
	if err != nil {
		m.logger.Error("backup failed", zap.String("type", string(typ)), zap.Error(err))
		m.publisher.Dispatch(events.NewTypedEvent(ctx, events.BackupFailed, events.BackupEvent{
			Type:  string(typ),
			Error: err.Error(),
		}))
		return nil, err
	}

	m.logger.Info("backup created",
		zap.String("file", info.Filename),
		zap.Int64("bytes", info.Size))
	m.publisher.Dispatch(events.NewTypedEvent(ctx, events.BackupCreated, events.BackupEvent{
		Filename: info.Filename,
		Type:     string(info.Type),
		Size:     info.Size,
	}))
	return info, nil
}

// PreSync takes a pre-sync backup. It is the catalog syncer's hook.
func (m *Manager) PreSync(ctx context.Context) error {
	_, err := m.Create(ctx, TypePreSync)
	return err
}

func (m *Manager) create(ctx context.Context, typ Type) (*Info, error) {
	if _, ok := ParseType(string(typ)); !ok {
		return nil, fmt.Errorf("unknown backup type %q", typ)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := m.now().UTC()
	name := FileName(typ, now)
	path := filepath.Join(m.dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("backup %s already exists", name)
	}

	snapshot := &Snapshot{Version: FormatVersion, Timestamp: now, Type: typ}
	// a read transaction gives a consistent view across tables
	err := m.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		data, err := Collect(ctx, tx)
		if err != nil {
			return err
		}
		snapshot.Data = *data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect backup data: %w", err)
	}

	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := writeFile(path, body); err != nil {
		return nil, err
	}

	if m.mirror != nil {
		if err := m.mirror.Upload(ctx, name, body); err != nil {
			m.logger.Warn("failed to mirror backup", zap.String("file", name), zap.Error(err))
		}
	}

	sum := sha256.Sum256(body)
	return &Info{
		Filename:  name,
		Type:      typ,
		CreatedAt: now.Truncate(time.Second),
		Size:      int64(len(body)),
		Checksum:  hex.EncodeToString(sum[:]),
	}, nil
}

// writeFile writes to a temporary file and renames it into place.
func writeFile(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "backup-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move backup file: %w", err)
	}
	return nil
}

// List returns all backups, newest first.
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []*Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []*Info{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		typ, at, err := ParseName(entry.Name())
		if err != nil {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		checksum, err := calculateChecksum(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			checksum = "unknown"
		}
		backups = append(backups, &Info{
			Filename:  entry.Name(),
			Type:      typ,
			CreatedAt: at,
			Size:      fi.Size(),
			Checksum:  checksum,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].Filename > backups[j].Filename
	})
	return backups, nil
}

// path validates name and resolves it inside the backup directory.
func (m *Manager) path(name string) (string, error) {
	if _, _, err := ParseName(name); err != nil {
		return "", err
	}
	path := filepath.Join(m.dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to stat backup: %w", err)
	}
	return path, nil
}

// Open opens a backup file for download. The caller closes it.
func (m *Manager) Open(name string) (*os.File, error) {
	path, err := m.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	return f, nil
}

// Read decodes a backup file.
func (m *Manager) Read(name string) (*Snapshot, error) {
	f, err := m.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var snapshot Snapshot
	if err := json.NewDecoder(f).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode backup %s: %w", name, err)
	}
	return &snapshot, nil
}

// Delete removes a backup file and its mirrored copy.
func (m *Manager) Delete(ctx context.Context, name string) error {
	path, err := m.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	if m.mirror != nil {
		if err := m.mirror.Delete(ctx, name); err != nil {
			m.logger.Warn("failed to delete mirrored backup", zap.String("file", name), zap.Error(err))
		}
	}

	m.logger.Info("backup deleted", zap.String("file", name))
	m.publisher.Dispatch(events.NewTypedEvent(ctx, events.BackupDeleted, events.BackupEvent{Filename: name}))
	return nil
}

// Prune deletes scheduled backups beyond the newest keep. Other backup types
// are never pruned.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	backups, err := m.List()
	if err != nil {
		return 0, err
	}
	kept, removed := 0, 0
	for _, b := range backups {
		if b.Type != TypeScheduled {
			continue
		}
		kept++
		if kept <= keep {
			continue
		}
		if err := m.Delete(ctx, b.Filename); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Restore loads a backup file and restores it. See RestoreSnapshot.
func (m *Manager) Restore(ctx context.Context, name string, overwrite bool) (*RestoreResult, error) {
	snapshot, err := m.Read(name)
	if err != nil {
		return nil, err
	}
	result, err := m.RestoreSnapshot(ctx, snapshot, overwrite)
	if err != nil {
		return nil, err
	}
	m.publisher.Dispatch(events.NewTypedEvent(ctx, events.BackupRestored, events.BackupEvent{Filename: name}))
	return result, nil
}

// RestoreSnapshot writes a snapshot in one transaction. Overwrite wipes all
// users first; merge keeps existing users, decks, keys and shares and only
// adds what is missing.
func (m *Manager) RestoreSnapshot(ctx context.Context, snapshot *Snapshot, overwrite bool) (*RestoreResult, error) {
	if snapshot.Version > FormatVersion {
		return nil, fmt.Errorf("unsupported backup version %d", snapshot.Version)
	}
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrBackupInProgress
	}
	defer m.running.Store(false)

	var result *RestoreResult
	err := m.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = restore(ctx, tx, &snapshot.Data, overwrite)
		return err
	})
	if err != nil {
		m.publisher.Dispatch(events.NewTypedEvent(ctx, events.BackupFailed, events.BackupEvent{
			Type:  string(snapshot.Type),
			Error: err.Error(),
		}))
		return nil, fmt.Errorf("restore failed: %w", err)
	}

	m.logger.Info("backup restored",
		zap.Bool("overwrite", overwrite),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("not_found", result.NotFound))
	return result, nil
}

// calculateChecksum calculates the SHA-256 checksum of a file.
func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
