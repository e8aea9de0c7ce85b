package backup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/events"
	"github.com/ramonehamilton/deckvault/internal/storage"
	"github.com/ramonehamilton/deckvault/internal/storage/storagetest"
)

type fakeMirror struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
}

func (f *fakeMirror) Upload(_ context.Context, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploaded == nil {
		f.uploaded = map[string][]byte{}
	}
	f.uploaded[name] = data
	return nil
}

func (f *fakeMirror) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

type eventLog struct {
	mu    sync.Mutex
	types []string
}

func (l *eventLog) Dispatch(e events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, e.Type)
}

// newTestManager returns a manager whose clock advances one minute per backup.
func newTestManager(t *testing.T, db *storage.DB, opts Options) *Manager {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = filepath.Join(t.TempDir(), "backups")
	}
	m := NewManager(db, opts)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return m
}

func TestFileNames(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	name := FileName(TypePreSync, at)
	assert.Equal(t, "backup_pre-sync_20240301_090507.json", name)

	typ, parsed, err := ParseName(name)
	require.NoError(t, err)
	assert.Equal(t, TypePreSync, typ)
	assert.True(t, parsed.Equal(at))

	for _, bad := range []string{
		"",
		"backup_manual_20240301_090507.db",
		"backup_weekly_20240301_090507.json",
		"../backup_manual_20240301_090507.json",
		"backup_manual_20241301_090507.json",
		"backups/backup_manual_20240301_090507.json",
	} {
		_, _, err := ParseName(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType("manual")
	assert.True(t, ok)
	assert.Equal(t, TypeManual, typ)
	_, ok = ParseType("hourly")
	assert.False(t, ok)
}

func TestManager_CreateListReadDelete(t *testing.T) {
	db := storage.NewTestDB(t)
	seed := storagetest.SeedCatalog(t, db.Conn())
	alice := storagetest.CreateUser(t, db.Conn(), "alice")
	storagetest.Own(t, db.Conn(), alice, seed.Printing("Sol Ring", "C21"), 2)

	mirror := &fakeMirror{}
	log := &eventLog{}
	m := newTestManager(t, db, Options{Mirror: mirror, Publisher: log})
	ctx := context.Background()

	first, err := m.Create(ctx, TypeManual)
	require.NoError(t, err)
	second, err := m.Create(ctx, TypeScheduled)
	require.NoError(t, err)
	assert.Equal(t, "backup_manual_20240301_120100.json", first.Filename)
	assert.Len(t, first.Checksum, 64)

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Filename, list[0].Filename, "newest first")
	assert.Equal(t, first.Checksum, list[1].Checksum)
	assert.Equal(t, first.Size, list[1].Size)

	snap, err := m.Read(first.Filename)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, snap.Version)
	assert.Equal(t, TypeManual, snap.Type)
	require.Len(t, snap.Data.Users, 1)
	assert.Equal(t, "alice", snap.Data.Users[0].Username)
	require.Len(t, snap.Data.OwnedPrintings, 1)
	assert.Equal(t, storagetest.UUID("Sol Ring", "C21"), snap.Data.OwnedPrintings[0].PrintingUUID)
	assert.Equal(t, []OwnedCardRecord{{Username: "alice", CardName: "Sol Ring"}}, snap.Data.OwnedCards)
	assert.Contains(t, mirror.uploaded, first.Filename)

	require.NoError(t, m.Delete(ctx, first.Filename))
	_, err = os.Stat(filepath.Join(m.Dir(), first.Filename))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []string{first.Filename}, mirror.deleted)

	assert.ErrorIs(t, m.Delete(ctx, first.Filename), ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "../etc/passwd"), ErrInvalidName)
	_, err = m.Read("backup_manual_20000101_000000.json")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{events.BackupCreated, events.BackupCreated, events.BackupDeleted}, log.types)
}

func TestManager_ListIgnoresForeignFiles(t *testing.T) {
	db := storage.NewTestDB(t)
	m := newTestManager(t, db, Options{})

	list, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, list, "missing directory is an empty list")

	require.NoError(t, os.MkdirAll(m.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "notes.txt"), []byte("x"), 0o644))
	_, err = m.Create(context.Background(), TypeManual)
	require.NoError(t, err)

	list, err = m.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestManager_RejectsConcurrentRuns(t *testing.T) {
	db := storage.NewTestDB(t)
	m := newTestManager(t, db, Options{})
	ctx := context.Background()

	m.running.Store(true)
	_, err := m.Create(ctx, TypeManual)
	assert.ErrorIs(t, err, ErrBackupInProgress)
	_, err = m.RestoreSnapshot(ctx, &Snapshot{Version: FormatVersion}, false)
	assert.ErrorIs(t, err, ErrBackupInProgress)
	assert.ErrorIs(t, m.PreSync(ctx), ErrBackupInProgress)

	m.running.Store(false)
	require.NoError(t, m.PreSync(ctx))
	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, TypePreSync, list[0].Type)
	assert.False(t, m.Running())
}

func TestManager_Prune(t *testing.T) {
	db := storage.NewTestDB(t)
	m := newTestManager(t, db, Options{})
	ctx := context.Background()

	var scheduled []string
	for i := 0; i < 4; i++ {
		info, err := m.Create(ctx, TypeScheduled)
		require.NoError(t, err)
		scheduled = append(scheduled, info.Filename)
	}
	manual, err := m.Create(ctx, TypeManual)
	require.NoError(t, err)

	removed, err := m.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := m.List()
	require.NoError(t, err)
	var names []string
	for _, b := range list {
		names = append(names, b.Filename)
	}
	assert.Equal(t, []string{manual.Filename, scheduled[3], scheduled[2]}, names)
}

func TestManager_RefusesNewerFormat(t *testing.T) {
	db := storage.NewTestDB(t)
	m := newTestManager(t, db, Options{})

	_, err := m.RestoreSnapshot(context.Background(), &Snapshot{Version: FormatVersion + 1}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported backup version")
}
