package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/events"
	"github.com/ramonehamilton/deckvault/internal/storage"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

type stubSource struct {
	cat     *Catalog
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *stubSource) Fetch(ctx context.Context) (*Catalog, []*models.Price, error) {
	if s.started != nil {
		close(s.started)
		<-s.release
	}
	return s.cat, nil, s.err
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Dispatch(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func TestSyncer_Run(t *testing.T) {
	db := storage.NewTestDB(t)
	rec := &recorder{}
	hookCalls := 0
	hook := func(context.Context) error {
		hookCalls++
		return nil
	}

	s := NewSyncer(&stubSource{cat: smallCatalog()}, NewImporter(db, nil), hook, rec, nil)
	stats, err := s.Run(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Cards)
	assert.Equal(t, 1, hookCalls)

	assert.Equal(t, []string{events.CatalogSyncStarted, events.CatalogSyncCompleted}, rec.types())
	payload, ok := events.GetTypedData[events.CatalogSyncEvent](rec.events[1])
	require.True(t, ok)
	assert.Equal(t, 2, payload.Printings)
	assert.Equal(t, "admin", payload.TriggeredBy)

	status := s.Status()
	assert.False(t, status.Running)
	require.NotNil(t, status.LastFinishedAt)
	assert.Empty(t, status.LastError)
	require.NotNil(t, status.LastStats)
	assert.Equal(t, 2, status.LastStats.Sets)
}

func TestSyncer_FailureIsRecorded(t *testing.T) {
	db := storage.NewTestDB(t)
	rec := &recorder{}
	s := NewSyncer(&stubSource{err: errors.New("network down")}, NewImporter(db, nil), nil, rec, nil)

	_, err := s.Run(context.Background(), "cron")
	require.Error(t, err)
	assert.Equal(t, []string{events.CatalogSyncStarted, events.CatalogSyncFailed}, rec.types())
	assert.Equal(t, "network down", s.Status().LastError)
}

func TestSyncer_PreSyncHookAbortsSync(t *testing.T) {
	db := storage.NewTestDB(t)
	hook := func(context.Context) error { return errors.New("backup failed") }
	s := NewSyncer(&stubSource{cat: smallCatalog()}, NewImporter(db, nil), hook, nil, nil)

	_, err := s.Run(context.Background(), "admin")
	require.EqualError(t, err, "backup failed")
}

func TestSyncer_EmptyCatalogIsRejected(t *testing.T) {
	db := storage.NewTestDB(t)
	s := NewSyncer(&stubSource{cat: &Catalog{}}, NewImporter(db, nil), nil, nil, nil)

	_, err := s.Run(context.Background(), "admin")
	require.Error(t, err)
}

func TestSyncer_RejectsConcurrentRun(t *testing.T) {
	db := storage.NewTestDB(t)
	src := &stubSource{cat: smallCatalog(), started: make(chan struct{}), release: make(chan struct{})}
	s := NewSyncer(src, NewImporter(db, nil), nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), "first")
		done <- err
	}()

	<-src.started
	assert.True(t, s.Running())
	_, err := s.Run(context.Background(), "second")
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(src.release)
	require.NoError(t, <-done)
	assert.False(t, s.Running())
}
