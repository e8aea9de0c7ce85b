package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/events"
)

// ErrSyncInProgress is returned when a sync is already running.
var ErrSyncInProgress = errors.New("catalog sync already in progress")

// PreSyncHook runs before the catalog is replaced, typically a backup. An
// error aborts the sync.
type PreSyncHook func(ctx context.Context) error

// Status is a snapshot of the syncer state.
type Status struct {
	Running        bool         `json:"running"`
	LastStartedAt  *time.Time   `json:"last_started_at,omitempty"`
	LastFinishedAt *time.Time   `json:"last_finished_at,omitempty"`
	LastError      string       `json:"last_error,omitempty"`
	LastStats      *ImportStats `json:"last_stats,omitempty"`
}

// Syncer runs catalog syncs one at a time.
type Syncer struct {
	source    Source
	importer  *Importer
	preSync   PreSyncHook
	publisher events.Publisher
	logger    *zap.Logger

	running atomic.Bool
	mu      sync.Mutex
	status  Status
}

// NewSyncer creates a Syncer. preSync and publisher may be nil.
func NewSyncer(source Source, importer *Importer, preSync PreSyncHook, publisher events.Publisher, logger *zap.Logger) *Syncer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		source:    source,
		importer:  importer,
		preSync:   preSync,
		publisher: publisher,
		logger:    logger,
	}
}

// Running reports whether a sync is in flight.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

// Status returns a copy of the current state.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	status.Running = s.running.Load()
	return status
}

// Run performs a full sync and blocks until it finishes.
func (s *Syncer) Run(ctx context.Context, triggeredBy string) (*ImportStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	started := time.Now().UTC()
	s.mu.Lock()
	s.status.LastStartedAt = &started
	s.mu.Unlock()

	s.logger.Info("catalog sync started", zap.String("triggered_by", triggeredBy))
	s.publisher.Dispatch(events.NewTypedEvent(ctx, events.CatalogSyncStarted, events.CatalogSyncEvent{
		StartedAt:   started,
		TriggeredBy: triggeredBy,
	}))

	stats, err := s.run(ctx)

	finished := time.Now().UTC()
	s.mu.Lock()
	s.status.LastFinishedAt = &finished
	if err != nil {
		s.status.LastError = err.Error()
	} else {
		s.status.LastError = ""
		s.status.LastStats = stats
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("catalog sync failed", zap.Error(err))
		s.publisher.Dispatch(events.NewTypedEvent(ctx, events.CatalogSyncFailed, events.CatalogSyncEvent{
			StartedAt:   started,
			FinishedAt:  finished,
			Error:       err.Error(),
			TriggeredBy: triggeredBy,
		}))
		return nil, err
	}

	s.publisher.Dispatch(events.NewTypedEvent(ctx, events.CatalogSyncCompleted, events.CatalogSyncEvent{
		StartedAt:   started,
		FinishedAt:  finished,
		Sets:        stats.Sets,
		Cards:       stats.Cards,
		Printings:   stats.Printings,
		Prices:      stats.Prices,
		NotFound:    stats.NotFound(),
		TriggeredBy: triggeredBy,
	}))
	return stats, nil
}

func (s *Syncer) run(ctx context.Context) (*ImportStats, error) {
	cat, prices, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(cat.Cards) == 0 {
		return nil, errors.New("downloaded catalog contains no cards")
	}
	if s.preSync != nil {
		if err := s.preSync(ctx); err != nil {
			return nil, err
		}
	}
	return s.importer.Replace(ctx, cat, prices)
}
