package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ramonehamilton/deckvault/internal/events"
)

// ServerMetrics counts HTTP requests and catalog syncs.
type ServerMetrics struct {
	RequestLatency *Histogram
	SyncDuration   *Histogram

	Requests     atomic.Uint64
	ClientErrors atomic.Uint64
	ServerErrors atomic.Uint64

	SyncsCompleted atomic.Uint64
	SyncsFailed    atomic.Uint64
	BackupsFailed  atomic.Uint64

	mu        sync.RWMutex
	startTime time.Time
}

// NewServerMetrics creates a new metrics collector.
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		RequestLatency: NewHistogram(10000),
		SyncDuration:   NewHistogram(100),
		startTime:      time.Now(),
	}
}

// RecordRequest records one finished request.
func (m *ServerMetrics) RecordRequest(status int, d time.Duration) {
	m.Requests.Add(1)
	switch {
	case status >= 500:
		m.ServerErrors.Add(1)
	case status >= 400:
		m.ClientErrors.Add(1)
	}
	m.RequestLatency.Record(d)
}

// OnEvent implements events.Observer for catalog and backup outcomes.
func (m *ServerMetrics) OnEvent(event events.Event) error {
	switch event.Type {
	case events.CatalogSyncCompleted:
		m.SyncsCompleted.Add(1)
		if data, ok := events.GetTypedData[events.CatalogSyncEvent](event); ok && !data.FinishedAt.IsZero() {
			m.SyncDuration.Record(data.FinishedAt.Sub(data.StartedAt))
		}
	case events.CatalogSyncFailed:
		m.SyncsFailed.Add(1)
	case events.BackupFailed:
		m.BackupsFailed.Add(1)
	}
	return nil
}

// GetName implements events.Observer.
func (m *ServerMetrics) GetName() string {
	return "ServerMetrics"
}

// ShouldHandle implements events.Observer.
func (m *ServerMetrics) ShouldHandle(eventType string) bool {
	switch eventType {
	case events.CatalogSyncCompleted, events.CatalogSyncFailed, events.BackupFailed:
		return true
	}
	return false
}

// Stats is a point-in-time view of ServerMetrics.
type Stats struct {
	RequestLatency LatencyStats `json:"request_latency"`
	SyncDuration   LatencyStats `json:"sync_duration"`

	Requests       uint64  `json:"requests"`
	ClientErrors   uint64  `json:"client_errors"`
	ServerErrors   uint64  `json:"server_errors"`
	SuccessRate    float64 `json:"success_rate"` // percentage of non-5xx responses
	SyncsCompleted uint64  `json:"syncs_completed"`
	SyncsFailed    uint64  `json:"syncs_failed"`
	BackupsFailed  uint64  `json:"backups_failed"`

	Uptime string `json:"uptime"`
}

// GetStats returns a snapshot of the current statistics.
func (m *ServerMetrics) GetStats() *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requests := m.Requests.Load()
	serverErrors := m.ServerErrors.Load()
	successRate := 100.0
	if requests > 0 {
		successRate = float64(requests-serverErrors) / float64(requests) * 100
	}

	return &Stats{
		RequestLatency: m.RequestLatency.Snapshot(),
		SyncDuration:   m.SyncDuration.Snapshot(),
		Requests:       requests,
		ClientErrors:   m.ClientErrors.Load(),
		ServerErrors:   serverErrors,
		SuccessRate:    successRate,
		SyncsCompleted: m.SyncsCompleted.Load(),
		SyncsFailed:    m.SyncsFailed.Load(),
		BackupsFailed:  m.BackupsFailed.Load(),
		Uptime:         time.Since(m.startTime).Round(time.Second).String(),
	}
}

// Reset clears all metrics.
func (m *ServerMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RequestLatency.Reset()
	m.SyncDuration.Reset()
	m.Requests.Store(0)
	m.ClientErrors.Store(0)
	m.ServerErrors.Store(0)
	m.SyncsCompleted.Store(0)
	m.SyncsFailed.Store(0)
	m.BackupsFailed.Store(0)
	m.startTime = time.Now()
}
