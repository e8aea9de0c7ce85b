package events

import "time"

// Event types.
const (
	CatalogSyncStarted   = "catalog:sync_started"
	CatalogSyncCompleted = "catalog:sync_completed"
	CatalogSyncFailed    = "catalog:sync_failed"

	BackupCreated  = "backup:created"
	BackupDeleted  = "backup:deleted"
	BackupRestored = "backup:restored"
	BackupFailed   = "backup:failed"
)

// CatalogSyncEvent is the payload for catalog:* events.
type CatalogSyncEvent struct {
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	Sets        int       `json:"sets,omitempty"`
	Cards       int       `json:"cards,omitempty"`
	Printings   int       `json:"printings,omitempty"`
	Prices      int       `json:"prices,omitempty"`
	NotFound    int       `json:"not_found,omitempty"`
	Error       string    `json:"error,omitempty"`
	TriggeredBy string    `json:"triggered_by,omitempty"`
}

// BackupEvent is the payload for backup:* events.
type BackupEvent struct {
	Filename string `json:"filename,omitempty"`
	Type     string `json:"type,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
}
