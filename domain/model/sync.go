package model

import "time"

// Sync actions accepted by the synchronization worker.
const (
	SyncActionCreate = "create"
	SyncActionUpdate = "update"
	SyncActionDelete = "delete"
)

// Sync job status values
const (
	SyncJobPending = "pending"
	SyncJobRunning = "running"
	SyncJobSuccess = "success"
	SyncJobFailed  = "failed"
)

// SyncRequest is the worker's input; it is not persisted as-is but carried on
// a SyncJob row. An empty Platforms slice means all active connections.
type SyncRequest struct {
	EventID   int64    `json:"event_id"`
	Action    string   `json:"action"` // create | update | delete
	Platforms []string `json:"platforms,omitempty"`
}

// ValidSyncAction reports whether action is one of create/update/delete.
func ValidSyncAction(action string) bool {
	switch action {
	case SyncActionCreate, SyncActionUpdate, SyncActionDelete:
		return true
	}
	return false
}

// SyncJob is one queued, retryable synchronization run for an event.
type SyncJob struct {
	ID        int64      `json:"id"`
	EventID   int64      `json:"event_id"`
	Action    string     `json:"action"`
	Platforms []string   `json:"platforms,omitempty"`
	Status    string     `json:"status"` // pending | running | success | failed
	Attempts  int        `json:"attempts"`
	NextRunAt time.Time  `json:"next_run_at"`
	LastError *string    `json:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SyncAudit is an append-only record of one completed worker run.
type SyncAudit struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	EventID      int64     `gorm:"index" json:"event_id"`
	Action       string    `gorm:"type:varchar(16)" json:"action"`
	Status       string    `gorm:"type:varchar(16)" json:"status"`
	PlatformsOK  int       `json:"platforms_ok"`
	PlatformsErr int       `json:"platforms_err"`
	ErrorSummary *string   `gorm:"type:text" json:"error_summary,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName keeps the gorm table name aligned with the SQL schema.
func (SyncAudit) TableName() string { return "sync_audits" }
