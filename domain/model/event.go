package model

import "time"

// Sync status values for Event.SyncStatus
const (
	SyncStatusPending  = "pending"
	SyncStatusSynced   = "synced"
	SyncStatusFailed   = "failed"
	SyncStatusDisabled = "disabled"
)

// Event status values
const (
	EventStatusActive    = "active"
	EventStatusCancelled = "cancelled"
)

// Event is the locally-owned event entity together with its per-platform
// synchronization state. The sync maps are persisted as JSONB so operational
// tooling can query individual platform entries.
type Event struct {
	ID          int64      `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Location    string     `json:"location"`
	Slug        string     `json:"slug"`
	Status      string     `json:"status"` // active | cancelled
	CoverImage  string     `json:"cover_image,omitempty"`

	SocialPlatformIDs map[string]string `json:"social_platform_ids,omitempty"`
	SyncStatus        string            `json:"sync_status"` // pending | synced | failed | disabled
	SyncErrors        map[string]string `json:"sync_errors,omitempty"`
	LastSyncedAt      *time.Time        `json:"last_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlatformID returns the external event id recorded for platform, if any.
func (e *Event) PlatformID(platform string) (string, bool) {
	id, ok := e.SocialPlatformIDs[platform]
	return id, ok
}

func (e *Event) SetPlatformID(platform, id string) {
	if e.SocialPlatformIDs == nil {
		e.SocialPlatformIDs = map[string]string{}
	}
	e.SocialPlatformIDs[platform] = id
}

func (e *Event) RemovePlatformID(platform string) {
	delete(e.SocialPlatformIDs, platform)
}

func (e *Event) SetSyncError(platform, message string) {
	if e.SyncErrors == nil {
		e.SyncErrors = map[string]string{}
	}
	e.SyncErrors[platform] = message
}

func (e *Event) ClearSyncError(platform string) {
	delete(e.SyncErrors, platform)
}

// IsCancelled reports whether the event has been cancelled locally.
func (e *Event) IsCancelled() bool { return e.Status == EventStatusCancelled }

// HasEnded reports whether the event's end time lies in the past.
func (e *Event) HasEnded(now time.Time) bool {
	return e.EndTime != nil && e.EndTime.Before(now)
}
