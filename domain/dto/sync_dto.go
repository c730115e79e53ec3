package dto

// Res is the generic response envelope used by the HTTP handlers.
type Res struct {
	ResponseCode    string      `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	Data            interface{} `json:"data,omitempty"`
}

// SyncTriggerRequest enqueues a synchronization run for an event.
type SyncTriggerRequest struct {
	Action    string   `json:"action" binding:"required"` // create | update | delete
	Platforms []string `json:"platforms,omitempty"`
}

// SyncStatusResponse is the owner-facing view of an event's sync state. Per
// platform it carries either an external id or a human-readable error string.
type SyncStatusResponse struct {
	EventID      int64             `json:"event_id"`
	SyncStatus   string            `json:"sync_status"`
	PlatformIDs  map[string]string `json:"social_platform_ids,omitempty"`
	SyncErrors   map[string]string `json:"sync_errors,omitempty"`
	LastSyncedAt *string           `json:"last_synced_at,omitempty"`
}

// ConnectionStatusResponse reports whether an owner has an active connection
// for a platform and which page it is bound to.
type ConnectionStatusResponse struct {
	Connected    bool    `json:"connected"`
	Platform     string  `json:"platform"`
	PageID       *string `json:"page_id,omitempty"`
	PageName     *string `json:"page_name,omitempty"`
	LastSyncedAt *string `json:"last_synced_at,omitempty"`
}
