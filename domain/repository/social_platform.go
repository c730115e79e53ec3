package repository

import (
	"context"

	"event-sync/domain/model"
)

// ISocialPlatform is the capability contract implemented once per external
// platform. The synchronization worker is platform-agnostic: it only ever
// talks to adapters through these seven operations.
//
// Every method that performs a wire call returns errors carrying the HTTP
// status and raw response body, except where noted: ValidateConnection
// reports false instead of failing, DeleteEvent treats a platform-side
// "not found" as success, and image upload failures are the caller's choice
// to swallow.
type ISocialPlatform interface {
	// Key returns the registry key of the platform, e.g. "facebook".
	Key() string

	// GetAuthorizationURL builds the platform's OAuth authorize URL with a
	// tamper-evident state parameter encoding the owner.
	GetAuthorizationURL(ctx context.Context, ownerID string) (string, error)

	// ExchangeAuthorizationCode performs the code exchange (upgrading to the
	// longest-lived credential the platform offers), selects a default
	// sub-account when the platform has them, persists the connection via the
	// credential store and returns it.
	ExchangeAuthorizationCode(ctx context.Context, code, ownerID string) (*model.PlatformConnection, error)

	// ValidateConnection is a side-effect-free liveness check; it returns
	// false rather than an error on any non-fatal API failure.
	ValidateConnection(ctx context.Context, conn *model.PlatformConnection) bool

	// CreateEvent publishes the event and returns the platform's event id.
	CreateEvent(ctx context.Context, event *model.Event, conn *model.PlatformConnection) (string, error)

	// UpdateEvent re-publishes the event against its existing platform id.
	UpdateEvent(ctx context.Context, event *model.Event, conn *model.PlatformConnection) error

	// DeleteEvent removes the remote event; an already-absent remote event is
	// success.
	DeleteEvent(ctx context.Context, platformEventID string, conn *model.PlatformConnection) error

	// UploadEventImage attaches the event's cover art, resolving imageRef to
	// a URL the platform can fetch.
	UploadEventImage(ctx context.Context, platformEventID, imageRef string, conn *model.PlatformConnection) error
}
