package repository

import (
	"context"

	"event-sync/domain/model"
)

// IPlatformConnection is the credential store: durable, encrypted persistence
// of PlatformConnection records keyed by (owner, platform, page).
type IPlatformConnection interface {
	// Upsert inserts or updates the record identified by
	// (owner_id, platform, platform_page_id) and returns the stored row with
	// plaintext tokens.
	Upsert(ctx context.Context, conn *model.PlatformConnection) (*model.PlatformConnection, error)

	// ActiveConnectionsFor returns the owner's active connections, filtered to
	// platforms when non-empty. Tokens are decrypted; a record whose token
	// cannot be decrypted yields an error rather than empty plaintext.
	ActiveConnectionsFor(ctx context.Context, ownerID string, platforms []string) ([]*model.PlatformConnection, error)

	// GetByOwnerAndPlatform returns the owner's connection for a platform, or
	// nil when none exists.
	GetByOwnerAndPlatform(ctx context.Context, ownerID, platform string) (*model.PlatformConnection, error)

	// Deactivate flips is_active off; connections are never deleted.
	Deactivate(ctx context.Context, id int64) error

	// TouchLastSynced records a successful adapter call against the connection.
	TouchLastSynced(ctx context.Context, id int64) error
}
