package model

import "time"

// PlatformConnection stores platform OAuth credentials per owner, optionally
// scoped to a managed sub-account (page). Access and refresh tokens are held
// in plaintext on this struct; the repository encrypts them at rest.
type PlatformConnection struct {
	ID               int64             `json:"id"`
	OwnerID          string            `json:"owner_id"`
	Platform         string            `json:"platform"`
	PlatformUserID   string            `json:"platform_user_id"`
	PlatformPageID   *string           `json:"platform_page_id,omitempty"`
	PlatformUsername *string           `json:"platform_username,omitempty"`
	AccessToken      string            `json:"-"`
	RefreshToken     string            `json:"-"`
	TokenExpiresAt   *time.Time        `json:"token_expires_at,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	IsActive         bool              `json:"is_active"`
	LastSyncedAt     *time.Time        `json:"last_synced_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TokenExpired reports whether the access token has an expiry and it has
// passed. Absence of TokenExpiresAt means the token does not expire.
func (c *PlatformConnection) TokenExpired(now time.Time) bool {
	return c.TokenExpiresAt != nil && c.TokenExpiresAt.Before(now)
}
