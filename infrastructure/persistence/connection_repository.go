package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"event-sync/domain/model"
	"event-sync/domain/repository"
	"event-sync/infrastructure/crypto"

	"github.com/lib/pq"
)

// ConnectionRepository is the PostgreSQL credential store. Access and refresh
// tokens pass through the token cipher on every read and write, so callers
// only ever observe plaintext.
type ConnectionRepository struct {
	db     *sql.DB
	cipher *crypto.TokenCipher
}

func NewConnectionRepository(db *sql.DB, cipher *crypto.TokenCipher) repository.IPlatformConnection {
	return &ConnectionRepository{db: db, cipher: cipher}
}

const connectionColumns = `id, owner_id, platform, platform_user_id, platform_page_id, platform_username,
	access_token, refresh_token, token_expires_at, metadata, is_active, last_synced_at, created_at, updated_at`

func (r *ConnectionRepository) Upsert(ctx context.Context, conn *model.PlatformConnection) (*model.PlatformConnection, error) {
	encAccess, err := r.cipher.Encrypt(conn.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	encRefresh, err := r.cipher.Encrypt(conn.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt refresh token: %w", err)
	}
	metadata, err := json.Marshal(conn.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	q := `INSERT INTO platform_connections
		(owner_id, platform, platform_user_id, platform_page_id, platform_username,
		 access_token, refresh_token, token_expires_at, metadata, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		ON CONFLICT (owner_id, platform, COALESCE(platform_page_id, '')) DO UPDATE SET
			platform_user_id=EXCLUDED.platform_user_id,
			platform_username=EXCLUDED.platform_username,
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			token_expires_at=EXCLUDED.token_expires_at,
			metadata=EXCLUDED.metadata,
			is_active=EXCLUDED.is_active,
			updated_at=EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`
	row := r.db.QueryRowContext(ctx, q,
		conn.OwnerID, conn.Platform, conn.PlatformUserID, conn.PlatformPageID, conn.PlatformUsername,
		encAccess, nullableString(encRefresh), conn.TokenExpiresAt, metadata, conn.IsActive, now,
	)
	stored := *conn
	if err := row.Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert connection: %w", err)
	}
	return &stored, nil
}

func (r *ConnectionRepository) ActiveConnectionsFor(ctx context.Context, ownerID string, platforms []string) ([]*model.PlatformConnection, error) {
	q := `SELECT ` + connectionColumns + `
		FROM platform_connections
		WHERE owner_id=$1 AND is_active=TRUE`
	args := []interface{}{ownerID}
	if len(platforms) > 0 {
		q += ` AND platform = ANY($2)`
		args = append(args, pq.Array(platforms))
	}
	q += ` ORDER BY platform, id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PlatformConnection
	for rows.Next() {
		conn, err := r.scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, rows.Err()
}

func (r *ConnectionRepository) GetByOwnerAndPlatform(ctx context.Context, ownerID, platform string) (*model.PlatformConnection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections WHERE owner_id=$1 AND platform=$2 ORDER BY id LIMIT 1`,
		ownerID, platform,
	)
	conn, err := r.scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *ConnectionRepository) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE platform_connections SET is_active=FALSE, updated_at=$1 WHERE id=$2`,
		time.Now().UTC(), id,
	)
	return err
}

func (r *ConnectionRepository) TouchLastSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE platform_connections SET last_synced_at=$1, updated_at=$1 WHERE id=$2`,
		time.Now().UTC(), id,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ConnectionRepository) scanConnection(row rowScanner) (*model.PlatformConnection, error) {
	conn := &model.PlatformConnection{}
	var (
		pageID, username, encRefresh sql.NullString
		expiresAt, lastSyncedAt      sql.NullTime
		encAccess                    string
		metadata                     []byte
	)
	if err := row.Scan(
		&conn.ID, &conn.OwnerID, &conn.Platform, &conn.PlatformUserID, &pageID, &username,
		&encAccess, &encRefresh, &expiresAt, &metadata, &conn.IsActive, &lastSyncedAt,
		&conn.CreatedAt, &conn.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if pageID.Valid {
		v := pageID.String
		conn.PlatformPageID = &v
	}
	if username.Valid {
		v := username.String
		conn.PlatformUsername = &v
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		conn.TokenExpiresAt = &t
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		conn.LastSyncedAt = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &conn.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal connection %d metadata: %w", conn.ID, err)
		}
	}

	// Decrypt failures must surface, never degrade to an empty token.
	access, err := r.cipher.Decrypt(encAccess)
	if err != nil {
		return nil, fmt.Errorf("connection %d access token: %w", conn.ID, err)
	}
	conn.AccessToken = access
	if encRefresh.Valid {
		refresh, err := r.cipher.Decrypt(encRefresh.String)
		if err != nil {
			return nil, fmt.Errorf("connection %d refresh token: %w", conn.ID, err)
		}
		conn.RefreshToken = refresh
	}
	return conn, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
