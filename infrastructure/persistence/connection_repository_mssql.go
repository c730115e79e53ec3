package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"event-sync/domain/model"
	"event-sync/domain/repository"
	"event-sync/infrastructure/crypto"
	"event-sync/infrastructure/logger"
)

// ConnectionRepositoryMSSQL is the SQL Server implementation of the
// credential store, used when the service runs against Azure SQL.
type ConnectionRepositoryMSSQL struct {
	db     *sql.DB
	cipher *crypto.TokenCipher
}

func NewConnectionRepositoryMSSQL(db *sql.DB, cipher *crypto.TokenCipher) repository.IPlatformConnection {
	return &ConnectionRepositoryMSSQL{db: db, cipher: cipher}
}

func (r *ConnectionRepositoryMSSQL) Upsert(ctx context.Context, conn *model.PlatformConnection) (*model.PlatformConnection, error) {
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

	q := `MERGE dbo.[platform_connections] AS t
	USING (SELECT @p1 AS owner_id, @p2 AS platform, ISNULL(@p4, '') AS page_key) AS s
	ON t.owner_id = s.owner_id AND t.platform = s.platform AND ISNULL(t.platform_page_id, '') = s.page_key
	WHEN MATCHED THEN UPDATE SET
		platform_user_id=@p3, platform_username=@p5, access_token=@p6, refresh_token=@p7,
		token_expires_at=@p8, metadata=@p9, is_active=@p10, updated_at=@p11
	WHEN NOT MATCHED THEN INSERT
		(owner_id, platform, platform_user_id, platform_page_id, platform_username,
		 access_token, refresh_token, token_expires_at, metadata, is_active, created_at, updated_at)
		VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11, @p11);`
	if _, err := r.db.ExecContext(ctx, q,
		conn.OwnerID, conn.Platform, conn.PlatformUserID, conn.PlatformPageID, conn.PlatformUsername,
		encAccess, nullableString(encRefresh), conn.TokenExpiresAt, string(metadata), conn.IsActive, now,
	); err != nil {
		logger.GetLogger().WithField("error", err).Error("mssql: upsert connection failed")
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM dbo.[platform_connections]
		 WHERE owner_id=@p1 AND platform=@p2 AND ISNULL(platform_page_id,'')=ISNULL(@p3,'')`,
		conn.OwnerID, conn.Platform, conn.PlatformPageID,
	)
	stored := *conn
	if err := row.Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *ConnectionRepositoryMSSQL) ActiveConnectionsFor(ctx context.Context, ownerID string, platforms []string) ([]*model.PlatformConnection, error) {
	q := `SELECT ` + connectionColumns + ` FROM dbo.[platform_connections] WHERE owner_id=@p1 AND is_active=1`
	args := []interface{}{ownerID}
	if len(platforms) > 0 {
		placeholders := make([]string, len(platforms))
		for i, p := range platforms {
			placeholders[i] = fmt.Sprintf("@p%d", i+2)
			args = append(args, p)
		}
		q += fmt.Sprintf(" AND platform IN (%s)", strings.Join(placeholders, ","))
	}
	q += " ORDER BY platform, id"

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

func (r *ConnectionRepositoryMSSQL) GetByOwnerAndPlatform(ctx context.Context, ownerID, platform string) (*model.PlatformConnection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP 1 `+connectionColumns+` FROM dbo.[platform_connections] WHERE owner_id=@p1 AND platform=@p2 ORDER BY id`,
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

func (r *ConnectionRepositoryMSSQL) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[platform_connections] SET is_active=0, updated_at=@p1 WHERE id=@p2`,
		time.Now().UTC(), id,
	)
	return err
}

func (r *ConnectionRepositoryMSSQL) TouchLastSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[platform_connections] SET last_synced_at=@p1, updated_at=@p1 WHERE id=@p2`,
		time.Now().UTC(), id,
	)
	return err
}

func (r *ConnectionRepositoryMSSQL) scanConnection(row rowScanner) (*model.PlatformConnection, error) {
	pg := &ConnectionRepository{cipher: r.cipher}
	return pg.scanConnection(row)
}
