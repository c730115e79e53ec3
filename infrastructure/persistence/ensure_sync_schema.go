package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureSyncSchema creates the synchronization tables and the sync-state
// columns on events if they are missing. Safe to call at startup.
func EnsureSyncSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS platform_connections (
			id BIGSERIAL PRIMARY KEY,
			owner_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			platform_user_id TEXT NOT NULL DEFAULT '',
			platform_page_id TEXT,
			platform_username TEXT,
			access_token TEXT NOT NULL,
			refresh_token TEXT,
			token_expires_at TIMESTAMPTZ,
			metadata JSONB NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_synced_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS platform_connections_owner_platform_page_key
			ON platform_connections (owner_id, platform, COALESCE(platform_page_id, ''))`,
		`CREATE TABLE IF NOT EXISTS sync_jobs (
			id BIGSERIAL PRIMARY KEY,
			event_id BIGINT NOT NULL,
			action TEXT NOT NULL,
			platforms JSONB,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INT NOT NULL DEFAULT 0,
			next_run_at TIMESTAMPTZ NOT NULL,
			last_error TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sync_jobs_due_idx ON sync_jobs (status, next_run_at)`,
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure sync schema: %w", err)
		}
	}

	// Sync-state columns on events, added conditionally for existing installs.
	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"events", "social_platform_ids", `ALTER TABLE events ADD COLUMN social_platform_ids JSONB NOT NULL DEFAULT '{}'`},
		{"events", "sync_status", `ALTER TABLE events ADD COLUMN sync_status TEXT NOT NULL DEFAULT 'pending'`},
		{"events", "sync_errors", `ALTER TABLE events ADD COLUMN sync_errors JSONB NOT NULL DEFAULT '{}'`},
		{"events", "last_synced_at", `ALTER TABLE events ADD COLUMN last_synced_at TIMESTAMPTZ`},
	}
	for _, c := range checks {
		exists, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
