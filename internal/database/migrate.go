package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		table_name  TEXT        NOT NULL,
		data        JSONB       NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ,
		deleted_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS records_table_created_idx
		ON records (table_name, created_at) WHERE deleted_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS sync_events (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		action      TEXT        NOT NULL,
		table_name  TEXT        NOT NULL,
		record_id   TEXT        NOT NULL,
		status      TEXT        NOT NULL,
		message     TEXT        NOT NULL DEFAULT '',
		error       TEXT        NOT NULL DEFAULT '',
		duration_ms BIGINT      NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS sync_events_record_idx
		ON sync_events (table_name, record_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS sync_events_status_idx
		ON sync_events (status, created_at DESC)`,
}

// Migrate creates the tables if they don't exist. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
