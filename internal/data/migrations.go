package data

import (
	"context"
	"database/sql"
	"fmt"
)

// schema holds the DDL the sync core depends on. The statement list is
// idempotent so startup can apply it unconditionally.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS alerts (
		id           TEXT PRIMARY KEY,
		tenant_id    TEXT NOT NULL,
		fingerprint  TEXT NOT NULL DEFAULT '',
		title        TEXT NOT NULL,
		severity     TEXT NOT NULL DEFAULT 'info',
		status       TEXT NOT NULL DEFAULT 'open',
		payload      JSONB NOT NULL DEFAULT '{}'::jsonb,
		version      BIGINT NOT NULL DEFAULT 1,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT alerts_version_positive CHECK (version >= 1)
	)`,
	`CREATE INDEX IF NOT EXISTS alerts_tenant_status_idx ON alerts (tenant_id, status)`,
	`CREATE INDEX IF NOT EXISTS alerts_tenant_updated_idx ON alerts (tenant_id, last_updated DESC)`,
}

// RunMigrations applies the alert schema. Statements are executed in order
// and the first failure aborts the run.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
