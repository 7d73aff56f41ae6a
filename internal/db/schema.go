package db

import (
	"context"
	"fmt"
)

// schema is applied at startup. Statements are idempotent so repeated
// startups against the same database are safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS optimization_runs (
		id         UUID PRIMARY KEY,
		status     TEXT NOT NULL,
		stage      TEXT NOT NULL,
		round      INT NOT NULL,
		state      JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ended_at   TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS run_events (
		run_id     UUID NOT NULL REFERENCES optimization_runs(id) ON DELETE CASCADE,
		seq        BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS stage_outputs (
		run_id     UUID NOT NULL REFERENCES optimization_runs(id) ON DELETE CASCADE,
		stage      TEXT NOT NULL,
		content    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, stage)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_status ON optimization_runs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created ON optimization_runs(created_at DESC)`,
}

// Migrate creates the tables and indexes if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
