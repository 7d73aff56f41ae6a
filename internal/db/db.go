// Package db provides PostgreSQL persistence for pipeline runs: snapshot
// storage, the append-only run event stream, and stage output artifacts.
// It implements pipeline.Store.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// CreateRun inserts the run snapshot and its initial events in one
// transaction.
func (db *DB) CreateRun(ctx context.Context, state *types.RunState, events []types.ProgressEvent) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO optimization_runs (id, status, stage, round, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		state.ID, state.Status, state.Stage, state.Round, stateJSON, state.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	if err := appendEvents(ctx, tx, events); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ApplyTransition updates the run snapshot and appends the transition's
// events atomically. The event insert has a primary key on (run_id, seq),
// so a replayed transition fails loudly instead of corrupting the stream.
func (db *DB) ApplyTransition(ctx context.Context, state *types.RunState, events []types.ProgressEvent) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE optimization_runs
		 SET status = $2, stage = $3, round = $4, state = $5, ended_at = $6
		 WHERE id = $1`,
		state.ID, state.Status, state.Stage, state.Round, stateJSON, state.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", state.ID)
	}

	if err := appendEvents(ctx, tx, events); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func appendEvents(ctx context.Context, tx pgx.Tx, events []types.ProgressEvent) error {
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event %d: %w", e.Seq, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO run_events (run_id, seq, event_type, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			e.RunID, e.Seq, e.Type, payload, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to append event %d: %w", e.Seq, err)
		}
	}
	return nil
}

// GetRun loads the latest snapshot for a run, nil if unknown.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*types.RunState, error) {
	var stateJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT state FROM optimization_runs WHERE id = $1`,
		runID,
	).Scan(&stateJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var state types.RunState
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return &state, nil
}

// ListEvents returns a run's full event stream in sequence order.
func (db *DB) ListEvents(ctx context.Context, runID uuid.UUID) ([]types.ProgressEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT payload FROM run_events WHERE run_id = $1 ORDER BY seq ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []types.ProgressEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var e types.ProgressEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListActiveRuns returns ids of runs in a non-terminal status.
func (db *DB) ListActiveRuns(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id FROM optimization_runs
		 WHERE status IN ('running', 'paused')
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active runs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRuns returns recent run snapshots, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]*types.RunState, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT state FROM optimization_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*types.RunState
	for rows.Next() {
		var stateJSON []byte
		if err := rows.Scan(&stateJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		var state types.RunState
		if err := json.Unmarshal(stateJSON, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
		}
		runs = append(runs, &state)
	}
	return runs, rows.Err()
}

// SaveStageOutput stores a stage's output artifact, replacing any earlier
// output for the same stage from a previous round.
func (db *DB) SaveStageOutput(ctx context.Context, runID uuid.UUID, output *types.StageOutput) error {
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal stage output: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO stage_outputs (run_id, stage, content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (run_id, stage) DO UPDATE SET content = $3, created_at = NOW()`,
		runID, output.Stage, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save %s output: %w", output.Stage, err)
	}
	return nil
}

// GetStageOutput loads a recorded stage output, nil if absent.
func (db *DB) GetStageOutput(ctx context.Context, runID uuid.UUID, stage types.Stage) (*types.StageOutput, error) {
	var payload []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM stage_outputs WHERE run_id = $1 AND stage = $2`,
		runID, stage,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s output: %w", stage, err)
	}

	var output types.StageOutput
	if err := json.Unmarshal(payload, &output); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stage output: %w", err)
	}
	return &output, nil
}
