package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxagent/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const (
	sqlCreateSchema = `
        CREATE TABLE IF NOT EXISTS transcript_entries (
            id              BIGSERIAL PRIMARY KEY,
            run_id          TEXT        NOT NULL,
            step            INTEGER     NOT NULL,
            phase           TEXT        NOT NULL,
            recorded_at     TIMESTAMPTZ NOT NULL,
            observation_ref TEXT        NOT NULL DEFAULT '',
            thought         TEXT        NOT NULL DEFAULT '',
            action          JSONB,
            outcome         TEXT        NOT NULL DEFAULT '',
            error_code      TEXT        NOT NULL DEFAULT ''
        );
        CREATE INDEX IF NOT EXISTS transcript_entries_run_idx ON transcript_entries (run_id, id);
    `
	sqlInsertEntry = `
        INSERT INTO transcript_entries (run_id, step, phase, recorded_at, observation_ref, thought, action, outcome, error_code)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `
	sqlSelectRun = `
        SELECT run_id, step, phase, recorded_at, observation_ref, thought, action, outcome, error_code
        FROM transcript_entries
        WHERE run_id = $1
        ORDER BY id ASC;
    `
)

var entryColumns = []string{"run_id", "step", "phase", "recorded_at", "observation_ref", "thought", "action", "outcome", "error_code"}

// Store is a PostgreSQL transcript sink. It implements schemas.Recorder.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.Recorder = (*Store)(nil)

// Connect opens a pgx pool for url and wraps it in a Store.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// EnsureSchema creates the transcript table and its index when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateSchema); err != nil {
		return fmt.Errorf("failed to create transcript schema: %w", err)
	}
	return nil
}

// Record inserts a single entry.
func (s *Store) Record(ctx context.Context, e schemas.TranscriptEntry) error {
	action, err := actionJSON(e.Action)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, sqlInsertEntry, entryRow(e, action)...); err != nil {
		return fmt.Errorf("failed to insert transcript entry: %w", err)
	}
	return nil
}

// Import bulk loads entries in one transaction, typically from a JSONL file.
func (s *Store) Import(ctx context.Context, entries []schemas.TranscriptEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	rows := make([][]interface{}, len(entries))
	for i, e := range entries {
		action, err := actionJSON(e.Action)
		if err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
		rows[i] = entryRow(e, action)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"transcript_entries"}, entryColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy transcript entries: %w", err)
	}
	if int(n) != len(entries) {
		return 0, fmt.Errorf("mismatch in copied entries count: expected %d, got %d", len(entries), n)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Imported transcript entries.", zap.Int64("count", n))
	return n, nil
}

// ListRun returns the entries of one run in insertion order.
func (s *Store) ListRun(ctx context.Context, runID string) ([]schemas.TranscriptEntry, error) {
	rows, err := s.pool.Query(ctx, sqlSelectRun, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var entries []schemas.TranscriptEntry
	for rows.Next() {
		var (
			e      schemas.TranscriptEntry
			phase  string
			action []byte
		)
		if err := rows.Scan(&e.RunID, &e.Step, &phase, &e.Timestamp, &e.ObservationRef,
			&e.Thought, &action, &e.Outcome, &e.ErrorCode); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		e.Phase = schemas.Phase(phase)
		if len(action) > 0 && string(action) != "null" {
			var intent schemas.Intent
			if err := json.Unmarshal(action, &intent); err != nil {
				return nil, fmt.Errorf("failed to decode action of step %d: %w", e.Step, err)
			}
			e.Action = &intent
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func actionJSON(action *schemas.Intent) ([]byte, error) {
	if action == nil {
		return nil, nil
	}
	b, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action: %w", err)
	}
	return b, nil
}

func entryRow(e schemas.TranscriptEntry, action []byte) []interface{} {
	return []interface{}{
		e.RunID, e.Step, string(e.Phase), e.Timestamp.UTC(),
		e.ObservationRef, e.Thought, action, e.Outcome, e.ErrorCode,
	}
}
