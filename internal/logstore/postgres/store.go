// Package postgres implements logstore.Store on PostgreSQL via pgx. Logs
// and trace entries are bulk loaded with COPY inside the transaction that
// writes the run metadata.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/logstore"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    board_id    TEXT NOT NULL,
    path        TEXT NOT NULL,
    status      TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    node_count  INT NOT NULL,
    log_count   INT NOT NULL,
    error_count INT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_logs (
    run_id  TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    seq     INT NOT NULL,
    time    TIMESTAMPTZ NOT NULL,
    level   TEXT NOT NULL,
    node_id TEXT NOT NULL,
    idx     INT NOT NULL,
    message TEXT NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS run_trace (
    run_id    TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    seq       INT NOT NULL,
    node_id   TEXT NOT NULL,
    node_type TEXT NOT NULL,
    idx       INT NOT NULL,
    started   TIMESTAMPTZ NOT NULL,
    ended     TIMESTAMPTZ NOT NULL,
    error     TEXT NOT NULL,
    PRIMARY KEY (run_id, seq)
);
`

// Store implements logstore.Store using PostgreSQL.
type Store struct {
	db *pgxpool.Pool
}

// New creates a Store backed by the given pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

var _ logstore.Store = (*Store)(nil)

// Sink returns a factory that opens s for every path. The path is kept in
// the run metadata.
func (s *Store) Sink() logstore.SinkFactory {
	return func(context.Context, string) (logstore.Store, error) { return s, nil }
}

// CreateSchema creates the run tables if they don't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

func (s *Store) Flush(ctx context.Context, meta logstore.Metadata, logs []executor.LogEntry, trace []executor.TraceEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("logstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM runs WHERE run_id = $1`, meta.RunID); err != nil {
		return fmt.Errorf("logstore: replace run: %w", err)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO runs (run_id, board_id, path, status, started_at, finished_at, node_count, log_count, error_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		meta.RunID, meta.BoardID, meta.Path, meta.Status, meta.StartedAt, meta.FinishedAt,
		meta.NodeCount, meta.LogCount, meta.ErrorCount,
	); err != nil {
		return fmt.Errorf("logstore: insert run: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"run_logs"},
		[]string{"run_id", "seq", "time", "level", "node_id", "idx", "message"},
		pgx.CopyFromSlice(len(logs), func(i int) ([]any, error) {
			l := logs[i]
			return []any{meta.RunID, i, l.Time, l.Level, l.NodeID, l.Index, l.Message}, nil
		}),
	); err != nil {
		return fmt.Errorf("logstore: copy logs: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"run_trace"},
		[]string{"run_id", "seq", "node_id", "node_type", "idx", "started", "ended", "error"},
		pgx.CopyFromSlice(len(trace), func(i int) ([]any, error) {
			e := trace[i]
			return []any{meta.RunID, i, e.NodeID, e.NodeType, e.Index, e.Start, e.End, e.Error}, nil
		}),
	); err != nil {
		return fmt.Errorf("logstore: copy trace: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("logstore: commit: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, runID string) (*logstore.Run, error) {
	run := &logstore.Run{}
	m := &run.Metadata
	err := s.db.QueryRow(ctx, `
SELECT run_id, board_id, path, status, started_at, finished_at, node_count, log_count, error_count
FROM runs WHERE run_id = $1`, runID,
	).Scan(&m.RunID, &m.BoardID, &m.Path, &m.Status, &m.StartedAt, &m.FinishedAt, &m.NodeCount, &m.LogCount, &m.ErrorCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", logstore.ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("logstore: load run: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT time, level, node_id, idx, message FROM run_logs WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("logstore: query logs: %w", err)
	}
	run.Logs, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (executor.LogEntry, error) {
		var l executor.LogEntry
		err := row.Scan(&l.Time, &l.Level, &l.NodeID, &l.Index, &l.Message)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("logstore: scan logs: %w", err)
	}

	rows, err = s.db.Query(ctx,
		`SELECT node_id, node_type, idx, started, ended, error FROM run_trace WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("logstore: query trace: %w", err)
	}
	run.Trace, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (executor.TraceEntry, error) {
		var e executor.TraceEntry
		err := row.Scan(&e.NodeID, &e.NodeType, &e.Index, &e.Start, &e.End, &e.Error)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("logstore: scan trace: %w", err)
	}
	return run, nil
}
