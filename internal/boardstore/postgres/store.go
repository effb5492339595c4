// Package postgres implements boardstore.Store on PostgreSQL via pgx. Each
// board is one row holding its JSON document.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/boardstore"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS boards (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    version    TEXT NOT NULL,
    doc        JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Store implements boardstore.Store using PostgreSQL.
type Store struct {
	db *pgxpool.Pool
}

// New creates a Store backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

var _ boardstore.Store = (*Store)(nil)

// CreateSchema creates the boards table if it doesn't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*board.Board, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, `SELECT doc FROM boards WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", boardstore.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("boardstore: get %s: %w", id, err)
	}

	var b board.Board
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, fmt.Errorf("boardstore: decode %s: %w", id, err)
	}
	return &b, nil
}

func (s *Store) Put(ctx context.Context, b *board.Board) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("boardstore: encode %s: %w", b.ID, err)
	}
	_, err = s.db.Exec(ctx, `
INSERT INTO boards (id, name, version, doc, updated_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, version = EXCLUDED.version, doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		b.ID, b.Name, b.Version.String(), doc, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("boardstore: put %s: %w", b.ID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id); err != nil {
		return fmt.Errorf("boardstore: delete %s: %w", id, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]boardstore.Summary, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, version, updated_at FROM boards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("boardstore: list: %w", err)
	}
	defer rows.Close()

	var out []boardstore.Summary
	for rows.Next() {
		var sum boardstore.Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Version, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("boardstore: scan: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardstore: rows: %w", err)
	}
	return out, nil
}
