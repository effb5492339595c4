// Package memory provides a simple, thread-safe, in-memory implementation of
// the boardstore.Store interface.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/boardstore"
)

// Store keeps each board as its JSON document, so what comes back out has
// been through the same encoding as with a persistent backend.
type Store struct {
	mu      sync.RWMutex
	docs    map[string][]byte
	summary map[string]boardstore.Summary
}

// New creates a new, empty in-memory board store.
func New() *Store {
	return &Store{
		docs:    make(map[string][]byte),
		summary: make(map[string]boardstore.Summary),
	}
}

var _ boardstore.Store = (*Store)(nil)

// Get decodes a fresh copy of the stored board.
func (s *Store) Get(ctx context.Context, id string) (*board.Board, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", boardstore.ErrNotFound, id)
	}

	var b board.Board
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, fmt.Errorf("decoding board %s: %w", id, err)
	}
	return &b, nil
}

// Put stores the encoded board.
func (s *Store) Put(ctx context.Context, b *board.Board) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding board %s: %w", b.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[b.ID] = doc
	s.summary[b.ID] = boardstore.Summarize(b)
	return nil
}

// Delete removes a board.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	delete(s.summary, id)
	return nil
}

// List returns summaries ordered by id.
func (s *Store) List(ctx context.Context) ([]boardstore.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]boardstore.Summary, 0, len(s.summary))
	for _, sum := range s.summary {
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
