// Package memory keeps flushed runs in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/logstore"
)

// Store implements logstore.Store with a map guarded by a mutex.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*logstore.Run
}

// New creates an empty store.
func New() *Store {
	return &Store{runs: make(map[string]*logstore.Run)}
}

var _ logstore.Store = (*Store)(nil)

// Sink returns a factory that always opens s, whatever the path.
func (s *Store) Sink() logstore.SinkFactory {
	return func(context.Context, string) (logstore.Store, error) { return s, nil }
}

func (s *Store) Flush(ctx context.Context, meta logstore.Metadata, logs []executor.LogEntry, trace []executor.TraceEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[meta.RunID] = &logstore.Run{
		Metadata: meta,
		Logs:     append([]executor.LogEntry(nil), logs...),
		Trace:    append([]executor.TraceEntry(nil), trace...),
	}
	return nil
}

func (s *Store) Load(ctx context.Context, runID string) (*logstore.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", logstore.ErrNotFound, runID)
	}
	cp := *run
	return &cp, nil
}
