// Package logstore defines where the log buffer, trace and metadata of a run
// end up once the run is over.
//
// A run collects its logs and trace in memory. When it finishes, or when it
// is cancelled and the bounded flush window allows it, the session hands
// everything to a Store obtained from the configured SinkFactory. The
// factory receives a path derived from the board and run ids, which file or
// bucket backed sinks can use as a key prefix.
package logstore

import (
	"context"
	"errors"
	"time"

	"github.com/specialistvlad/flowgrid/internal/executor"
)

// ErrNotFound is returned by Load for unknown runs.
var ErrNotFound = errors.New("run not found in log store")

// Metadata summarises a flushed run.
type Metadata struct {
	RunID      string    `json:"run_id"`
	BoardID    string    `json:"board_id"`
	Path       string    `json:"path"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	NodeCount  int       `json:"node_count"`
	LogCount   int       `json:"log_count"`
	ErrorCount int       `json:"error_count"`
}

// Run is everything stored for one run.
type Run struct {
	Metadata Metadata              `json:"metadata"`
	Logs     []executor.LogEntry   `json:"logs"`
	Trace    []executor.TraceEntry `json:"trace"`
}

// Store persists finished runs. Implementations must be safe for concurrent
// use; runs flush independently.
type Store interface {
	// Flush writes a run. It must honour ctx, since cancelled runs flush
	// under a deadline.
	Flush(ctx context.Context, meta Metadata, logs []executor.LogEntry, trace []executor.TraceEntry) error

	// Load reads a run back, or returns ErrNotFound.
	Load(ctx context.Context, runID string) (*Run, error)
}

// SinkFactory opens the Store a run is flushed to.
type SinkFactory func(ctx context.Context, path string) (Store, error)

// Summarize builds run metadata from the collected logs and trace.
func Summarize(meta Metadata, logs []executor.LogEntry, trace []executor.TraceEntry) Metadata {
	nodes := make(map[string]struct{}, len(trace))
	errCount := 0
	for _, e := range trace {
		nodes[e.NodeID] = struct{}{}
		if e.Error != "" {
			errCount++
		}
	}
	meta.NodeCount = len(nodes)
	meta.LogCount = len(logs)
	meta.ErrorCount = errCount
	return meta
}
