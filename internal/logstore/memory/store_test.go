package memory

import (
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/logstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushAndLoad(t *testing.T) {
	s := New()
	ctx := context.Background()
	store, err := s.Sink()(ctx, "runs/b1/r1")
	require.NoError(t, err)

	trace := []executor.TraceEntry{
		{NodeID: "a", Start: time.Now(), End: time.Now()},
		{NodeID: "b", Index: 1, Error: "boom"},
		{NodeID: "b", Index: 2},
	}
	logs := []executor.LogEntry{{Level: "INFO", NodeID: "a", Message: "hi"}}
	meta := logstore.Summarize(logstore.Metadata{RunID: "r1", BoardID: "b1", Path: "runs/b1/r1"}, logs, trace)

	require.NoError(t, store.Flush(ctx, meta, logs, trace))
	run, err := s.Load(ctx, "r1")

	require.NoError(t, err)
	assert.Equal(t, 2, run.Metadata.NodeCount)
	assert.Equal(t, 1, run.Metadata.LogCount)
	assert.Equal(t, 1, run.Metadata.ErrorCount)
	assert.Len(t, run.Trace, 3)
	assert.Equal(t, "hi", run.Logs[0].Message)
}

func TestFlush_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New().Flush(ctx, logstore.Metadata{RunID: "r"}, nil, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := New().Load(context.Background(), "missing")
	assert.ErrorIs(t, err, logstore.ErrNotFound)
}
