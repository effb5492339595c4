package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/registry"
	"github.com/stretchr/testify/require"
)

// brokenNode declares a pin with a type that cannot be parsed, which fails
// registry validation.
type brokenNode struct{}

func (brokenNode) Declare() *board.Node {
	n := board.NewNode("test.broken", "Broken", "Test")
	n.AddPin(board.DataInput("in", "In", "widget"))
	return n
}

func (brokenNode) Run(context.Context, *executor.ExecutionContext) error { return nil }

type brokenModule struct{}

func (brokenModule) Register(r *registry.Registry) { r.Register(brokenNode{}) }

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "board.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"b1","name":"b"}`), 0o600))
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(context.Background(), out, []string{path}, brokenModule{})

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")
	require.Contains(t, runErr.Error(), "application startup panicked")
	require.Contains(t, runErr.Error(), "registry validation failed")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_MissingBoard(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-log-level", "error", filepath.Join(t.TempDir(), "missing.json")})

	require.ErrorContains(t, err, "reading board")
}
