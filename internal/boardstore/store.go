// Package boardstore defines the interface for persisting board documents.
//
// # Why Board Store Exists
//
// A board has two lives: the live, mutable document that commands edit (with
// its undo and redo stacks) and the saved document that survives restarts.
// The workspace owns the first; a Store owns the second. Keeping them apart
// means command handling never waits on storage, and storage backends can be
// swapped (in-memory for tests and single-process use, PostgreSQL for
// servers) without touching the command protocol.
//
// # What Is Stored
//
// Only the JSON document of a board is persisted: nodes, pins with their
// edges, variables, comments, layers and the version. Command history is a
// property of the editing session and is not stored, so a board loaded from
// a Store starts with empty undo and redo stacks.
package boardstore

import (
	"context"
	"errors"
	"time"

	"github.com/specialistvlad/flowgrid/internal/board"
)

// ErrNotFound is returned when no board with the requested id is stored.
var ErrNotFound = errors.New("board not found")

// Summary describes a stored board without loading it.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the interface for saving and loading boards.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use. The workspace serialises
// writes to the same board, but different boards are saved concurrently and
// the HTTP API reads while runs are being started.
type Store interface {
	// Get loads the board with the given id. It returns ErrNotFound if no
	// such board exists. The returned board is owned by the caller.
	Get(ctx context.Context, id string) (*board.Board, error)

	// Put saves b, replacing any board stored under the same id.
	Put(ctx context.Context, b *board.Board) error

	// Delete removes a board. Deleting a missing board is not an error.
	Delete(ctx context.Context, id string) error

	// List returns a summary of every stored board, ordered by id.
	List(ctx context.Context) ([]Summary, error)
}

// Summarize builds the summary of b.
func Summarize(b *board.Board) Summary {
	return Summary{ID: b.ID, Name: b.Name, Version: b.Version.String(), UpdatedAt: b.UpdatedAt}
}
