// Package workspace owns the live boards of a server: it applies commands
// to them one writer at a time, keeps their undo and redo stacks, saves
// every change to a board store and starts runs from a consistent copy.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/boardstore"
	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/registry"
	"github.com/specialistvlad/flowgrid/internal/session"
)

// Service is safe for concurrent use. Writes to one board are serialised;
// different boards are independent.
type Service struct {
	reg   *registry.Registry
	store boardstore.Store
	runs  *session.Manager

	mu     sync.Mutex
	boards map[string]*entry
}

// entry holds one live board. An entry leaves the map only while its lock
// is held, and is marked retired when it does.
type entry struct {
	mu      sync.Mutex
	board   *board.Board
	retired bool
}

// New creates a Service.
func New(reg *registry.Registry, store boardstore.Store, runs *session.Manager) *Service {
	return &Service{reg: reg, store: store, runs: runs, boards: make(map[string]*entry)}
}

// Runs returns the run manager.
func (s *Service) Runs() *session.Manager { return s.runs }

// Registry returns the node type registry boards are resolved against.
func (s *Service) Registry() *registry.Registry { return s.reg }

// acquire returns the current entry for id, locked. A placeholder without a
// board is created when the id is not loaded yet.
func (s *Service) acquire(id string) *entry {
	for {
		s.mu.Lock()
		e, ok := s.boards[id]
		if !ok {
			e = &entry{}
			s.boards[id] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.retired {
			return e
		}
		e.mu.Unlock()
	}
}

// retire drops e from the map. The caller holds e.mu.
func (s *Service) retire(id string, e *entry) {
	e.retired = true
	s.mu.Lock()
	if s.boards[id] == e {
		delete(s.boards, id)
	}
	s.mu.Unlock()
}

// with loads the board on first use and calls fn holding its lock.
func (s *Service) with(ctx context.Context, id string, fn func(*board.Board) error) error {
	e := s.acquire(id)
	defer e.mu.Unlock()
	if e.board == nil {
		b, err := s.store.Get(ctx, id)
		if err != nil {
			s.retire(id, e)
			return err
		}
		b.AttachCatalog(s.reg)
		e.board = b
	}
	return fn(e.board)
}

// Create saves a new empty board.
func (s *Service) Create(ctx context.Context, name string) (*board.Board, error) {
	b := board.New(name)
	if err := s.Put(ctx, b); err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// Board returns a copy of a board.
func (s *Service) Board(ctx context.Context, id string) (*board.Board, error) {
	var out *board.Board
	err := s.with(ctx, id, func(b *board.Board) error {
		out = b.Clone()
		return nil
	})
	return out, err
}

// List summarises the stored boards.
func (s *Service) List(ctx context.Context) ([]boardstore.Summary, error) {
	return s.store.List(ctx)
}

// Put replaces a board wholesale. Dangling edges are dropped and the
// history starts over. It waits for writers of the previous version.
func (s *Service) Put(ctx context.Context, b *board.Board) error {
	b.AttachCatalog(s.reg)
	b.FixPins()

	e := s.acquire(b.ID)
	defer e.mu.Unlock()
	if err := s.store.Put(ctx, b); err != nil {
		if e.board == nil {
			s.retire(b.ID, e)
		}
		return err
	}
	e.board = b
	ctxlog.FromContext(ctx).Debug("Board replaced.", "board_id", b.ID, "nodes", len(b.Nodes))
	return nil
}

// Delete removes a board once in-flight writes to it have finished.
func (s *Service) Delete(ctx context.Context, id string) error {
	e := s.acquire(id)
	defer e.mu.Unlock()
	if err := s.store.Delete(ctx, id); err != nil {
		if e.board == nil {
			s.retire(id, e)
		}
		return err
	}
	s.retire(id, e)
	ctxlog.FromContext(ctx).Debug("Board deleted.", "board_id", id)
	return nil
}

// Execute applies a batch of commands atomically and returns them with
// their ids assigned.
func (s *Service) Execute(ctx context.Context, id string, envs []board.Envelope) ([]board.Envelope, error) {
	cmds, err := board.DecodeAll(envs)
	if err != nil {
		return nil, err
	}

	var out []board.Envelope
	err = s.with(ctx, id, func(b *board.Board) error {
		_, redo := b.History()
		applied, err := b.ExecuteCommands(cmds)
		if err != nil {
			return err
		}
		if err := s.store.Put(ctx, b); err != nil {
			return errors.Join(err, b.Rollback(applied, redo))
		}
		out, err = board.EncodeAll(applied)
		return err
	})
	if err == nil {
		ctxlog.FromContext(ctx).Debug("Commands applied.", "board_id", id, "count", len(out))
	}
	return out, err
}

// Undo reverts the commands listed newest first, or the latest one when
// envs is empty.
func (s *Service) Undo(ctx context.Context, id string, envs []board.Envelope) error {
	return s.history(ctx, id, envs, (*board.Board).Undo, (*board.Board).Redo)
}

// Redo re-applies the commands listed, or the latest undone one when envs
// is empty.
func (s *Service) Redo(ctx context.Context, id string, envs []board.Envelope) error {
	return s.history(ctx, id, envs, (*board.Board).Redo, (*board.Board).Undo)
}

func (s *Service) history(ctx context.Context, id string, envs []board.Envelope, apply, revert func(*board.Board, []board.Command) error) error {
	cmds, err := board.DecodeAll(envs)
	if err != nil {
		return err
	}
	return s.with(ctx, id, func(b *board.Board) error {
		if err := apply(b, cmds); err != nil {
			return err
		}
		if err := s.store.Put(ctx, b); err != nil {
			return errors.Join(err, revert(b, reverse(cmds)))
		}
		return nil
	})
}

// History returns the undo and redo stacks of a board, oldest first.
func (s *Service) History(ctx context.Context, id string) (undo, redo []board.Envelope, err error) {
	err = s.with(ctx, id, func(b *board.Board) error {
		u, r := b.History()
		if undo, err = board.EncodeAll(u); err != nil {
			return err
		}
		redo, err = board.EncodeAll(r)
		return err
	})
	return undo, redo, err
}

// StartRun starts a run of the current state of a board and returns its id.
func (s *Service) StartRun(ctx context.Context, id, startNode string, payload any) (string, error) {
	var snapshot *board.Board
	if err := s.with(ctx, id, func(b *board.Board) error {
		snapshot = b.Clone()
		return nil
	}); err != nil {
		return "", err
	}

	runID, err := s.runs.Start(ctx, session.RunSpec{Board: snapshot, StartNode: startNode, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("starting run of board %s: %w", id, err)
	}
	return runID, nil
}

func reverse(cmds []board.Command) []board.Command {
	out := make([]board.Command, len(cmds))
	for i, c := range cmds {
		out[len(cmds)-1-i] = c
	}
	return out
}
