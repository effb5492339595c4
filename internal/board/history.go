package board

import (
	"errors"
	"fmt"
)

// ExecuteCommand applies cmd, records it on the undo stack and clears the
// redo stack. On error the board and the history are left untouched.
func (b *Board) ExecuteCommand(cmd Command) (Command, error) {
	cmd.assignID()
	if err := cmd.Execute(b); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Kind(), err)
	}
	b.undo = append(b.undo, cmd)
	b.redo = nil
	b.touch()
	return cmd, nil
}

// ExecuteCommands applies a batch. When one command fails, the commands of
// the batch applied so far are rolled back and the error is returned.
func (b *Board) ExecuteCommands(cmds []Command) ([]Command, error) {
	applied := make([]Command, 0, len(cmds))
	for i, cmd := range cmds {
		cmd.assignID()
		if err := cmd.Execute(b); err != nil {
			rollbackErr := undoAll(b, applied)
			return nil, errors.Join(fmt.Errorf("command %d (%s): %w", i, cmd.Kind(), err), rollbackErr)
		}
		applied = append(applied, cmd)
	}
	if len(applied) == 0 {
		return applied, nil
	}
	b.undo = append(b.undo, applied...)
	b.redo = nil
	b.touch()
	return applied, nil
}

// Undo reverts the most recent commands. cmds lists the commands the caller
// expects to undo, newest first; each one must match the undo stack by kind
// and id. An empty list undoes the single most recent command.
func (b *Board) Undo(cmds []Command) error {
	targets, err := matchTop(b.undo, cmds, ErrNothingToUndo)
	if err != nil {
		return err
	}

	done := make([]Command, 0, len(targets))
	for _, cmd := range targets {
		if err := cmd.Undo(b); err != nil {
			return errors.Join(fmt.Errorf("undo %s: %w", cmd.Kind(), err), redoAll(b, done))
		}
		done = append(done, cmd)
	}

	b.undo = b.undo[:len(b.undo)-len(targets)]
	b.redo = append(b.redo, targets...)
	b.touch()
	return nil
}

// Redo re-applies the most recently undone commands. cmds lists them in the
// order they are re-applied; each one must match the redo stack by kind and
// id. An empty list redoes a single command.
func (b *Board) Redo(cmds []Command) error {
	targets, err := matchTop(b.redo, cmds, ErrNothingToRedo)
	if err != nil {
		return err
	}

	done := make([]Command, 0, len(targets))
	for _, cmd := range targets {
		if err := cmd.Execute(b); err != nil {
			return errors.Join(fmt.Errorf("redo %s: %w", cmd.Kind(), err), undoAll(b, done))
		}
		done = append(done, cmd)
	}

	b.redo = b.redo[:len(b.redo)-len(targets)]
	b.undo = append(b.undo, targets...)
	b.touch()
	return nil
}

// Rollback reverts applied, the batch most recently returned by
// ExecuteCommands, and removes it from the undo stack without offering it
// for redo. redo becomes the redo stack, normally the one captured with
// History before the batch ran.
func (b *Board) Rollback(applied, redo []Command) error {
	if len(applied) == 0 {
		return nil
	}
	newestFirst := make([]Command, len(applied))
	for i, c := range applied {
		newestFirst[len(applied)-1-i] = c
	}
	if _, err := matchTop(b.undo, newestFirst, ErrNothingToUndo); err != nil {
		return err
	}
	if err := undoAll(b, applied); err != nil {
		return err
	}
	b.undo = b.undo[:len(b.undo)-len(applied)]
	b.redo = redo
	b.touch()
	return nil
}

// History returns copies of the undo and redo stacks, oldest first.
func (b *Board) History() (undo, redo []Command) {
	return append([]Command(nil), b.undo...), append([]Command(nil), b.redo...)
}

// matchTop returns the stored commands the request refers to, ordered from
// the top of the stack down.
func matchTop(stack, requested []Command, empty error) ([]Command, error) {
	n := len(requested)
	if n == 0 {
		n = 1
	}
	if len(stack) == 0 || n > len(stack) {
		return nil, empty
	}

	out := make([]Command, 0, n)
	for i := 0; i < n; i++ {
		stored := stack[len(stack)-1-i]
		if len(requested) > 0 {
			req := requested[i]
			if req.Kind() != stored.Kind() || req.CommandID() != stored.CommandID() {
				return nil, fmt.Errorf("%w: expected %s %s, got %s %s",
					ErrHistoryMismatch, stored.Kind(), stored.CommandID(), req.Kind(), req.CommandID())
			}
		}
		out = append(out, stored)
	}
	return out, nil
}

// undoAll reverts applied commands, newest first.
func undoAll(b *Board, applied []Command) error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		if err := applied[i].Undo(b); err != nil {
			errs = append(errs, fmt.Errorf("rollback %s: %w", applied[i].Kind(), err))
		}
	}
	return errors.Join(errs...)
}

// redoAll re-applies undone commands in reverse order of undoing.
func redoAll(b *Board, undone []Command) error {
	var errs []error
	for i := len(undone) - 1; i >= 0; i-- {
		if err := undone[i].Execute(b); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", undone[i].Kind(), err))
		}
	}
	return errors.Join(errs...)
}
