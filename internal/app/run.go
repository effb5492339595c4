package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/specialistvlad/flowgrid/internal/api"
	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/session"
)

// shutdownGrace bounds how long in-flight requests and runs may take to
// finish once the server is asked to stop.
const shutdownGrace = 10 * time.Second

// Run either serves the HTTP API until the context is cancelled or loads the
// configured board, executes it once and prints a summary.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	if a.config.Serve {
		return a.serve(ctx)
	}
	return a.runBoard(ctx)
}

func (a *App) serve(ctx context.Context) error {
	srv := api.New(ctx, a.workspace, a.logs)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP API listening.", "addr", a.config.Listen)
		errCh <- srv.Listen(a.config.Listen)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	return errors.Join(srv.Shutdown(shutdownCtx), a.runs.Shutdown(shutdownCtx))
}

func (a *App) runBoard(ctx context.Context) error {
	b, err := loadBoard(a.config.BoardPath)
	if err != nil {
		return err
	}
	if err := a.workspace.Put(ctx, b); err != nil {
		return fmt.Errorf("storing board: %w", err)
	}

	var payload any
	if len(a.config.Payload) > 0 {
		if err := json.Unmarshal(a.config.Payload, &payload); err != nil {
			return fmt.Errorf("decoding payload: %w", err)
		}
	}

	res, err := a.runs.Run(ctx, session.RunSpec{
		Board:     b,
		StartNode: a.config.StartNode,
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	a.printSummary(res)

	switch res.Status {
	case session.StatusFailed:
		return fmt.Errorf("run %s failed: %s", res.RunID, res.Error)
	case session.StatusCancelled:
		return fmt.Errorf("run %s cancelled", res.RunID)
	}
	return nil
}

// loadBoard reads a board document from disk.
func loadBoard(path string) (*board.Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading board: %w", err)
	}
	b := &board.Board{}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("parsing board %s: %w", path, err)
	}
	if b.ID == "" {
		return nil, fmt.Errorf("board %s has no id", path)
	}
	return b, nil
}

func (a *App) printSummary(res *session.Result) {
	fmt.Fprintf(a.outW, "run %s: %s (%d nodes, %d log entries, %s)\n",
		res.RunID, res.Status, len(res.Trace), len(res.Logs), res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	for _, l := range res.Logs {
		fmt.Fprintf(a.outW, "  [%s] %s\n", l.Level, l.Message)
	}
}
