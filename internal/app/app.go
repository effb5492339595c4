package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/specialistvlad/flowgrid/internal/boardstore"
	boardmemory "github.com/specialistvlad/flowgrid/internal/boardstore/memory"
	boardpg "github.com/specialistvlad/flowgrid/internal/boardstore/postgres"
	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/events"
	"github.com/specialistvlad/flowgrid/internal/events/socketio"
	"github.com/specialistvlad/flowgrid/internal/logstore"
	logmemory "github.com/specialistvlad/flowgrid/internal/logstore/memory"
	logpg "github.com/specialistvlad/flowgrid/internal/logstore/postgres"
	"github.com/specialistvlad/flowgrid/internal/registry"
	"github.com/specialistvlad/flowgrid/internal/session"
	"github.com/specialistvlad/flowgrid/internal/workspace"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	registry  *registry.Registry
	boards    boardstore.Store
	logs      logstore.Store
	sink      logstore.SinkFactory
	publisher events.Publisher
	runs      *session.Manager
	workspace *workspace.Service
	closers   []func() error
}

// NewApp is the constructor for the main application. It builds its own
// isolated logger and registry, then connects storage and the event hub.
// An invalid registry is a programmer error and panics.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New().Load(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "node_types", len(reg.Types()))

	if err := reg.Validate(ctx); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	a := &App{outW: outW, logger: logger, config: cfg, registry: reg}
	if err := a.connectStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.connectEvents(ctx)

	a.runs = session.NewManager(reg, session.Config{
		FlushTimeout:  cfg.FlushTimeout,
		LogSink:       a.sink,
		Publisher:     a.publisher,
		LogLevel:      parseLevel(cfg.LogLevel),
		MaxConcurrent: cfg.MaxConcurrent,
	})
	a.workspace = workspace.New(reg, a.boards, a.runs)
	return a, nil
}

func (a *App) connectStorage(ctx context.Context) error {
	if a.config.DatabaseURL == "" {
		a.logger.Debug("Using in-memory storage.")
		logs := logmemory.New()
		a.boards, a.logs, a.sink = boardmemory.New(), logs, logs.Sink()
		return nil
	}

	pool, err := pgxpool.New(ctx, a.config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	boards, logs := boardpg.New(pool), logpg.New(pool)
	if err := boards.CreateSchema(ctx); err != nil {
		return fmt.Errorf("creating board schema: %w", err)
	}
	if err := logs.CreateSchema(ctx); err != nil {
		return fmt.Errorf("creating run log schema: %w", err)
	}
	a.boards, a.logs, a.sink = boards, logs, logs.Sink()
	a.logger.Info("Connected to PostgreSQL.")
	return nil
}

// connectEvents dials the event hub. The hub is optional: when it cannot
// be reached, runs still work and events are dropped.
func (a *App) connectEvents(ctx context.Context) {
	a.publisher = events.Nop{}
	if a.config.SocketIOURL == "" {
		return
	}
	pub, err := socketio.Dial(ctx, socketio.Config{
		URL:                a.config.SocketIOURL,
		Namespace:          a.config.SocketIONamespace,
		Event:              a.config.SocketIOEvent,
		InsecureSkipVerify: a.config.SocketIOInsecure,
	})
	if err != nil {
		a.logger.Warn("Event hub unavailable, run events will not be streamed.", "error", err)
		return
	}
	a.publisher = pub
	a.closers = append(a.closers, pub.Close)
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Workspace returns the board workspace.
func (a *App) Workspace() *workspace.Service {
	return a.workspace
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
