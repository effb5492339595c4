// Package api serves boards and runs over HTTP with fiber.
package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/boardstore"
	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/graph"
	"github.com/specialistvlad/flowgrid/internal/logstore"
	"github.com/specialistvlad/flowgrid/internal/session"
	"github.com/specialistvlad/flowgrid/internal/workspace"
)

// Server wires the HTTP routes to a workspace.
type Server struct {
	app  *fiber.App
	ws   *workspace.Service
	logs logstore.Store
	ctx  context.Context
}

// New builds the routes. ctx carries the logger handlers log with. logs,
// when set, is used to serve flushed runs that are no longer tracked.
func New(ctx context.Context, ws *workspace.Service, logs logstore.Store) *Server {
	s := &Server{
		app:  fiber.New(fiber.Config{AppName: "flowgrid"}),
		ws:   ws,
		logs: logs,
		ctx:  ctx,
	}

	s.app.Get("/health", func(c fiber.Ctx) error {
		return c.SendString("OK")
	})

	s.app.Get("/node-types", s.nodeTypes)

	s.app.Get("/boards", s.listBoards)
	s.app.Post("/boards", s.createBoard)
	s.app.Get("/boards/:id", s.getBoard)
	s.app.Put("/boards/:id", s.putBoard)
	s.app.Delete("/boards/:id", s.deleteBoard)
	s.app.Get("/boards/:id/history", s.history)
	s.app.Post("/boards/:id/commands", s.executeCommands)
	s.app.Post("/boards/:id/undo", s.undo)
	s.app.Post("/boards/:id/redo", s.redo)
	s.app.Post("/boards/:id/runs", s.startRun)

	s.app.Get("/runs", s.activeRuns)
	s.app.Get("/runs/:id", s.getRun)
	s.app.Delete("/runs/:id", s.cancelRun)
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	ctxlog.FromContext(s.ctx).Info("HTTP server starting.", "address", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// fail maps err to a status code and writes it as {"error": ...}.
func (s *Server) fail(c fiber.Ctx, err error) error {
	status := statusOf(err)
	if status >= fiber.StatusInternalServerError {
		ctxlog.FromContext(s.ctx).Error("Request failed.", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, boardstore.ErrNotFound),
		errors.Is(err, session.ErrRunNotFound),
		errors.Is(err, logstore.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, board.ErrHistoryMismatch),
		errors.Is(err, board.ErrNothingToUndo),
		errors.Is(err, board.ErrNothingToRedo),
		errors.Is(err, session.ErrRunExists):
		return fiber.StatusConflict
	case errors.Is(err, board.ErrNodeNotFound),
		errors.Is(err, board.ErrNodeExists),
		errors.Is(err, board.ErrPinNotFound),
		errors.Is(err, board.ErrSelfConnection),
		errors.Is(err, board.ErrPinDirection),
		errors.Is(err, board.ErrKindMismatch),
		errors.Is(err, board.ErrVariableNotFound),
		errors.Is(err, board.ErrCommentNotFound),
		errors.Is(err, board.ErrUnknownCommand),
		errors.Is(err, graph.ErrUnresolvedPin),
		errors.Is(err, graph.ErrUnknownNodeType),
		errors.Is(err, graph.ErrInvalidType),
		errors.Is(err, graph.ErrDataCycle),
		errors.Is(err, session.ErrNoStartNode),
		errors.Is(err, session.ErrInvalidStart):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
