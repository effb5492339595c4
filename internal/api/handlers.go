package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/session"
)

type commandsRequest struct {
	Commands []board.Envelope `json:"commands"`
}

type runRequest struct {
	StartNode string          `json:"start_node"`
	Payload   json.RawMessage `json:"payload"`
}

func badRequest(c fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
}

func (s *Server) nodeTypes(c fiber.Ctx) error {
	reg := s.ws.Registry()
	out := make([]*board.Node, 0)
	for _, name := range reg.Types() {
		if n, ok := reg.NodeTemplate(name); ok {
			out = append(out, n)
		}
	}
	return c.JSON(out)
}

func (s *Server) listBoards(c fiber.Ctx) error {
	list, err := s.ws.List(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(list)
}

func (s *Server) createBoard(c fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c)
	}
	b, err := s.ws.Create(c.Context(), req.Name)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

func (s *Server) getBoard(c fiber.Ctx) error {
	b, err := s.ws.Board(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(b)
}

func (s *Server) putBoard(c fiber.Ctx) error {
	var b board.Board
	if err := json.Unmarshal(c.Body(), &b); err != nil {
		return badRequest(c)
	}
	b.ID = c.Params("id")
	if err := s.ws.Put(c.Context(), &b); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(&b)
}

func (s *Server) deleteBoard(c fiber.Ctx) error {
	if err := s.ws.Delete(c.Context(), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) history(c fiber.Ctx) error {
	undo, redo, err := s.ws.History(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"undo": undo, "redo": redo})
}

func (s *Server) executeCommands(c fiber.Ctx) error {
	var req commandsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c)
	}
	applied, err := s.ws.Execute(c.Context(), c.Params("id"), req.Commands)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(commandsRequest{Commands: applied})
}

func (s *Server) undo(c fiber.Ctx) error {
	return s.historyStep(c, s.ws.Undo)
}

func (s *Server) redo(c fiber.Ctx) error {
	return s.historyStep(c, s.ws.Redo)
}

func (s *Server) historyStep(c fiber.Ctx, step func(ctx context.Context, id string, envs []board.Envelope) error) error {
	var req commandsRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c)
		}
	}
	if err := step(c.Context(), c.Params("id"), req.Commands); err != nil {
		return s.fail(c, err)
	}
	return s.getBoard(c)
}

func (s *Server) startRun(c fiber.Ctx) error {
	var req runRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c)
		}
	}
	var payload any
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return badRequest(c)
		}
	}

	runID, err := s.ws.StartRun(c.Context(), c.Params("id"), req.StartNode, payload)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"run_id": runID})
}

func (s *Server) activeRuns(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"active": s.ws.Runs().Active()})
}

func (s *Server) getRun(c fiber.Ctx) error {
	id := c.Params("id")
	if res, ok := s.ws.Runs().Status(id); ok {
		return c.JSON(res)
	}
	if s.logs == nil {
		return s.fail(c, session.ErrRunNotFound)
	}
	run, err := s.logs.Load(c.Context(), id)
	if err != nil {
		return s.fail(c, errors.Join(session.ErrRunNotFound, err))
	}
	return c.JSON(run)
}

func (s *Server) cancelRun(c fiber.Ctx) error {
	if err := s.ws.Runs().Cancel(c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}
