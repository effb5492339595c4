package print

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/pintype"
	"github.com/specialistvlad/flowgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the print node.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&Log{})
}

// Log writes its message to the run log.
type Log struct{}

func (Log) Declare() *board.Node {
	n := board.NewNode("print.log", "Log", "Debug")
	n.Icon = "terminal"
	n.AddPin(board.ExecInput("exec", "Exec"))
	n.AddPin(board.DataInput("message", "Message", pintype.Any).WithDefault(""))
	n.AddPin(board.DataInput("level", "Level", "string").WithDefault("info").
		WithDescription("One of debug, info, warn or error."))
	n.AddPin(board.ExecOutput("then", "Then"))
	return n
}

func (Log) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	msg, err := executor.EvaluatePin[any](ctx, ec, "message")
	if err != nil {
		return err
	}
	raw, err := executor.EvaluatePin[string](ctx, ec, "level")
	if err != nil {
		return err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", raw, err)
	}

	ec.Log(ctx, level, render(msg))
	return ec.ActivateExecPin("then")
}

// render prints maps with sorted keys so output is stable.
func render(v any) string {
	switch val := v.(type) {
	case nil:
		return "(null)"
	case string:
		return val
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s = %s", k, render(val[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(val)
	}
}
