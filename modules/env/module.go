// Package env exposes process environment variables to boards.
package env

import (
	"context"
	"os"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Lookup replaces os.LookupEnv when set.
	Lookup func(string) (string, bool)
}

func (m *Module) Register(r *registry.Registry) {
	lookup := m.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	r.Register(&Get{lookup: lookup})
}

// Get reads one variable, falling back to the fallback pin when unset.
type Get struct {
	lookup func(string) (string, bool)
}

func (Get) Declare() *board.Node {
	n := board.NewNode("env.get", "Environment Variable", "Environment")
	n.Pure = true
	n.AddPin(board.DataInput("name", "Name", "string"))
	n.AddPin(board.DataInput("fallback", "Fallback", "string").WithDefault(""))
	n.AddPin(board.DataOutput("value", "Value", "string"))
	n.AddPin(board.DataOutput("found", "Found", "bool"))
	return n
}

func (g *Get) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	name, err := executor.EvaluatePin[string](ctx, ec, "name")
	if err != nil {
		return err
	}
	value, found := g.lookup(name)
	if !found {
		if value, err = executor.EvaluatePin[string](ctx, ec, "fallback"); err != nil {
			return err
		}
	}
	if err := ec.SetPinValue("value", value); err != nil {
		return err
	}
	return ec.SetPinValue("found", found)
}
