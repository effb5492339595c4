// Package math holds pure arithmetic nodes.
package math

import (
	"context"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(&Add{})
}

// Add outputs a + b.
type Add struct{}

func (Add) Declare() *board.Node {
	n := board.NewNode("math.add", "Add", "Math")
	n.Pure = true
	n.AddPin(board.DataInput("a", "A", "number").WithDefault(0))
	n.AddPin(board.DataInput("b", "B", "number").WithDefault(0))
	n.AddPin(board.DataOutput("result", "Result", "number"))
	return n
}

func (Add) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	a, err := executor.EvaluatePin[float64](ctx, ec, "a")
	if err != nil {
		return err
	}
	b, err := executor.EvaluatePin[float64](ctx, ec, "b")
	if err != nil {
		return err
	}
	return ec.SetPinValue("result", a+b)
}
