// Package variables reads and writes board variables. The variable a node
// works on is named by the id held in its var_ref pin.
package variables

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/graph"
	"github.com/specialistvlad/flowgrid/internal/pintype"
	"github.com/specialistvlad/flowgrid/internal/registry"
)

var ErrUnknownVariable = errors.New("unknown variable")

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(&Get{})
	r.Register(&Set{})
}

type Get struct{}

func (Get) Declare() *board.Node {
	n := board.NewNode("variables.get", "Get Variable", "Variables")
	n.Pure = true
	n.AddPin(board.DataInput(board.VariableRefPin, "Variable", "string").WithDefault(""))
	n.AddPin(board.DataOutput("value", "Value", pintype.Any))
	return n
}

func (Get) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	v, err := lookup(ctx, ec)
	if err != nil {
		return err
	}
	return ec.SetPinCty("value", v.Get())
}

type Set struct{}

func (Set) Declare() *board.Node {
	return board.NewNode("variables.set", "Set Variable", "Variables").
		AddPin(board.ExecInput("exec", "Exec")).
		AddPin(board.DataInput(board.VariableRefPin, "Variable", "string").WithDefault("")).
		AddPin(board.DataInput("value", "Value", pintype.Any)).
		AddPin(board.ExecOutput("then", "Then"))
}

func (Set) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	v, err := lookup(ctx, ec)
	if err != nil {
		return err
	}
	val, err := ec.EvaluatePinValue(ctx, "value")
	if err != nil {
		return err
	}
	if err := v.Set(val); err != nil {
		return fmt.Errorf("setting %s: %w", v.Name, err)
	}
	return ec.ActivateExecPin("then")
}

func lookup(ctx context.Context, ec *executor.ExecutionContext) (*graph.Variable, error) {
	id, err := executor.EvaluatePin[string](ctx, ec, board.VariableRefPin)
	if err != nil {
		return nil, err
	}
	v, ok := ec.Variable(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, id)
	}
	return v, nil
}
