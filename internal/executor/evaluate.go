package executor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/pintype"
	"github.com/zclconf/go-cty/cty"
)

func pinNotFound(name string) error {
	return fmt.Errorf("%w: %q", ErrPinNotFound, name)
}

// pin returns the arena index of the current node's pin called name.
func (ec *ExecutionContext) pin(name string) (int, error) {
	if ec.node == nil {
		return -1, ErrNoCurrentNode
	}
	idx, ok := ec.node.Pin(name)
	if !ok {
		return -1, pinNotFound(name)
	}
	return idx, nil
}

// EvaluatePin pulls the value of the current node's pin and decodes it into
// T. Any Go type gocty can decode into works, as do any and cty.Value.
func EvaluatePin[T any](ctx context.Context, ec *ExecutionContext, name string) (T, error) {
	var out T
	v, err := ec.EvaluatePinValue(ctx, name)
	if err != nil {
		return out, err
	}
	if err := pintype.Decode(v, &out); err != nil {
		return out, fmt.Errorf("%w: pin %q: %w", ErrDecode, name, err)
	}
	return out, nil
}

// EvaluatePinValue pulls the raw value of the current node's pin.
func (ec *ExecutionContext) EvaluatePinValue(ctx context.Context, name string) (cty.Value, error) {
	idx, err := ec.pin(name)
	if err != nil {
		return cty.NilVal, err
	}
	return ec.evaluate(ctx, idx)
}

func (ec *ExecutionContext) evaluate(ctx context.Context, idx int) (cty.Value, error) {
	g := ec.shared.Graph
	p := g.Pins[idx]

	if p.Direction != board.Input || p.Kind != board.Data {
		if v, ok := ec.readValue(idx); ok {
			return v, nil
		}
		return cty.NilVal, fmt.Errorf("%w: %q", ErrNoValue, p.Name)
	}

	// An input holds its own value only when overridden.
	if v, ok := ec.readValue(idx); ok {
		return ec.convert(p.Name, v, p.Type)
	}

	src, ok := g.Source(idx)
	if !ok {
		if p.Default != cty.NilVal {
			return ec.convert(p.Name, p.Default, p.Type)
		}
		return cty.NilVal, fmt.Errorf("%w: %q is not connected and has no default", ErrNoValue, p.Name)
	}

	v, ok := ec.readValue(src)
	if !ok {
		if producer := g.Owner(src); producer != nil && producer.IsPure() {
			if err := ec.Trigger(ctx, producer); err != nil {
				return cty.NilVal, err
			}
			v, ok = ec.readValue(src)
		}
	}
	if !ok {
		return cty.NilVal, fmt.Errorf("%w: %q (upstream pin %q has not run)", ErrNoValue, p.Name, g.Pins[src].Name)
	}
	return ec.convert(p.Name, v, p.Type)
}

func (ec *ExecutionContext) convert(name string, v cty.Value, ty cty.Type) (cty.Value, error) {
	out, err := pintype.Convert(v, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("%w: pin %q: %w", ErrDecode, name, err)
	}
	return out, nil
}

// SetPinValue writes a Go value to an output pin of the current node,
// converting it to the pin's declared type.
func (ec *ExecutionContext) SetPinValue(name string, v any) error {
	val, err := pintype.FromGo(v)
	if err != nil {
		return fmt.Errorf("%w: pin %q: %w", ErrDecode, name, err)
	}
	return ec.SetPinCty(name, val)
}

// SetPinCty writes a cty value to an output pin of the current node.
func (ec *ExecutionContext) SetPinCty(name string, v cty.Value) error {
	idx, err := ec.pin(name)
	if err != nil {
		return err
	}
	p := ec.shared.Graph.Pins[idx]
	converted, err := ec.convert(name, v, p.Type)
	if err != nil {
		return err
	}
	ec.writeValue(idx, converted)
	return nil
}

// ActivateExecPin marks an execution output of the current node as active.
// Once the node returns successfully, nodes connected to it are scheduled.
func (ec *ExecutionContext) ActivateExecPin(name string) error {
	idx, err := ec.execPin(name)
	if err != nil {
		return err
	}
	ec.setActive(idx, true)
	return nil
}

// DeactivateExecPin clears the activation of an execution output.
func (ec *ExecutionContext) DeactivateExecPin(name string) error {
	idx, err := ec.execPin(name)
	if err != nil {
		return err
	}
	ec.setActive(idx, false)
	return nil
}

func (ec *ExecutionContext) execPin(name string) (int, error) {
	idx, err := ec.pin(name)
	if err != nil {
		return -1, err
	}
	if !ec.shared.Graph.Pins[idx].IsExec() {
		return -1, fmt.Errorf("%w: %q is not an execution pin", ErrPinNotFound, name)
	}
	return idx, nil
}
