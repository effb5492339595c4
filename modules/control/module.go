// Package control provides the flow control nodes every board starts from:
// the start node, branching, sequencing and loops.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/pintype"
	"github.com/specialistvlad/flowgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

const category = "Control"

// SequenceOutputs is the number of exec outputs of control.sequence.
const SequenceOutputs = 3

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the control nodes.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&Start{})
	r.Register(&Branch{})
	r.Register(&Sequence{})
	r.Register(&ForEach{})
	r.Register(&ForEachParallel{})
}

// Start is the entry point of a run. Its payload pin holds whatever the run
// was started with.
type Start struct{}

func (Start) Declare() *board.Node {
	n := board.NewNode("control.start", "Start", category)
	n.Start = true
	n.Icon = "play"
	n.AddPin(board.ExecOutput("exec", "Exec"))
	n.AddPin(board.DataOutput("payload", "Payload", pintype.Any).
		WithDescription("Value the run was started with."))
	return n
}

func (Start) Run(_ context.Context, ec *executor.ExecutionContext) error {
	return ec.ActivateExecPin("exec")
}

// Branch activates "true" or "false" depending on its condition.
type Branch struct{}

func (Branch) Declare() *board.Node {
	return board.NewNode("control.branch", "Branch", category).
		AddPin(board.ExecInput("exec", "Exec")).
		AddPin(board.DataInput("condition", "Condition", "bool").WithDefault(false)).
		AddPin(board.ExecOutput("true", "True")).
		AddPin(board.ExecOutput("false", "False"))
}

func (Branch) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	cond, err := executor.EvaluatePin[bool](ctx, ec, "condition")
	if err != nil {
		return err
	}
	if cond {
		return ec.ActivateExecPin("true")
	}
	return ec.ActivateExecPin("false")
}

// Sequence runs everything behind then_0, then then_1, and so on. It stops
// at the first output whose downstream fails.
type Sequence struct{}

func (Sequence) Declare() *board.Node {
	n := board.NewNode("control.sequence", "Sequence", category).
		AddPin(board.ExecInput("exec", "Exec"))
	for i := 0; i < SequenceOutputs; i++ {
		n.AddPin(board.ExecOutput(sequencePin(i), fmt.Sprintf("Then %d", i)))
	}
	return n
}

func (Sequence) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	for i := 0; i < SequenceOutputs; i++ {
		if err := ec.FireExecPin(ctx, sequencePin(i)); err != nil {
			return err
		}
	}
	return nil
}

func sequencePin(i int) string { return fmt.Sprintf("then_%d", i) }

// ForEach runs exec_item once per element of array, one after another, and
// activates done afterwards.
type ForEach struct{}

func (ForEach) Declare() *board.Node {
	n := board.NewNode("control.for_each", "For Each", category).
		AddPin(board.ExecInput("exec", "Exec")).
		AddPin(board.DataInput("array", "Array", pintype.Any))
	return loopOutputs(n)
}

func (ForEach) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	items, err := evaluateItems(ctx, ec)
	if err != nil {
		return err
	}
	for i, item := range items {
		if err := ec.SetPinCty("value", item); err != nil {
			return err
		}
		if err := ec.SetPinValue("index", i); err != nil {
			return err
		}
		if err := ec.FireExecPin(ctx, "exec_item"); err != nil {
			return err
		}
	}
	return ec.ActivateExecPin("done")
}

// ForEachParallel runs exec_item for every element concurrently, each in
// its own sub-context, at most max_concurrent at a time. Failed iterations
// are logged and do not stop the others.
type ForEachParallel struct{}

func (ForEachParallel) Declare() *board.Node {
	n := board.NewNode("control.for_each_parallel", "For Each (Parallel)", category).
		AddPin(board.ExecInput("exec", "Exec")).
		AddPin(board.DataInput("array", "Array", pintype.Any)).
		AddPin(board.DataInput("max_concurrent", "Max Concurrent", "number").
			WithDefault(-1).
			WithDescription("Upper bound on iterations in flight. Zero means unbounded, a negative value uses the run default."))
	return loopOutputs(n)
}

func (ForEachParallel) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	items, err := evaluateItems(ctx, ec)
	if err != nil {
		return err
	}
	limit, err := executor.EvaluatePin[int](ctx, ec, "max_concurrent")
	if err != nil {
		return err
	}

	res, err := ec.ForEachParallel(ctx, executor.ForEachSpec{
		Items:         items,
		ItemPin:       "exec_item",
		ValuePin:      "value",
		IndexPin:      "index",
		DonePin:       "done",
		MaxConcurrent: limit,
	})
	if err != nil {
		return err
	}
	if len(res.Failures) > 0 {
		ec.Log(ctx, slog.LevelWarn, "Parallel iterations failed.", "failed", len(res.Failures), "tasks", res.Tasks)
	}
	return nil
}

func loopOutputs(n *board.Node) *board.Node {
	return n.
		AddPin(board.ExecOutput("exec_item", "Item")).
		AddPin(board.DataOutput("value", "Value", pintype.Any)).
		AddPin(board.DataOutput("index", "Index", "number")).
		AddPin(board.ExecOutput("done", "Done"))
}

func evaluateItems(ctx context.Context, ec *executor.ExecutionContext) ([]cty.Value, error) {
	arr, err := ec.EvaluatePinValue(ctx, "array")
	if err != nil {
		return nil, err
	}
	return pintype.Elements(arr)
}
