package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/events"
	"github.com/specialistvlad/flowgrid/internal/graph"
)

// Trigger runs a single node: it re-evaluates the pure nodes feeding it,
// clears its exec outputs, calls its behavior and records a trace entry.
// Nodes connected to the outputs it activates are not run; see Execute.
func (ec *ExecutionContext) Trigger(ctx context.Context, n *graph.InternalNode) error {
	return ec.trigger(ctx, n, map[int]bool{n.Index: true})
}

// trigger carries the set of nodes already run in this pass so that pure
// nodes shared by several inputs run once.
func (ec *ExecutionContext) trigger(ctx context.Context, n *graph.InternalNode, pass map[int]bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	behavior, ok := n.Behavior.(Behavior)
	if !ok {
		return &NodeError{NodeID: n.ID, Index: ec.index, Err: ErrNotRunnable}
	}

	for _, up := range ec.shared.Graph.PureUpstream(n) {
		if pass[up.Index] {
			continue
		}
		pass[up.Index] = true
		if err := ec.trigger(ctx, up, pass); err != nil {
			return err
		}
	}

	ec.deactivateOutputs(n)

	prev := ec.node
	ec.node = n
	defer func() { ec.node = prev }()

	logger := ctxlog.FromContext(ctx).With("node_id", n.ID, "node_type", n.Type)
	if ec.index >= 0 {
		logger = logger.With("index", ec.index)
	}
	logger.Debug("Node execution started.")
	ec.publish(ctx, events.Event{Type: events.NodeStarted, NodeID: n.ID})

	start := time.Now()
	err := ec.run(ctx, behavior)
	entry := TraceEntry{NodeID: n.ID, NodeType: n.Type, Index: ec.index, Start: start, End: time.Now()}

	if err != nil {
		ec.deactivateOutputs(n)
		entry.Error = err.Error()
		ec.appendTrace(entry)
		logger.Error("Node execution failed.", "error", err)
		ec.publish(ctx, events.Event{Type: events.NodeFailed, NodeID: n.ID, Error: err.Error()})

		var nodeErr *NodeError
		if errors.As(err, &nodeErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &NodeError{NodeID: n.ID, Index: ec.index, Err: err}
	}

	ec.appendTrace(entry)
	logger.Debug("Node execution succeeded.", "duration", entry.End.Sub(entry.Start))
	ec.publish(ctx, events.Event{Type: events.NodeFinished, NodeID: n.ID})
	return nil
}

// run calls the behavior, turning a panic into an error.
func (ec *ExecutionContext) run(ctx context.Context, b Behavior) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("Node panicked.", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.Run(ctx, ec)
}

// Execute runs nodes and everything they activate, depth first. A failing
// node stops only its own branch; the first error is returned once the
// work list is drained. Cancellation is checked between nodes.
func (ec *ExecutionContext) Execute(ctx context.Context, nodes ...*graph.InternalNode) error {
	stack := make([]*graph.InternalNode, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}

	var firstErr error
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := ec.Trigger(ctx, n); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		next := ec.successors(n)
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return firstErr
}

// FireExecPin activates an exec output of the current node, runs everything
// downstream of it right away and deactivates it again. Loops use it to run
// their body once per item.
func (ec *ExecutionContext) FireExecPin(ctx context.Context, name string) error {
	idx, err := ec.execPin(name)
	if err != nil {
		return err
	}
	ec.setActive(idx, true)
	defer ec.setActive(idx, false)

	return ec.Execute(ctx, ec.shared.Graph.ConnectedNodes(idx)...)
}

// successors returns the nodes connected to n's active exec outputs, in pin
// order.
func (ec *ExecutionContext) successors(n *graph.InternalNode) []*graph.InternalNode {
	g := ec.shared.Graph
	var out []*graph.InternalNode
	for _, idx := range n.Pins {
		p := g.Pins[idx]
		if !p.IsExec() || p.Direction != board.Output || !ec.isActive(idx) {
			continue
		}
		out = append(out, g.ConnectedNodes(idx)...)
	}
	return out
}

func (ec *ExecutionContext) deactivateOutputs(n *graph.InternalNode) {
	g := ec.shared.Graph
	for _, idx := range n.Pins {
		p := g.Pins[idx]
		if p.IsExec() && p.Direction == board.Output {
			ec.setActive(idx, false)
		}
	}
}

func (ec *ExecutionContext) publish(ctx context.Context, e events.Event) {
	e.RunID = ec.shared.RunID
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	ec.shared.Publisher.Publish(ctx, e)
}
