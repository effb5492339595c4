package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/pintype"
	"github.com/specialistvlad/flowgrid/internal/registry"
)

// ErrBoom is returned by the test.fail node.
var ErrBoom = errors.New("boom")

// Probe is a registry.Module of instrumented node types. Every node it
// registers reports into the probe, so tests can assert on what ran, with
// which values and how concurrently.
//
//	test.start   start node with an "exec" output and a "payload" pin
//	test.record  records its "value" input
//	test.sleep   sleeps for Sleep, honouring cancellation
//	test.fail    returns ErrBoom
//	test.panic   panics
//	test.double  pure, out = in * 2
//	test.sum     pure, out = a + b
//	test.fanout  runs "item" once per element of "items" in parallel
type Probe struct {
	Sleep time.Duration

	mu         sync.Mutex
	records    []Record
	executions map[string][]ExecutionRecord
	fanouts    []executor.ForEachResult

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	pureRuns    atomic.Int32
}

// NewProbe creates a probe whose sleep nodes block for sleep.
func NewProbe(sleep time.Duration) *Probe {
	return &Probe{Sleep: sleep, executions: make(map[string][]ExecutionRecord)}
}

// Register implements registry.Module.
func (p *Probe) Register(r *registry.Registry) {
	r.Register(&startNode{})
	r.Register(&recordNode{p: p})
	r.Register(&sleepNode{p: p})
	r.Register(&failNode{})
	r.Register(&panicNode{})
	r.Register(&doubleNode{p: p})
	r.Register(&sumNode{p: p})
	r.Register(&fanoutNode{p: p})
}

// Records returns the values seen by test.record nodes in execution order.
func (p *Probe) Records() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Record(nil), p.records...)
}

// Values returns just the recorded values.
func (p *Probe) Values() []any {
	var out []any
	for _, r := range p.Records() {
		out = append(out, r.Value)
	}
	return out
}

// Executions returns the sleep records of the node with the given id.
func (p *Probe) Executions(nodeID string) []ExecutionRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ExecutionRecord(nil), p.executions[nodeID]...)
}

// MaxInFlight is the highest number of sleep nodes observed running at once.
func (p *Probe) MaxInFlight() int { return int(p.maxInFlight.Load()) }

// PureRuns counts executions of test.double and test.sum.
func (p *Probe) PureRuns() int { return int(p.pureRuns.Load()) }

// FanOuts returns the results of every test.fanout run.
func (p *Probe) FanOuts() []executor.ForEachResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]executor.ForEachResult(nil), p.fanouts...)
}

type startNode struct{}

func (startNode) Declare() *board.Node {
	n := board.NewNode("test.start", "Start", "Test")
	n.Start = true
	n.AddPin(board.ExecOutput("exec", "Exec"))
	n.AddPin(board.DataOutput("payload", "Payload", pintype.Any))
	return n
}

func (startNode) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	return ec.ActivateExecPin("exec")
}

type recordNode struct{ p *Probe }

func (recordNode) Declare() *board.Node {
	return board.NewNode("test.record", "Record", "Test").
		AddPin(board.ExecInput("exec", "Exec")).
		AddPin(board.DataInput("value", "Value", pintype.Any)).
		AddPin(board.ExecOutput("then", "Then"))
}

func (n *recordNode) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	v, err := executor.EvaluatePin[any](ctx, ec, "value")
	if err != nil {
		return err
	}
	n.p.mu.Lock()
	n.p.records = append(n.p.records, Record{NodeID: ec.Node().ID, Index: ec.Index(), Value: v})
	n.p.mu.Unlock()
	return ec.ActivateExecPin("then")
}

type sleepNode struct{ p *Probe }

func (sleepNode) Declare() *board.Node {
	return board.NewNode("test.sleep", "Sleep", "Test").
		AddPin(board.ExecInput("exec", "Exec")).
		AddPin(board.ExecOutput("then", "Then"))
}

func (n *sleepNode) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	current := n.p.inFlight.Add(1)
	defer n.p.inFlight.Add(-1)
	for {
		seen := n.p.maxInFlight.Load()
		if current <= seen || n.p.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}

	rec := ExecutionRecord{Start: time.Now()}
	select {
	case <-time.After(n.p.Sleep):
	case <-ctx.Done():
		return ctx.Err()
	}
	rec.End = time.Now()

	n.p.mu.Lock()
	n.p.executions[ec.Node().ID] = append(n.p.executions[ec.Node().ID], rec)
	n.p.mu.Unlock()
	return ec.ActivateExecPin("then")
}

type failNode struct{}

func (failNode) Declare() *board.Node {
	return board.NewNode("test.fail", "Fail", "Test").
		AddPin(board.ExecInput("exec", "Exec")).
		AddPin(board.ExecOutput("then", "Then"))
}

func (failNode) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	if err := ec.ActivateExecPin("then"); err != nil {
		return err
	}
	return ErrBoom
}

type panicNode struct{}

func (panicNode) Declare() *board.Node {
	return board.NewNode("test.panic", "Panic", "Test").
		AddPin(board.ExecInput("exec", "Exec")).
		AddPin(board.ExecOutput("then", "Then"))
}

func (panicNode) Run(context.Context, *executor.ExecutionContext) error {
	panic("test.panic reached")
}

type doubleNode struct{ p *Probe }

func (doubleNode) Declare() *board.Node {
	n := board.NewNode("test.double", "Double", "Test")
	n.Pure = true
	n.AddPin(board.DataInput("in", "In", "number"))
	n.AddPin(board.DataOutput("out", "Out", "number"))
	return n
}

func (n *doubleNode) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	n.p.pureRuns.Add(1)
	in, err := executor.EvaluatePin[float64](ctx, ec, "in")
	if err != nil {
		return err
	}
	return ec.SetPinValue("out", in*2)
}

type sumNode struct{ p *Probe }

func (sumNode) Declare() *board.Node {
	n := board.NewNode("test.sum", "Sum", "Test")
	n.Pure = true
	n.AddPin(board.DataInput("a", "A", "number"))
	n.AddPin(board.DataInput("b", "B", "number"))
	n.AddPin(board.DataOutput("out", "Out", "number"))
	return n
}

func (n *sumNode) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	n.p.pureRuns.Add(1)
	a, err := executor.EvaluatePin[float64](ctx, ec, "a")
	if err != nil {
		return err
	}
	b, err := executor.EvaluatePin[float64](ctx, ec, "b")
	if err != nil {
		return err
	}
	return ec.SetPinValue("out", a+b)
}

type fanoutNode struct{ p *Probe }

func (fanoutNode) Declare() *board.Node {
	return board.NewNode("test.fanout", "Fan out", "Test").
		AddPin(board.ExecInput("exec", "Exec")).
		AddPin(board.DataInput("items", "Items", pintype.Any)).
		AddPin(board.DataInput("max", "Max concurrent", "number").WithDefault(0)).
		AddPin(board.ExecOutput("item", "Item")).
		AddPin(board.DataOutput("value", "Value", pintype.Any)).
		AddPin(board.DataOutput("index", "Index", "number")).
		AddPin(board.ExecOutput("done", "Done"))
}

func (n *fanoutNode) Run(ctx context.Context, ec *executor.ExecutionContext) error {
	items, err := ec.EvaluatePinValue(ctx, "items")
	if err != nil {
		return err
	}
	elems, err := pintype.Elements(items)
	if err != nil {
		return err
	}
	limit, err := executor.EvaluatePin[int](ctx, ec, "max")
	if err != nil {
		return err
	}

	res, err := ec.ForEachParallel(ctx, executor.ForEachSpec{
		Items:         elems,
		ItemPin:       "item",
		ValuePin:      "value",
		IndexPin:      "index",
		DonePin:       "done",
		MaxConcurrent: limit,
	})
	n.p.mu.Lock()
	n.p.fanouts = append(n.p.fanouts, res)
	n.p.mu.Unlock()
	return err
}
