package executor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/events"
	"github.com/specialistvlad/flowgrid/internal/graph"
	"github.com/specialistvlad/flowgrid/internal/runcache"
	"github.com/zclconf/go-cty/cty"
)

// Behavior is the run time contract of a node type.
type Behavior interface {
	Declare() *board.Node
	Run(ctx context.Context, ec *ExecutionContext) error
}

// Shared is the state every context of one run has in common.
type Shared struct {
	RunID     string
	Graph     *graph.Graph
	Cache     *runcache.Cache
	Publisher events.Publisher
	LogLevel  slog.Level

	// MaxConcurrent bounds parallel fan-outs that set no limit of their own.
	MaxConcurrent int
}

// ExecutionContext schedules nodes of one run, or of one parallel branch of
// it when created with CreateSubContext. A context is driven by a single
// goroutine at a time.
type ExecutionContext struct {
	shared *Shared
	parent *ExecutionContext
	scope  *scope // nil for the root context, which uses the pin cells
	index  int

	node *graph.InternalNode

	mu    sync.Mutex
	trace []TraceEntry
	logs  []LogEntry
}

// New creates the root context of a run.
func New(shared *Shared) *ExecutionContext {
	if shared.Publisher == nil {
		shared.Publisher = events.Nop{}
	}
	if shared.Cache == nil {
		shared.Cache = runcache.New()
	}
	return &ExecutionContext{shared: shared, index: -1}
}

func (ec *ExecutionContext) RunID() string          { return ec.shared.RunID }
func (ec *ExecutionContext) Graph() *graph.Graph    { return ec.shared.Graph }
func (ec *ExecutionContext) Cache() *runcache.Cache { return ec.shared.Cache }

// Index returns the iteration index of a sub-context, or -1 for the root.
func (ec *ExecutionContext) Index() int { return ec.index }

// Node returns the node currently running in this context.
func (ec *ExecutionContext) Node() *graph.InternalNode { return ec.node }

// Variable returns the shared value cell of a board variable.
func (ec *ExecutionContext) Variable(id string) (*graph.Variable, bool) {
	v, ok := ec.shared.Graph.Variables[id]
	return v, ok
}

// CreateSubContext returns a child context with its own value scope. It
// shares the graph, cache, variables and publisher with ec.
func (ec *ExecutionContext) CreateSubContext(index int) *ExecutionContext {
	return &ExecutionContext{
		shared: ec.shared,
		parent: ec,
		scope:  newScope(ec.scope),
		index:  index,
	}
}

// OverridePin sets the value of a pin in this context's scope before any
// node runs. Sessions use it to inject payloads, tests to stub inputs.
func (ec *ExecutionContext) OverridePin(nodeID, pinName string, v cty.Value) error {
	n, ok := ec.shared.Graph.Node(nodeID)
	if !ok {
		return &NodeError{NodeID: nodeID, Index: ec.index, Err: ErrNotRunnable}
	}
	idx, ok := n.Pin(pinName)
	if !ok {
		return &NodeError{NodeID: nodeID, Index: ec.index, Err: pinNotFound(pinName)}
	}
	ec.writeValue(idx, v)
	return nil
}

// scope holds the values and exec activations written by a sub-context.
type scope struct {
	parent *scope
	mu     sync.RWMutex
	values map[int]cty.Value
	active map[int]bool
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, values: make(map[int]cty.Value), active: make(map[int]bool)}
}

func (s *scope) get(idx int) (cty.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[idx]
	return v, ok
}

func (s *scope) set(idx int, v cty.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[idx] = v
}

// readValue looks the pin up in this scope, then in every parent scope, then
// in the pin cell of the root context.
func (ec *ExecutionContext) readValue(idx int) (cty.Value, bool) {
	for s := ec.scope; s != nil; s = s.parent {
		if v, ok := s.get(idx); ok {
			return v, true
		}
	}
	return ec.shared.Graph.Pins[idx].Value()
}

func (ec *ExecutionContext) writeValue(idx int, v cty.Value) {
	if ec.scope != nil {
		ec.scope.set(idx, v)
		return
	}
	ec.shared.Graph.Pins[idx].SetValue(v)
}

// Exec activation is local to a context: sub-contexts start with every exec
// pin inactive.
func (ec *ExecutionContext) isActive(idx int) bool {
	if ec.scope != nil {
		ec.scope.mu.RLock()
		defer ec.scope.mu.RUnlock()
		return ec.scope.active[idx]
	}
	return ec.shared.Graph.Pins[idx].Active()
}

func (ec *ExecutionContext) setActive(idx int, active bool) {
	if ec.scope != nil {
		ec.scope.mu.Lock()
		defer ec.scope.mu.Unlock()
		ec.scope.active[idx] = active
		return
	}
	ec.shared.Graph.Pins[idx].SetActive(active)
}
