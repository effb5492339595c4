package graph

import (
	"errors"
	"sync"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/zclconf/go-cty/cty"
)

var (
	ErrUnresolvedPin   = errors.New("edge references an unknown pin")
	ErrUnknownNodeType = errors.New("unknown node type")
	ErrInvalidType     = errors.New("invalid pin type or default value")
	ErrDataCycle       = errors.New("pure nodes form a data cycle")
)

// Behavior is the part of a node behavior the compiler needs.
type Behavior interface {
	Declare() *board.Node
}

// Resolver maps node type names to behaviors.
type Resolver interface {
	Resolve(typeName string) (Behavior, bool)
}

// Graph is a compiled board.
type Graph struct {
	BoardID   string
	Nodes     []*InternalNode
	Pins      []*InternalPin
	Variables map[string]*Variable

	nodeIndex map[string]int
	pinIndex  map[string]int
}

// InternalNode is a board node inside the arena.
type InternalNode struct {
	Index    int
	ID       string
	Type     string
	Name     string
	Start    bool
	Behavior Behavior

	// Pins holds arena indices ordered by the board pin index.
	Pins []int

	declaredPure bool
	byName       map[string]int
	graph        *Graph

	pureOnce sync.Once
	pure     bool
}

// IsPure reports whether the node can be evaluated on demand. A node is pure
// when it is declared pure or has no execution pins.
func (n *InternalNode) IsPure() bool {
	n.pureOnce.Do(func() {
		if n.declaredPure {
			n.pure = true
			return
		}
		for _, idx := range n.Pins {
			if n.graph.Pins[idx].Kind == board.Execution {
				return
			}
		}
		n.pure = true
	})
	return n.pure
}

// Pin returns the arena index of the node's pin with the given name.
func (n *InternalNode) Pin(name string) (int, bool) {
	idx, ok := n.byName[name]
	return idx, ok
}

// InternalPin is a board pin inside the arena.
type InternalPin struct {
	Index     int
	ID        string
	Name      string
	Node      int // -1 for layer relay pins
	Layer     string
	Direction board.Direction
	Kind      board.Kind
	Type      cty.Type
	Default   cty.Value // cty.NilVal when the pin has no default

	connectedTo []int
	dependsOn   []int

	mu     sync.RWMutex
	value  cty.Value
	set    bool
	active bool
}

// IsRelay reports whether the pin belongs to a layer rather than a node.
func (p *InternalPin) IsRelay() bool { return p.Node < 0 }

func (p *InternalPin) IsExec() bool { return p.Kind == board.Execution }

// ConnectedTo returns the arena indices of downstream pins.
func (p *InternalPin) ConnectedTo() []int { return p.connectedTo }

// DependsOn returns the arena indices of upstream pins.
func (p *InternalPin) DependsOn() []int { return p.dependsOn }

// Value returns the pin's current value and whether one was set.
func (p *InternalPin) Value() (cty.Value, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.set
}

func (p *InternalPin) SetValue(v cty.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value, p.set = v, true
}

func (p *InternalPin) ClearValue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value, p.set = cty.NilVal, false
}

// Active reports the activation state of an execution pin.
func (p *InternalPin) Active() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

func (p *InternalPin) SetActive(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = active
}

// Variable is the run time value cell of a board variable. Every node that
// reads or writes the variable shares the same cell.
type Variable struct {
	ID   string
	Name string
	Type cty.Type

	mu    sync.RWMutex
	value cty.Value
}

func (v *Variable) Get() cty.Value {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set stores val after converting it to the variable's type.
func (v *Variable) Set(val cty.Value) error {
	converted, err := convertTo(val, v.Type)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = converted
	return nil
}
