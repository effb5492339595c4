package graph

import "github.com/specialistvlad/flowgrid/internal/board"

// Node returns the compiled node with the given board id.
func (g *Graph) Node(id string) (*InternalNode, bool) {
	idx, ok := g.nodeIndex[id]
	if !ok {
		return nil, false
	}
	return g.Nodes[idx], true
}

// PinByID returns the arena index of the pin with the given board id.
func (g *Graph) PinByID(id string) (int, bool) {
	idx, ok := g.pinIndex[id]
	return idx, ok
}

// Owner returns the node owning pin idx, or nil for relay pins.
func (g *Graph) Owner(idx int) *InternalNode {
	p := g.Pins[idx]
	if p.IsRelay() {
		return nil
	}
	return g.Nodes[p.Node]
}

// StartNodes returns every node flagged as a start node, in arena order.
func (g *Graph) StartNodes() []*InternalNode {
	var out []*InternalNode
	for _, n := range g.Nodes {
		if n.Start {
			out = append(out, n)
		}
	}
	return out
}

// ConnectedNodes returns the nodes reached downstream of pin idx, passing
// through relay pins. Each node appears once, in discovery order.
func (g *Graph) ConnectedNodes(idx int) []*InternalNode {
	return g.walk(idx, (*InternalPin).ConnectedTo)
}

// DependentNodes returns the nodes reached upstream of pin idx, passing
// through relay pins. Each node appears once, in discovery order.
func (g *Graph) DependentNodes(idx int) []*InternalNode {
	return g.walk(idx, (*InternalPin).DependsOn)
}

// Source returns the first non relay pin feeding pin idx.
func (g *Graph) Source(idx int) (int, bool) {
	visited := map[int]bool{idx: true}
	queue := append([]int(nil), g.Pins[idx].dependsOn...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		visited[next] = true

		p := g.Pins[next]
		if !p.IsRelay() {
			return next, true
		}
		queue = append(queue, p.dependsOn...)
	}
	return -1, false
}

// PureUpstream returns the pure nodes feeding n's data inputs.
func (g *Graph) PureUpstream(n *InternalNode) []*InternalNode {
	seen := make(map[int]bool)
	var out []*InternalNode
	for _, idx := range n.Pins {
		p := g.Pins[idx]
		if p.Kind != board.Data || p.Direction != board.Input {
			continue
		}
		src, ok := g.Source(idx)
		if !ok {
			continue
		}
		up := g.Owner(src)
		if up == nil || !up.IsPure() || seen[up.Index] {
			continue
		}
		seen[up.Index] = true
		out = append(out, up)
	}
	return out
}

func (g *Graph) walk(start int, next func(*InternalPin) []int) []*InternalNode {
	visitedPins := map[int]bool{start: true}
	visitedNodes := make(map[int]bool)
	var out []*InternalNode

	queue := append([]int(nil), next(g.Pins[start])...)
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		if visitedPins[idx] {
			continue
		}
		visitedPins[idx] = true

		p := g.Pins[idx]
		if p.IsRelay() {
			queue = append(queue, next(p)...)
			continue
		}
		if !visitedNodes[p.Node] {
			visitedNodes[p.Node] = true
			out = append(out, g.Nodes[p.Node])
		}
	}
	return out
}

// IsPurePin reports whether the producer of pin idx can be evaluated on
// demand. Relay pins are pure.
func (g *Graph) IsPurePin(idx int) bool {
	owner := g.Owner(idx)
	return owner == nil || owner.IsPure()
}
