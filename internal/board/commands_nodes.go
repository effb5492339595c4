package board

import "fmt"

// AddNode places a node on the board. The node is added without edges.
type AddNode struct {
	Base
	Node *Node `json:"node"`
}

func (c *AddNode) Kind() string { return KindAddNode }

func (c *AddNode) Execute(b *Board) error {
	if c.Node == nil {
		return fmt.Errorf("%w: no node given", ErrNodeNotFound)
	}
	if c.Node.ID == "" {
		c.Node = c.Node.Instantiate()
	}
	if _, exists := b.Nodes[c.Node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrNodeExists, c.Node.ID)
	}

	n := c.Node.Clone()
	for _, p := range n.Pins {
		p.DependsOn = PinSet{}
		p.ConnectedTo = PinSet{}
	}
	b.Nodes[n.ID] = n
	return nil
}

func (c *AddNode) Undo(b *Board) error {
	if _, ok := b.Nodes[c.Node.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, c.Node.ID)
	}
	delete(b.Nodes, c.Node.ID)
	b.FixPins()
	return nil
}

// RemoveNode deletes a node and every edge touching it.
type RemoveNode struct {
	Base
	NodeID string `json:"node_id"`

	removed *Node
	edges   []EdgeSnapshot
}

func (c *RemoveNode) Kind() string { return KindRemoveNode }

func (c *RemoveNode) Execute(b *Board) error {
	n, ok := b.Nodes[c.NodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, c.NodeID)
	}

	touched := make(map[string]struct{})
	b.eachPin(func(_ string, p *Pin) {
		for id := range n.Pins {
			if p.DependsOn.Has(id) || p.ConnectedTo.Has(id) {
				touched[p.ID] = struct{}{}
				return
			}
		}
	})

	c.removed = n.Clone()
	c.edges = b.snapshotPins(touched)
	delete(b.Nodes, c.NodeID)
	b.FixPins()
	return nil
}

func (c *RemoveNode) Undo(b *Board) error {
	if c.removed == nil {
		return fmt.Errorf("%w: %s was never removed", ErrNodeNotFound, c.NodeID)
	}
	if _, exists := b.Nodes[c.NodeID]; exists {
		return fmt.Errorf("%w: %s", ErrNodeExists, c.NodeID)
	}
	b.Nodes[c.NodeID] = c.removed.Clone()
	b.restoreSnapshots(c.edges)
	return nil
}

// MoveNode changes a node's coordinates.
type MoveNode struct {
	Base
	NodeID      string      `json:"node_id"`
	Coordinates Coordinates `json:"coordinates"`

	previous Coordinates
}

func (c *MoveNode) Kind() string { return KindMoveNode }

func (c *MoveNode) Execute(b *Board) error {
	n, ok := b.Nodes[c.NodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, c.NodeID)
	}
	c.previous = n.Coordinates
	n.Coordinates = c.Coordinates
	return nil
}

func (c *MoveNode) Undo(b *Board) error {
	n, ok := b.Nodes[c.NodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, c.NodeID)
	}
	n.Coordinates = c.previous
	return nil
}
