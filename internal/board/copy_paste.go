package board

import (
	"encoding/json"
	"fmt"

	"github.com/specialistvlad/flowgrid/internal/nodeid"
	"github.com/specialistvlad/flowgrid/internal/pintype"
)

// CopyPaste inserts copies of nodes and comments taken from this or another
// board. Every pasted entity gets a fresh id; edges between pasted nodes are
// kept, edges leaving the selection are dropped.
type CopyPaste struct {
	Base
	Nodes     []*Node     `json:"nodes"`
	Comments  []*Comment  `json:"comments,omitempty"`
	Variables []*Variable `json:"variables,omitempty"`
	Offset    Coordinates `json:"offset"`

	pastedNodes    []*Node
	pastedComments []*Comment
	createdVars    []string
}

func (c *CopyPaste) Kind() string { return KindCopyPaste }

// PastedNodeIDs returns the ids of the nodes created by the last Execute.
func (c *CopyPaste) PastedNodeIDs() []string {
	out := make([]string, 0, len(c.pastedNodes))
	for _, n := range c.pastedNodes {
		out = append(out, n.ID)
	}
	return out
}

func (c *CopyPaste) Execute(b *Board) error {
	// Clones are built once so that redo recreates the same ids.
	if c.pastedNodes == nil && c.pastedComments == nil {
		c.pastedNodes, c.pastedComments = c.clone(b)
	}

	for _, n := range c.pastedNodes {
		if _, exists := b.Nodes[n.ID]; exists {
			return fmt.Errorf("%w: %s", ErrNodeExists, n.ID)
		}
	}

	c.createdVars = c.createdVars[:0]
	for _, id := range c.referencedVariables() {
		if _, ok := b.Variables[id]; ok {
			continue
		}
		b.Variables[id] = c.variableFor(id)
		c.createdVars = append(c.createdVars, id)
	}
	for _, n := range c.pastedNodes {
		b.Nodes[n.ID] = n.Clone()
	}
	for _, cm := range c.pastedComments {
		b.Comments[cm.ID] = cm.Clone()
	}
	return nil
}

func (c *CopyPaste) Undo(b *Board) error {
	for _, n := range c.pastedNodes {
		delete(b.Nodes, n.ID)
	}
	for _, cm := range c.pastedComments {
		delete(b.Comments, cm.ID)
	}
	for _, id := range c.createdVars {
		delete(b.Variables, id)
	}
	b.FixPins()
	return nil
}

// clone copies the selection with fresh ids and remaps internal edges.
func (c *CopyPaste) clone(b *Board) ([]*Node, []*Comment) {
	translate := make(map[string]string)
	nodes := make([]*Node, 0, len(c.Nodes))

	for _, src := range c.Nodes {
		n := src.Clone()
		n.ID = nodeid.New()
		translate[src.ID] = n.ID
		n.Pins = make(map[string]*Pin, len(src.Pins))
		for oldID, p := range src.Pins {
			np := p.Clone()
			np.ID = nodeid.New()
			translate[oldID] = np.ID
			n.Pins[np.ID] = np
		}
		nodes = append(nodes, n)
	}

	for _, n := range nodes {
		n.Coordinates = n.Coordinates.Offset(c.Offset)
		if n.Layer != "" {
			if mapped, ok := translate[n.Layer]; ok {
				n.Layer = mapped
			} else if _, ok := b.Layers[n.Layer]; !ok {
				n.Layer = ""
			}
		}
		for _, p := range n.Pins {
			p.DependsOn = remap(p.DependsOn, translate)
			p.ConnectedTo = remap(p.ConnectedTo, translate)
			if n.Start {
				p.DefaultValue = nil
			}
		}
		c.refreshMetadata(b, n)
	}

	comments := make([]*Comment, 0, len(c.Comments))
	for _, src := range c.Comments {
		cm := src.Clone()
		cm.ID = nodeid.New()
		cm.Coordinates = cm.Coordinates.Offset(c.Offset)
		comments = append(comments, cm)
	}
	return nodes, comments
}

// refreshMetadata replaces display metadata with the live catalog's.
func (c *CopyPaste) refreshMetadata(b *Board, n *Node) {
	if b.catalog == nil {
		return
	}
	tmpl, ok := b.catalog.NodeTemplate(n.Type)
	if !ok {
		return
	}
	n.Category = tmpl.Category
	n.Icon = tmpl.Icon
	n.Description = tmpl.Description
	n.Scores = nil
	if tmpl.Scores != nil {
		s := *tmpl.Scores
		n.Scores = &s
	}
}

// referencedVariables lists variable ids held by var_ref pins of the pasted
// nodes, in paste order without duplicates.
func (c *CopyPaste) referencedVariables() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, n := range c.pastedNodes {
		p := n.PinByName(VariableRefPin)
		if p == nil || len(p.DefaultValue) == 0 {
			continue
		}
		var id string
		if err := json.Unmarshal(p.DefaultValue, &id); err != nil || id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// variableFor returns the definition carried with the paste, or a fresh
// editable variable of type any.
func (c *CopyPaste) variableFor(id string) *Variable {
	for _, v := range c.Variables {
		if v.ID == id {
			return v.Clone()
		}
	}
	return &Variable{ID: id, Name: "Variable", DataType: pintype.Any, Editable: true}
}

func remap(set PinSet, translate map[string]string) PinSet {
	out := make(PinSet, len(set))
	for id := range set {
		if mapped, ok := translate[id]; ok {
			out[mapped] = struct{}{}
		}
	}
	return out
}
