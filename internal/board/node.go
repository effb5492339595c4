package board

import (
	"encoding/json"
	"sort"

	"github.com/specialistvlad/flowgrid/internal/nodeid"
)

// Coordinates place an entity on the canvas.
type Coordinates [3]float64

// Offset returns c moved by d.
func (c Coordinates) Offset(d Coordinates) Coordinates {
	return Coordinates{c[0] + d[0], c[1] + d[1], c[2] + d[2]}
}

// Scores rate a node type along a few governance axes.
type Scores struct {
	Privacy     int `json:"privacy"`
	Security    int `json:"security"`
	Performance int `json:"performance"`
	Governance  int `json:"governance"`
}

// Node is an instance of a node type placed on a board.
type Node struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	FriendlyName string          `json:"friendly_name"`
	Description  string          `json:"description,omitempty"`
	Category     string          `json:"category,omitempty"`
	Icon         string          `json:"icon,omitempty"`
	Coordinates  Coordinates     `json:"coordinates"`
	Pins         map[string]*Pin `json:"pins"`
	Pure         bool            `json:"pure,omitempty"`
	Start        bool            `json:"start,omitempty"`
	Layer        string          `json:"layer,omitempty"`
	Scores       *Scores         `json:"scores,omitempty"`
}

// NewNode creates a node with a fresh id and no pins.
func NewNode(typeName, friendlyName, category string) *Node {
	return &Node{
		ID:           nodeid.New(),
		Type:         typeName,
		FriendlyName: friendlyName,
		Category:     category,
		Pins:         make(map[string]*Pin),
	}
}

// AddPin attaches p to the node, assigning it an id and the next index.
func (n *Node) AddPin(p *Pin) *Node {
	if p.ID == "" {
		p.ID = nodeid.New()
	}
	if n.Pins == nil {
		n.Pins = make(map[string]*Pin)
	}
	p.Index = len(n.Pins)
	n.Pins[p.ID] = p
	return n
}

// PinByName returns the pin with the given name, or nil.
func (n *Node) PinByName(name string) *Pin {
	for _, p := range n.Pins {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// SortedPins returns the node's pins ordered by Index, then id.
func (n *Node) SortedPins() []*Pin {
	return sortedPins(n.Pins)
}

// Clone returns a deep copy of the node keeping every id.
func (n *Node) Clone() *Node {
	c := *n
	c.Pins = clonePins(n.Pins)
	if n.Scores != nil {
		s := *n.Scores
		c.Scores = &s
	}
	return &c
}

// Instantiate returns a copy of the node with fresh ids for the node and all
// its pins and without any edges. It is how declarations become board nodes.
func (n *Node) Instantiate() *Node {
	c := n.Clone()
	c.ID = nodeid.New()
	c.Pins = make(map[string]*Pin, len(n.Pins))
	for _, p := range n.Pins {
		np := p.Clone()
		np.ID = nodeid.New()
		np.DependsOn = PinSet{}
		np.ConnectedTo = PinSet{}
		c.Pins[np.ID] = np
	}
	return c
}

// Variable is a board level value shared by every node that references it.
type Variable struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	DataType     string          `json:"data_type"`
	DefaultValue json.RawMessage `json:"default_value,omitempty"`
	Exposed      bool            `json:"exposed,omitempty"`
	Secret       bool            `json:"secret,omitempty"`
	Editable     bool            `json:"editable,omitempty"`
}

func (v *Variable) Clone() *Variable {
	c := *v
	if v.DefaultValue != nil {
		c.DefaultValue = append(json.RawMessage(nil), v.DefaultValue...)
	}
	return &c
}

// Comment is a free text note on the canvas.
type Comment struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	Coordinates Coordinates `json:"coordinates"`
	Width       float64     `json:"width,omitempty"`
	Height      float64     `json:"height,omitempty"`
	Color       string      `json:"color,omitempty"`
}

func (c *Comment) Clone() *Comment {
	cc := *c
	return &cc
}

// Layer groups nodes. Its pins relay connections across the group boundary
// and are ignored by direction checks and by graph traversal.
type Layer struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Pins        map[string]*Pin `json:"pins"`
	Coordinates Coordinates     `json:"coordinates"`
}

func (l *Layer) Clone() *Layer {
	c := *l
	c.Pins = clonePins(l.Pins)
	return &c
}

func clonePins(pins map[string]*Pin) map[string]*Pin {
	out := make(map[string]*Pin, len(pins))
	for id, p := range pins {
		out[id] = p.Clone()
	}
	return out
}

func sortedPins(pins map[string]*Pin) []*Pin {
	out := make([]*Pin, 0, len(pins))
	for _, p := range pins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].ID < out[j].ID
	})
	return out
}
