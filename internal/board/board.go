package board

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/specialistvlad/flowgrid/internal/nodeid"
)

// VariableRefPin is the name of the pin through which variable getter and
// setter nodes reference a variable id.
const VariableRefPin = "var_ref"

// Catalog resolves node type names to their declared templates. It is used
// to refresh display metadata of nodes pasted from another board.
type Catalog interface {
	NodeTemplate(typeName string) (*Node, bool)
}

// Version is a semantic version: major, minor, patch.
type Version [3]uint32

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// Bump selects which part of a Version Publish increments.
type Bump int

const (
	Patch Bump = iota
	Minor
	Major
)

// Board is the authoring document of a flow.
type Board struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Version   Version              `json:"version"`
	Nodes     map[string]*Node     `json:"nodes"`
	Variables map[string]*Variable `json:"variables"`
	Comments  map[string]*Comment  `json:"comments"`
	Layers    map[string]*Layer    `json:"layers"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`

	undo    []Command
	redo    []Command
	catalog Catalog
}

// New creates an empty board.
func New(name string) *Board {
	now := time.Now().UTC()
	b := &Board{
		ID:        nodeid.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.init()
	return b
}

func (b *Board) init() {
	if b.Nodes == nil {
		b.Nodes = make(map[string]*Node)
	}
	if b.Variables == nil {
		b.Variables = make(map[string]*Variable)
	}
	if b.Comments == nil {
		b.Comments = make(map[string]*Comment)
	}
	if b.Layers == nil {
		b.Layers = make(map[string]*Layer)
	}
}

func (b *Board) UnmarshalJSON(data []byte) error {
	type plain Board
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.undo, p.redo, p.catalog = b.undo, b.redo, b.catalog
	*b = Board(p)
	b.init()
	return nil
}

// AttachCatalog sets the catalog used to re-resolve node metadata.
func (b *Board) AttachCatalog(c Catalog) { b.catalog = c }

// Publish increments the requested part of the version, resetting the lower
// parts, and returns the new version.
func (b *Board) Publish(bump Bump) Version {
	switch bump {
	case Major:
		b.Version = Version{b.Version[0] + 1, 0, 0}
	case Minor:
		b.Version = Version{b.Version[0], b.Version[1] + 1, 0}
	default:
		b.Version[2]++
	}
	b.touch()
	return b.Version
}

// Clone returns a deep copy of the board content. History is not copied.
func (b *Board) Clone() *Board {
	c := &Board{
		ID:        b.ID,
		Name:      b.Name,
		Version:   b.Version,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
		catalog:   b.catalog,
	}
	c.init()
	for id, n := range b.Nodes {
		c.Nodes[id] = n.Clone()
	}
	for id, v := range b.Variables {
		c.Variables[id] = v.Clone()
	}
	for id, cm := range b.Comments {
		c.Comments[id] = cm.Clone()
	}
	for id, l := range b.Layers {
		c.Layers[id] = l.Clone()
	}
	return c
}

// StartNodes returns the ids of all start nodes.
func (b *Board) StartNodes() []string {
	var out []string
	for id, n := range b.Nodes {
		if n.Start {
			out = append(out, id)
		}
	}
	return sortStrings(out)
}

// Pin returns the pin with the given id on the given node or layer.
func (b *Board) Pin(owner, pinID string) (*Pin, error) {
	pins, _, ok := b.entity(owner)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, owner)
	}
	p, ok := pins[pinID]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrPinNotFound, pinID, owner)
	}
	return p, nil
}

// FindPin locates a pin by id anywhere on the board and returns it with the
// id of its owning node or layer.
func (b *Board) FindPin(pinID string) (*Pin, string, bool) {
	for id, n := range b.Nodes {
		if p, ok := n.Pins[pinID]; ok {
			return p, id, true
		}
	}
	for id, l := range b.Layers {
		if p, ok := l.Pins[pinID]; ok {
			return p, id, true
		}
	}
	return nil, "", false
}

// FixPins drops every DependsOn and ConnectedTo reference that does not
// resolve to an existing pin.
func (b *Board) FixPins() {
	known := make(map[string]struct{})
	b.eachPin(func(_ string, p *Pin) { known[p.ID] = struct{}{} })

	b.eachPin(func(_ string, p *Pin) {
		for id := range p.DependsOn {
			if _, ok := known[id]; !ok {
				p.DependsOn.Remove(id)
			}
		}
		for id := range p.ConnectedTo {
			if _, ok := known[id]; !ok {
				p.ConnectedTo.Remove(id)
			}
		}
	})
}

// entity returns the pins of the node or layer with the given id.
func (b *Board) entity(id string) (map[string]*Pin, bool, bool) {
	if n, ok := b.Nodes[id]; ok {
		return n.Pins, false, true
	}
	if l, ok := b.Layers[id]; ok {
		return l.Pins, true, true
	}
	return nil, false, false
}

func (b *Board) eachPin(fn func(owner string, p *Pin)) {
	for id, n := range b.Nodes {
		for _, p := range n.Pins {
			fn(id, p)
		}
	}
	for id, l := range b.Layers {
		for _, p := range l.Pins {
			fn(id, p)
		}
	}
}

func (b *Board) touch() {
	b.UpdatedAt = time.Now().UTC()
}
