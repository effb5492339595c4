package board

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/specialistvlad/flowgrid/internal/pintype"
)

// Direction is the side of a node a pin sits on.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Kind distinguishes control flow pins from value carrying pins.
type Kind string

const (
	Execution Kind = "execution"
	Data      Kind = "data"
)

// Pin is a connection point on a node or a layer.
type Pin struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	FriendlyName string          `json:"friendly_name"`
	Description  string          `json:"description,omitempty"`
	Direction    Direction       `json:"direction"`
	Kind         Kind            `json:"kind"`
	DataType     string          `json:"data_type,omitempty"`
	DefaultValue json.RawMessage `json:"default_value,omitempty"`
	Schema       string          `json:"schema,omitempty"`
	Index        int             `json:"index"`
	DependsOn    PinSet          `json:"depends_on"`
	ConnectedTo  PinSet          `json:"connected_to"`
}

// NewPin creates a pin without an id. The id is assigned when the pin is
// added to a node.
func NewPin(name, friendlyName string, dir Direction, kind Kind) *Pin {
	p := &Pin{
		Name:         name,
		FriendlyName: friendlyName,
		Direction:    dir,
		Kind:         kind,
		DependsOn:    PinSet{},
		ConnectedTo:  PinSet{},
	}
	if kind == Data {
		p.DataType = pintype.Any
	}
	return p
}

// ExecInput declares an incoming execution pin.
func ExecInput(name, friendlyName string) *Pin {
	return NewPin(name, friendlyName, Input, Execution)
}

// ExecOutput declares an outgoing execution pin.
func ExecOutput(name, friendlyName string) *Pin {
	return NewPin(name, friendlyName, Output, Execution)
}

// DataInput declares an input value pin of the given type.
func DataInput(name, friendlyName, dataType string) *Pin {
	return NewPin(name, friendlyName, Input, Data).WithType(dataType)
}

// DataOutput declares an output value pin of the given type.
func DataOutput(name, friendlyName, dataType string) *Pin {
	return NewPin(name, friendlyName, Output, Data).WithType(dataType)
}

func (p *Pin) WithType(dataType string) *Pin {
	p.DataType = dataType
	return p
}

func (p *Pin) WithDescription(desc string) *Pin {
	p.Description = desc
	return p
}

// WithDefault sets the JSON encoded default value of the pin. It panics when
// v cannot be marshaled, which only happens for programming errors in node
// declarations.
func (p *Pin) WithDefault(v any) *Pin {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("board: default for pin %q: %v", p.Name, err))
	}
	p.DefaultValue = raw
	return p
}

// Clone returns a deep copy of the pin.
func (p *Pin) Clone() *Pin {
	c := *p
	if p.DefaultValue != nil {
		c.DefaultValue = append(json.RawMessage(nil), p.DefaultValue...)
	}
	c.DependsOn = p.DependsOn.Clone()
	c.ConnectedTo = p.ConnectedTo.Clone()
	return &c
}

func (p *Pin) IsExec() bool { return p.Kind == Execution }

// PinSet is a set of pin ids. It marshals to a sorted JSON array.
type PinSet map[string]struct{}

// NewPinSet returns a set holding the given ids.
func NewPinSet(ids ...string) PinSet {
	s := make(PinSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s *PinSet) Add(id string) {
	if *s == nil {
		*s = PinSet{}
	}
	(*s)[id] = struct{}{}
}

func (s PinSet) Remove(id string) { delete(s, id) }

func (s PinSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the ids in sorted order.
func (s PinSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s PinSet) Clone() PinSet {
	c := make(PinSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

func (s PinSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *PinSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewPinSet(ids...)
	return nil
}
