package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/pintype"
	"github.com/zclconf/go-cty/cty"
)

// Compile builds the execution graph of b. Node types are resolved through r.
func Compile(ctx context.Context, b *board.Board, r Resolver) (*Graph, error) {
	logger := ctxlog.FromContext(ctx).With("board_id", b.ID)
	logger.Debug("Compile: Starting graph construction.")

	g := &Graph{
		BoardID:   b.ID,
		Variables: make(map[string]*Variable, len(b.Variables)),
		nodeIndex: make(map[string]int, len(b.Nodes)),
		pinIndex:  make(map[string]int),
	}

	// First pass: allocate the arena.
	if err := g.allocateNodes(b, r); err != nil {
		return nil, err
	}
	if err := g.allocateLayers(b); err != nil {
		return nil, err
	}
	if err := g.allocateVariables(b); err != nil {
		return nil, err
	}
	logger.Debug("Compile: Arena allocated.", "node_count", len(g.Nodes), "pin_count", len(g.Pins))

	// Second pass: resolve edges to arena indices.
	if err := g.linkPins(b); err != nil {
		return nil, err
	}
	logger.Debug("Compile: Edges linked.")

	if err := g.detectDataCycles(); err != nil {
		return nil, fmt.Errorf("error validating execution graph: %w", err)
	}

	logger.Debug("Compile: Graph construction successful.")
	return g, nil
}

func (g *Graph) allocateNodes(b *board.Board, r Resolver) error {
	ids := make([]string, 0, len(b.Nodes))
	for id := range b.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		bn := b.Nodes[id]
		behavior, ok := r.Resolve(bn.Type)
		if !ok {
			return fmt.Errorf("%w: %q (node %s)", ErrUnknownNodeType, bn.Type, bn.ID)
		}

		n := &InternalNode{
			Index:        len(g.Nodes),
			ID:           bn.ID,
			Type:         bn.Type,
			Name:         bn.FriendlyName,
			Start:        bn.Start,
			Behavior:     behavior,
			declaredPure: bn.Pure,
			byName:       make(map[string]int, len(bn.Pins)),
			graph:        g,
		}
		g.nodeIndex[bn.ID] = n.Index
		g.Nodes = append(g.Nodes, n)

		for _, bp := range bn.SortedPins() {
			p, err := g.allocatePin(bp, n.Index, bn.Layer)
			if err != nil {
				return fmt.Errorf("node %s: %w", bn.ID, err)
			}
			n.Pins = append(n.Pins, p.Index)
			n.byName[bp.Name] = p.Index
		}
	}
	return nil
}

func (g *Graph) allocateLayers(b *board.Board) error {
	ids := make([]string, 0, len(b.Layers))
	for id := range b.Layers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, bp := range sortedLayerPins(b.Layers[id]) {
			if _, err := g.allocatePin(bp, -1, id); err != nil {
				return fmt.Errorf("layer %s: %w", id, err)
			}
		}
	}
	return nil
}

func (g *Graph) allocatePin(bp *board.Pin, owner int, layer string) (*InternalPin, error) {
	p := &InternalPin{
		Index:     len(g.Pins),
		ID:        bp.ID,
		Name:      bp.Name,
		Node:      owner,
		Layer:     layer,
		Direction: bp.Direction,
		Kind:      bp.Kind,
		Type:      cty.DynamicPseudoType,
		Default:   cty.NilVal,
	}

	if bp.Kind == board.Data {
		ty, err := pintype.Parse(bp.DataType)
		if err != nil {
			return nil, fmt.Errorf("%w: pin %s: %w", ErrInvalidType, bp.Name, err)
		}
		p.Type = ty

		if len(bp.DefaultValue) > 0 {
			def, err := pintype.DecodeJSON(bp.DefaultValue, ty)
			if err != nil {
				return nil, fmt.Errorf("%w: default of pin %s: %w", ErrInvalidType, bp.Name, err)
			}
			p.Default = def
		}
	}

	g.pinIndex[bp.ID] = p.Index
	g.Pins = append(g.Pins, p)
	return p, nil
}

func (g *Graph) allocateVariables(b *board.Board) error {
	for id, bv := range b.Variables {
		ty, err := pintype.Parse(bv.DataType)
		if err != nil {
			return fmt.Errorf("%w: variable %s: %w", ErrInvalidType, bv.Name, err)
		}
		val, err := pintype.DecodeJSON(bv.DefaultValue, ty)
		if err != nil {
			return fmt.Errorf("%w: default of variable %s: %w", ErrInvalidType, bv.Name, err)
		}
		g.Variables[id] = &Variable{ID: id, Name: bv.Name, Type: ty, value: val}
	}
	return nil
}

// linkPins writes every pin's edge slices exactly once.
func (g *Graph) linkPins(b *board.Board) error {
	var linkErr error
	resolve := func(set board.PinSet, from string) []int {
		ids := set.Slice()
		out := make([]int, 0, len(ids))
		for _, id := range ids {
			idx, ok := g.pinIndex[id]
			if !ok {
				if linkErr == nil {
					linkErr = fmt.Errorf("%w: %s (from pin %s)", ErrUnresolvedPin, id, from)
				}
				continue
			}
			out = append(out, idx)
		}
		return out
	}

	for _, p := range g.Pins {
		bp, _, ok := b.FindPin(p.ID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnresolvedPin, p.ID)
		}
		p.dependsOn = resolve(bp.DependsOn, p.ID)
		p.connectedTo = resolve(bp.ConnectedTo, p.ID)
		if linkErr != nil {
			return linkErr
		}
	}
	return nil
}

// detectDataCycles rejects pure nodes that, through their data inputs,
// depend on themselves. Such nodes could never be evaluated on demand.
func (g *Graph) detectDataCycles() error {
	permanent := make(map[int]bool)
	temporary := make(map[int]bool)

	var visit func(n *InternalNode) error
	visit = func(n *InternalNode) error {
		if permanent[n.Index] {
			return nil
		}
		if temporary[n.Index] {
			return fmt.Errorf("%w: involving node '%s'", ErrDataCycle, n.ID)
		}
		temporary[n.Index] = true

		for _, up := range g.PureUpstream(n) {
			if err := visit(up); err != nil {
				return err
			}
		}

		delete(temporary, n.Index)
		permanent[n.Index] = true
		return nil
	}

	for _, n := range g.Nodes {
		if n.IsPure() && !permanent[n.Index] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedLayerPins(l *board.Layer) []*board.Pin {
	n := &board.Node{Pins: l.Pins}
	return n.SortedPins()
}

func convertTo(val cty.Value, ty cty.Type) (cty.Value, error) {
	return pintype.Convert(val, ty)
}
