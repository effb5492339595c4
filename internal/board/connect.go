package board

import (
	"fmt"
	"sort"
)

// EdgeSnapshot records the edge sets of one pin at a point in time.
type EdgeSnapshot struct {
	Owner       string
	PinID       string
	DependsOn   PinSet
	ConnectedTo PinSet
}

// snapshotPins captures the edge sets of the given pins. Pins that no longer
// exist are skipped.
func (b *Board) snapshotPins(ids map[string]struct{}) []EdgeSnapshot {
	out := make([]EdgeSnapshot, 0, len(ids))
	b.eachPin(func(owner string, p *Pin) {
		if _, ok := ids[p.ID]; !ok {
			return
		}
		out = append(out, EdgeSnapshot{
			Owner:       owner,
			PinID:       p.ID,
			DependsOn:   p.DependsOn.Clone(),
			ConnectedTo: p.ConnectedTo.Clone(),
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PinID < out[j].PinID })
	return out
}

// restoreSnapshots puts recorded edge sets back in place.
func (b *Board) restoreSnapshots(snaps []EdgeSnapshot) {
	for _, s := range snaps {
		pins, _, ok := b.entity(s.Owner)
		if !ok {
			continue
		}
		p, ok := pins[s.PinID]
		if !ok {
			continue
		}
		p.DependsOn = s.DependsOn.Clone()
		p.ConnectedTo = s.ConnectedTo.Clone()
	}
}

// touchingPins returns the ids of from, to and of every pin holding an edge
// to either of them.
func (b *Board) touchingPins(fromID, toID string) map[string]struct{} {
	ids := map[string]struct{}{fromID: {}, toID: {}}
	b.eachPin(func(_ string, p *Pin) {
		if p.DependsOn.Has(fromID) || p.DependsOn.Has(toID) || p.ConnectedTo.Has(fromID) || p.ConnectedTo.Has(toID) {
			ids[p.ID] = struct{}{}
		}
	})
	return ids
}

type endpoints struct {
	from, to *Pin
}

// resolveEndpoints validates a connection request and returns both pins.
func (b *Board) resolveEndpoints(fromOwner, fromPin, toOwner, toPin string) (endpoints, error) {
	if fromOwner == toOwner || fromPin == toPin {
		return endpoints{}, ErrSelfConnection
	}

	fromPins, fromLayer, ok := b.entity(fromOwner)
	if !ok {
		return endpoints{}, fmt.Errorf("%w: %s", ErrNodeNotFound, fromOwner)
	}
	toPins, toLayer, ok := b.entity(toOwner)
	if !ok {
		return endpoints{}, fmt.Errorf("%w: %s", ErrNodeNotFound, toOwner)
	}

	from, ok := fromPins[fromPin]
	if !ok {
		return endpoints{}, fmt.Errorf("%w: %s on %s", ErrPinNotFound, fromPin, fromOwner)
	}
	to, ok := toPins[toPin]
	if !ok {
		return endpoints{}, fmt.Errorf("%w: %s on %s", ErrPinNotFound, toPin, toOwner)
	}

	if !fromLayer && from.Direction != Output {
		return endpoints{}, fmt.Errorf("%w: %s is an input", ErrPinDirection, from.Name)
	}
	if !toLayer && to.Direction != Input {
		return endpoints{}, fmt.Errorf("%w: %s is an output", ErrPinDirection, to.Name)
	}
	if from.Kind != to.Kind {
		return endpoints{}, ErrKindMismatch
	}
	return endpoints{from: from, to: to}, nil
}

// connectPins wires from -> to and returns the edge state it displaced.
func (b *Board) connectPins(fromOwner, fromPin, toOwner, toPin string) ([]EdgeSnapshot, error) {
	ep, err := b.resolveEndpoints(fromOwner, fromPin, toOwner, toPin)
	if err != nil {
		return nil, err
	}
	snaps := b.snapshotPins(b.touchingPins(ep.from.ID, ep.to.ID))
	from, to := ep.from, ep.to

	if from.Kind == Execution {
		// An execution output drives at most one pin.
		to.DependsOn.Add(from.ID)
		from.ConnectedTo = NewPinSet(to.ID)
		b.eachPin(func(_ string, p *Pin) {
			if p != to {
				p.DependsOn.Remove(from.ID)
			}
		})
	} else {
		// A data input reads from at most one pin.
		to.DependsOn = NewPinSet(from.ID)
		b.eachPin(func(_ string, p *Pin) {
			if p != from {
				p.ConnectedTo.Remove(to.ID)
			}
		})
		from.ConnectedTo.Add(to.ID)
	}
	return snaps, nil
}

// disconnectPins removes the edge from -> to and returns the prior state.
func (b *Board) disconnectPins(fromOwner, fromPin, toOwner, toPin string) ([]EdgeSnapshot, error) {
	from, err := b.Pin(fromOwner, fromPin)
	if err != nil {
		return nil, err
	}
	to, err := b.Pin(toOwner, toPin)
	if err != nil {
		return nil, err
	}
	snaps := b.snapshotPins(map[string]struct{}{from.ID: {}, to.ID: {}})
	from.ConnectedTo.Remove(to.ID)
	to.DependsOn.Remove(from.ID)
	return snaps, nil
}

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}
