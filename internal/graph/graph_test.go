package graph

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type stubBehavior struct{}

func (stubBehavior) Declare() *board.Node { return &board.Node{} }

type stubResolver map[string]bool

func (r stubResolver) Resolve(typeName string) (Behavior, bool) {
	if !r[typeName] {
		return nil, false
	}
	return stubBehavior{}, true
}

var resolver = stubResolver{"step": true, "calc": true}

func step(t *testing.T, b *board.Board) *board.Node {
	t.Helper()
	n := board.NewNode("step", "Step", "test")
	n.AddPin(board.ExecInput("exec_in", "In"))
	n.AddPin(board.ExecOutput("exec_out", "Out"))
	n.AddPin(board.DataInput("in", "In", "number").WithDefault(7))
	n.AddPin(board.DataOutput("out", "Out", "number"))
	b.Nodes[n.ID] = n
	return n
}

func calc(t *testing.T, b *board.Board) *board.Node {
	t.Helper()
	n := board.NewNode("calc", "Calc", "test")
	n.AddPin(board.DataInput("in", "In", "number"))
	n.AddPin(board.DataOutput("out", "Out", "number"))
	b.Nodes[n.ID] = n
	return n
}

func link(t *testing.T, b *board.Board, from *board.Node, fromPin string, to *board.Node, toPin string) {
	t.Helper()
	_, err := b.ExecuteCommand(&board.ConnectPins{
		FromNode: from.ID, FromPin: from.PinByName(fromPin).ID,
		ToNode: to.ID, ToPin: to.PinByName(toPin).ID,
	})
	require.NoError(t, err)
}

func TestCompile(t *testing.T) {
	// Arrange
	b := board.New("compile")
	a, c := step(t, b), step(t, b)
	link(t, b, a, "exec_out", c, "exec_in")
	link(t, b, a, "out", c, "in")
	b.Variables["v"] = &board.Variable{ID: "v", Name: "count", DataType: "number", DefaultValue: json.RawMessage(`5`)}

	// Act
	g, err := Compile(context.Background(), b, resolver)

	// Assert
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Pins, 8)

	na, ok := g.Node(a.ID)
	require.True(t, ok)
	execOut, ok := na.Pin("exec_out")
	require.True(t, ok)
	targets := g.ConnectedNodes(execOut)
	require.Len(t, targets, 1)
	assert.Equal(t, c.ID, targets[0].ID)

	in, _ := na.Pin("in")
	assert.True(t, g.Pins[in].Type.Equals(cty.Number))
	assert.True(t, g.Pins[in].Default.Equals(cty.NumberIntVal(7)).True())

	assert.True(t, g.Variables["v"].Get().Equals(cty.NumberIntVal(5)).True())
	assert.False(t, na.IsPure())
}

func TestCompile_Errors(t *testing.T) {
	t.Run("unknown node type", func(t *testing.T) {
		b := board.New("unknown")
		b.Nodes["x"] = &board.Node{ID: "x", Type: "nope"}
		_, err := Compile(context.Background(), b, resolver)
		assert.ErrorIs(t, err, ErrUnknownNodeType)
	})

	t.Run("unresolved pin", func(t *testing.T) {
		b := board.New("dangling")
		n := step(t, b)
		n.PinByName("in").DependsOn.Add("ghost")
		_, err := Compile(context.Background(), b, resolver)
		assert.ErrorIs(t, err, ErrUnresolvedPin)
	})

	t.Run("invalid type", func(t *testing.T) {
		b := board.New("bad type")
		n := calc(t, b)
		n.PinByName("in").DataType = "list(any)"
		_, err := Compile(context.Background(), b, resolver)
		assert.ErrorIs(t, err, ErrInvalidType)
	})

	t.Run("invalid default", func(t *testing.T) {
		b := board.New("bad default")
		n := calc(t, b)
		n.PinByName("in").DefaultValue = json.RawMessage(`"seven"`)
		_, err := Compile(context.Background(), b, resolver)
		assert.ErrorIs(t, err, ErrInvalidType)
	})

	t.Run("pure data cycle", func(t *testing.T) {
		b := board.New("cycle")
		x, y := calc(t, b), calc(t, b)
		link(t, b, x, "out", y, "in")
		link(t, b, y, "out", x, "in")
		_, err := Compile(context.Background(), b, resolver)
		assert.ErrorIs(t, err, ErrDataCycle)
	})
}

func TestTraversal_ThroughLayers(t *testing.T) {
	// Arrange
	b := board.New("layers")
	a, c := step(t, b), step(t, b)
	relayIn := board.NewPin("relay_in", "In", board.Input, board.Data)
	relayIn.ID = "relay-in"
	relayOut := board.NewPin("relay_out", "Out", board.Output, board.Data)
	relayOut.ID = "relay-out"
	b.Layers["l"] = &board.Layer{ID: "l", Pins: map[string]*board.Pin{relayIn.ID: relayIn, relayOut.ID: relayOut}}

	_, err := b.ExecuteCommand(&board.ConnectPins{FromNode: a.ID, FromPin: a.PinByName("out").ID, ToNode: "l", ToPin: relayIn.ID})
	require.NoError(t, err)
	// Relay to relay on the same layer is wired directly; commands forbid it.
	relayIn.ConnectedTo.Add(relayOut.ID)
	relayOut.DependsOn.Add(relayIn.ID)
	_, err = b.ExecuteCommand(&board.ConnectPins{FromNode: "l", FromPin: relayOut.ID, ToNode: c.ID, ToPin: c.PinByName("in").ID})
	require.NoError(t, err)

	// Act
	g, err := Compile(context.Background(), b, resolver)
	require.NoError(t, err)
	na, _ := g.Node(a.ID)
	nc, _ := g.Node(c.ID)
	out, _ := na.Pin("out")
	in, _ := nc.Pin("in")

	// Assert
	downstream := g.ConnectedNodes(out)
	require.Len(t, downstream, 1)
	assert.Equal(t, c.ID, downstream[0].ID)

	upstream := g.DependentNodes(in)
	require.Len(t, upstream, 1)
	assert.Equal(t, a.ID, upstream[0].ID)

	src, ok := g.Source(in)
	require.True(t, ok)
	assert.Equal(t, out, src)

	relayIdx, _ := g.PinByID(relayIn.ID)
	assert.True(t, g.IsPurePin(relayIdx))
	assert.Nil(t, g.Owner(relayIdx))
}

func TestTraversal_DiamondAndRelayLoop(t *testing.T) {
	b := board.New("diamond")
	src, left, right := calc(t, b), calc(t, b), calc(t, b)
	link(t, b, src, "out", left, "in")
	link(t, b, src, "out", right, "in")

	r1 := board.NewPin("r1", "R1", board.Input, board.Data)
	r1.ID = "r1"
	r2 := board.NewPin("r2", "R2", board.Output, board.Data)
	r2.ID = "r2"
	r1.ConnectedTo.Add("r2")
	r2.ConnectedTo.Add("r1")
	b.Layers["loop"] = &board.Layer{ID: "loop", Pins: map[string]*board.Pin{"r1": r1, "r2": r2}}
	src.PinByName("out").ConnectedTo.Add("r1")

	g, err := Compile(context.Background(), b, resolver)
	require.NoError(t, err)
	ns, _ := g.Node(src.ID)
	out, _ := ns.Pin("out")

	nodes := g.ConnectedNodes(out)
	assert.Len(t, nodes, 2)
	assert.True(t, ns.IsPure())
}

func TestPureUpstream(t *testing.T) {
	b := board.New("upstream")
	x, y, s := calc(t, b), calc(t, b), step(t, b)
	link(t, b, x, "out", y, "in")
	link(t, b, s, "out", x, "in")

	g, err := Compile(context.Background(), b, resolver)
	require.NoError(t, err)
	ny, _ := g.Node(y.ID)
	nx, _ := g.Node(x.ID)

	up := g.PureUpstream(ny)
	require.Len(t, up, 1)
	assert.Equal(t, x.ID, up[0].ID)
	assert.Empty(t, g.PureUpstream(nx), "impure producers are not pulled")
}
