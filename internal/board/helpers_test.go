package board

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCatalog map[string]*Node

func (c fakeCatalog) NodeTemplate(typeName string) (*Node, bool) {
	n, ok := c[typeName]
	return n, ok
}

// addNode puts a node with the given pins on b and returns it.
func addNode(t *testing.T, b *Board, typeName string, pins ...*Pin) *Node {
	t.Helper()
	n := NewNode(typeName, typeName, "test")
	for _, p := range pins {
		n.AddPin(p)
	}
	_, err := b.ExecuteCommand(&AddNode{Node: n})
	require.NoError(t, err)
	return b.Nodes[n.ID]
}

func pin(t *testing.T, n *Node, name string) *Pin {
	t.Helper()
	p := n.PinByName(name)
	require.NotNil(t, p, "pin %s missing on %s", name, n.Type)
	return p
}

func connect(t *testing.T, b *Board, from *Node, fromPin string, to *Node, toPin string) *ConnectPins {
	t.Helper()
	cmd := &ConnectPins{FromNode: from.ID, FromPin: pin(t, from, fromPin).ID, ToNode: to.ID, ToPin: pin(t, to, toPin).ID}
	_, err := b.ExecuteCommand(cmd)
	require.NoError(t, err)
	return cmd
}

func producer(t *testing.T, b *Board) *Node {
	return addNode(t, b, "producer",
		ExecInput("exec_in", "In"),
		ExecOutput("exec_out", "Out"),
		DataOutput("value", "Value", "number"),
	)
}

func consumer(t *testing.T, b *Board) *Node {
	return addNode(t, b, "consumer",
		ExecInput("exec_in", "In"),
		DataInput("value", "Value", "number"),
	)
}
