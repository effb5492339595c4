package memory

import (
	"context"
	"testing"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/boardstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := board.New("demo")
	n := board.NewNode("math.add", "Add", "Math").AddPin(board.DataInput("a", "A", "number").WithDefault(2))
	_, err := b.ExecuteCommand(&board.AddNode{Node: n})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, b))
	got, err := s.Get(ctx, b.ID)

	require.NoError(t, err)
	require.NotSame(t, b, got)
	assert.Equal(t, b.Name, got.Name)
	require.Contains(t, got.Nodes, n.ID)
	assert.JSONEq(t, "2", string(got.Nodes[n.ID].PinByName("a").DefaultValue))

	undo, _ := got.History()
	assert.Empty(t, undo, "history is not persisted")
}

func TestGet_NotFound(t *testing.T) {
	_, err := New().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, boardstore.ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	second, first := board.New("second"), board.New("first")
	second.ID, first.ID = "b", "a"
	require.NoError(t, s.Put(ctx, second))
	require.NoError(t, s.Put(ctx, first))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "first", list[0].Name)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
