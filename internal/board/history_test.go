package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_UndoRedo(t *testing.T) {
	b := New("history")
	a, dst := producer(t, b), consumer(t, b)
	cmd := connect(t, b, a, "value", dst, "value")

	require.NoError(t, b.Undo([]Command{cmd}))
	assert.Empty(t, pin(t, dst, "value").DependsOn)

	require.NoError(t, b.Redo([]Command{cmd}))
	assert.True(t, pin(t, dst, "value").DependsOn.Has(pin(t, a, "value").ID))
}

func TestHistory_Mismatch(t *testing.T) {
	b := New("mismatch")
	a, dst := producer(t, b), consumer(t, b)
	connect(t, b, a, "value", dst, "value")

	err := b.Undo([]Command{&MoveNode{Base: Base{ID: "other"}}})
	assert.ErrorIs(t, err, ErrHistoryMismatch)
	assert.NotEmpty(t, pin(t, dst, "value").DependsOn)

	undo, redo := b.History()
	assert.Len(t, undo, 3)
	assert.Empty(t, redo)
}

func TestHistory_EmptyStacks(t *testing.T) {
	b := New("empty")
	assert.ErrorIs(t, b.Undo(nil), ErrNothingToUndo)
	assert.ErrorIs(t, b.Redo(nil), ErrNothingToRedo)
}

func TestHistory_NewCommandClearsRedo(t *testing.T) {
	b := New("redo cleared")
	n := producer(t, b)
	require.NoError(t, b.Undo(nil))

	_, err := b.ExecuteCommand(&UpsertComment{Comment: &Comment{ID: "c", Content: "x"}})
	require.NoError(t, err)

	_, redo := b.History()
	assert.Empty(t, redo)
	assert.NotContains(t, b.Nodes, n.ID)
}

func TestHistory_BatchUndoNewestFirst(t *testing.T) {
	b := New("batch")
	n := producer(t, b)
	first := &MoveNode{NodeID: n.ID, Coordinates: Coordinates{1, 0, 0}}
	second := &MoveNode{NodeID: n.ID, Coordinates: Coordinates{2, 0, 0}}
	_, err := b.ExecuteCommands([]Command{first, second})
	require.NoError(t, err)

	assert.ErrorIs(t, b.Undo([]Command{first, second}), ErrHistoryMismatch)
	require.NoError(t, b.Undo([]Command{second, first}))
	assert.Equal(t, Coordinates{}, b.Nodes[n.ID].Coordinates)

	require.NoError(t, b.Redo([]Command{first, second}))
	assert.Equal(t, Coordinates{2, 0, 0}, b.Nodes[n.ID].Coordinates)
}

func TestExecuteCommands_RollsBackBatch(t *testing.T) {
	b := New("rollback")
	n := producer(t, b)
	undoBefore, _ := b.History()

	_, err := b.ExecuteCommands([]Command{
		&MoveNode{NodeID: n.ID, Coordinates: Coordinates{5, 5, 0}},
		&UpsertComment{Comment: &Comment{ID: "c1"}},
		&RemoveNode{NodeID: "missing"},
	})

	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Equal(t, Coordinates{}, b.Nodes[n.ID].Coordinates)
	assert.Empty(t, b.Comments)
	undoAfter, _ := b.History()
	assert.Len(t, undoAfter, len(undoBefore))
}

func TestRemoveNode_UndoRestoresEdges(t *testing.T) {
	b := New("remove")
	a, dst := producer(t, b), consumer(t, b)
	connect(t, b, a, "value", dst, "value")

	_, err := b.ExecuteCommand(&RemoveNode{NodeID: a.ID})
	require.NoError(t, err)
	assert.Empty(t, pin(t, dst, "value").DependsOn)

	require.NoError(t, b.Undo(nil))
	restored := b.Nodes[a.ID]
	require.NotNil(t, restored)
	assert.True(t, pin(t, dst, "value").DependsOn.Has(pin(t, restored, "value").ID))
	assert.True(t, pin(t, restored, "value").ConnectedTo.Has(pin(t, dst, "value").ID))
}

func TestVariableCommands(t *testing.T) {
	b := New("vars")
	_, err := b.ExecuteCommand(&UpsertVariable{Variable: &Variable{ID: "v", Name: "one"}})
	require.NoError(t, err)
	_, err = b.ExecuteCommand(&UpsertVariable{Variable: &Variable{ID: "v", Name: "two"}})
	require.NoError(t, err)

	require.NoError(t, b.Undo(nil))
	assert.Equal(t, "one", b.Variables["v"].Name)

	_, err = b.ExecuteCommand(&RemoveVariable{VariableID: "v"})
	require.NoError(t, err)
	assert.Empty(t, b.Variables)
	require.NoError(t, b.Undo(nil))
	assert.Equal(t, "one", b.Variables["v"].Name)

	_, err = b.ExecuteCommand(&RemoveVariable{VariableID: "nope"})
	assert.ErrorIs(t, err, ErrVariableNotFound)
}

func TestPublish(t *testing.T) {
	b := New("versions")
	assert.Equal(t, "0.0.1", b.Publish(Patch).String())
	assert.Equal(t, "0.1.0", b.Publish(Minor).String())
	b.Publish(Patch)
	assert.Equal(t, "1.0.0", b.Publish(Major).String())
}

func TestHistory_RollbackRestoresRedo(t *testing.T) {
	// Arrange
	b := New("rollback")
	n := producer(t, b)
	undone := &MoveNode{NodeID: n.ID, Coordinates: Coordinates{1, 0, 0}}
	_, err := b.ExecuteCommand(undone)
	require.NoError(t, err)
	require.NoError(t, b.Undo(nil))
	undoBefore, redoBefore := b.History()

	applied, err := b.ExecuteCommands([]Command{
		&MoveNode{NodeID: n.ID, Coordinates: Coordinates{2, 0, 0}},
		&MoveNode{NodeID: n.ID, Coordinates: Coordinates{3, 0, 0}},
	})
	require.NoError(t, err)

	// Act
	err = b.Rollback(applied, redoBefore)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Coordinates{}, b.Nodes[n.ID].Coordinates)
	undo, redo := b.History()
	assert.Equal(t, undoBefore, undo)
	assert.Equal(t, []Command{undone}, redo)

	t.Run("rejects a batch that is not on top", func(t *testing.T) {
		assert.ErrorIs(t, b.Rollback(applied, nil), ErrHistoryMismatch)
	})
}
