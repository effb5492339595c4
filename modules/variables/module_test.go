package variables_test

import (
	"context"
	"testing"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/registry"
	"github.com/specialistvlad/flowgrid/internal/testutil"
	"github.com/specialistvlad/flowgrid/modules/control"
	"github.com/specialistvlad/flowgrid/modules/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestSetThenGet(t *testing.T) {
	// Arrange
	probe := testutil.NewProbe(0)
	reg := registry.New().Load(&control.Module{}, &variables.Module{}, probe)
	bb := testutil.NewBoard(t, reg)
	id := bb.Variable("greeting", "string", "hello")

	start := bb.Add("control.start")
	before := bb.Add("test.record")
	set := bb.Add("variables.set")
	after := bb.Add("test.record")
	get := bb.Add("variables.get")
	bb.Set(get, board.VariableRefPin, id)
	bb.Set(set, board.VariableRefPin, id)
	bb.Set(set, "value", "bye")

	bb.Connect(start, "exec", before, "exec")
	bb.Connect(before, "then", set, "exec")
	bb.Connect(set, "then", after, "exec")
	bb.Connect(get, "value", before, "value")
	bb.Connect(get, "value", after, "value")

	// Act
	ec, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []any{"hello", "bye"}, probe.Values())
	v, ok := ec.Variable(id)
	require.True(t, ok)
	assert.True(t, v.Get().RawEquals(cty.StringVal("bye")))
}

func TestGet_UnknownVariable(t *testing.T) {
	probe := testutil.NewProbe(0)
	reg := registry.New().Load(&control.Module{}, &variables.Module{}, probe)
	bb := testutil.NewBoard(t, reg)
	start := bb.Add("control.start")
	rec := bb.Add("test.record")
	get := bb.Add("variables.get")
	bb.Set(get, board.VariableRefPin, "missing")
	bb.Connect(start, "exec", rec, "exec")
	bb.Connect(get, "value", rec, "value")

	_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

	assert.ErrorIs(t, err, variables.ErrUnknownVariable)
	assert.Empty(t, probe.Values())
}
