package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/events"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/graph"
	"github.com/specialistvlad/flowgrid/internal/registry"
	"github.com/specialistvlad/flowgrid/internal/runcache"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a background context carrying a debug logger that writes
// to buf.
func Context(buf *SafeBuffer) context.Context {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}

// BoardBuilder assembles boards from registered node types through board
// commands, failing the test on any error.
type BoardBuilder struct {
	t     *testing.T
	reg   *registry.Registry
	board *board.Board
}

// NewBoard starts a board backed by reg.
func NewBoard(t *testing.T, reg *registry.Registry) *BoardBuilder {
	t.Helper()
	b := board.New(t.Name())
	b.AttachCatalog(reg)
	return &BoardBuilder{t: t, reg: reg, board: b}
}

// Board returns the board under construction.
func (bb *BoardBuilder) Board() *board.Board { return bb.board }

// Add places a node of the given type and returns it.
func (bb *BoardBuilder) Add(typeName string) *board.Node {
	bb.t.Helper()
	n, err := bb.reg.Instantiate(typeName)
	require.NoError(bb.t, err)
	_, err = bb.board.ExecuteCommand(&board.AddNode{Node: n})
	require.NoError(bb.t, err)
	return bb.board.Nodes[n.ID]
}

// Connect wires from.fromPin to to.toPin by pin name.
func (bb *BoardBuilder) Connect(from *board.Node, fromPin string, to *board.Node, toPin string) {
	bb.t.Helper()
	fp, tp := from.PinByName(fromPin), to.PinByName(toPin)
	require.NotNil(bb.t, fp, "pin %s on %s", fromPin, from.Type)
	require.NotNil(bb.t, tp, "pin %s on %s", toPin, to.Type)
	_, err := bb.board.ExecuteCommand(&board.ConnectPins{FromNode: from.ID, FromPin: fp.ID, ToNode: to.ID, ToPin: tp.ID})
	require.NoError(bb.t, err)
}

// Set stores a JSON default on the named pin.
func (bb *BoardBuilder) Set(n *board.Node, pinName string, v any) {
	bb.t.Helper()
	p := n.PinByName(pinName)
	require.NotNil(bb.t, p, "pin %s on %s", pinName, n.Type)
	p.WithDefault(v)
}

// Variable adds a board variable and returns its id.
func (bb *BoardBuilder) Variable(name, dataType string, def any) string {
	bb.t.Helper()
	v := &board.Variable{ID: name + "-var", Name: name, DataType: dataType, Editable: true}
	if def != nil {
		p := board.NewPin("tmp", "tmp", board.Input, board.Data).WithDefault(def)
		v.DefaultValue = p.DefaultValue
	}
	_, err := bb.board.ExecuteCommand(&board.UpsertVariable{Variable: v})
	require.NoError(bb.t, err)
	return v.ID
}

// Run compiles the board and executes it from the given node in a fresh root
// context. Events are sent to pub when it is not nil.
func Run(ctx context.Context, t *testing.T, reg *registry.Registry, b *board.Board, startID string, pub events.Publisher) (*executor.ExecutionContext, error) {
	t.Helper()
	g, err := graph.Compile(ctx, b, reg)
	require.NoError(t, err)
	start, ok := g.Node(startID)
	require.True(t, ok, "start node %s not compiled", startID)

	cache := runcache.New()
	defer cache.Close(ctx)

	ec := executor.New(&executor.Shared{RunID: "test-run", Graph: g, Cache: cache, Publisher: pub, LogLevel: slog.LevelDebug})
	return ec, ec.Execute(ctx, start)
}
