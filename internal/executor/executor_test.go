package executor_test

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/events"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/graph"
	"github.com/specialistvlad/flowgrid/internal/registry"
	"github.com/specialistvlad/flowgrid/internal/runcache"
	"github.com/specialistvlad/flowgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func setup(t *testing.T, sleep time.Duration) (*testutil.Probe, *registry.Registry, *testutil.BoardBuilder) {
	t.Helper()
	probe := testutil.NewProbe(sleep)
	reg := registry.New().Load(probe)
	return probe, reg, testutil.NewBoard(t, reg)
}

func TestExecute_FollowsActivatedExecPins(t *testing.T) {
	// Arrange
	probe, reg, bb := setup(t, 0)
	start := bb.Add("test.start")
	first := bb.Add("test.record")
	second := bb.Add("test.record")
	bb.Set(first, "value", "hello")
	bb.Set(second, "value", "world")
	bb.Connect(start, "exec", first, "exec")
	bb.Connect(first, "then", second, "exec")

	// Act
	ec, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []any{"hello", "world"}, probe.Values())
	trace := ec.Trace()
	require.Len(t, trace, 3)
	assert.Equal(t, start.ID, trace[0].NodeID)
	assert.Equal(t, second.ID, trace[2].NodeID)
	assert.Equal(t, -1, trace[0].Index)
}

func TestEvaluate_PullsPureDiamondOncePerPass(t *testing.T) {
	// Arrange
	probe, reg, bb := setup(t, 0)
	start := bb.Add("test.start")
	rec := bb.Add("test.record")
	source := bb.Add("test.double")
	left := bb.Add("test.double")
	right := bb.Add("test.double")
	sum := bb.Add("test.sum")
	bb.Set(source, "in", 1)
	bb.Connect(start, "exec", rec, "exec")
	bb.Connect(source, "out", left, "in")
	bb.Connect(source, "out", right, "in")
	bb.Connect(left, "out", sum, "a")
	bb.Connect(right, "out", sum, "b")
	bb.Connect(sum, "out", rec, "value")

	// Act
	_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []any{float64(8)}, probe.Values())
	assert.Equal(t, 4, probe.PureRuns(), "the shared source must run once")
}

func TestEvaluate_RerunsPureNodesForEachConsumer(t *testing.T) {
	// Arrange
	probe, reg, bb := setup(t, 0)
	start := bb.Add("test.start")
	first := bb.Add("test.record")
	second := bb.Add("test.record")
	double := bb.Add("test.double")
	bb.Set(double, "in", 21)
	bb.Connect(start, "exec", first, "exec")
	bb.Connect(first, "then", second, "exec")
	bb.Connect(double, "out", first, "value")
	bb.Connect(double, "out", second, "value")

	// Act
	_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []any{float64(42), float64(42)}, probe.Values())
	assert.Equal(t, 2, probe.PureRuns())
}

func TestEvaluate_Payload(t *testing.T) {
	// Arrange
	probe, reg, bb := setup(t, 0)
	start := bb.Add("test.start")
	rec := bb.Add("test.record")
	bb.Connect(start, "exec", rec, "exec")
	bb.Connect(start, "payload", rec, "value")

	ctx := context.Background()
	g, err := graph.Compile(ctx, bb.Board(), reg)
	require.NoError(t, err)
	ec := executor.New(&executor.Shared{RunID: "r1", Graph: g})
	require.NoError(t, ec.OverridePin(start.ID, "payload", cty.ObjectVal(map[string]cty.Value{"name": cty.StringVal("flow")})))
	n, _ := g.Node(start.ID)

	// Act
	err = ec.Execute(ctx, n)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"name": "flow"}}, probe.Values())
}

func TestExecute_Errors(t *testing.T) {
	t.Run("failing node stops its branch", func(t *testing.T) {
		// Arrange
		probe, reg, bb := setup(t, 0)
		start := bb.Add("test.start")
		fail := bb.Add("test.fail")
		rec := bb.Add("test.record")
		bb.Set(rec, "value", "unreachable")
		bb.Connect(start, "exec", fail, "exec")
		bb.Connect(fail, "then", rec, "exec")

		// Act
		ec, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, testutil.ErrBoom)
		var nodeErr *executor.NodeError
		require.ErrorAs(t, err, &nodeErr)
		assert.Equal(t, fail.ID, nodeErr.NodeID)
		assert.Empty(t, probe.Records())
		trace := ec.Trace()
		require.Len(t, trace, 2)
		assert.Equal(t, "boom", trace[1].Error)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		_, reg, bb := setup(t, 0)
		start := bb.Add("test.start")
		p := bb.Add("test.panic")
		bb.Connect(start, "exec", p, "exec")

		_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic: test.panic reached")
	})

	t.Run("unconnected input without default", func(t *testing.T) {
		_, reg, bb := setup(t, 0)
		start := bb.Add("test.start")
		rec := bb.Add("test.record")
		bb.Connect(start, "exec", rec, "exec")

		_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

		assert.ErrorIs(t, err, executor.ErrNoValue)
	})

	t.Run("value of the wrong type", func(t *testing.T) {
		_, reg, bb := setup(t, 0)
		start := bb.Add("test.start")
		rec := bb.Add("test.record")
		double := bb.Add("test.double")
		bb.Connect(start, "exec", rec, "exec")
		bb.Connect(double, "out", rec, "value")
		bb.Connect(start, "payload", double, "in")

		ctx := context.Background()
		g, err := graph.Compile(ctx, bb.Board(), reg)
		require.NoError(t, err)
		ec := executor.New(&executor.Shared{Graph: g})
		require.NoError(t, ec.OverridePin(start.ID, "payload", cty.StringVal("not a number")))
		n, _ := g.Node(start.ID)

		err = ec.Execute(ctx, n)

		assert.ErrorIs(t, err, executor.ErrDecode)
	})

	t.Run("pin access outside a node", func(t *testing.T) {
		_, reg, bb := setup(t, 0)
		g, err := graph.Compile(context.Background(), bb.Board(), reg)
		require.NoError(t, err)
		ec := executor.New(&executor.Shared{Graph: g})

		assert.ErrorIs(t, ec.SetPinValue("out", 1), executor.ErrNoCurrentNode)
		assert.ErrorIs(t, ec.OverridePin("missing", "payload", cty.True), executor.ErrNotRunnable)
	})
}

func TestExecute_Cancellation(t *testing.T) {
	// Arrange
	_, reg, bb := setup(t, time.Second)
	start := bb.Add("test.start")
	sleep := bb.Add("test.sleep")
	bb.Connect(start, "exec", sleep, "exec")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	// Act
	began := time.Now()
	_, err := testutil.Run(ctx, t, reg, bb.Board(), start.ID, nil)

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(began), 500*time.Millisecond)
}

func TestExecute_PublishesEvents(t *testing.T) {
	// Arrange
	_, reg, bb := setup(t, 0)
	start := bb.Add("test.start")
	fail := bb.Add("test.fail")
	bb.Connect(start, "exec", fail, "exec")
	rec := &events.Recorder{}

	// Act
	_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, rec)

	// Assert
	require.Error(t, err)
	assert.Len(t, rec.OfType(events.NodeStarted), 2)
	assert.Len(t, rec.OfType(events.NodeFinished), 1)
	failed := rec.OfType(events.NodeFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, fail.ID, failed[0].NodeID)
	assert.Equal(t, "test-run", failed[0].RunID)
}

func TestLog(t *testing.T) {
	_, reg, bb := setup(t, 0)
	g, err := graph.Compile(context.Background(), bb.Board(), reg)
	require.NoError(t, err)
	rec := &events.Recorder{}
	ec := executor.New(&executor.Shared{RunID: "r", Graph: g, Publisher: rec, LogLevel: slog.LevelInfo})
	ctx := testutil.Context(&testutil.SafeBuffer{})

	ec.Log(ctx, slog.LevelDebug, "hidden")
	ec.Log(ctx, slog.LevelWarn, "Disk low.", "free", 10)

	logs := ec.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "Disk low. free=10", logs[0].Message)
	assert.Equal(t, "WARN", logs[0].Level)
	assert.Len(t, rec.OfType(events.Log), 1)
}

func TestForEachParallel(t *testing.T) {
	t.Run("runs every item in its own sub-context", func(t *testing.T) {
		// Arrange
		probe, reg, bb := setup(t, 0)
		start := bb.Add("test.start")
		fan := bb.Add("test.fanout")
		item := bb.Add("test.record")
		done := bb.Add("test.record")
		bb.Set(fan, "items", []any{"a", "b", "c"})
		bb.Set(done, "value", "done")
		bb.Connect(start, "exec", fan, "exec")
		bb.Connect(fan, "item", item, "exec")
		bb.Connect(fan, "value", item, "value")
		bb.Connect(fan, "done", done, "exec")

		// Act
		ec, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

		// Assert
		require.NoError(t, err)
		records := probe.Records()
		require.Len(t, records, 4)
		assert.Equal(t, "done", records[3].Value, "done fires once after every branch")
		assert.Equal(t, -1, records[3].Index)

		seen := map[int]any{}
		for _, r := range records[:3] {
			seen[r.Index] = r.Value
		}
		assert.Equal(t, map[int]any{0: "a", 1: "b", 2: "c"}, seen)

		require.Len(t, probe.FanOuts(), 1)
		assert.Equal(t, 3, probe.FanOuts()[0].Tasks)
		assert.Empty(t, probe.FanOuts()[0].Failures)

		var indexes []int
		for _, e := range ec.Trace() {
			if e.NodeID == item.ID {
				indexes = append(indexes, e.Index)
			}
		}
		sort.Ints(indexes)
		assert.Equal(t, []int{0, 1, 2}, indexes)

		g := ec.Graph()
		n, _ := g.Node(fan.ID)
		idx, _ := n.Pin("value")
		_, ok := g.Pins[idx].Value()
		assert.False(t, ok, "branch values must not leak into the root context")
	})

	t.Run("every item runs every connected node", func(t *testing.T) {
		// Arrange
		probe, reg, bb := setup(t, 0)
		start := bb.Add("test.start")
		fan := bb.Add("test.fanout")
		first := bb.Add("test.record")
		second := bb.Add("test.record")
		done := bb.Add("test.record")
		bb.Set(fan, "items", []any{10, 20, 30})
		bb.Set(done, "value", "done")
		bb.Connect(start, "exec", fan, "exec")
		bb.Connect(fan, "value", first, "value")
		bb.Connect(fan, "value", second, "value")
		bb.Connect(fan, "done", done, "exec")

		// Exec outputs hold a single edge when connected through commands;
		// boards stored by other tools may carry several.
		item := fan.PinByName("item")
		for _, n := range []*board.Node{first, second} {
			in := n.PinByName("exec")
			item.ConnectedTo.Add(in.ID)
			in.DependsOn.Add(item.ID)
		}

		// Act
		_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

		// Assert
		require.NoError(t, err)
		require.Len(t, probe.FanOuts(), 1)
		assert.Equal(t, 6, probe.FanOuts()[0].Tasks)

		records := probe.Records()
		require.Len(t, records, 7)
		perNode := map[string][]any{}
		doneCount := 0
		for _, r := range records {
			if r.NodeID == done.ID {
				doneCount++
				continue
			}
			perNode[r.NodeID] = append(perNode[r.NodeID], r.Value)
		}
		assert.Equal(t, 1, doneCount, "done fires once")
		for _, n := range []*board.Node{first, second} {
			assert.ElementsMatch(t, []any{10.0, 20.0, 30.0}, perNode[n.ID])
		}
	})

	t.Run("bounds concurrency", func(t *testing.T) {
		probe, reg, bb := setup(t, 30*time.Millisecond)
		start := bb.Add("test.start")
		fan := bb.Add("test.fanout")
		sleep := bb.Add("test.sleep")
		bb.Set(fan, "items", []any{1, 2, 3, 4, 5})
		bb.Set(fan, "max", 2)
		bb.Connect(start, "exec", fan, "exec")
		bb.Connect(fan, "item", sleep, "exec")

		_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

		require.NoError(t, err)
		assert.Len(t, probe.Executions(sleep.ID), 5)
		assert.LessOrEqual(t, probe.MaxInFlight(), 2)
	})

	t.Run("unbounded branches overlap", func(t *testing.T) {
		probe, reg, bb := setup(t, 50*time.Millisecond)
		start := bb.Add("test.start")
		fan := bb.Add("test.fanout")
		sleep := bb.Add("test.sleep")
		bb.Set(fan, "items", []any{1, 2, 3, 4})
		bb.Connect(start, "exec", fan, "exec")
		bb.Connect(fan, "item", sleep, "exec")

		began := time.Now()
		_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

		require.NoError(t, err)
		assert.Less(t, time.Since(began), 150*time.Millisecond)
		assert.Greater(t, probe.MaxInFlight(), 1)
	})

	t.Run("failed branches do not stop the others", func(t *testing.T) {
		probe, reg, bb := setup(t, 0)
		start := bb.Add("test.start")
		fan := bb.Add("test.fanout")
		fail := bb.Add("test.fail")
		done := bb.Add("test.record")
		bb.Set(fan, "items", []any{1, 2, 3})
		bb.Set(done, "value", "done")
		bb.Connect(start, "exec", fan, "exec")
		bb.Connect(fan, "item", fail, "exec")
		bb.Connect(fan, "done", done, "exec")

		ec, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

		require.NoError(t, err)
		assert.Equal(t, []any{"done"}, probe.Values())
		require.Len(t, probe.FanOuts(), 1)
		failures := probe.FanOuts()[0].Failures
		require.Len(t, failures, 3)
		for _, f := range failures {
			assert.True(t, errors.Is(f, testutil.ErrBoom))
		}

		var indexes []int
		for _, l := range ec.Logs() {
			if l.NodeID == fail.ID {
				indexes = append(indexes, l.Index)
			}
		}
		sort.Ints(indexes)
		assert.Equal(t, []int{0, 1, 2}, indexes)
	})

	t.Run("empty items activates done", func(t *testing.T) {
		probe, reg, bb := setup(t, 0)
		start := bb.Add("test.start")
		fan := bb.Add("test.fanout")
		done := bb.Add("test.record")
		bb.Set(fan, "items", []any{})
		bb.Set(done, "value", "done")
		bb.Connect(start, "exec", fan, "exec")
		bb.Connect(fan, "done", done, "exec")

		_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

		require.NoError(t, err)
		assert.Equal(t, []any{"done"}, probe.Values())
		assert.Equal(t, 0, probe.FanOuts()[0].Tasks)
	})
}

func TestForEachParallel_RunLimit(t *testing.T) {
	run := func(t *testing.T, max, runLimit int) *testutil.Probe {
		t.Helper()
		probe, reg, bb := setup(t, 30*time.Millisecond)
		start := bb.Add("test.start")
		fan := bb.Add("test.fanout")
		sleep := bb.Add("test.sleep")
		bb.Set(fan, "items", []any{1, 2, 3, 4})
		bb.Set(fan, "max", max)
		bb.Connect(start, "exec", fan, "exec")
		bb.Connect(fan, "item", sleep, "exec")

		ctx := context.Background()
		g, err := graph.Compile(ctx, bb.Board(), reg)
		require.NoError(t, err)
		n, ok := g.Node(start.ID)
		require.True(t, ok)
		cache := runcache.New()
		defer cache.Close(ctx)

		ec := executor.New(&executor.Shared{RunID: "limited", Graph: g, Cache: cache, MaxConcurrent: runLimit})
		require.NoError(t, ec.Execute(ctx, n))
		assert.Len(t, probe.Executions(sleep.ID), 4)
		return probe
	}

	t.Run("negative limit uses the run limit", func(t *testing.T) {
		probe := run(t, -1, 1)
		assert.Equal(t, 1, probe.MaxInFlight())
	})

	t.Run("zero stays unbounded under a run limit", func(t *testing.T) {
		probe := run(t, 0, 1)
		assert.Greater(t, probe.MaxInFlight(), 1)
	})

	t.Run("explicit limit wins over the run limit", func(t *testing.T) {
		probe := run(t, 2, 1)
		assert.LessOrEqual(t, probe.MaxInFlight(), 2)
	})
}

func TestSubContext_SharesVariables(t *testing.T) {
	_, reg, bb := setup(t, 0)
	id := bb.Variable("counter", "number", 1)
	g, err := graph.Compile(context.Background(), bb.Board(), reg)
	require.NoError(t, err)
	root := executor.New(&executor.Shared{Graph: g})
	sub := root.CreateSubContext(3)

	v, ok := sub.Variable(id)
	require.True(t, ok)
	require.NoError(t, v.Set(cty.NumberIntVal(5)))

	rv, _ := root.Variable(id)
	assert.True(t, rv.Get().Equals(cty.NumberIntVal(5)).True())
	assert.Equal(t, 3, sub.Index())
	assert.Equal(t, -1, root.Index())
	assert.Same(t, root.Cache(), sub.Cache())
}
