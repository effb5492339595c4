package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/events"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/graph"
	"github.com/specialistvlad/flowgrid/internal/logstore"
	"github.com/specialistvlad/flowgrid/internal/nodeid"
	"github.com/specialistvlad/flowgrid/internal/pintype"
	"github.com/specialistvlad/flowgrid/internal/runcache"
)

var (
	ErrNoLogSink    = errors.New("no log sink configured")
	ErrRunExists    = errors.New("run already registered")
	ErrRunNotFound  = errors.New("run not found")
	ErrNoStartNode  = errors.New("board has no start node")
	ErrInvalidStart = errors.New("invalid start node")
)

// DefaultFlushTimeout bounds the flush of a cancelled run when Config leaves
// FlushTimeout unset.
const DefaultFlushTimeout = 5 * time.Second

// DefaultRetainResults is how many finished results Status keeps when
// Config leaves RetainResults unset. Older ones are only in the log store.
const DefaultRetainResults = 256

// PayloadPin is the start node pin a run payload is written to.
const PayloadPin = "payload"

// Status is the state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Config configures a Manager.
type Config struct {
	FlushTimeout  time.Duration
	LogSink       logstore.SinkFactory
	Publisher     events.Publisher
	LogLevel      slog.Level
	MaxConcurrent int
	// RetainResults caps the finished results kept for Status.
	RetainResults int
}

// RunSpec describes a run to start.
type RunSpec struct {
	// RunID is generated when empty.
	RunID string
	Board *board.Board
	// StartNode defaults to the first start node of the board.
	StartNode string
	// Payload, when set, is written to the start node's payload pin.
	Payload any
}

// Result is the outcome of a run.
type Result struct {
	RunID      string                `json:"run_id"`
	BoardID    string                `json:"board_id"`
	Status     Status                `json:"status"`
	Cancelled  bool                  `json:"cancelled"`
	Error      string                `json:"error,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at,omitempty"`
	Trace      []executor.TraceEntry `json:"trace,omitempty"`
	Logs       []executor.LogEntry   `json:"logs,omitempty"`
	Metadata   *logstore.Metadata    `json:"metadata,omitempty"`
}

// Manager owns the registry of live runs.
type Manager struct {
	resolver graph.Resolver
	cfg      Config

	mu      sync.Mutex
	active   map[string]context.CancelFunc
	results  map[string]*Result
	finished []string // ids of finished results, oldest first
	wg       sync.WaitGroup
}

// NewManager creates a Manager resolving node behaviors through resolver.
func NewManager(resolver graph.Resolver, cfg Config) *Manager {
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	if cfg.RetainResults <= 0 {
		cfg.RetainResults = DefaultRetainResults
	}
	return &Manager{
		resolver: resolver,
		cfg:      cfg,
		active:   make(map[string]context.CancelFunc),
		results:  make(map[string]*Result),
	}
}

// Register records a live run and the function that cancels it.
func (m *Manager) Register(runID string, cancel context.CancelFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[runID]; ok {
		return fmt.Errorf("%w: %s", ErrRunExists, runID)
	}
	m.active[runID] = cancel
	return nil
}

// RemoveAndCancel deregisters a run and cancels it. It reports whether the
// run was registered.
func (m *Manager) RemoveAndCancel(runID string) bool {
	m.mu.Lock()
	cancel, ok := m.active[runID]
	delete(m.active, runID)
	m.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Active returns the ids of the registered runs, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Status returns the latest result of a run started with Start. Only the
// most recent Config.RetainResults finished runs are kept.
func (m *Manager) Status(runID string) (*Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[runID]
	return r, ok
}

// Cancel cancels a live run.
func (m *Manager) Cancel(runID string) error {
	if !m.RemoveAndCancel(runID) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Run executes a board and waits for the outcome. Cancellation, through ctx
// or RemoveAndCancel, is reported in the Result and not as an error; errors
// are reserved for runs that could not start.
func (m *Manager) Run(ctx context.Context, spec RunSpec) (*Result, error) {
	r, err := m.begin(ctx, spec)
	if err != nil {
		return nil, err
	}
	return m.finish(ctx, r), nil
}

// Start begins a run in the background and returns its id. Poll it with
// Status. The run outlives ctx; cancel it with Cancel.
func (m *Manager) Start(ctx context.Context, spec RunSpec) (string, error) {
	base := context.WithoutCancel(ctx)
	r, err := m.begin(base, spec)
	if err != nil {
		return "", err
	}
	m.store(&Result{RunID: r.id, BoardID: r.boardID, Status: StatusRunning, StartedAt: r.started})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.store(m.finish(base, r))
	}()
	return r.id, nil
}

// Shutdown cancels every live run and waits for background runs to finish
// flushing, or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, id := range m.Active() {
		m.RemoveAndCancel(id)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) store(r *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.RunID] = r
	if r.Status == StatusRunning {
		return
	}

	m.finished = append(m.finished, r.RunID)
	for len(m.finished) > m.cfg.RetainResults {
		delete(m.results, m.finished[0])
		m.finished = m.finished[1:]
	}
}

func (m *Manager) deregister(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, runID)
}

// run is a compiled, registered run that has not started executing.
type run struct {
	id      string
	boardID string
	ctx     context.Context
	cancel  context.CancelFunc
	start   *graph.InternalNode
	ec      *executor.ExecutionContext
	cache   *runcache.Cache
	started time.Time
}

func (m *Manager) begin(ctx context.Context, spec RunSpec) (*run, error) {
	if m.cfg.LogSink == nil {
		return nil, ErrNoLogSink
	}
	id := spec.RunID
	if id == "" {
		id = nodeid.New()
	}

	g, err := graph.Compile(ctx, spec.Board, m.resolver)
	if err != nil {
		return nil, err
	}
	start, err := pickStart(g, spec.StartNode)
	if err != nil {
		return nil, err
	}

	cache := runcache.New()
	ec := executor.New(&executor.Shared{
		RunID:         id,
		Graph:         g,
		Cache:         cache,
		Publisher:     m.cfg.Publisher,
		LogLevel:      m.cfg.LogLevel,
		MaxConcurrent: m.cfg.MaxConcurrent,
	})
	if spec.Payload != nil {
		v, err := pintype.FromGo(spec.Payload)
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		if err := ec.OverridePin(start.ID, PayloadPin, v); err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := m.Register(id, cancel); err != nil {
		cancel()
		return nil, err
	}
	return &run{
		id:      id,
		boardID: spec.Board.ID,
		ctx:     runCtx,
		cancel:  cancel,
		start:   start,
		ec:      ec,
		cache:   cache,
		started: time.Now().UTC(),
	}, nil
}

func pickStart(g *graph.Graph, id string) (*graph.InternalNode, error) {
	if id == "" {
		starts := g.StartNodes()
		if len(starts) == 0 {
			return nil, ErrNoStartNode
		}
		return starts[0], nil
	}
	n, ok := g.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", ErrInvalidStart, id)
	}
	return n, nil
}

// finish executes r, racing it against cancellation.
func (m *Manager) finish(ctx context.Context, r *run) *Result {
	defer m.deregister(r.id)
	defer r.cancel()

	runCtx, logger := ctxlog.With(r.ctx, "run_id", r.id, "board_id", r.boardID)
	logger.Info("Run started.", "start_node", r.start.ID)
	m.cfg.Publisher.Publish(runCtx, events.Event{Type: events.RunStarted, RunID: r.id, NodeID: r.start.ID, Time: r.started})

	done := make(chan error, 1)
	go func() {
		done <- r.ec.Execute(runCtx, r.start)
	}()

	res := &Result{RunID: r.id, BoardID: r.boardID, StartedAt: r.started}
	var execErr error
	cancelled := false
	select {
	case execErr = <-done:
		cancelled = runCtx.Err() != nil && isContextErr(execErr)
		m.closeCache(ctx, r)
	case <-runCtx.Done():
		cancelled = true
		go func() {
			<-done
			m.closeCache(ctx, r)
		}()
	}
	res.FinishedAt = time.Now().UTC()
	res.Trace, res.Logs = r.ec.Trace(), r.ec.Logs()

	switch {
	case cancelled:
		res.Status, res.Cancelled = StatusCancelled, true
		res.Metadata = m.flushBounded(ctx, r, res)
		logger.Warn("Run cancelled.", "flushed", res.Metadata != nil)
	case execErr != nil:
		res.Status, res.Error = StatusFailed, execErr.Error()
		res.Metadata = m.flush(ctx, r, res)
		logger.Error("Run failed.", "error", execErr)
	default:
		res.Status = StatusSucceeded
		res.Metadata = m.flush(ctx, r, res)
		logger.Info("Run finished.", "duration", res.FinishedAt.Sub(res.StartedAt))
	}

	m.cfg.Publisher.Publish(runCtx, events.Event{
		Type:  events.RunFinished,
		RunID: r.id,
		Time:  res.FinishedAt,
		Error: res.Error,
		Data:  map[string]any{"status": string(res.Status)},
	})
	return res
}

// flushBounded flushes a cancelled run within FlushTimeout. A flush that
// times out, fails or has nothing to write yields nil.
func (m *Manager) flushBounded(ctx context.Context, r *run, res *Result) *logstore.Metadata {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.FlushTimeout)
	defer cancel()

	out := make(chan *logstore.Metadata, 1)
	go func() { out <- m.flush(flushCtx, r, res) }()

	select {
	case meta := <-out:
		return meta
	case <-flushCtx.Done():
		ctxlog.FromContext(ctx).Warn("Flush timed out.", "run_id", r.id, "timeout", m.cfg.FlushTimeout)
		return nil
	}
}

func (m *Manager) flush(ctx context.Context, r *run, res *Result) *logstore.Metadata {
	if len(res.Logs) == 0 && len(res.Trace) == 0 {
		return nil
	}
	logger := ctxlog.FromContext(ctx).With("run_id", r.id)

	path := fmt.Sprintf("runs/%s/%s", r.boardID, r.id)
	store, err := m.cfg.LogSink(ctx, path)
	if err != nil {
		logger.Warn("Opening log sink failed.", "path", path, "error", err)
		return nil
	}

	meta := logstore.Summarize(logstore.Metadata{
		RunID:      r.id,
		BoardID:    r.boardID,
		Path:       path,
		Status:     string(res.Status),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}, res.Logs, res.Trace)
	if err := store.Flush(ctx, meta, res.Logs, res.Trace); err != nil {
		logger.Warn("Flushing run logs failed.", "path", path, "error", err)
		return nil
	}
	return &meta
}

func (m *Manager) closeCache(ctx context.Context, r *run) {
	if err := r.cache.Close(context.WithoutCancel(ctx)); err != nil {
		ctxlog.FromContext(ctx).Warn("Closing run cache failed.", "run_id", r.id, "error", err)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
