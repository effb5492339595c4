package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/events"
)

// TraceEntry records one node execution.
type TraceEntry struct {
	NodeID   string    `json:"node_id"`
	NodeType string    `json:"node_type"`
	Index    int       `json:"index"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Error    string    `json:"error,omitempty"`
}

// LogEntry is a message written by a node during a run.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	NodeID  string    `json:"node_id,omitempty"`
	Index   int       `json:"index"`
	Message string    `json:"message"`
}

// Log appends a message to the run log on behalf of the current node and
// mirrors it to the context logger. Messages below the run's log level are
// only mirrored.
func (ec *ExecutionContext) Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	nodeID := ""
	if ec.node != nil {
		nodeID = ec.node.ID
	}
	ctxlog.FromContext(ctx).Log(ctx, level, msg, append([]any{"node_id", nodeID, "run_id", ec.shared.RunID}, args...)...)

	if level < ec.shared.LogLevel {
		return
	}
	text := formatMessage(msg, args)
	ec.appendLog(LogEntry{Time: time.Now().UTC(), Level: level.String(), NodeID: nodeID, Index: ec.index, Message: text})
	ec.publish(ctx, events.Event{Type: events.Log, NodeID: nodeID, Message: text})
}

// Trace returns a copy of the trace recorded so far.
func (ec *ExecutionContext) Trace() []TraceEntry {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return append([]TraceEntry(nil), ec.trace...)
}

// Logs returns a copy of the log buffer.
func (ec *ExecutionContext) Logs() []LogEntry {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return append([]LogEntry(nil), ec.logs...)
}

// PushSubContext merges a finished sub-context into ec. A non-nil err is
// recorded in the log buffer with the node and iteration it came from; it
// does not affect other sub-contexts.
func (ec *ExecutionContext) PushSubContext(ctx context.Context, sub *ExecutionContext, err error) {
	trace, logs := sub.Trace(), sub.Logs()

	ec.mu.Lock()
	ec.trace = append(ec.trace, trace...)
	ec.logs = append(ec.logs, logs...)
	ec.mu.Unlock()

	if err == nil {
		return
	}
	nodeID := ""
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		nodeID = nodeErr.NodeID
	}
	ctxlog.FromContext(ctx).Warn("Parallel branch failed.", "node_id", nodeID, "index", sub.index, "error", err)
	ec.appendLog(LogEntry{
		Time:    time.Now().UTC(),
		Level:   slog.LevelError.String(),
		NodeID:  nodeID,
		Index:   sub.index,
		Message: err.Error(),
	})
}

func (ec *ExecutionContext) appendTrace(e TraceEntry) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.trace = append(ec.trace, e)
}

func (ec *ExecutionContext) appendLog(e LogEntry) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.logs = append(ec.logs, e)
}

// formatMessage renders key/value args after the message, slog style.
func formatMessage(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		fmt.Fprintf(&sb, " %v", args[len(args)-1])
	}
	return sb.String()
}
