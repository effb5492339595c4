// Package events publishes the progress of runs to observers such as the
// editor UI.
package events

import (
	"context"
	"sync"
	"time"
)

// Type names an event.
type Type string

const (
	RunStarted   Type = "run_started"
	RunFinished  Type = "run_finished"
	NodeStarted  Type = "node_started"
	NodeFinished Type = "node_finished"
	NodeFailed   Type = "node_failed"
	Log          Type = "log"
)

// Event is a single progress notification.
type Event struct {
	Type    Type           `json:"type"`
	RunID   string         `json:"run_id"`
	NodeID  string         `json:"node_id,omitempty"`
	Time    time.Time      `json:"time"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Publisher delivers events. Implementations must be safe for concurrent use
// and must not block the run for long.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Multi fans an event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, p := range m {
		p.Publish(ctx, e)
	}
}
