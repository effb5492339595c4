// Package socketio streams run events to a socket.io hub so that editors can
// follow a run live.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/events"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEvent is the socket.io event name run events are emitted under.
const DefaultEvent = "run_event"

// Config describes the hub to connect to.
type Config struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// emitter is the part of *socket.Socket the publisher uses.
type emitter interface {
	Emit(ev string, args ...any) error
}

// Publisher emits run events over a socket.io connection.
type Publisher struct {
	client *socket.Socket
	out    emitter
	event  string
}

// Dial connects to the hub and waits for the connection to be established.
func Dial(ctx context.Context, cfg Config) (*Publisher, error) {
	logger := ctxlog.FromContext(ctx).With("component", "socketio_publisher", "url", cfg.URL)
	logger.Info("Connecting to event hub...")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to event hub", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	event := cfg.Event
	if event == "" {
		event = DefaultEvent
	}
	return &Publisher{client: io, out: io, event: event}, nil
}

// Publish emits e. Delivery failures are logged and otherwise ignored so that
// a slow or absent hub never fails a run.
func (p *Publisher) Publish(ctx context.Context, e events.Event) {
	if err := p.out.Emit(p.event, payload(e)); err != nil {
		ctxlog.FromContext(ctx).Debug("Failed to emit run event.", "type", e.Type, "error", err)
	}
}

// Close disconnects from the hub.
func (p *Publisher) Close() error {
	if p.client != nil {
		p.client.Disconnect()
	}
	return nil
}

// payload flattens an event into the map shape socket.io serializes.
func payload(e events.Event) map[string]any {
	out := map[string]any{
		"type":   string(e.Type),
		"run_id": e.RunID,
		"time":   e.Time.UTC().Format(time.RFC3339Nano),
	}
	if e.NodeID != "" {
		out["node_id"] = e.NodeID
	}
	if e.Message != "" {
		out["message"] = e.Message
	}
	if e.Error != "" {
		out["error"] = e.Error
	}
	if len(e.Data) > 0 {
		out["data"] = e.Data
	}
	return out
}
