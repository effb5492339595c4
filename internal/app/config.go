package app

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/specialistvlad/flowgrid/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	BoardPath string // board JSON document to run
	StartNode string
	Payload   json.RawMessage

	LogFormat string
	LogLevel  string

	Serve  bool
	Listen string

	FlushTimeout  time.Duration
	MaxConcurrent int

	DatabaseURL string

	SocketIOURL       string
	SocketIONamespace string
	SocketIOEvent     string
	SocketIOInsecure  bool
}

// DefaultListen is the address the HTTP API binds to when none is set.
const DefaultListen = ":8080"

func NewConfig(cfg Config) (*Config, error) {
	if cfg.BoardPath == "" && !cfg.Serve {
		return nil, errors.New("a board path is required unless serving the HTTP API")
	}
	if cfg.Serve && cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if len(cfg.Payload) > 0 && !json.Valid(cfg.Payload) {
		return nil, errors.New("payload must be valid JSON")
	}
	if cfg.MaxConcurrent < 0 {
		return nil, errors.New("max concurrent must not be negative")
	}
	return &cfg, nil
}

// FromFile builds a Config from a configuration file. Values set on the
// command line are applied on top by the caller.
func FromFile(f *config.File) Config {
	cfg := Config{
		LogLevel:     f.LogLevel,
		LogFormat:    f.LogFormat,
		FlushTimeout: f.FlushTimeout(),
	}
	if f.Server != nil {
		cfg.Listen = f.Server.Listen
	}
	if f.Database != nil {
		cfg.DatabaseURL = f.Database.URL
	}
	if f.Events != nil {
		cfg.SocketIOURL = f.Events.SocketIOURL
		cfg.SocketIONamespace = f.Events.Namespace
		cfg.SocketIOEvent = f.Events.Event
		cfg.SocketIOInsecure = f.Events.InsecureSkipVerify
	}
	if f.Runs != nil {
		cfg.MaxConcurrent = f.Runs.MaxConcurrent
	}
	return cfg
}
