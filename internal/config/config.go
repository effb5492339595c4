package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// File is the decoded configuration file. Every field is optional.
type File struct {
	LogLevel  string    `hcl:"log_level,optional"`
	LogFormat string    `hcl:"log_format,optional"`
	Server    *Server   `hcl:"server,block"`
	Database  *Database `hcl:"database,block"`
	Events    *Events   `hcl:"events,block"`
	Runs      *Runs     `hcl:"runs,block"`
}

type Server struct {
	Listen string `hcl:"listen,optional"`
}

type Database struct {
	URL string `hcl:"url"`
}

// Events configures the Socket.IO run event stream.
type Events struct {
	SocketIOURL        string `hcl:"socketio_url"`
	Namespace          string `hcl:"namespace,optional"`
	Event              string `hcl:"event,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}

type Runs struct {
	FlushTimeout  string `hcl:"flush_timeout,optional"`
	MaxConcurrent int    `hcl:"max_concurrent,optional"`
}

// Load reads and decodes the file at path with the process environment.
func Load(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(src, path, Environ())
}

// Parse decodes src. filename is only used in diagnostics.
func Parse(src []byte, filename string, env map[string]string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, diags)
	}

	var out File
	diags = gohcl.DecodeBody(file.Body, evalContext(env), &out)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", filename, diags)
	}
	if err := out.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}
	return &out, nil
}

// FlushTimeout returns the configured flush window, or zero if unset.
func (f *File) FlushTimeout() time.Duration {
	if f.Runs == nil || f.Runs.FlushTimeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(f.Runs.FlushTimeout)
	return d
}

func (f *File) validate() error {
	switch f.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %q", f.LogLevel)
	}
	switch f.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be 'text' or 'json', got %q", f.LogFormat)
	}
	if f.Runs != nil && f.Runs.FlushTimeout != "" {
		d, err := time.ParseDuration(f.Runs.FlushTimeout)
		if err != nil {
			return fmt.Errorf("runs.flush_timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("runs.flush_timeout must be positive")
		}
	}
	if f.Runs != nil && f.Runs.MaxConcurrent < 0 {
		return fmt.Errorf("runs.max_concurrent must not be negative")
	}
	return nil
}

func evalContext(env map[string]string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vars[k] = cty.StringVal(v)
	}
	envVal := cty.MapValEmpty(cty.String)
	if len(vars) > 0 {
		envVal = cty.MapVal(vars)
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{"env": envVal}}
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	out := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			out[k] = v
		}
	}
	return out
}
