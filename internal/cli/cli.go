package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/flowgrid/internal/app"
	"github.com/specialistvlad/flowgrid/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// Values from the -config file are applied first. Flags given explicitly on
// the command line override them.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("flowgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Flowgrid - A visual flow-graph execution engine.

Usage:
  flowgrid [options] [BOARD_PATH]
  flowgrid -serve [options]

Arguments:
  BOARD_PATH
    Path to a board JSON document to execute once.

Options:
`)
		flagSet.PrintDefaults()
	}

	boardFlag := flagSet.String("board", "", "Path to the board JSON document.")
	configFlag := flagSet.String("config", "", "Path to an HCL configuration file.")
	startFlag := flagSet.String("start", "", "ID of the start node. Defaults to the board's only start node.")
	payloadFlag := flagSet.String("payload", "", "JSON value handed to the start node's payload pin.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	serveFlag := flagSet.Bool("serve", false, "Serve the HTTP API instead of running a single board.")
	listenFlag := flagSet.String("listen", app.DefaultListen, "Address the HTTP API listens on.")
	flushFlag := flagSet.Duration("flush-timeout", 0, "Upper bound for flushing run logs after a cancellation.")
	concurrencyFlag := flagSet.Int("max-concurrent", 0, "Default bound on parallel loop iterations. 0 is unbounded.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	cfg := app.Config{}
	if *configFlag != "" {
		f, err := config.Load(*configFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		cfg = app.FromFile(f)
		slog.Debug("Configuration file loaded.", "path", *configFlag)
	}

	visited := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { visited[f.Name] = true })
	override := func(name string, apply func()) {
		if visited[name] {
			apply()
		}
	}

	override("log-format", func() { cfg.LogFormat = *logFormatFlag })
	override("log-level", func() { cfg.LogLevel = *logLevelFlag })
	override("listen", func() { cfg.Listen = *listenFlag })
	override("flush-timeout", func() { cfg.FlushTimeout = *flushFlag })
	override("max-concurrent", func() { cfg.MaxConcurrent = *concurrencyFlag })
	if cfg.LogFormat == "" {
		cfg.LogFormat = *logFormatFlag
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = *logLevelFlag
	}

	cfg.Serve = *serveFlag
	cfg.StartNode = *startFlag
	switch {
	case *boardFlag != "":
		cfg.BoardPath = *boardFlag
	case flagSet.NArg() > 0:
		cfg.BoardPath = flagSet.Arg(0)
	}
	slog.Debug("Board path determined.", "path", cfg.BoardPath)

	if cfg.BoardPath == "" && !cfg.Serve {
		slog.Debug("No board path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if *payloadFlag != "" {
		cfg.Payload = json.RawMessage(*payloadFlag)
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if cfg.FlushTimeout < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid flush-timeout: must not be negative"}
	}
	slog.Debug("CLI parameter validation complete.")

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", appConfig)
	return appConfig, false, nil
}
