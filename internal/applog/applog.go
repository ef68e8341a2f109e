// Package applog is the CLI's logging wrapper: a package-level *slog.Logger
// that defaults to discarding output, and an Init call the CLI root command
// makes once flags are parsed. Engine packages (seqset, btree, flatindex,
// extremes, ingest) never import this — they return errors; only
// cmd/zcbctl logs.
//
// There is no daily log-file rotation: this CLI is a single short-lived
// invocation, not a long-running process, so there is no multi-day
// retention concern to manage.
package applog

import (
	"io"
	"log/slog"
	"os"
)

// L is the active logger. Discards everything until Init is called.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures Init.
type Options struct {
	Verbose bool       // If false, all logging is discarded.
	Level   slog.Level // Minimum level when Verbose is set. Default: LevelInfo.
	File    string     // If set, write JSON-formatted logs here instead of stderr text.
}

// Init configures L. Call once from the CLI root command after flag
// parsing, before any subcommand logic runs.
func Init(opts Options) error {
	if !opts.Verbose {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}

	if opts.File == "" {
		L = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	L = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	return nil
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
