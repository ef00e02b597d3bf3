// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// levels maps every accepted level name to its zerolog level.
var levels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// ParseLevel validates a level name from configuration. Matching ignores case
// and surrounding space; "warning" is accepted for warn and the empty string
// means info.
func ParseLevel(name string) (LogLevel, error) {
	n := LogLevel(strings.ToLower(strings.TrimSpace(name)))
	switch n {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	if _, ok := levels[n]; !ok {
		return "", fmt.Errorf("unknown log level %q", name)
	}
	return n, nil
}

// zerologLevel resolves l, falling back to info for unknown names.
func (l LogLevel) zerologLevel() zerolog.Level {
	parsed, err := ParseLevel(string(l))
	if err != nil {
		return zerolog.InfoLevel
	}
	return levels[parsed]
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service, when set, is attached to every line as "service".
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. Loggers created
// by NewLogger afterwards inherit its output, level and service field.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerologLevel())

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	log.Logger = ctx.Logger()

	return log.Logger
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Object store writes (batch keys, record keys)
//   - Duplicate decisions per record
//   - Worker lifecycle
//
// Info: Normal operation events
//   - Catalog enumeration progress and totals
//   - Batches written, batch processing summaries
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Detail resolution failures
//   - Truncated listings (a later search page failed)
//   - Retry attempts
//   - Failed batch deletion
//
// Error: Error conditions requiring attention
//   - Token retrieval failures
//   - First catalog page failures
//   - Destination store unavailable
//   - Configuration errors
//
// Context Fields:
//   - service: Binary name, set by Setup
//   - component: Emitting component (catalog-client, catalog-pager, runner, ...)
//   - uuid: Catalog record UUID
//   - uri: Record detail URI
//   - batch_id, batch_key: Batch being processed
//   - start_index, total_count: Pagination position
//   - stored, duplicates, errors: Outcome counts
//   - error_class: Error classification (client, auth, server, rate_limit, network, timeout)
//   - attempt: Retry attempt number
