package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty != false {
		t.Error("Expected default pretty to be false")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		zerolog zerolog.Level
		wantErr bool
	}{
		{input: "debug", want: LevelDebug, zerolog: zerolog.DebugLevel},
		{input: "info", want: LevelInfo, zerolog: zerolog.InfoLevel},
		{input: "", want: LevelInfo, zerolog: zerolog.InfoLevel},
		{input: "WARNING", want: LevelWarn, zerolog: zerolog.WarnLevel},
		{input: " error ", want: LevelError, zerolog: zerolog.ErrorLevel},
		{input: "trace", wantErr: true, zerolog: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}

			// Setup never fails; unknown names fall back to info.
			if lvl := LogLevel(tt.input).zerologLevel(); lvl != tt.zerolog {
				t.Errorf("zerologLevel(%q) = %v, want %v", tt.input, lvl, tt.zerolog)
			}
		})
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   LogLevel
		visible []string
		hidden  []string
	}{
		{level: LevelDebug, visible: []string{"debug message", "info message", "warn message", "error message"}},
		{level: LevelInfo, visible: []string{"info message", "warn message", "error message"}, hidden: []string{"debug message"}},
		{level: LevelWarn, visible: []string{"warn message", "error message"}, hidden: []string{"debug message", "info message"}},
		{level: LevelError, visible: []string{"error message"}, hidden: []string{"debug message", "info message", "warn message"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			Setup(Config{Level: tt.level, Output: buf})

			logger := NewLogger("test")
			logger.Debug().Msg("debug message")
			logger.Info().Msg("info message")
			logger.Warn().Msg("warn message")
			logger.Error().Msg("error message")

			output := buf.String()
			for _, msg := range tt.visible {
				if !strings.Contains(output, msg) {
					t.Errorf("Expected %q at %s level, got %q", msg, tt.level, output)
				}
			}
			for _, msg := range tt.hidden {
				if strings.Contains(output, msg) {
					t.Errorf("%q should be filtered out at %s level", msg, tt.level)
				}
			}
		})
	}
}

func TestSetup_PrettyOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger := NewLogger("catalog-pager")
	logger.Info().Msg("Retrieved initial catalog page")

	output := buf.String()
	if !strings.Contains(output, "Retrieved initial catalog page") {
		t.Errorf("Expected message in console output, got %q", output)
	}
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Error("Pretty output should not be JSON")
	}
}

func TestComponentFields(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf, Service: "epd-ingest"})

	logger := NewLogger("runner")
	logger.Info().
		Int("batch_id", 3).
		Str("uuid", "abc").
		Msg("Batch processed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != "epd-ingest" || entry["component"] != "runner" {
		t.Errorf("missing service/component fields: %v", entry)
	}
	if entry["uuid"] != "abc" || entry["batch_id"] != float64(3) {
		t.Errorf("unexpected log entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Errorf("log entry has no timestamp: %v", entry)
	}
}
