package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// captureLog points the global logger at a buffer for the duration of the test
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := Log
	Log = zerolog.New(&buf)
	t.Cleanup(func() { Log = previous })
	return &buf
}

// entries decodes one JSON object per log line
func entries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	all := entries(t, buf)
	if len(all) == 0 {
		t.Fatal("expected a log entry")
	}
	return all[len(all)-1]
}

func TestDefaultConfig(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		format     string
		wantLevel  string
		wantFormat string
	}{
		{"unset", "", "", "info", "json"},
		{"debug console", "debug", "console", "debug", "console"},
		{"warn", "warn", "json", "warn", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("LOG_FORMAT", tt.format)

			cfg := DefaultConfig()
			if cfg.Level != tt.wantLevel {
				t.Errorf("Expected level %q, got %q", tt.wantLevel, cfg.Level)
			}
			if cfg.Format != tt.wantFormat {
				t.Errorf("Expected format %q, got %q", tt.wantFormat, cfg.Format)
			}
			if cfg.TimeFormat != time.RFC3339 {
				t.Errorf("Expected RFC3339 time format, got %q", cfg.TimeFormat)
			}
			if cfg.Output != nil {
				t.Error("Expected default output to be left to Init")
			}
		})
	}
}

func TestInit_Levels(t *testing.T) {
	previous := Log
	defer func() { Log = previous }()

	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"INFO", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"", false, true, true},
		{"chatty", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			Init(Config{Level: tt.level, Format: "json", TimeFormat: time.RFC3339, Output: &buf})

			Log.Debug().Msg("debug line")
			Log.Info().Msg("info line")
			Log.Warn().Msg("warn line")

			out := buf.String()
			for msg, want := range map[string]bool{"debug line": tt.wantDebug, "info line": tt.wantInfo, "warn line": tt.wantWarn} {
				if got := strings.Contains(out, msg); got != want {
					t.Errorf("level %q: %s logged=%v, want %v", tt.level, msg, got, want)
				}
			}
		})
	}
}

func TestInit_JSONCarriesService(t *testing.T) {
	previous := Log
	defer func() { Log = previous }()

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", TimeFormat: time.RFC3339, Output: &buf})
	Log.Info().Str("placement", "p1").Msg("Load started")

	entry := lastEntry(t, &buf)
	if entry["service"] != ServiceName {
		t.Errorf("Expected service %q, got %v", ServiceName, entry["service"])
	}
	if entry["placement"] != "p1" || entry["message"] != "Load started" {
		t.Errorf("Unexpected entry %v", entry)
	}
	if _, err := time.Parse(time.RFC3339, entry["time"].(string)); err != nil {
		t.Errorf("Expected RFC3339 timestamp, got %v", entry["time"])
	}
}

func TestInit_ConsoleFormat(t *testing.T) {
	previous := Log
	defer func() { Log = previous }()

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "console", TimeFormat: time.Kitchen, Output: &buf})
	Log.Info().Msg("Partner SDK initialized")

	out := buf.String()
	if !strings.Contains(out, "Partner SDK initialized") {
		t.Errorf("Expected message in console output, got %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("Expected human-readable output, got %q", out)
	}
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name      string
		ctx       func() context.Context
		requestID interface{}
		loadID    interface{}
	}{
		{
			name:      "empty",
			ctx:       context.Background,
			requestID: nil,
			loadID:    nil,
		},
		{
			name:      "request only",
			ctx:       func() context.Context { return WithRequestID(context.Background(), "req-1") },
			requestID: "req-1",
			loadID:    nil,
		},
		{
			name: "request and load",
			ctx: func() context.Context {
				return WithLoadID(WithRequestID(context.Background(), "req-1"), "load-9")
			},
			requestID: "req-1",
			loadID:    "load-9",
		},
		{
			name:      "blank IDs skipped",
			ctx:       func() context.Context { return WithLoadID(WithRequestID(context.Background(), ""), "") },
			requestID: nil,
			loadID:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			FromContext(tt.ctx()).Info().Msg("Show started")

			entry := lastEntry(t, buf)
			if entry["request_id"] != tt.requestID {
				t.Errorf("Expected request_id %v, got %v", tt.requestID, entry["request_id"])
			}
			if entry["load_id"] != tt.loadID {
				t.Errorf("Expected load_id %v, got %v", tt.loadID, entry["load_id"])
			}
		})
	}
}

func TestComponentLoggers(t *testing.T) {
	tests := []struct {
		name  string
		log   func() *zerolog.Logger
		key   string
		value string
	}{
		{"placement", func() *zerolog.Logger { return Placement("rewarded-home") }, "placement", "rewarded-home"},
		{"partner", func() *zerolog.Logger { return Partner("reference") }, "partner", "reference"},
		{"http", HTTP, "component", "http"},
		{"sdk", SDK, "component", "sdk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			tt.log().Info().Msg("component line")

			if got := lastEntry(t, buf)[tt.key]; got != tt.value {
				t.Errorf("Expected %s=%q, got %v", tt.key, tt.value, got)
			}
		})
	}
}

func TestRequestLogger_LogComplete(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{200, "info"},
		{202, "info"},
		{409, "warn"},
		{502, "error"},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			buf := captureLog(t)
			ctx := WithRequestID(context.Background(), "req-7")

			NewRequestLogger(ctx).
				WithField("method", "POST").
				WithField("path", "/v1/ads").
				LogComplete(tt.status)

			entry := lastEntry(t, buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("Expected level %s, got %v", tt.wantLevel, entry["level"])
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("Expected status %d, got %v", tt.status, entry["status"])
			}
			if entry["request_id"] != "req-7" || entry["method"] != "POST" || entry["path"] != "/v1/ads" {
				t.Errorf("Missing request fields in %v", entry)
			}
			if _, ok := entry["duration_ms"].(float64); !ok {
				t.Errorf("Expected numeric duration_ms, got %v", entry["duration_ms"])
			}
		})
	}
}

func TestRequestLogger_WithFieldCopies(t *testing.T) {
	buf := captureLog(t)

	base := NewRequestLogger(context.Background())
	base.WithField("path", "/v1/setup")
	base.LogComplete(200)

	if _, ok := lastEntry(t, buf)["path"]; ok {
		t.Error("WithField must not modify the original logger")
	}
}

func TestRequestLogger_Duration(t *testing.T) {
	rl := NewRequestLogger(context.Background())
	time.Sleep(5 * time.Millisecond)

	if d := rl.Duration(); d < 5*time.Millisecond {
		t.Errorf("Expected at least 5ms, got %v", d)
	}
}
