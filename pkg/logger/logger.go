// Package logger provides structured logging for the mediation adapter
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every log line
const ServiceName = "mediation"

// Log is the global logger instance
var Log zerolog.Logger

// contextKey is a private type for context keys
type contextKey string

const (
	// RequestIDKey is the context key for the request ID
	RequestIDKey contextKey = "request_id"
	// LoadIDKey is the context key for the ad load ID
	LoadIDKey contextKey = "load_id"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	TimeFormat string
	Output     io.Writer // defaults to stdout
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "json"),
		TimeFormat: time.RFC3339,
	}
}

func init() {
	Init(DefaultConfig())
}

// Init initializes the global logger
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	Log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLoadID adds an ad load ID to the context
func WithLoadID(ctx context.Context, loadID string) context.Context {
	return context.WithValue(ctx, LoadIDKey, loadID)
}

// FromContext returns a logger carrying the IDs stored in ctx
func FromContext(ctx context.Context) *zerolog.Logger {
	l := Log.With()

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		l = l.Str("request_id", requestID)
	}
	if loadID, ok := ctx.Value(LoadIDKey).(string); ok && loadID != "" {
		l = l.Str("load_id", loadID)
	}

	logger := l.Logger()
	return &logger
}

// Placement returns a logger for a mediation placement
func Placement(placementID string) *zerolog.Logger {
	l := Log.With().Str("placement", placementID).Logger()
	return &l
}

// Partner returns a logger for a partner adapter
func Partner(partnerID string) *zerolog.Logger {
	l := Log.With().Str("partner", partnerID).Logger()
	return &l
}

// HTTP returns a logger for HTTP-related logs
func HTTP() *zerolog.Logger {
	l := Log.With().Str("component", "http").Logger()
	return &l
}

// SDK returns a logger for the partner SDK stub
func SDK() *zerolog.Logger {
	l := Log.With().Str("component", "sdk").Logger()
	return &l
}

// RequestLogger logs the outcome of one HTTP request
type RequestLogger struct {
	logger    zerolog.Logger
	startTime time.Time
}

// NewRequestLogger starts timing a request, carrying the IDs stored in ctx
func NewRequestLogger(ctx context.Context) *RequestLogger {
	return &RequestLogger{
		logger:    *FromContext(ctx),
		startTime: time.Now(),
	}
}

// WithField returns a copy of the logger with an extra string field
func (rl *RequestLogger) WithField(key, value string) *RequestLogger {
	return &RequestLogger{
		logger:    rl.logger.With().Str(key, value).Logger(),
		startTime: rl.startTime,
	}
}

// Duration returns the time elapsed since the request started
func (rl *RequestLogger) Duration() time.Duration {
	return time.Since(rl.startTime)
}

// LogComplete logs request completion. Client errors log at warn and
// server errors at error.
func (rl *RequestLogger) LogComplete(status int) {
	event := rl.logger.Info()
	switch {
	case status >= 500:
		event = rl.logger.Error()
	case status >= 400:
		event = rl.logger.Warn()
	}
	event.
		Int("status", status).
		Float64("duration_ms", float64(rl.Duration().Microseconds())/1000.0).
		Msg("HTTP request")
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
