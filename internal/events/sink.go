package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_mediation/pkg/redis"
)

// RedisSink appends events as JSON to a capped Redis list
type RedisSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedisSink creates a sink writing to key, keeping at most maxLen events
func NewRedisSink(client *redis.Client, key string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, key: key, maxLen: maxLen}
}

// Write implements Sink
func (s *RedisSink) Write(ctx context.Context, events []Event) error {
	values := make([]string, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		values = append(values, string(data))
	}

	if err := s.client.AppendCapped(ctx, s.key, s.maxLen, values...); err != nil {
		return fmt.Errorf("failed to append events to %s: %w", s.key, err)
	}
	return nil
}

// Recent returns up to n of the newest events, oldest first
func (s *RedisSink) Recent(ctx context.Context, n int64) ([]Event, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := s.client.LRange(ctx, s.key, -n, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read events from %s: %w", s.key, err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// LogSink writes events to a logger; used when no Redis is configured
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink logging each event at debug level
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Write implements Sink
func (s *LogSink) Write(_ context.Context, events []Event) error {
	for _, e := range events {
		s.log.Debug().
			Str("type", e.Type).
			Str("placement", e.Placement).
			Str("handle_id", e.HandleID).
			Str("format", e.Format).
			Str("error", e.Error).
			Time("at", e.Timestamp).
			Msg("Lifecycle event")
	}
	return nil
}
