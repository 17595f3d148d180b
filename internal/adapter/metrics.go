package adapter

import "time"

// Metrics receives adapter lifecycle measurements.
// internal/metrics provides the Prometheus implementation.
type Metrics interface {
	RecordLoad(format, result string)
	RecordLoadLatency(format string, latency time.Duration)
	RecordShow(format, result string)
	RecordInvalidate(format, result string)
	RecordEvent(format, event string)
	RecordDroppedEvent(event, reason string)
	SetActivePlacements(n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordLoad(string, string)               {}
func (noopMetrics) RecordLoadLatency(string, time.Duration) {}
func (noopMetrics) RecordShow(string, string)               {}
func (noopMetrics) RecordInvalidate(string, string)         {}
func (noopMetrics) RecordEvent(string, string)              {}
func (noopMetrics) RecordDroppedEvent(string, string)       {}
func (noopMetrics) SetActivePlacements(int)                 {}
