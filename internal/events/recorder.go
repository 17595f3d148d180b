// Package events records ad lifecycle events for offline analysis
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thenexusengine/tne_mediation/internal/config"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

const (
	// flushWorkerCount is the number of concurrent flush workers
	flushWorkerCount = 2
	// flushQueueSize is the max pending flush batches before dropping
	flushQueueSize = 10
	// flushTimeout is the max time to wait for a flush operation
	flushTimeout = 2 * time.Second
)

// Event types
const (
	TypeLoad       = "load"
	TypeLoadFailed = "load_failed"
	TypeShow       = "show"
	TypeShowFailed = "show_failed"
	TypeImpression = "impression"
	TypeClick      = "click"
	TypeReward     = "reward"
	TypeDismiss    = "dismiss"
	TypeInvalidate = "invalidate"
)

// Event is one ad lifecycle occurrence
type Event struct {
	Type             string    `json:"type"`
	HandleID         string    `json:"handle_id,omitempty"`
	LoadID           string    `json:"load_id,omitempty"`
	Placement        string    `json:"placement"`
	PartnerPlacement string    `json:"partner_placement,omitempty"`
	Format           string    `json:"format,omitempty"`
	RewardAmount     int       `json:"reward_amount,omitempty"`
	RewardLabel      string    `json:"reward_label,omitempty"`
	Error            string    `json:"error,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Sink persists batches of events
type Sink interface {
	Write(ctx context.Context, events []Event) error
}

// FlushMetrics receives flush outcomes
type FlushMetrics interface {
	RecordFlush(success bool)
}

// RecorderConfig holds event recorder configuration
type RecorderConfig struct {
	// BufferSize is the number of events buffered before a flush is queued
	BufferSize int
	// FlushInterval flushes partial buffers periodically; 0 disables it
	FlushInterval time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		BufferSize:    config.DefaultEventBufferSize,
		FlushInterval: config.DefaultEventFlushInterval,
	}
}

// EventRecorder buffers lifecycle events and writes them to a Sink.
// Uses a bounded worker pool; batches are dropped rather than blocking
// the caller when the pool falls behind.
type EventRecorder struct {
	sink       Sink
	metrics    FlushMetrics
	buffer     []Event
	bufferSize int
	mu         sync.Mutex

	flushQueue chan []Event
	stopCh     chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup

	droppedEvents  atomic.Int64
	droppedBatches atomic.Int64
	totalEvents    atomic.Int64
	flushedEvents  atomic.Int64
	failedBatches  atomic.Int64
}

// NewEventRecorder creates a recorder writing to sink
func NewEventRecorder(sink Sink, cfg *RecorderConfig) *EventRecorder {
	if cfg == nil {
		cfg = DefaultRecorderConfig()
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = config.DefaultEventBufferSize
	}

	r := &EventRecorder{
		sink:       sink,
		buffer:     make([]Event, 0, bufferSize),
		bufferSize: bufferSize,
		flushQueue: make(chan []Event, flushQueueSize),
		stopCh:     make(chan struct{}),
	}

	for i := 0; i < flushWorkerCount; i++ {
		r.wg.Add(1)
		go r.flushWorker()
	}

	if cfg.FlushInterval > 0 {
		r.wg.Add(1)
		go r.ticker(cfg.FlushInterval)
	}

	return r
}

// SetMetrics attaches flush metrics
func (r *EventRecorder) SetMetrics(m FlushMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

func (r *EventRecorder) flushWorker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopCh:
			return
		case events := <-r.flushQueue:
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			_ = r.write(ctx, events) // failures are logged and counted in write
			cancel()
		}
	}
}

// ticker queues the partial buffer on every interval
func (r *EventRecorder) ticker(interval time.Duration) {
	defer r.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-t.C:
			r.mu.Lock()
			events := r.swapLocked()
			r.mu.Unlock()
			r.enqueue(events)
		}
	}
}

func (r *EventRecorder) write(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	err := r.sink.Write(ctx, events)

	r.mu.Lock()
	m := r.metrics
	r.mu.Unlock()
	if m != nil {
		m.RecordFlush(err == nil)
	}

	if err != nil {
		r.failedBatches.Add(1)
		logger.Log.Warn().Err(err).Int("events", len(events)).Msg("Failed to write lifecycle events")
		return err
	}
	return nil
}

// swapLocked takes the buffer; r.mu must be held
func (r *EventRecorder) swapLocked() []Event {
	if len(r.buffer) == 0 {
		return nil
	}
	events := r.buffer
	r.buffer = make([]Event, 0, r.bufferSize)
	return events
}

// enqueue hands a batch to the workers without blocking
func (r *EventRecorder) enqueue(events []Event) {
	if len(events) == 0 {
		return
	}
	batchSize := int64(len(events))
	select {
	case r.flushQueue <- events:
		r.flushedEvents.Add(batchSize)
	default:
		r.droppedEvents.Add(batchSize)
		r.droppedBatches.Add(1)
	}
}

// Record buffers an event, queueing a flush when the buffer is full
func (r *EventRecorder) Record(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	r.totalEvents.Add(1)

	r.mu.Lock()
	r.buffer = append(r.buffer, e)
	var eventsToFlush []Event
	if len(r.buffer) >= r.bufferSize {
		eventsToFlush = r.swapLocked()
	}
	r.mu.Unlock()

	r.enqueue(eventsToFlush)
}

// Flush writes buffered events to the sink synchronously
func (r *EventRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	events := r.swapLocked()
	r.mu.Unlock()

	return r.write(ctx, events)
}

// Close stops the workers and flushes remaining events
func (r *EventRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()

		err = r.drain(ctx)
		if ferr := r.Flush(ctx); ferr != nil {
			err = ferr
		}
	})
	return err
}

// drain writes batches the workers did not reach
func (r *EventRecorder) drain(ctx context.Context) error {
	var err error
	for {
		select {
		case events := <-r.flushQueue:
			if werr := r.write(ctx, events); werr != nil {
				err = werr
			}
		default:
			return err
		}
	}
}

// RecorderStats contains counters for monitoring the event recorder
type RecorderStats struct {
	TotalEvents    int64 `json:"total_events"`
	FlushedEvents  int64 `json:"flushed_events"`
	DroppedEvents  int64 `json:"dropped_events"`
	DroppedBatches int64 `json:"dropped_batches"`
	FailedBatches  int64 `json:"failed_batches"`
	BufferedEvents int   `json:"buffered_events"`
	QueuedBatches  int   `json:"queued_batches"`
}

// Stats returns current counters for the recorder
func (r *EventRecorder) Stats() RecorderStats {
	r.mu.Lock()
	buffered := len(r.buffer)
	r.mu.Unlock()

	return RecorderStats{
		TotalEvents:    r.totalEvents.Load(),
		FlushedEvents:  r.flushedEvents.Load(),
		DroppedEvents:  r.droppedEvents.Load(),
		DroppedBatches: r.droppedBatches.Load(),
		FailedBatches:  r.failedBatches.Load(),
		BufferedEvents: buffered,
		QueuedBatches:  len(r.flushQueue),
	}
}
