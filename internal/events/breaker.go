package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thenexusengine/tne_mediation/internal/config"
)

// Breaker states
const (
	BreakerClosed   = "closed"
	BreakerOpen     = "open"
	BreakerHalfOpen = "half-open"
)

// ErrSinkUnavailable is returned while the breaker rejects writes
var ErrSinkUnavailable = errors.New("event sink unavailable")

// BreakerConfig holds GuardedSink configuration
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
	OnStateChange    func(from, to string)
}

// DefaultBreakerConfig returns the default breaker thresholds
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		FailureThreshold: config.SinkFailureThreshold,
		SuccessThreshold: config.SinkSuccessThreshold,
		Cooldown:         config.SinkCooldown,
	}
}

// GuardedSink wraps a Sink with a circuit breaker. While open, writes fail
// fast with ErrSinkUnavailable so flush workers do not queue behind a dead
// backend. After the cooldown a single trial write is let through.
type GuardedSink struct {
	sink   Sink
	config *BreakerConfig

	mu          sync.Mutex
	state       string
	failures    int
	successes   int
	openedAt    time.Time
	trialActive bool
	rejected    int64

	callbackWg sync.WaitGroup
}

// NewGuardedSink wraps sink; a nil config uses DefaultBreakerConfig
func NewGuardedSink(sink Sink, cfg *BreakerConfig) *GuardedSink {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	return &GuardedSink{sink: sink, config: cfg, state: BreakerClosed}
}

// Write implements Sink
func (g *GuardedSink) Write(ctx context.Context, events []Event) error {
	if err := g.admit(); err != nil {
		return err
	}
	err := g.sink.Write(ctx, events)
	g.record(err)
	return err
}

func (g *GuardedSink) admit() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case BreakerOpen:
		if time.Since(g.openedAt) < g.config.Cooldown {
			g.rejected++
			return ErrSinkUnavailable
		}
		g.setState(BreakerHalfOpen)
		g.trialActive = true
	case BreakerHalfOpen:
		if g.trialActive {
			g.rejected++
			return ErrSinkUnavailable
		}
		g.trialActive = true
	}
	return nil
}

func (g *GuardedSink) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.trialActive = false
	if err != nil {
		g.failures++
		g.successes = 0
		if g.state == BreakerHalfOpen || g.failures >= g.config.FailureThreshold {
			g.openedAt = time.Now()
			g.setState(BreakerOpen)
		}
		return
	}

	g.failures = 0
	if g.state == BreakerHalfOpen {
		g.successes++
		if g.successes >= g.config.SuccessThreshold {
			g.setState(BreakerClosed)
		}
	}
}

// setState must be called with mu held
func (g *GuardedSink) setState(to string) {
	if g.state == to {
		return
	}
	from := g.state
	g.state = to
	g.successes = 0

	if g.config.OnStateChange != nil {
		g.callbackWg.Add(1)
		go func() {
			defer g.callbackWg.Done()
			g.config.OnStateChange(from, to)
		}()
	}
}

// State returns the current breaker state
func (g *GuardedSink) State() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Rejected returns the number of writes refused while open
func (g *GuardedSink) Rejected() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rejected
}

// Close waits for pending state change callbacks
func (g *GuardedSink) Close() {
	g.callbackWg.Wait()
}
