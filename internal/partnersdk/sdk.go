// Package partnersdk simulates the third-party advertising SDK wrapped by the
// reference adapter. Every operation completes asynchronously after a fixed
// delay and reports back through listener interfaces.
package partnersdk

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thenexusengine/tne_mediation/internal/config"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

var (
	// ErrLoadFailed is reported when a simulated load fails
	ErrLoadFailed = errors.New("partner sdk: ad failed to load")
	// ErrShowFailed is reported when a simulated presentation fails
	ErrShowFailed = errors.New("partner sdk: ad failed to show")
)

// Config holds the simulated timings and failure switches
type Config struct {
	SetupDelay time.Duration
	LoadDelay  time.Duration
	ShowDelay  time.Duration
	EventDelay time.Duration
	ClickDelay time.Duration

	// FailLoads makes every load complete with ErrLoadFailed
	FailLoads bool
	// FailShows makes every fullscreen show report ErrShowFailed
	FailShows bool
}

// DefaultConfig returns the timings used by the reference partner SDK
func DefaultConfig() *Config {
	return &Config{
		SetupDelay: config.SDKSetupDelay,
		ShowDelay:  config.SDKShowDelay,
		EventDelay: config.SDKEventDelay,
		ClickDelay: config.SDKClickDelay,
	}
}

// Privacy holds the privacy signals forwarded by the adapter
type Privacy struct {
	GDPRApplies  bool
	GDPRConsent  string
	COPPASubject bool
	CCPAConsent  bool
	CCPAString   string
	GPPString    string
}

// SDK is the simulated partner SDK
type SDK struct {
	config *Config

	mu          sync.RWMutex
	initialized bool
	testMode    bool
	verbose     bool
	privacy     Privacy
}

// New creates a partner SDK instance
func New(cfg *Config) *SDK {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &SDK{config: cfg}
}

// SetUp simulates SDK initialization and calls done once it completes.
// The reference SDK always initializes successfully.
func (s *SDK) SetUp(done func()) {
	time.AfterFunc(s.config.SetupDelay, func() {
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()

		logger.SDK().Debug().Msg("Partner SDK initialized")
		done()
	})
}

// IsInitialized reports whether SetUp has completed
func (s *SDK) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// BidToken computes a bid token for a pre-bid request
func (s *SDK) BidToken() string {
	return uuid.NewString()
}

// Version returns the partner SDK version
func (s *SDK) Version() string {
	return config.PartnerSDKVersion
}

// SetTestMode toggles the partner's test mode
func (s *SDK) SetTestMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testMode = enabled
}

// TestMode reports whether test mode is enabled
func (s *SDK) TestMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.testMode
}

// SetVerboseLogging toggles the partner's verbose logging
func (s *SDK) SetVerboseLogging(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verbose = enabled
}

// VerboseLogging reports whether verbose logging is enabled
func (s *SDK) VerboseLogging() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verbose
}

// SetPrivacy replaces the privacy signals known to the SDK
func (s *SDK) SetPrivacy(p Privacy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privacy = p
}

// Privacy returns the privacy signals known to the SDK
func (s *SDK) Privacy() Privacy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.privacy
}

// timers tracks the pending callbacks of one ad object so Destroy can cancel them
type timers struct {
	mu        sync.Mutex
	pending   []*time.Timer
	destroyed bool
}

// schedule runs fn after d unless the owner is destroyed first
func (t *timers) schedule(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return
	}
	t.pending = append(t.pending, time.AfterFunc(d, func() {
		if t.isDestroyed() {
			return
		}
		fn()
	}))
}

func (t *timers) isDestroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

// stop cancels every pending callback
func (t *timers) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destroyed = true
	for _, timer := range t.pending {
		timer.Stop()
	}
	t.pending = nil
}
