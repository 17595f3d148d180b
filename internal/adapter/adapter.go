// Package adapter implements the reference mediation adapter: it turns
// generic ad lifecycle requests from a mediation SDK into partner SDK calls
// and relays partner events back to per-placement delegates.
package adapter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_mediation/internal/config"
	"github.com/thenexusengine/tne_mediation/internal/partnersdk"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

// Config holds the adapter's runtime switches
type Config struct {
	TestMode         bool
	VerboseLogging   bool
	OversizedBanners bool
}

// DefaultConfig returns production settings
func DefaultConfig() *Config {
	return &Config{}
}

// Adapter is the boundary object the mediation SDK talks to
type Adapter struct {
	sdk        *partnersdk.SDK
	dispatcher *Dispatcher
	log        zerolog.Logger

	ready atomic.Bool

	mu      sync.RWMutex
	config  Config
	privacy PrivacySignals
}

// New creates an adapter with its own placement registry
func New(sdk *partnersdk.SDK, cfg *Config, metrics Metrics) *Adapter {
	return NewWithRegistry(sdk, cfg, NewPlacementRegistry(), metrics)
}

// NewWithRegistry creates an adapter that records loads in registry
func NewWithRegistry(sdk *partnersdk.SDK, cfg *Config, registry *PlacementRegistry, metrics Metrics) *Adapter {
	if sdk == nil {
		sdk = partnersdk.New(nil)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := &Adapter{
		sdk:        sdk,
		dispatcher: NewDispatcher(sdk, registry, metrics),
		log:        *logger.Partner(config.PartnerIdentifier),
		privacy:    PrivacySignals{GDPRConsent: GDPRConsentUnknown},
	}
	a.SetTestMode(cfg.TestMode)
	a.SetVerboseLogging(cfg.VerboseLogging)
	a.SetOversizedBanners(cfg.OversizedBanners)
	return a
}

// PartnerIdentifier returns the partner's mediation identifier
func (a *Adapter) PartnerIdentifier() string { return config.PartnerIdentifier }

// PartnerDisplayName returns the partner's human-readable name
func (a *Adapter) PartnerDisplayName() string { return config.PartnerDisplayName }

// AdapterVersion returns the adapter version
func (a *Adapter) AdapterVersion() string { return config.AdapterVersion }

// PartnerSDKVersion returns the wrapped partner SDK version
func (a *Adapter) PartnerSDKVersion() string { return a.sdk.Version() }

// Registry returns the placement registry
func (a *Adapter) Registry() *PlacementRegistry { return a.dispatcher.Registry() }

// Config returns a copy of the current switches
func (a *Adapter) Config() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// SetTestMode toggles partner test mode
func (a *Adapter) SetTestMode(enabled bool) {
	a.mu.Lock()
	a.config.TestMode = enabled
	a.mu.Unlock()
	a.sdk.SetTestMode(enabled)
	a.log.Debug().Bool("enabled", enabled).Msg("Test mode updated")
}

// SetVerboseLogging toggles verbose partner logging
func (a *Adapter) SetVerboseLogging(enabled bool) {
	a.mu.Lock()
	a.config.VerboseLogging = enabled
	a.mu.Unlock()
	a.sdk.SetVerboseLogging(enabled)
	a.log.Debug().Bool("enabled", enabled).Msg("Verbose logging updated")
}

// SetOversizedBanners toggles oversized banner metadata
func (a *Adapter) SetOversizedBanners(enabled bool) {
	a.mu.Lock()
	a.config.OversizedBanners = enabled
	a.mu.Unlock()
	a.dispatcher.SetOversizedBanners(enabled)
}

// IsSetUp reports whether partner setup has completed
func (a *Adapter) IsSetUp() bool {
	return a.ready.Load()
}

// SetUp initializes the partner SDK. completion is called once setup
// finishes; the reference partner never fails to initialize.
func (a *Adapter) SetUp(ctx context.Context, cfg PartnerConfiguration, completion func(error)) {
	log := a.log.With().Int("credentials", len(cfg.Credentials)).Logger()

	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("Setup cancelled")
		if completion != nil {
			completion(newError(OpSetUp, "", err, nil))
		}
		return
	}

	log.Info().Msg("Setup started")
	a.sdk.SetUp(func() {
		a.ready.Store(true)
		log.Info().Str("sdk_version", a.sdk.Version()).Msg("Setup succeeded")
		if completion != nil {
			completion(nil)
		}
	})
}

// FetchBidderInfo computes the partner bid token for a pre-bid request
func (a *Adapter) FetchBidderInfo(ctx context.Context, req PreBidRequest, completion func(map[string]string)) {
	token := a.sdk.BidToken()
	a.log.Debug().
		Str("placement", req.MediationPlacement).
		Str("format", string(req.Format)).
		Msg("Bid token generated")
	if completion != nil {
		completion(map[string]string{"token": token})
	}
}

// SetGDPR records whether GDPR applies and the user's consent
func (a *Adapter) SetGDPR(applies bool, status GDPRConsentStatus) {
	a.updatePrivacy(func(p *PrivacySignals) {
		p.GDPRApplies = applies
		p.GDPRConsent = status
	})
}

// SetCOPPA records whether the user is subject to COPPA
func (a *Adapter) SetCOPPA(isSubject bool) {
	a.updatePrivacy(func(p *PrivacySignals) {
		p.COPPASubject = isSubject
	})
}

// SetCCPA records the user's CCPA consent and privacy string
func (a *Adapter) SetCCPA(hasGivenConsent bool, privacyString string) {
	a.updatePrivacy(func(p *PrivacySignals) {
		p.CCPAConsent = hasGivenConsent
		p.CCPAPrivacy = privacyString
	})
}

// SetGPP records the GPP consent string
func (a *Adapter) SetGPP(gppString string) {
	a.updatePrivacy(func(p *PrivacySignals) {
		p.GPP = gppString
	})
}

// Privacy returns the privacy signals last propagated to the partner
func (a *Adapter) Privacy() PrivacySignals {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.privacy
}

func (a *Adapter) updatePrivacy(update func(*PrivacySignals)) {
	a.mu.Lock()
	update(&a.privacy)
	p := a.privacy
	a.mu.Unlock()

	a.sdk.SetPrivacy(partnersdk.Privacy{
		GDPRApplies:  p.GDPRApplies,
		GDPRConsent:  string(p.GDPRConsent),
		COPPASubject: p.COPPASubject,
		CCPAConsent:  p.CCPAConsent,
		CCPAString:   p.CCPAPrivacy,
		GPPString:    p.GPP,
	})
	a.log.Debug().
		Bool("gdpr_applies", p.GDPRApplies).
		Str("gdpr_consent", string(p.GDPRConsent)).
		Bool("coppa", p.COPPASubject).
		Bool("ccpa_consent", p.CCPAConsent).
		Msg("Privacy signals updated")
}

// Load starts loading an ad for the request. The returned handle identifies
// the load; completion fires when the partner resolves it. When Load
// returns an error completion is not called.
func (a *Adapter) Load(ctx context.Context, req LoadRequest, delegate Delegate, completion func(*AdHandle, error)) (*AdHandle, error) {
	if req.LoadID == "" {
		req.LoadID = uuid.NewString()
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(OpLoad, req.MediationPlacement, err, nil)
	}
	ctx = logger.WithLoadID(ctx, req.LoadID)
	if !a.IsSetUp() {
		logger.FromContext(ctx).Warn().Str("placement", req.MediationPlacement).Msg("Load requested before setup completed")
	}
	return a.dispatcher.Load(ctx, req, delegate, completion)
}

// Show presents a loaded ad. Rejections are reported through completion.
func (a *Adapter) Show(ctx context.Context, h *AdHandle, completion func(error)) {
	if completion == nil {
		completion = func(error) {}
	}
	if err := ctx.Err(); err != nil {
		completion(newError(OpShow, placementOf(h), err, nil))
		return
	}
	if err := a.dispatcher.Show(h, completion); err != nil {
		completion(err)
	}
}

// Click simulates a user tap on a banner
func (a *Adapter) Click(ctx context.Context, h *AdHandle) error {
	if err := ctx.Err(); err != nil {
		return newError(OpEvent, placementOf(h), err, nil)
	}
	return a.dispatcher.Click(h)
}

// Invalidate releases the ad and frees its placement for a new load.
// It runs on its own goroutine so delegates may call it from a callback.
func (a *Adapter) Invalidate(ctx context.Context, h *AdHandle, completion func(error)) {
	if err := ctx.Err(); err != nil {
		go func() {
			if completion != nil {
				completion(newError(OpInvalidate, placementOf(h), err, nil))
			}
		}()
		return
	}
	go func() {
		err := a.dispatcher.Invalidate(h)
		if completion != nil {
			completion(err)
		}
	}()
}

func placementOf(h *AdHandle) string {
	if h == nil {
		return ""
	}
	return h.Placement()
}
