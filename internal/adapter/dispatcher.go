package adapter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/thenexusengine/tne_mediation/internal/partnersdk"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

// loadableAd is a partner ad that can be loaded with optional markup
type loadableAd interface {
	partnerAd
	Load(adm string, done func(error))
}

// formatHandler implements the partner calls for one family of formats
type formatHandler interface {
	// prepare validates the request and fills format-specific handle fields
	prepare(h *AdHandle) error
	// newAd creates the partner ad wired to the handle's listeners
	newAd(h *AdHandle) loadableAd
	show(h *AdHandle, completion func(error)) error
	// owns reports whether ad is the partner type this handler creates
	owns(ad partnerAd) bool
}

// Dispatcher routes lifecycle operations to the handler for the ad format
// and keeps the placement registry in step with every handle.
type Dispatcher struct {
	sdk      *partnersdk.SDK
	registry *PlacementRegistry
	metrics  Metrics

	oversized  atomic.Bool
	banner     *bannerHandler
	fullscreen *fullscreenHandler
}

// NewDispatcher creates a dispatcher. A nil metrics discards measurements.
func NewDispatcher(sdk *partnersdk.SDK, registry *PlacementRegistry, metrics Metrics) *Dispatcher {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	d := &Dispatcher{
		sdk:      sdk,
		registry: registry,
		metrics:  metrics,
	}
	d.banner = &bannerHandler{sdk: sdk, oversized: &d.oversized}
	d.fullscreen = &fullscreenHandler{sdk: sdk}
	return d
}

// SetOversizedBanners toggles the oversized banner test mode
func (d *Dispatcher) SetOversizedBanners(enabled bool) {
	d.oversized.Store(enabled)
}

// Registry returns the registry the dispatcher maintains
func (d *Dispatcher) Registry() *PlacementRegistry {
	return d.registry
}

func (d *Dispatcher) handlerFor(format AdFormat) (formatHandler, bool) {
	switch {
	case format == FormatBanner:
		return d.banner, true
	case format.IsFullscreen():
		return d.fullscreen, true
	}
	return nil, false
}

// Load registers a new handle for the request and starts the partner load.
// onLoaded is called once when the partner resolves the load, unless the
// handle is invalidated first. A returned error means onLoaded is never
// called. ctx only scopes logging; it does not bound the partner load.
func (d *Dispatcher) Load(ctx context.Context, req LoadRequest, delegate Delegate, onLoaded func(*AdHandle, error)) (*AdHandle, error) {
	placement := req.MediationPlacement
	log := logger.FromContext(logger.WithLoadID(ctx, req.LoadID)).With().
		Str("placement", placement).
		Str("format", string(req.Format)).
		Logger()

	handler, ok := d.handlerFor(req.Format)
	if !ok {
		err := newError(OpLoad, placement, ErrUnsupportedFormat, nil)
		log.Warn().Err(err).Msg("Load rejected")
		d.metrics.RecordLoad(string(req.Format), "unsupported_format")
		return nil, err
	}

	h := &AdHandle{
		ID:         uuid.NewString(),
		Request:    req,
		CreatedAt:  time.Now(),
		dispatcher: d,
	}
	h.log = log.With().Str("handle_id", h.ID).Logger()

	if err := handler.prepare(h); err != nil {
		h.log.Warn().Err(err).Msg("Load rejected")
		d.metrics.RecordLoad(string(req.Format), "invalid_request")
		return nil, err
	}

	if err := d.registry.Register(placement, h, delegate); err != nil {
		h.log.Warn().Err(err).Msg("Load rejected")
		d.metrics.RecordLoad(string(req.Format), "in_progress")
		return nil, err
	}
	d.metrics.SetActivePlacements(d.registry.Len())

	ad := handler.newAd(h)
	h.startLoading(ad)

	h.log.Info().Str("partner_placement", req.partnerPlacement()).Msg("Load started")
	ad.Load(req.AdMarkup, func(err error) {
		d.completeLoad(h, err, onLoaded)
	})
	return h, nil
}

func (d *Dispatcher) completeLoad(h *AdHandle, partnerErr error, onLoaded func(*AdHandle, error)) {
	format := string(h.Format())
	d.metrics.RecordLoadLatency(format, time.Since(h.CreatedAt))

	if partnerErr != nil {
		ad, ok := h.markFailed()
		if !ok {
			h.log.Debug().AnErr("partner_error", partnerErr).Msg("Ignoring load failure for abandoned ad")
			return
		}
		d.registry.clearHandle(h)
		d.metrics.SetActivePlacements(d.registry.Len())
		if ad != nil {
			ad.Destroy()
		}

		err := newError(OpLoad, h.Placement(), ErrLoadFailure, partnerErr)
		h.log.Warn().Err(err).Msg("Load failed")
		d.metrics.RecordLoad(format, "failure")
		if onLoaded != nil {
			onLoaded(nil, err)
		}
		return
	}

	if !h.markLoaded() {
		h.log.Debug().Str("state", h.State().String()).Msg("Ignoring load result for abandoned ad")
		d.metrics.RecordLoad(format, "abandoned")
		return
	}

	h.log.Info().Msg("Load succeeded")
	d.metrics.RecordLoad(format, "success")
	if onLoaded != nil {
		onLoaded(h, nil)
	}
}

// Show presents the ad. For fullscreen formats completion fires once, on
// the first show result reported by the partner; banners complete
// immediately. A returned error means completion is never called.
func (d *Dispatcher) Show(h *AdHandle, completion func(error)) error {
	if h == nil {
		return newError(OpShow, "", ErrNoAdReady, nil)
	}
	if completion == nil {
		completion = func(error) {}
	}

	handler, ok := d.handlerFor(h.Format())
	if !ok {
		return newError(OpShow, h.Placement(), ErrUnsupportedFormat, nil)
	}

	if err := handler.show(h, completion); err != nil {
		h.log.Warn().Err(err).Msg("Show rejected")
		d.metrics.RecordShow(string(h.Format()), "rejected")
		return err
	}
	return nil
}

// Click simulates a user tap on a loaded banner
func (d *Dispatcher) Click(h *AdHandle) error {
	if h == nil {
		return newError(OpEvent, "", ErrNoAdReady, nil)
	}
	ad, ok := h.currentAd()
	if !ok || ad == nil || !h.State().acceptsEvents() {
		return newError(OpEvent, h.Placement(), ErrNoAdReady, nil)
	}
	banner, ok := ad.(*partnersdk.BannerAd)
	if !ok {
		return newError(OpEvent, h.Placement(), ErrAdTypeMismatch, nil)
	}
	banner.Click()
	return nil
}

// Invalidate releases the partner ad and frees the placement. A pending
// show is completed with ErrShowFailure. Invalidating an already
// invalidated handle succeeds without effect.
//
// Invalidate waits for an in-flight delegate callback of the placement,
// so it must not be called synchronously from a Delegate method.
func (d *Dispatcher) Invalidate(h *AdHandle) error {
	if h == nil {
		return newError(OpInvalidate, "", ErrNoAdToInvalidate, nil)
	}
	format := string(h.Format())

	current, active := h.currentAd()
	if !active {
		h.log.Debug().Msg("Ad already invalidated")
		return nil
	}
	handler, ok := d.handlerFor(h.Format())
	if !ok || current == nil || !handler.owns(current) {
		err := newError(OpInvalidate, h.Placement(), ErrNoAdToInvalidate, nil)
		h.log.Warn().Err(err).Msg("Invalidate rejected")
		d.metrics.RecordInvalidate(format, "no_ad")
		return err
	}

	ad, pendingShow, ok := h.markInvalidated()
	if !ok {
		return nil
	}
	d.registry.clearHandle(h)
	d.metrics.SetActivePlacements(d.registry.Len())
	if ad != nil {
		ad.Destroy()
	}

	h.log.Info().Msg("Ad invalidated")
	d.metrics.RecordInvalidate(format, "success")

	if pendingShow != nil {
		d.metrics.RecordShow(format, "abandoned")
		pendingShow(newError(OpShow, h.Placement(), ErrShowFailure, errShowAbandoned))
	}
	return nil
}
