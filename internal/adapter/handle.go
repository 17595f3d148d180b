package adapter

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_mediation/internal/partnersdk"
)

// State is the lifecycle state of an ad handle
type State int32

// Ad handle lifecycle states
const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateShowing
	StateShown
	StateShowFailed
	StateFailed
	StateInvalidated
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateLoading:     "loading",
	StateLoaded:      "loaded",
	StateShowing:     "showing",
	StateShown:       "shown",
	StateShowFailed:  "show_failed",
	StateFailed:      "failed",
	StateInvalidated: "invalidated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether the handle can no longer hold its placement
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateInvalidated
}

// acceptsEvents reports whether partner events may be forwarded in this state
func (s State) acceptsEvents() bool {
	switch s {
	case StateLoaded, StateShowing, StateShown, StateShowFailed:
		return true
	}
	return false
}

// EventType names a partner event relayed to the delegate
type EventType string

// Partner events
const (
	EventImpression EventType = "impression"
	EventClick      EventType = "click"
	EventReward     EventType = "reward"
	EventDismiss    EventType = "dismiss"
	EventShowResult EventType = "show_result"
)

// partnerAd is the partner-side ad object owned by a handle
type partnerAd interface {
	Destroy()
}

// AdHandle represents one loaded partner ad instance. A new handle is
// created for every load and is never reused.
type AdHandle struct {
	ID         string
	Request    LoadRequest
	BannerSize *BannerSize
	CreatedAt  time.Time

	dispatcher *Dispatcher
	log        zerolog.Logger

	mu             sync.Mutex
	state          State
	partnerAd      partnerAd
	showCompletion func(error)
}

// Placement returns the mediation placement that owns the handle
func (h *AdHandle) Placement() string {
	return h.Request.MediationPlacement
}

// Format returns the ad format of the handle
func (h *AdHandle) Format() AdFormat {
	return h.Request.Format
}

// State returns the current lifecycle state
func (h *AdHandle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *AdHandle) startLoading(ad partnerAd) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateLoading
	h.partnerAd = ad
}

// markLoaded moves Loading to Loaded; false when the load was abandoned
func (h *AdHandle) markLoaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateLoading {
		return false
	}
	h.state = StateLoaded
	return true
}

// markFailed moves Loading to Failed and hands back the partner ad to release
func (h *AdHandle) markFailed() (partnerAd, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateLoading {
		return nil, false
	}
	ad := h.partnerAd
	h.state = StateFailed
	h.partnerAd = nil
	return ad, true
}

// beginShow moves Loaded to Showing and arms the show completion slot
func (h *AdHandle) beginShow(completion func(error)) (*partnersdk.FullscreenAd, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateLoaded || h.partnerAd == nil {
		return nil, ErrNoAdReady
	}
	ad, ok := h.partnerAd.(*partnersdk.FullscreenAd)
	if !ok {
		return nil, ErrAdTypeMismatch
	}
	h.state = StateShowing
	h.showCompletion = completion
	return ad, nil
}

// finishShow empties the show completion slot and records the outcome.
// It returns nil when no show is pending.
func (h *AdHandle) finishShow(err error) func(error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	completion := h.showCompletion
	h.showCompletion = nil
	if completion != nil && h.state == StateShowing {
		if err != nil {
			h.state = StateShowFailed
		} else {
			h.state = StateShown
		}
	}
	return completion
}

// currentAd returns the partner ad, or false once the handle is invalidated
func (h *AdHandle) currentAd() (partnerAd, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateInvalidated {
		return nil, false
	}
	return h.partnerAd, true
}

// markInvalidated moves the handle to Invalidated, detaching the partner ad
// and any pending show. ok is false if another caller got there first.
func (h *AdHandle) markInvalidated() (ad partnerAd, pendingShow func(error), ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateInvalidated {
		return nil, nil, false
	}
	ad, pendingShow = h.partnerAd, h.showCompletion
	h.state = StateInvalidated
	h.partnerAd = nil
	h.showCompletion = nil
	return ad, pendingShow, true
}

// notify forwards a repeatable event to the placement's delegate
func (h *AdHandle) notify(event EventType, fn func(Delegate)) {
	d := h.dispatcher

	if state := h.State(); !state.acceptsEvents() {
		h.log.Debug().Str("event", string(event)).Str("state", state.String()).Msg("Dropping partner event for inactive ad")
		d.metrics.RecordDroppedEvent(string(event), "inactive")
		return
	}

	if !d.registry.deliver(h, fn) {
		err := newError(OpEvent, h.Placement(), ErrDelegateUnavailable, nil)
		h.log.Debug().Err(err).Str("event", string(event)).Msg("Unable to notify delegate")
		d.metrics.RecordDroppedEvent(string(event), "delegate_unavailable")
		return
	}

	h.log.Debug().Str("event", string(event)).Msg("Delegate notified")
	d.metrics.RecordEvent(string(h.Format()), string(event))
}

func (h *AdHandle) onImpression() {
	h.notify(EventImpression, func(d Delegate) { d.OnImpression(h) })
}

func (h *AdHandle) onClick() {
	h.notify(EventClick, func(d Delegate) { d.OnClick(h) })
}

func (h *AdHandle) onReward(amount int, label string) {
	h.notify(EventReward, func(d Delegate) { d.OnReward(h, amount, label) })
}

func (h *AdHandle) onDismiss(err error) {
	h.notify(EventDismiss, func(d Delegate) { d.OnDismiss(h, err) })
}

// onShowResult resolves the pending show exactly once
func (h *AdHandle) onShowResult(partnerErr error) {
	var err error
	if partnerErr != nil {
		err = newError(OpShow, h.Placement(), ErrShowFailure, partnerErr)
	}

	completion := h.finishShow(err)
	if completion == nil {
		h.log.Debug().AnErr("partner_error", partnerErr).Msg("Show result ignored, no show pending")
		h.dispatcher.metrics.RecordDroppedEvent(string(EventShowResult), "no_pending_show")
		return
	}

	if err != nil {
		h.log.Warn().Err(err).Msg("Show failed")
		h.dispatcher.metrics.RecordShow(string(h.Format()), "failure")
	} else {
		h.log.Info().Msg("Show succeeded")
		h.dispatcher.metrics.RecordShow(string(h.Format()), "success")
	}
	completion(err)
}

// bannerListener adapts partner banner callbacks onto the handle
type bannerListener struct {
	h *AdHandle
}

func (l bannerListener) OnAdImpression() { l.h.onImpression() }
func (l bannerListener) OnAdClicked()    { l.h.onClick() }

// fullscreenListener adapts partner fullscreen callbacks onto the handle
type fullscreenListener struct {
	h *AdHandle
}

func (l fullscreenListener) OnAdShowSucceeded()                    { l.h.onShowResult(nil) }
func (l fullscreenListener) OnAdShowFailed(err error)              { l.h.onShowResult(err) }
func (l fullscreenListener) OnAdImpression()                       { l.h.onImpression() }
func (l fullscreenListener) OnAdClicked()                          { l.h.onClick() }
func (l fullscreenListener) OnAdRewarded(amount int, label string) { l.h.onReward(amount, label) }
func (l fullscreenListener) OnAdDismissed()                        { l.h.onDismiss(nil) }
