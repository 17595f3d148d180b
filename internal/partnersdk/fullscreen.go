package partnersdk

import (
	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_mediation/internal/config"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

// FullscreenFormat identifies a fullscreen creative supported by the partner
type FullscreenFormat string

// Supported fullscreen creatives
const (
	FullscreenInterstitial         FullscreenFormat = "https://chartboost.s3.amazonaws.com/helium/creatives/creative-320x480.png"
	FullscreenRewarded             FullscreenFormat = "https://chartboost.s3.amazonaws.com/helium/creatives/cbvideoad-portrait.mp4"
	FullscreenRewardedInterstitial FullscreenFormat = "https://chartboost.s3.amazonaws.com/helium/creatives/cbvideoad-portrait.mp4#interstitial"
)

// IsRewarded reports whether the format grants a reward
func (f FullscreenFormat) IsRewarded() bool {
	return f == FullscreenRewarded || f == FullscreenRewardedInterstitial
}

// FullscreenListener receives fullscreen ad events
type FullscreenListener interface {
	OnAdShowSucceeded()
	OnAdShowFailed(err error)
	OnAdImpression()
	OnAdClicked()
	OnAdRewarded(amount int, label string)
	OnAdDismissed()
}

// FullscreenAd is a partner ad presented over the whole screen
type FullscreenAd struct {
	Placement string
	Format    FullscreenFormat

	sdk      *SDK
	listener FullscreenListener
	timers   timers
	log      zerolog.Logger
}

// NewFullscreenAd creates a fullscreen ad for a partner placement
func (s *SDK) NewFullscreenAd(placement string, format FullscreenFormat, listener FullscreenListener) *FullscreenAd {
	return &FullscreenAd{
		Placement: placement,
		Format:    format,
		sdk:       s,
		listener:  listener,
		log:       logger.SDK().With().Str("partner_placement", placement).Logger(),
	}
}

// Load loads the fullscreen ad with optional ad markup
func (f *FullscreenAd) Load(adm string, done func(error)) {
	f.log.Debug().Str("creative", string(f.Format)).Bool("has_adm", adm != "").Msg("Loading fullscreen ad")

	f.timers.schedule(f.sdk.config.LoadDelay, func() {
		if f.sdk.config.FailLoads {
			done(ErrLoadFailed)
			return
		}
		done(nil)
	})
}

// Show presents the ad. The show result is reported after the show delay,
// then impression, click, reward (rewarded formats only) and dismissal
// follow after the event delay.
func (f *FullscreenAd) Show() {
	f.log.Debug().Msg("Showing fullscreen ad")

	f.timers.schedule(f.sdk.config.ShowDelay, func() {
		if f.sdk.config.FailShows {
			f.listener.OnAdShowFailed(ErrShowFailed)
			return
		}
		f.listener.OnAdShowSucceeded()

		f.timers.schedule(f.sdk.config.EventDelay, func() {
			f.listener.OnAdImpression()
			f.listener.OnAdClicked()
			if f.Format.IsRewarded() {
				f.listener.OnAdRewarded(config.DefaultRewardAmount, config.DefaultRewardLabel)
			}
			f.listener.OnAdDismissed()
		})
	})
}

// Destroy releases the ad and cancels pending events
func (f *FullscreenAd) Destroy() {
	f.log.Debug().Msg("Destroying fullscreen ad")
	f.timers.stop()
}
