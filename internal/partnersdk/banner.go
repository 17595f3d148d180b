package partnersdk

import (
	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

// BannerSize identifies a banner creative supported by the partner
type BannerSize string

// Supported banner creatives
const (
	BannerStandard        BannerSize = "https://chartboost.s3.amazonaws.com/helium/creatives/creative-320x50.png"
	BannerLeaderboard     BannerSize = "https://chartboost.s3.amazonaws.com/helium/creatives/creative-728x90.png"
	BannerMediumRectangle BannerSize = "https://chartboost.s3.amazonaws.com/helium/creatives/creative-300x250.png"
)

// ClickThroughURL is the landing page opened by a banner click
const ClickThroughURL = "https://www.chartboost.com/helium/"

// BannerListener receives banner ad events
type BannerListener interface {
	OnAdImpression()
	OnAdClicked()
}

// BannerAd is an inline partner ad
type BannerAd struct {
	Placement string
	Size      BannerSize

	sdk      *SDK
	listener BannerListener
	timers   timers
	log      zerolog.Logger
}

// NewBannerAd creates a banner ad for a partner placement
func (s *SDK) NewBannerAd(placement string, size BannerSize, listener BannerListener) *BannerAd {
	return &BannerAd{
		Placement: placement,
		Size:      size,
		sdk:       s,
		listener:  listener,
		log:       logger.SDK().With().Str("partner_placement", placement).Logger(),
	}
}

// Load loads the banner with optional ad markup. done is called
// asynchronously with the load result; an impression follows after the
// configured event delay.
func (b *BannerAd) Load(adm string, done func(error)) {
	b.log.Debug().Str("creative", string(b.Size)).Bool("has_adm", adm != "").Msg("Loading banner ad")

	b.timers.schedule(b.sdk.config.LoadDelay, func() {
		if b.sdk.config.FailLoads {
			done(ErrLoadFailed)
			return
		}
		done(nil)
		b.timers.schedule(b.sdk.config.EventDelay, b.listener.OnAdImpression)
	})
}

// Click simulates a user tap on the banner
func (b *BannerAd) Click() {
	b.log.Debug().Str("url", ClickThroughURL).Msg("Banner click-through")
	b.timers.schedule(b.sdk.config.ClickDelay, b.listener.OnAdClicked)
}

// Destroy releases the banner and cancels pending events
func (b *BannerAd) Destroy() {
	b.log.Debug().Msg("Destroying banner ad")
	b.timers.stop()
}
