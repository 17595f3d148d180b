package adapter

import (
	"sync/atomic"

	"github.com/thenexusengine/tne_mediation/internal/partnersdk"
)

// bannerHandler drives inline banner ads
type bannerHandler struct {
	sdk       *partnersdk.SDK
	oversized *atomic.Bool
}

func (b *bannerHandler) prepare(h *AdHandle) error {
	size, err := ResolveBannerSize(h.Request.Size, b.oversized.Load())
	if err != nil {
		return newError(OpLoad, h.Placement(), ErrInvalidBannerSize, nil)
	}
	h.BannerSize = &size
	h.log = h.log.With().Str("banner_size", size.Name).Logger()
	return nil
}

func (b *bannerHandler) newAd(h *AdHandle) loadableAd {
	return b.sdk.NewBannerAd(h.Request.partnerPlacement(), h.BannerSize.Partner, bannerListener{h: h})
}

// show is a no-op for loaded banners, which are displayed as soon as they load
func (b *bannerHandler) show(h *AdHandle, completion func(error)) error {
	ad, ok := h.currentAd()
	if !ok || ad == nil || !h.State().acceptsEvents() {
		return newError(OpShow, h.Placement(), ErrNoAdReady, nil)
	}
	h.dispatcher.metrics.RecordShow(string(FormatBanner), "success")
	completion(nil)
	return nil
}

func (b *bannerHandler) owns(ad partnerAd) bool {
	_, ok := ad.(*partnersdk.BannerAd)
	return ok
}
