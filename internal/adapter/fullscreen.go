package adapter

import (
	"github.com/thenexusengine/tne_mediation/internal/partnersdk"
)

var fullscreenFormats = map[AdFormat]partnersdk.FullscreenFormat{
	FormatInterstitial:         partnersdk.FullscreenInterstitial,
	FormatRewarded:             partnersdk.FullscreenRewarded,
	FormatRewardedInterstitial: partnersdk.FullscreenRewardedInterstitial,
}

// fullscreenHandler drives interstitial, rewarded and rewarded interstitial ads
type fullscreenHandler struct {
	sdk *partnersdk.SDK
}

func (f *fullscreenHandler) prepare(h *AdHandle) error {
	if _, ok := fullscreenFormats[h.Format()]; !ok {
		return newError(OpLoad, h.Placement(), ErrUnsupportedFormat, nil)
	}
	return nil
}

func (f *fullscreenHandler) newAd(h *AdHandle) loadableAd {
	return f.sdk.NewFullscreenAd(h.Request.partnerPlacement(), fullscreenFormats[h.Format()], fullscreenListener{h: h})
}

func (f *fullscreenHandler) show(h *AdHandle, completion func(error)) error {
	ad, err := h.beginShow(completion)
	if err != nil {
		return newError(OpShow, h.Placement(), err, nil)
	}
	h.log.Info().Msg("Show started")
	ad.Show()
	return nil
}

func (f *fullscreenHandler) owns(ad partnerAd) bool {
	_, ok := ad.(*partnersdk.FullscreenAd)
	return ok
}
