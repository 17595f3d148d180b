package adapter

import (
	"fmt"

	"github.com/thenexusengine/tne_mediation/internal/config"
	"github.com/thenexusengine/tne_mediation/internal/partnersdk"
)

// BannerSize is a fixed banner size supported by the partner.
// A Height of 0 accepts any available height.
type BannerSize struct {
	Name    string                `json:"name"`
	Width   int                   `json:"w"`
	Height  int                   `json:"h"`
	Partner partnersdk.BannerSize `json:"-"`
}

// Named banner sizes
var (
	BannerLeaderboard     = BannerSize{Name: "leaderboard", Width: 728, Height: 90, Partner: partnersdk.BannerLeaderboard}
	BannerMediumRectangle = BannerSize{Name: "medium_rectangle", Width: 300, Height: 250, Partner: partnersdk.BannerMediumRectangle}
	BannerStandard        = BannerSize{Name: "standard", Width: 320, Height: 50, Partner: partnersdk.BannerStandard}
)

// BannerSizeTable lists the supported sizes in resolution order, largest first
var BannerSizeTable = []BannerSize{
	BannerLeaderboard,
	BannerMediumRectangle,
	BannerStandard,
}

// fits reports whether the candidate fits inside the available space
func (b BannerSize) fits(available Size) bool {
	return available.Width >= b.Width && (b.Height == 0 || available.Height >= b.Height)
}

// ResolveBannerSize maps a requested size onto a supported fixed size.
//
// A request with both dimensions is matched against BannerSizeTable and the
// first size that fits wins. A nil request or a height-only request (Width
// of 0) falls back to the legacy height buckets. When oversized is set the
// returned dimensions are inflated by config.OversizedBannerDelta; the
// partner creative is unchanged.
func ResolveBannerSize(requested *Size, oversized bool) (BannerSize, error) {
	var resolved BannerSize

	switch {
	case requested == nil:
		resolved = BannerStandard
	case requested.Width == 0:
		resolved = bannerSizeForHeight(requested.Height)
	default:
		found := false
		for _, candidate := range BannerSizeTable {
			if candidate.fits(*requested) {
				resolved = candidate
				found = true
				break
			}
		}
		if !found {
			return BannerSize{}, fmt.Errorf("%w: %s", ErrInvalidBannerSize, requested)
		}
	}

	if oversized {
		resolved.Width += config.OversizedBannerDelta
		if resolved.Height > 0 {
			resolved.Height += config.OversizedBannerDelta
		}
	}
	return resolved, nil
}

// bannerSizeForHeight implements the legacy height-bucket mapping
func bannerSizeForHeight(height int) BannerSize {
	switch {
	case height >= config.MediumRectangleMinHeight:
		return BannerMediumRectangle
	case height >= config.LeaderboardMinHeight:
		return BannerLeaderboard
	default:
		return BannerStandard
	}
}
