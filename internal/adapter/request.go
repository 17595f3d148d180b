package adapter

import (
	"fmt"
	"strings"
)

// AdFormat is the format of a requested ad
type AdFormat string

// Supported ad formats
const (
	FormatBanner               AdFormat = "banner"
	FormatInterstitial         AdFormat = "interstitial"
	FormatRewarded             AdFormat = "rewarded"
	FormatRewardedInterstitial AdFormat = "rewarded_interstitial"
)

// ParseAdFormat converts a format name into an AdFormat
func ParseAdFormat(s string) (AdFormat, error) {
	f := AdFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// IsValid reports whether the format is one the adapter supports
func (f AdFormat) IsValid() bool {
	switch f {
	case FormatBanner, FormatInterstitial, FormatRewarded, FormatRewardedInterstitial:
		return true
	}
	return false
}

// IsFullscreen reports whether the format uses the load-then-show lifecycle
func (f AdFormat) IsFullscreen() bool {
	return f.IsValid() && f != FormatBanner
}

// Size is a display size in points
type Size struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// LoadRequest carries everything needed to load one ad.
// It is passed by value and never modified after the load starts.
type LoadRequest struct {
	LoadID             string
	MediationPlacement string
	PartnerPlacement   string
	Format             AdFormat
	AdMarkup           string
	Size               *Size
}

// partnerPlacement returns the partner-facing placement, falling back to the mediation placement
func (r LoadRequest) partnerPlacement() string {
	if r.PartnerPlacement != "" {
		return r.PartnerPlacement
	}
	return r.MediationPlacement
}

// PreBidRequest is the input to a bid token fetch
type PreBidRequest struct {
	MediationPlacement string
	Format             AdFormat
}

// PartnerConfiguration is the initialization data handed to SetUp
type PartnerConfiguration struct {
	Credentials map[string]string
}

// GDPRConsentStatus is the user's GDPR consent as determined by the mediation SDK
type GDPRConsentStatus string

// GDPR consent values
const (
	GDPRConsentUnknown GDPRConsentStatus = "unknown"
	GDPRConsentDenied  GDPRConsentStatus = "denied"
	GDPRConsentGranted GDPRConsentStatus = "granted"
)

// PrivacySignals holds the privacy state propagated to the partner
type PrivacySignals struct {
	GDPRApplies  bool              `json:"gdpr_applies"`
	GDPRConsent  GDPRConsentStatus `json:"gdpr_consent"`
	COPPASubject bool              `json:"coppa_subject"`
	CCPAConsent  bool              `json:"ccpa_consent"`
	CCPAPrivacy  string            `json:"ccpa_privacy,omitempty"`
	GPP          string            `json:"gpp,omitempty"`
}
