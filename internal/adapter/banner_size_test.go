package adapter

import (
	"errors"
	"testing"

	"github.com/thenexusengine/tne_mediation/internal/partnersdk"
)

func TestResolveBannerSize(t *testing.T) {
	tests := []struct {
		name      string
		requested *Size
		oversized bool
		wantName  string
		wantW     int
		wantH     int
		wantErr   bool
	}{
		{"nil size is standard", nil, false, "standard", 320, 50, false},
		{"exact standard", &Size{Width: 320, Height: 50}, false, "standard", 320, 50, false},
		{"square fits medium rectangle", &Size{Width: 300, Height: 300}, false, "medium_rectangle", 300, 250, false},
		{"exact leaderboard", &Size{Width: 728, Height: 90}, false, "leaderboard", 728, 90, false},
		{"large space prefers leaderboard", &Size{Width: 1024, Height: 768}, false, "leaderboard", 728, 90, false},
		{"wide and short is standard", &Size{Width: 400, Height: 60}, false, "standard", 320, 50, false},
		{"too small", &Size{Width: 100, Height: 20}, false, "", 0, 0, true},
		{"too short", &Size{Width: 320, Height: 49}, false, "", 0, 0, true},
		{"legacy height below leaderboard", &Size{Height: 50}, false, "standard", 320, 50, false},
		{"legacy leaderboard height", &Size{Height: 90}, false, "leaderboard", 728, 90, false},
		{"legacy height between buckets", &Size{Height: 249}, false, "leaderboard", 728, 90, false},
		{"legacy medium rectangle height", &Size{Height: 250}, false, "medium_rectangle", 300, 250, false},
		{"oversized standard", &Size{Width: 320, Height: 50}, true, "standard", 340, 70, false},
		{"oversized nil size", nil, true, "standard", 340, 70, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveBannerSize(tt.requested, tt.oversized)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBannerSize) {
					t.Fatalf("expected ErrInvalidBannerSize, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if got.Width != tt.wantW || got.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", got.Width, got.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestResolveBannerSize_OversizedKeepsCreative(t *testing.T) {
	normal, err := ResolveBannerSize(&Size{Width: 300, Height: 250}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oversized, err := ResolveBannerSize(&Size{Width: 300, Height: 250}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if normal.Partner != oversized.Partner {
		t.Errorf("creative changed: %s vs %s", normal.Partner, oversized.Partner)
	}
	if oversized.Partner != partnersdk.BannerMediumRectangle {
		t.Errorf("expected medium rectangle creative, got %s", oversized.Partner)
	}
}

func TestBannerSizeTable_Order(t *testing.T) {
	want := []string{"leaderboard", "medium_rectangle", "standard"}
	if len(BannerSizeTable) != len(want) {
		t.Fatalf("expected %d sizes, got %d", len(want), len(BannerSizeTable))
	}
	for i, name := range want {
		if BannerSizeTable[i].Name != name {
			t.Errorf("BannerSizeTable[%d] = %q, want %q", i, BannerSizeTable[i].Name, name)
		}
	}
}

func TestParseAdFormat(t *testing.T) {
	tests := []struct {
		in         string
		want       AdFormat
		fullscreen bool
		wantErr    bool
	}{
		{"banner", FormatBanner, false, false},
		{"Interstitial", FormatInterstitial, true, false},
		{" rewarded ", FormatRewarded, true, false},
		{"rewarded_interstitial", FormatRewardedInterstitial, true, false},
		{"native", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAdFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseAdFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if got.IsFullscreen() != tt.fullscreen {
				t.Errorf("IsFullscreen() = %v, want %v", got.IsFullscreen(), tt.fullscreen)
			}
		})
	}
}
