// Package compress maps requested compression intensity onto Ghostscript
// parameter sets and drives the retry-on-insufficient-reduction loop.
package compress

import (
	"errors"
	"fmt"
	"strings"
)

// Profile is the concrete parameter set driving one Ghostscript pass.
type Profile struct {
	Name         string
	PDFSettings  string // ghostscript -dPDFSETTINGS preset
	ImageDPI     int
	ImageQuality int
	EmbedFonts   bool
}

var (
	profileLight   = Profile{Name: "light", PDFSettings: "/prepress", ImageDPI: 300, ImageQuality: 40, EmbedFonts: true}
	profileMedium  = Profile{Name: "medium", PDFSettings: "/printer", ImageDPI: 150, ImageQuality: 20, EmbedFonts: false}
	profileHigh    = Profile{Name: "high", PDFSettings: "/ebook", ImageDPI: 36, ImageQuality: 10, EmbedFonts: false}
	profileExtreme = Profile{Name: "extreme", PDFSettings: "/screen", ImageDPI: 24, ImageQuality: 5, EmbedFonts: false}

	// escalation tiers past extreme, used only when a pass fails to shrink
	profileExtreme2 = Profile{Name: "extreme2", PDFSettings: "/screen", ImageDPI: 18, ImageQuality: 4, EmbedFonts: false}
	profileExtreme3 = Profile{Name: "extreme3", PDFSettings: "/screen", ImageDPI: 12, ImageQuality: 3, EmbedFonts: false}
)

// ErrUnknownLevel reports an unrecognized named compression level.
var ErrUnknownLevel = errors.New("unknown compression level")

// LevelToPercent maps a named level onto the percentage scale used by
// ResolveProfile.
func LevelToPercent(level string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "extreme":
		return 90, nil
	case "high":
		return 70, nil
	case "recommended":
		return 50, nil
	case "low":
		return 30, nil
	case "minimal":
		return 10, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
}

// ResolveProfile buckets a percentage (1..100) into exactly one profile.
// Buckets are contiguous and evaluated high to low.
func ResolveProfile(percent int) Profile {
	switch {
	case percent >= 80:
		return profileExtreme
	case percent >= 60:
		return profileHigh
	case percent >= 40:
		return profileMedium
	default:
		return profileLight
	}
}

// Escalate returns the next more aggressive profile, or the same profile
// when no stricter tier exists.
func Escalate(p Profile) Profile {
	switch p.Name {
	case "light":
		return profileMedium
	case "medium":
		return profileHigh
	case "high":
		return profileExtreme
	case "extreme":
		return profileExtreme2
	case "extreme2":
		return profileExtreme3
	default:
		return p
	}
}
