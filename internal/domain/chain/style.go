package chain

import "github.com/cockroachdb/errors"

// Style represents the transition style governing suggestion scoring.
type Style string

const (
	StyleSmooth     Style = "smooth"      // Minimize energy/valence jumps
	StyleRandom     Style = "random"      // Weighted random pick
	StyleEnergyFlow Style = "energy_flow" // Favor a monotonic energy direction
	StyleGenreMatch Style = "genre_match" // Favor same-genre transitions
)

// ParseStyle parses a transition style string.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleSmooth, StyleRandom, StyleEnergyFlow, StyleGenreMatch:
		return Style(s), nil
	default:
		return "", errors.Newf("unknown transition style: %q", s)
	}
}

// String returns the string representation of the style.
func (s Style) String() string {
	return string(s)
}
