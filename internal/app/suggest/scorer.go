// Package suggest produces ranked next-song recommendations for a chain.
package suggest

import (
	"github.com/cockroachdb/errors"

	"github.com/moodfm/moodchain/internal/domain/chain"
	"github.com/moodfm/moodchain/internal/domain/song"
)

// Scorer scores a single candidate transition for one transition style.
// Implementations must be safe for concurrent use.
type Scorer interface {
	// Style returns the transition style this scorer implements.
	Style() chain.Style
	// Score returns a raw (pre-normalization) score plus a human-readable
	// reason for the candidate transition.
	Score(from, to song.Features, edge chain.Edge) (float64, string)
}

// registry holds registered scorer factories keyed by style.
var registry = make(map[chain.Style]func(settings map[string]any) (Scorer, error))

// Register registers a scorer factory for a style.
func Register(style chain.Style, factory func(settings map[string]any) (Scorer, error)) {
	registry[style] = factory
}

// newScorer instantiates the scorer registered for the style.
func newScorer(style chain.Style, settings map[string]any) (Scorer, error) {
	factory, ok := registry[style]
	if !ok {
		return nil, errors.Newf("no scorer registered for style %q", style)
	}
	return factory(settings)
}

// RegisteredStyles returns the styles that have a registered scorer.
func RegisteredStyles() []chain.Style {
	styles := make([]chain.Style, 0, len(registry))
	for s := range registry {
		styles = append(styles, s)
	}
	return styles
}
