package suggest

import (
	"math"

	"github.com/moodfm/moodchain/internal/domain/chain"
	"github.com/moodfm/moodchain/internal/domain/song"
)

// SmoothScorer favors transitions with small energy and valence jumps.
type SmoothScorer struct{}

// NewSmoothScorer creates a smooth scorer.
func NewSmoothScorer(_ map[string]any) (Scorer, error) {
	return &SmoothScorer{}, nil
}

// Style returns the style this scorer implements.
func (s *SmoothScorer) Style() chain.Style {
	return chain.StyleSmooth
}

// Score multiplies the edge weight by the energy and valence proximity of
// the two songs. A missing feature contributes a neutral factor of 1.0.
func (s *SmoothScorer) Score(from, to song.Features, edge chain.Edge) (float64, string) {
	score := edge.Weight
	if from.Energy != nil && to.Energy != nil {
		score *= 1 - math.Abs(*from.Energy-*to.Energy)
	}
	if from.Valence != nil && to.Valence != nil {
		score *= 1 - math.Abs(*from.Valence-*to.Valence)
	}
	return score, "Similar tempo and mood"
}

func init() {
	Register(chain.StyleSmooth, NewSmoothScorer)
}
