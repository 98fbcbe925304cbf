package suggest

import (
	"github.com/moodfm/moodchain/internal/domain/chain"
	"github.com/moodfm/moodchain/internal/domain/song"
)

// Cross-genre transitions keep a reduced share of their edge weight so a
// strongly reinforced edge can still outrank a weak same-genre one.
const crossGenreFactor = 0.4

// GenreMatchScorer favors transitions within the same genre.
type GenreMatchScorer struct{}

// NewGenreMatchScorer creates a genre match scorer.
func NewGenreMatchScorer(_ map[string]any) (Scorer, error) {
	return &GenreMatchScorer{}, nil
}

// Style returns the style this scorer implements.
func (s *GenreMatchScorer) Style() chain.Style {
	return chain.StyleGenreMatch
}

// Score keeps the full edge weight for same-genre transitions and applies
// the cross-genre factor otherwise. Songs with no genre label are treated
// as cross-genre.
func (s *GenreMatchScorer) Score(from, to song.Features, edge chain.Edge) (float64, string) {
	if from.Genre != "" && from.Genre == to.Genre {
		return edge.Weight, "Same genre"
	}
	return edge.Weight * crossGenreFactor, "Different genre, high affinity"
}

func init() {
	Register(chain.StyleGenreMatch, NewGenreMatchScorer)
}
