package suggest

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/moodfm/moodchain/internal/domain/chain"
	"github.com/moodfm/moodchain/internal/domain/song"
)

// RandomScorer draws a fresh factor per candidate so rankings shuffle on
// every call, while heavier edges still rank higher in expectation.
type RandomScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

type randomSettings struct {
	Seed int64 `mapstructure:"seed"`
}

// NewRandomScorer creates a random scorer. A non-zero "seed" setting makes
// the sequence reproducible (used in tests).
func NewRandomScorer(settings map[string]any) (Scorer, error) {
	var s randomSettings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return nil, errors.Wrap(err, "invalid random scorer settings")
	}
	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomScorer{rng: rand.New(rand.NewSource(seed))}, nil
}

// Style returns the style this scorer implements.
func (s *RandomScorer) Style() chain.Style {
	return chain.StyleRandom
}

// Score multiplies the edge weight by a uniform draw from (0, 1].
func (s *RandomScorer) Score(_, _ song.Features, edge chain.Edge) (float64, string) {
	s.mu.Lock()
	r := 1 - s.rng.Float64() // Float64 is [0,1); flip to (0,1]
	s.mu.Unlock()
	return edge.Weight * r, "Shuffled pick"
}

func init() {
	Register(chain.StyleRandom, NewRandomScorer)
}
