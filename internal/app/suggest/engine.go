package suggest

import (
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/moodfm/moodchain/internal/domain/chain"
	"github.com/moodfm/moodchain/internal/domain/song"
)

// DefaultCount is the number of suggestions returned when the caller does
// not ask for a specific count.
const DefaultCount = 3

// Base weight assigned to fallback candidates when the current song has no
// outgoing edges at all.
const fallbackWeight = 0.5

// Suggestion is one ranked next-song candidate.
type Suggestion struct {
	SongID string
	Score  float64 // Normalized to 0.0-1.0 within the candidate set
	Reason string
}

// FeatureProvider supplies audio features for scoring. The second return
// value is false when nothing is known about the song.
type FeatureProvider interface {
	Features(songID string) (song.Features, bool)
}

// Engine produces ranked next-song candidates for a chain. Suggest has no
// side effects; stale results can be discarded freely.
type Engine struct {
	features FeatureProvider
	scorers  map[chain.Style]Scorer
}

// NewEngine creates an engine with one scorer per registered style.
// styleSettings maps style names to scorer settings (may be nil).
func NewEngine(features FeatureProvider, styleSettings map[string]map[string]any) (*Engine, error) {
	scorers := make(map[chain.Style]Scorer, len(registry))
	for style := range registry {
		s, err := newScorer(style, styleSettings[style.String()])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create %s scorer", style)
		}
		scorers[style] = s
	}
	return &Engine{features: features, scorers: scorers}, nil
}

// Suggest returns up to count candidates for the song to play after
// currentSongID, ranked by the chain's transition style.
//
// Targets in recentlyPlayed are excluded unless the exclusion would empty
// the candidate set. A song with no outgoing edges at all falls back to the
// full chain membership with a uniform base weight.
func (e *Engine) Suggest(c *chain.Chain, currentSongID string, recentlyPlayed []string, count int) ([]Suggestion, error) {
	if !c.Contains(currentSongID) {
		return nil, errors.Wrapf(chain.ErrUnknownSong, "song %s", currentSongID)
	}
	scorer, ok := e.scorers[c.Style]
	if !ok {
		return nil, errors.Newf("no scorer registered for style %q", c.Style)
	}
	if count <= 0 {
		count = DefaultCount
	}

	candidates := e.candidateEdges(c, currentSongID, recentlyPlayed)
	if len(candidates) == 0 {
		return []Suggestion{}, nil
	}

	fromFeatures, _ := e.features.Features(currentSongID)

	suggestions := make([]Suggestion, 0, len(candidates))
	playCounts := make(map[string]int, len(candidates))
	for _, edge := range candidates {
		toFeatures, _ := e.features.Features(edge.To)
		score, reason := scorer.Score(fromFeatures, toFeatures, edge)
		suggestions = append(suggestions, Suggestion{SongID: edge.To, Score: score, Reason: reason})
		playCounts[edge.To] = edge.PlayCount
	}

	normalize(suggestions)

	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if playCounts[a.SongID] != playCounts[b.SongID] {
			return playCounts[a.SongID] > playCounts[b.SongID]
		}
		return a.SongID < b.SongID
	})

	if len(suggestions) > count {
		suggestions = suggestions[:count]
	}

	zlog.Debug().Msgf("suggest: style=%s current=%s candidates=%d returned=%d",
		c.Style, currentSongID, len(candidates), len(suggestions))

	return suggestions, nil
}

// candidateEdges builds the candidate edge set, applying recency exclusion
// with the two documented fallbacks.
func (e *Engine) candidateEdges(c *chain.Chain, currentSongID string, recentlyPlayed []string) []chain.Edge {
	outgoing := c.OutgoingEdges(currentSongID)

	if len(outgoing) == 0 {
		// No outgoing edges at all: every other chain member becomes a
		// candidate with a uniform base weight.
		fallback := make([]chain.Edge, 0, c.SongCount())
		for _, id := range c.Songs {
			if id == currentSongID {
				continue
			}
			fallback = append(fallback, chain.Edge{From: currentSongID, To: id, Weight: fallbackWeight})
		}
		return fallback
	}

	recent := make(map[string]bool, len(recentlyPlayed))
	for _, id := range recentlyPlayed {
		recent[id] = true
	}

	filtered := make([]chain.Edge, 0, len(outgoing))
	for _, edge := range outgoing {
		if recent[edge.To] {
			continue
		}
		filtered = append(filtered, edge)
	}
	if len(filtered) == 0 {
		// Recency exclusion would leave nothing to play; drop it so
		// playback can always move forward.
		return outgoing
	}
	return filtered
}

// normalize scales scores so the best candidate scores 1.0.
func normalize(suggestions []Suggestion) {
	var max float64
	for _, s := range suggestions {
		if s.Score > max {
			max = s.Score
		}
	}
	if max <= 0 {
		return
	}
	for i := range suggestions {
		suggestions[i].Score /= max
	}
}
