// Package learner reinforces chain transition weights from observed plays.
package learner

import (
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/moodfm/moodchain/internal/domain/chain"
)

// DefaultAlpha is the smoothing constant: the share of the old weight kept
// on each update. Favors historical stability while still nudging toward
// recent behavior.
const DefaultAlpha = 0.7

// Learner updates edge weights in response to played transitions.
type Learner struct {
	alpha float64
}

// New creates a learner with the default smoothing constant.
func New() *Learner {
	return &Learner{alpha: DefaultAlpha}
}

// NewWithAlpha creates a learner with a custom smoothing constant in [0, 1).
func NewWithAlpha(alpha float64) (*Learner, error) {
	if alpha < 0 || alpha >= 1 {
		return nil, errors.Newf("alpha must be in [0, 1), got %.3f", alpha)
	}
	return &Learner{alpha: alpha}, nil
}

// RecordTransitionPlayed reinforces the (from, to) edge: the edge is created
// if missing, its play count incremented, and its weight pulled toward the
// edge's observed share of all plays leaving the same source song.
// Sibling edges are untouched; their weight decays implicitly as the shared
// denominator grows.
func (l *Learner) RecordTransitionPlayed(c *chain.Chain, from, to string) error {
	key := chain.EdgeKey{From: from, To: to}
	edge, ok := c.Transitions[key]
	if !ok {
		// Creates the edge with weight 0; validates both endpoints.
		if err := c.SetTransitionWeight(from, to, 0); err != nil {
			return errors.Wrapf(err, "cannot record transition %s->%s", from, to)
		}
		edge = c.Transitions[key]
	}

	edge.PlayCount++

	var total int
	for k, e := range c.Transitions {
		if k.From == from {
			total += e.PlayCount
		}
	}
	observed := float64(edge.PlayCount) / float64(total)

	weight := l.alpha*edge.Weight + (1-l.alpha)*observed
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	edge.Weight = weight

	c.RecordPlayed(time.Now())

	zlog.Debug().Msgf("learner: reinforced %s->%s: play_count=%d observed=%.3f weight=%.3f",
		from, to, edge.PlayCount, observed, edge.Weight)

	return nil
}
