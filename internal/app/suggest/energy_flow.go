package suggest

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/moodfm/moodchain/internal/domain/chain"
	"github.com/moodfm/moodchain/internal/domain/song"
)

// Energy flow directions.
const (
	DirectionAscending  = "ascending"
	DirectionDescending = "descending"
)

// EnergyFlowScorer favors a monotonic energy direction: moving against the
// configured direction is penalized by the size of the energy step.
type EnergyFlowScorer struct {
	direction string
}

type energyFlowSettings struct {
	Direction string `mapstructure:"direction"`
}

// NewEnergyFlowScorer creates an energy flow scorer. The "direction"
// setting is "ascending" (default) or "descending".
func NewEnergyFlowScorer(settings map[string]any) (Scorer, error) {
	var s energyFlowSettings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return nil, errors.Wrap(err, "invalid energy flow scorer settings")
	}
	switch s.Direction {
	case "":
		s.Direction = DirectionAscending
	case DirectionAscending, DirectionDescending:
	default:
		return nil, errors.Newf("unknown energy flow direction: %q", s.Direction)
	}
	return &EnergyFlowScorer{direction: s.Direction}, nil
}

// Style returns the style this scorer implements.
func (s *EnergyFlowScorer) Style() chain.Style {
	return chain.StyleEnergyFlow
}

// Score penalizes energy moves against the configured direction. Unknown
// energy on either side counts as an equal-energy transition.
func (s *EnergyFlowScorer) Score(from, to song.Features, edge chain.Edge) (float64, string) {
	var delta float64 // positive = energy increases
	if from.Energy != nil && to.Energy != nil {
		delta = *to.Energy - *from.Energy
	}

	penalty := -delta // ascending: penalize decreases
	if s.direction == DirectionDescending {
		penalty = delta
	}
	if penalty < 0 {
		penalty = 0
	}

	reason := "Builds energy"
	if delta < 0 {
		reason = "Eases down"
	}
	return edge.Weight * (1 - penalty), reason
}

func init() {
	Register(chain.StyleEnergyFlow, NewEnergyFlowScorer)
}
