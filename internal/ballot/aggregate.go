package ballot

import (
	"sort"

	"github.com/quorumhq/quorum/pkg/models"
)

// DefaultEpsilon is the tie-break margin on normalized weighted confidence.
// Two leading choices closer than this produce a no-consensus outcome
// instead of an arbitrary winner.
const DefaultEpsilon = 0.05

// Tally is the weighted total for one choice.
type Tally struct {
	// Choice is the normalized choice label.
	Choice string `json:"choice"`
	// Weighted is the summed confidence x weight for the choice.
	Weighted float64 `json:"weighted"`
	// Votes is how many valid votes backed the choice.
	Votes int `json:"votes"`
}

// Result is the outcome of aggregating a set of votes.
type Result struct {
	// Choice is the winning choice, or models.NoConsensusChoice.
	Choice string
	// Outcome is decided or no-consensus.
	Outcome models.Outcome
	// Confidence is the winner's weighted sum normalized by the total
	// possible weight of the voting participants, in [0,1].
	Confidence float64
	// Tallies lists all choices, highest weighted first.
	Tallies []Tally
}

// Aggregator combines votes using per-participant weights.
type Aggregator struct {
	epsilon float64
}

// NewAggregator creates an Aggregator. A non-positive epsilon uses the
// default.
func NewAggregator(epsilon float64) *Aggregator {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Aggregator{epsilon: epsilon}
}

// Aggregate combines the valid votes. Each vote contributes
// confidence x weight toward its choice; weights missing from the map
// default to 1.0. With zero votes the result is no-consensus at zero
// confidence rather than an error, so a caller always gets a usable record.
func (a *Aggregator) Aggregate(votes []models.Vote, weights map[string]float64) Result {
	if len(votes) == 0 {
		return Result{Choice: models.NoConsensusChoice, Outcome: models.OutcomeNoConsensus}
	}

	totals := make(map[string]*Tally)
	totalWeight := 0.0
	for _, v := range votes {
		w, ok := weights[v.ParticipantID]
		if !ok || w == 0 {
			w = 1.0
		}
		totalWeight += w

		t, ok := totals[v.Choice]
		if !ok {
			t = &Tally{Choice: v.Choice}
			totals[v.Choice] = t
		}
		t.Weighted += v.Confidence * w
		t.Votes++
	}

	tallies := make([]Tally, 0, len(totals))
	for _, t := range totals {
		tallies = append(tallies, *t)
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].Weighted != tallies[j].Weighted {
			return tallies[i].Weighted > tallies[j].Weighted
		}
		return tallies[i].Choice < tallies[j].Choice
	})

	top := tallies[0]
	confidence := 0.0
	if totalWeight > 0 {
		confidence = top.Weighted / totalWeight
	}

	if len(tallies) > 1 {
		second := tallies[1]
		if (top.Weighted-second.Weighted)/totalWeight <= a.epsilon {
			return Result{
				Choice:     models.NoConsensusChoice,
				Outcome:    models.OutcomeNoConsensus,
				Confidence: confidence,
				Tallies:    tallies,
			}
		}
	}

	return Result{
		Choice:     top.Choice,
		Outcome:    models.OutcomeDecided,
		Confidence: confidence,
		Tallies:    tallies,
	}
}
