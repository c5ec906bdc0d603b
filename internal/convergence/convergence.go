// Package convergence scores how far participants' positions have
// stabilized across deliberation rounds.
//
// The score for a round blends two signals: self-consistency (how similar
// each participant's position is to its own position in the prior round)
// and cross-agreement (how similar the participants' current positions are
// to each other). Both are computed from derived Positions only, so scoring
// a finalized round is a pure function: the same inputs always yield the
// same score.
package convergence

import (
	"strings"
	"unicode"

	"github.com/quorumhq/quorum/internal/ballot"
	"github.com/quorumhq/quorum/pkg/models"
)

// Neutral is used when a signal is undefined (fewer than two positions for
// cross-agreement, no overlapping participants for self-consistency).
const Neutral = 0.5

// ExtractPositions derives per-participant Positions from a round's
// successful responses. Failed participants contribute no position.
func ExtractPositions(round models.Round) []models.Position {
	positions := make([]models.Position, 0, len(round.Responses))
	for _, resp := range round.Responses {
		if !resp.OK {
			continue
		}
		pos := models.Position{
			ParticipantID: resp.ParticipantID,
			Text:          strings.TrimSpace(resp.Text),
		}
		if v, ok := ballot.Parse(resp.ParticipantID, resp.Text); ok {
			pos.Choice = v.Choice
		}
		positions = append(positions, pos)
	}
	return positions
}

// Detector computes round convergence scores.
type Detector struct {
	selfWeight  float64
	crossWeight float64
}

// NewDetector returns a Detector with the default equal blend of
// self-consistency and cross-agreement.
func NewDetector() *Detector {
	return &Detector{selfWeight: 0.5, crossWeight: 0.5}
}

// NewWeightedDetector returns a Detector with a custom blend. The weights
// are normalized; non-positive pairs fall back to the default.
func NewWeightedDetector(self, cross float64) *Detector {
	total := self + cross
	if self < 0 || cross < 0 || total <= 0 {
		return NewDetector()
	}
	return &Detector{selfWeight: self / total, crossWeight: cross / total}
}

// Score computes the convergence score for a round given the prior round's
// positions. The result is in [0,1].
func (d *Detector) Score(prev, curr []models.Position) float64 {
	return d.selfWeight*selfConsistency(prev, curr) + d.crossWeight*crossAgreement(curr)
}

// selfConsistency is the mean similarity of each participant's current
// position to its own prior position.
func selfConsistency(prev, curr []models.Position) float64 {
	prior := make(map[string]models.Position, len(prev))
	for _, p := range prev {
		prior[p.ParticipantID] = p
	}

	sum := 0.0
	n := 0
	for _, c := range curr {
		p, ok := prior[c.ParticipantID]
		if !ok {
			continue
		}
		sum += Similarity(p, c)
		n++
	}
	if n == 0 {
		return Neutral
	}
	return sum / float64(n)
}

// crossAgreement is the mean pairwise similarity among current positions.
// Undefined with fewer than two positions; treated as neutral.
func crossAgreement(curr []models.Position) float64 {
	if len(curr) < 2 {
		return Neutral
	}
	sum := 0.0
	pairs := 0
	for i := 0; i < len(curr); i++ {
		for j := i + 1; j < len(curr); j++ {
			sum += Similarity(curr[i], curr[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// Similarity measures how close two positions are, in [0,1]. Half the score
// comes from choice agreement, half from token overlap (Jaccard) of the
// supporting text. Positions without an extracted choice compare by text
// alone.
func Similarity(a, b models.Position) float64 {
	text := jaccard(tokens(a.Text), tokens(b.Text))
	if a.Choice == "" || b.Choice == "" {
		return text
	}
	choice := 0.0
	if a.Choice == b.Choice {
		choice = 1.0
	}
	return 0.5*choice + 0.5*text
}

// tokens splits text into a set of lowercased alphanumeric tokens.
func tokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) > 1 {
			set[f] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
