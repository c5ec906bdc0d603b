package models

import "time"

// Vote is a participant's structured final answer, parsed once from its
// final-round Response.
type Vote struct {
	// ParticipantID identifies the voter.
	ParticipantID string `json:"participant_id"`
	// Choice is the normalized choice label.
	Choice string `json:"choice"`
	// Confidence is the participant's confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Rationale is the participant's supporting argument.
	Rationale string `json:"rationale"`
	// Fallback indicates the vote was inferred heuristically rather than
	// parsed from a structured answer.
	Fallback bool `json:"fallback,omitempty"`
}

// Outcome is the terminal disposition of a deliberation.
type Outcome string

const (
	// OutcomeDecided means a winning choice was selected.
	OutcomeDecided Outcome = "decided"
	// OutcomeNoConsensus means the top choices tied within epsilon, or no
	// valid votes were cast; no winner is declared.
	OutcomeNoConsensus Outcome = "no-consensus"
)

// NoConsensusChoice is the choice label recorded when no winner is declared.
const NoConsensusChoice = "no-consensus"

// RoundScore records the convergence score computed after one round.
type RoundScore struct {
	// Round is the 1-based round index the score was computed for.
	Round int `json:"round"`
	// Score is the convergence score in [0,1].
	Score float64 `json:"score"`
}

// DecisionRecord is the terminal artifact of a deliberation. Created exactly
// once at completion and never mutated.
type DecisionRecord struct {
	// ID is the deliberation identifier.
	ID string `json:"id"`
	// Question is the original question posed to the participants.
	Question string `json:"question"`
	// Choice is the winning choice, or NoConsensusChoice.
	Choice string `json:"choice"`
	// Outcome is the terminal disposition.
	Outcome Outcome `json:"outcome"`
	// Confidence is the aggregate confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Votes is the per-participant breakdown. Only valid votes appear.
	Votes []Vote `json:"votes"`
	// Rounds is how many rounds were executed.
	Rounds int `json:"rounds"`
	// Convergence is the per-round convergence trace. Rounds without a
	// computed score (round 1, single-round mode) do not appear.
	Convergence []RoundScore `json:"convergence,omitempty"`
	// Incomplete is set when the caller's deadline elapsed mid-deliberation
	// and the record was built from the rounds that had finished.
	Incomplete bool `json:"incomplete,omitempty"`
	// StartedAt is when the deliberation began.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the record was created.
	CompletedAt time.Time `json:"completed_at"`
}
