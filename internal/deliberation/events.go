// Package deliberation coordinates rounds of structured argument between
// model participants and reduces their answers into a single decision.
package deliberation

import (
	"time"

	"github.com/quorumhq/quorum/pkg/models"
)

// EventType represents the type of deliberation event.
type EventType string

const (
	// EventStarted indicates a deliberation has begun.
	EventStarted EventType = "deliberation-started"
	// EventResponseReceived indicates one participant settled in a round.
	EventResponseReceived EventType = "response-received"
	// EventRoundCompleted indicates all participants settled for a round.
	// Carries the convergence score when one was computed.
	EventRoundCompleted EventType = "round-completed"
	// EventCompleted indicates the deliberation finished with a record.
	EventCompleted EventType = "deliberation-completed"
	// EventError indicates a per-participant failure or a fatal error.
	EventError EventType = "error"
)

// Event is emitted synchronously as the controller progresses. Consumers
// (the watch TUI, external streamers) read from the controller's channel.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// DeliberationID identifies the deliberation.
	DeliberationID string
	// Round is the 1-based round index, if applicable.
	Round int
	// ParticipantID is the related participant, if applicable.
	ParticipantID string
	// Err classifies a failure for error and response-received events.
	Err models.ErrorClass
	// Message provides additional context.
	Message string
	// Score is the round's convergence score when ScoreComputed is set.
	Score float64
	// ScoreComputed distinguishes a real zero score from "not computed"
	// (round 1 and single-round mode have no score).
	ScoreComputed bool
	// Record carries the DecisionRecord on deliberation-completed.
	Record *models.DecisionRecord
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
