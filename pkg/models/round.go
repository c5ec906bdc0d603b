package models

import "time"

// ErrorClass classifies a failed participant invocation.
type ErrorClass string

const (
	// ErrorNone means the response succeeded.
	ErrorNone ErrorClass = ""
	// ErrorTimeout means the invocation exceeded its deadline.
	ErrorTimeout ErrorClass = "timeout"
	// ErrorUnreachable means the backend could not be reached or returned
	// a server-side failure (connection errors, 5xx, rate limits).
	ErrorUnreachable ErrorClass = "unreachable"
	// ErrorMalformedOutput means the backend answered but the output was
	// unusable (empty body, unparseable payload).
	ErrorMalformedOutput ErrorClass = "malformed-output"
	// ErrorRejected means the backend refused the request (auth failure,
	// invalid request, non-zero exit).
	ErrorRejected ErrorClass = "rejected"
	// ErrorVoteParse means a final response carried no extractable vote.
	// Used in deliberation events; never set on a Response.
	ErrorVoteParse ErrorClass = "vote-parse-failure"
)

// Response is the raw result of one participant invocation in one round.
// A Response is never mutated after creation.
type Response struct {
	// ParticipantID identifies which participant produced the response.
	ParticipantID string `json:"participant_id"`
	// Text is the raw text returned on success.
	Text string `json:"text,omitempty"`
	// Latency is how long the invocation took, including retries.
	Latency time.Duration `json:"latency"`
	// OK indicates success. When false, Err carries the classification.
	OK bool `json:"ok"`
	// Err classifies the failure. Empty when OK.
	Err ErrorClass `json:"error,omitempty"`
	// ErrDetail carries backend-specific failure detail for transparency.
	ErrDetail string `json:"error_detail,omitempty"`
	// Transient indicates the failure is worth retrying (connection
	// errors, 5xx, rate limits, per-attempt timeouts).
	Transient bool `json:"-"`
}

// Round is one synchronized cycle of prompting all participants.
// Immutable once populated by the round executor.
type Round struct {
	// Index is the 1-based round ordinal.
	Index int `json:"index"`
	// Prompt is the base prompt sent to all participants this round.
	Prompt string `json:"prompt"`
	// Responses holds one entry per configured participant, success or
	// failure, in the configured participant order.
	Responses []Response `json:"responses"`
}

// Response returns the response for the given participant, if present.
func (r Round) Response(participantID string) (Response, bool) {
	for _, resp := range r.Responses {
		if resp.ParticipantID == participantID {
			return resp, true
		}
	}
	return Response{}, false
}

// Successes counts responses that succeeded.
func (r Round) Successes() int {
	n := 0
	for _, resp := range r.Responses {
		if resp.OK {
			n++
		}
	}
	return n
}

// Failures counts responses that failed.
func (r Round) Failures() int {
	return len(r.Responses) - r.Successes()
}

// Position is a round-scoped summary of one participant's stance, derived
// from its Response for convergence comparison.
type Position struct {
	// ParticipantID identifies whose position this is.
	ParticipantID string `json:"participant_id"`
	// Choice is the extracted choice label, normalized.
	Choice string `json:"choice"`
	// Text is the normalized supporting text used for similarity.
	Text string `json:"text"`
}
