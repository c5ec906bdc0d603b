package deliberation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/quorumhq/quorum/internal/adapter"
	"github.com/quorumhq/quorum/internal/registry"
	"github.com/quorumhq/quorum/internal/transcript"
	"github.com/quorumhq/quorum/pkg/models"
)

// adapterFunc adapts a function to the Adapter interface.
type adapterFunc func(ctx context.Context, prompt string, opts adapter.InvokeOptions) models.Response

func (f adapterFunc) Invoke(ctx context.Context, prompt string, opts adapter.InvokeOptions) models.Response {
	return f(ctx, prompt, opts)
}

// answers returns an adapter that always replies with a structured vote.
func answers(choice string, confidence float64) adapter.Adapter {
	return adapterFunc(func(ctx context.Context, prompt string, opts adapter.InvokeOptions) models.Response {
		return models.Response{
			OK:   true,
			Text: fmt.Sprintf(`{"choice": %q, "confidence": %v, "rationale": "as discussed"}`, choice, confidence),
		}
	})
}

// failsWith returns an adapter that always fails with the classification.
func failsWith(class models.ErrorClass) adapter.Adapter {
	return adapterFunc(func(ctx context.Context, prompt string, opts adapter.InvokeOptions) models.Response {
		return models.Response{OK: false, Err: class, ErrDetail: "scripted failure"}
	})
}

func participants(ids ...string) []models.Participant {
	ps := make([]models.Participant, len(ids))
	for i, id := range ids {
		ps[i] = models.Participant{ID: id, Kind: models.AdapterHTTP, Backend: "test", Model: "m"}
	}
	return ps
}

// captureWriter records every transcript handoff.
type captureWriter struct {
	mu sync.Mutex
	ts []transcript.Transcript
}

func (w *captureWriter) Write(t transcript.Transcript) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ts = append(w.ts, t)
	return nil
}

func (w *captureWriter) last(t *testing.T) transcript.Transcript {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.ts) == 0 {
		t.Fatal("no transcript was handed off")
	}
	return w.ts[len(w.ts)-1]
}

func drain(c *Controller) []Event {
	var events []Event
	for ev := range c.Events() {
		events = append(events, ev)
	}
	return events
}

func TestSingleRoundUnanimousDecision(t *testing.T) {
	adapters := map[string]adapter.Adapter{
		"a": answers("proceed", 0.9),
		"b": answers("proceed", 0.8),
	}
	writer := &captureWriter{}
	c, err := New(Config{
		Question:     "ship the migration?",
		Participants: participants("a", "b"),
		Mode:         ModeSingleRound,
	}, adapters, WithTranscriptWriter(writer))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	record, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if record.Choice != "proceed" {
		t.Errorf("Choice = %q, want proceed", record.Choice)
	}
	if math.Abs(record.Confidence-0.85) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.85", record.Confidence)
	}
	if record.Rounds != 1 {
		t.Errorf("Rounds = %d, want 1", record.Rounds)
	}
	if len(record.Convergence) != 0 {
		t.Errorf("single-round mode must not produce convergence scores, got %v", record.Convergence)
	}
	if record.Incomplete {
		t.Error("record should not be incomplete")
	}

	tr := writer.last(t)
	if tr.Record == nil || tr.Record.ID != record.ID {
		t.Error("transcript should carry the record")
	}
	if len(tr.Rounds) != 1 {
		t.Errorf("transcript rounds = %d, want 1", len(tr.Rounds))
	}
}

func TestSingleRoundEmitsNoScore(t *testing.T) {
	adapters := map[string]adapter.Adapter{"a": answers("yes", 0.9)}
	c, err := New(Config{Question: "q", Participants: participants("a"), Mode: ModeSingleRound}, adapters)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, ev := range drain(c) {
		if ev.Type == EventRoundCompleted && ev.ScoreComputed {
			t.Error("single-round mode must not compute a convergence score")
		}
	}
}

func TestPartialFailureContinues(t *testing.T) {
	// Three participants; one exhausts its retries with a timeout. The
	// round keeps 2 successes plus the recorded failure and proceeds.
	adapters := map[string]adapter.Adapter{
		"a": answers("proceed", 0.9),
		"b": answers("proceed", 0.7),
		"c": failsWith(models.ErrorTimeout),
	}
	writer := &captureWriter{}
	c, err := New(Config{
		Question:     "q",
		Participants: participants("a", "b", "c"),
		Mode:         ModeSingleRound,
	}, adapters, WithTranscriptWriter(writer))
	if err != nil {
		t.Fatal(err)
	}

	record, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if record.Choice != "proceed" {
		t.Errorf("Choice = %q", record.Choice)
	}
	if len(record.Votes) != 2 {
		t.Errorf("Votes = %d, want 2 (failed participant excluded)", len(record.Votes))
	}

	round := writer.last(t).Rounds[0]
	if len(round.Responses) != 3 {
		t.Fatalf("round must account for every participant, got %d", len(round.Responses))
	}
	if round.Successes() != 2 || round.Failures() != 1 {
		t.Errorf("successes/failures = %d/%d, want 2/1", round.Successes(), round.Failures())
	}
	failed, _ := round.Response("c")
	if failed.Err != models.ErrorTimeout {
		t.Errorf("failed response class = %q, want timeout", failed.Err)
	}
}

func TestRoundTotalFailureIsFatal(t *testing.T) {
	adapters := map[string]adapter.Adapter{
		"a": failsWith(models.ErrorUnreachable),
		"b": failsWith(models.ErrorTimeout),
	}
	writer := &captureWriter{}
	c, err := New(Config{Question: "q", Participants: participants("a", "b")}, adapters,
		WithTranscriptWriter(writer))
	if err != nil {
		t.Fatal(err)
	}

	record, err := c.Run(context.Background())
	if !errors.Is(err, ErrRoundTotalFailure) {
		t.Fatalf("Run() error = %v, want ErrRoundTotalFailure", err)
	}
	if record != nil {
		t.Error("no record should be produced on total failure")
	}

	tr := writer.last(t)
	if tr.Record != nil {
		t.Error("transcript record should be nil on fatal failure")
	}
	if tr.Failure == "" {
		t.Error("transcript should carry the failure")
	}
	if len(tr.Rounds) != 1 {
		t.Errorf("transcript rounds = %d, want the failed round retained", len(tr.Rounds))
	}
}

func TestTieYieldsNoConsensus(t *testing.T) {
	adapters := map[string]adapter.Adapter{
		"a": answers("proceed", 0.8),
		"b": answers("halt", 0.8),
	}
	c, err := New(Config{Question: "q", Participants: participants("a", "b"), Mode: ModeSingleRound}, adapters)
	if err != nil {
		t.Fatal(err)
	}

	record, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if record.Outcome != models.OutcomeNoConsensus {
		t.Errorf("Outcome = %q, want no-consensus", record.Outcome)
	}
	if record.Choice != models.NoConsensusChoice {
		t.Errorf("Choice = %q, want %q", record.Choice, models.NoConsensusChoice)
	}
}

func TestConvergenceStopsEarly(t *testing.T) {
	// Identical answers every round: round 2 scores 1.0, over threshold.
	adapters := map[string]adapter.Adapter{
		"a": answers("proceed", 0.9),
		"b": answers("proceed", 0.9),
	}
	c, err := New(Config{
		Question:     "q",
		Participants: participants("a", "b"),
		MaxRounds:    5,
	}, adapters)
	if err != nil {
		t.Fatal(err)
	}

	record, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if record.Rounds != 2 {
		t.Errorf("Rounds = %d, want 2 (converged after the first comparison)", record.Rounds)
	}
	if len(record.Convergence) != 1 || record.Convergence[0].Round != 2 {
		t.Fatalf("Convergence = %v, want one entry for round 2", record.Convergence)
	}
	if record.Convergence[0].Score < DefaultThreshold {
		t.Errorf("score = %v, should have crossed the threshold", record.Convergence[0].Score)
	}
}

func TestMaxRoundsCapsDeliberation(t *testing.T) {
	// Participants flip positions every round so convergence stays low.
	flip := func(id string) adapter.Adapter {
		calls := 0
		var mu sync.Mutex
		return adapterFunc(func(ctx context.Context, prompt string, opts adapter.InvokeOptions) models.Response {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if (n+len(id))%2 == 0 {
				return models.Response{OK: true, Text: `{"choice": "proceed", "confidence": 0.9, "rationale": "momentum and opportunity"}`}
			}
			return models.Response{OK: true, Text: `{"choice": "halt", "confidence": 0.9, "rationale": "risk and uncertainty dominate"}`}
		})
	}
	adapters := map[string]adapter.Adapter{"a": flip("a"), "b": flip("ab")}
	writer := &captureWriter{}
	c, err := New(Config{
		Question:     "q",
		Participants: participants("a", "b"),
		MaxRounds:    3,
		Threshold:    0.99,
	}, adapters, WithTranscriptWriter(writer))
	if err != nil {
		t.Fatal(err)
	}

	record, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if record.Rounds != 3 {
		t.Errorf("Rounds = %d, want the configured cap 3", record.Rounds)
	}

	// Round indices must be exactly 1..k, no gaps.
	for i, round := range writer.last(t).Rounds {
		if round.Index != i+1 {
			t.Errorf("round[%d].Index = %d, want %d", i, round.Index, i+1)
		}
	}
}

func TestDeadlineMidRoundProducesPartialRecord(t *testing.T) {
	// Participant b blocks in round 3 until the caller's deadline passes.
	var mu sync.Mutex
	bCalls := 0
	adapters := map[string]adapter.Adapter{
		"a": answers("proceed", 0.9),
		"b": adapterFunc(func(ctx context.Context, prompt string, opts adapter.InvokeOptions) models.Response {
			mu.Lock()
			bCalls++
			n := bCalls
			mu.Unlock()
			if n < 3 {
				return models.Response{OK: true, Text: `{"choice": "halt", "confidence": 0.9, "rationale": "still too risky"}`}
			}
			<-ctx.Done()
			return models.Response{OK: false, Err: models.ErrorTimeout, ErrDetail: "cancelled"}
		}),
	}
	c, err := New(Config{
		Question:     "q",
		Participants: participants("a", "b"),
		MaxRounds:    5,
		Threshold:    0.99,
	}, adapters)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	record, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v, want a partial record", err)
	}
	if !record.Incomplete {
		t.Error("record should be flagged incomplete")
	}
	if record.Rounds != 3 {
		t.Errorf("Rounds = %d, want 3 (no round 4 or 5)", record.Rounds)
	}
	// Participant a finished round 3 before the deadline; its vote counts.
	if len(record.Votes) != 1 || record.Votes[0].ParticipantID != "a" {
		t.Errorf("Votes = %+v, want only a's round-3 vote", record.Votes)
	}
}

func TestResponseOrderIsStable(t *testing.T) {
	// Completion order is reversed from configuration order.
	slow := func(d time.Duration, choice string) adapter.Adapter {
		return adapterFunc(func(ctx context.Context, prompt string, opts adapter.InvokeOptions) models.Response {
			time.Sleep(d)
			return models.Response{OK: true, Text: fmt.Sprintf(`{"choice": %q, "confidence": 0.9, "rationale": "r"}`, choice)}
		})
	}
	adapters := map[string]adapter.Adapter{
		"first":  slow(60*time.Millisecond, "proceed"),
		"second": slow(30*time.Millisecond, "proceed"),
		"third":  slow(0, "proceed"),
	}
	writer := &captureWriter{}
	c, err := New(Config{
		Question:     "q",
		Participants: participants("first", "second", "third"),
		Mode:         ModeSingleRound,
	}, adapters, WithTranscriptWriter(writer))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	round := writer.last(t).Rounds[0]
	want := []string{"first", "second", "third"}
	for i, resp := range round.Responses {
		if resp.ParticipantID != want[i] {
			t.Errorf("Responses[%d] = %s, want %s", i, resp.ParticipantID, want[i])
		}
	}
}

func TestEventAccounting(t *testing.T) {
	adapters := map[string]adapter.Adapter{
		"a": answers("proceed", 0.9),
		"b": answers("proceed", 0.9),
	}
	c, err := New(Config{Question: "q", Participants: participants("a", "b"), MaxRounds: 5}, adapters)
	if err != nil {
		t.Fatal(err)
	}
	record, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	counts := map[EventType]int{}
	var completed *Event
	for _, ev := range drain(c) {
		counts[ev.Type]++
		if ev.Type == EventCompleted {
			e := ev
			completed = &e
		}
	}

	if counts[EventStarted] != 1 {
		t.Errorf("started events = %d, want 1", counts[EventStarted])
	}
	if counts[EventCompleted] != 1 {
		t.Errorf("completed events = %d, want 1", counts[EventCompleted])
	}
	if counts[EventRoundCompleted] != record.Rounds {
		t.Errorf("round-completed events = %d, want %d", counts[EventRoundCompleted], record.Rounds)
	}
	wantResponses := record.Rounds * 2
	if counts[EventResponseReceived] != wantResponses {
		t.Errorf("response-received events = %d, want %d", counts[EventResponseReceived], wantResponses)
	}
	if completed == nil || completed.Record == nil || completed.Record.ID != record.ID {
		t.Error("deliberation-completed event must carry the record")
	}
}

func TestVoteParseFailureExcludedNotFatal(t *testing.T) {
	adapters := map[string]adapter.Adapter{
		"a": answers("proceed", 0.9),
		"b": adapterFunc(func(ctx context.Context, prompt string, opts adapter.InvokeOptions) models.Response {
			return models.Response{OK: true, Text: "It depends entirely on circumstances beyond my visibility."}
		}),
	}
	c, err := New(Config{Question: "q", Participants: participants("a", "b"), Mode: ModeSingleRound}, adapters)
	if err != nil {
		t.Fatal(err)
	}

	record, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(record.Votes) != 1 || record.Votes[0].ParticipantID != "a" {
		t.Errorf("Votes = %+v, want only the parseable vote", record.Votes)
	}

	sawParseError := false
	for _, ev := range drain(c) {
		if ev.Type == EventError && ev.Err == models.ErrorVoteParse && ev.ParticipantID == "b" {
			sawParseError = true
		}
	}
	if !sawParseError {
		t.Error("expected a vote-parse-failure error event for b")
	}
}

func TestAggregateConfidenceAlwaysInRange(t *testing.T) {
	adapters := map[string]adapter.Adapter{
		"a": answers("proceed", 1.0),
		"b": answers("proceed", 1.0),
	}
	ps := participants("a", "b")
	ps[0].Weight = 2.5
	c, err := New(Config{Question: "q", Participants: ps, Mode: ModeSingleRound}, adapters)
	if err != nil {
		t.Fatal(err)
	}

	record, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if record.Confidence < 0 || record.Confidence > 1 {
		t.Errorf("Confidence = %v, must be in [0,1]", record.Confidence)
	}
}

func TestNewValidatesBeforeAnyRound(t *testing.T) {
	good := participants("a")
	adapters := map[string]adapter.Adapter{"a": answers("yes", 0.9)}

	t.Run("missing question", func(t *testing.T) {
		if _, err := New(Config{Participants: good}, adapters); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("no participants", func(t *testing.T) {
		if _, err := New(Config{Question: "q"}, adapters); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("duplicate ids", func(t *testing.T) {
		if _, err := New(Config{Question: "q", Participants: participants("a", "a")}, adapters); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("missing adapter", func(t *testing.T) {
		if _, err := New(Config{Question: "q", Participants: participants("a", "b")}, adapters); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("unknown mode", func(t *testing.T) {
		if _, err := New(Config{Question: "q", Participants: good, Mode: "triple"}, adapters); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("disallowed model", func(t *testing.T) {
		reg := registry.New(map[models.AdapterKind]registry.Kind{
			models.AdapterHTTP: {Models: []string{"other"}},
		})
		if _, err := New(Config{Question: "q", Participants: good}, adapters, WithRegistry(reg)); err == nil {
			t.Error("expected registry validation failure before any round")
		}
	})
}
