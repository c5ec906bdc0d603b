package deliberation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/quorumhq/quorum/internal/adapter"
	"github.com/quorumhq/quorum/internal/ballot"
	"github.com/quorumhq/quorum/internal/convergence"
	"github.com/quorumhq/quorum/internal/registry"
	"github.com/quorumhq/quorum/internal/transcript"
	"github.com/quorumhq/quorum/pkg/models"
)

// Mode selects how many rounds a deliberation may run.
type Mode string

const (
	// ModeSingleRound runs exactly one round with no convergence check.
	ModeSingleRound Mode = "single-round"
	// ModeMultiRound runs rounds until convergence or the round cap.
	ModeMultiRound Mode = "multi-round"
)

// Defaults for the termination rule.
const (
	DefaultMaxRounds = 5
	DefaultThreshold = 0.85
)

// ErrRoundTotalFailure is returned when every participant failed in a round
// and no prior round produced a usable response.
var ErrRoundTotalFailure = errors.New("every participant failed")

// Config describes one deliberation.
type Config struct {
	// Question is posed to every participant.
	Question string
	// Participants is the ordered participant list.
	Participants []models.Participant
	// Mode defaults to multi-round.
	Mode Mode
	// MaxRounds caps multi-round deliberations. Zero means the default.
	MaxRounds int
	// Threshold is the convergence score that stops further rounds.
	// Zero means the default.
	Threshold float64
	// MaxTokens bounds each participant response. Zero means the adapter
	// default.
	MaxTokens int
	// Epsilon is the aggregation tie-break margin. Zero means the default.
	Epsilon float64
}

// Controller is the top-level state machine for one deliberation. A
// Controller owns its rounds and the eventual DecisionRecord exclusively;
// nothing is shared between in-flight deliberations except the read-only
// registry and configuration.
type Controller struct {
	id       string
	cfg      Config
	reg      *registry.Registry
	detector *convergence.Detector
	agg      *ballot.Aggregator
	writer   transcript.Writer
	exec     *roundExecutor
	events   chan Event

	maxRounds int
	threshold float64
}

// Option configures a Controller.
type Option func(*Controller)

// WithRegistry sets the model registry consulted during validation.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Controller) { c.reg = r }
}

// WithDetector overrides the convergence detector.
func WithDetector(d *convergence.Detector) Option {
	return func(c *Controller) { c.detector = d }
}

// WithTranscriptWriter sets the persistence collaborator that receives the
// round history and record on completion.
func WithTranscriptWriter(w transcript.Writer) Option {
	return func(c *Controller) { c.writer = w }
}

// New creates a Controller. All configuration problems surface here, before
// any round executes: invalid descriptors, duplicate or missing adapters,
// and model identifiers the registry rejects.
func New(cfg Config, adapters map[string]adapter.Adapter, opts ...Option) (*Controller, error) {
	if cfg.Question == "" {
		return nil, fmt.Errorf("deliberation: missing question")
	}
	if len(cfg.Participants) == 0 {
		return nil, fmt.Errorf("deliberation: no participants configured")
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeMultiRound
	case ModeSingleRound, ModeMultiRound:
	default:
		return nil, fmt.Errorf("deliberation: unknown mode %q", cfg.Mode)
	}

	c := &Controller{
		id:       uuid.New().String()[:8],
		cfg:      cfg,
		reg:      registry.Default(),
		detector: convergence.NewDetector(),
		agg:      ballot.NewAggregator(cfg.Epsilon),
		writer:   transcript.Discard{},
		events:   make(chan Event, 256),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.maxRounds = cfg.MaxRounds
	if c.maxRounds <= 0 {
		c.maxRounds = DefaultMaxRounds
	}
	if cfg.Mode == ModeSingleRound {
		c.maxRounds = 1
	}
	c.threshold = cfg.Threshold
	if c.threshold <= 0 {
		c.threshold = DefaultThreshold
	}

	seen := make(map[string]bool, len(cfg.Participants))
	resolved := make(map[string]string, len(cfg.Participants))
	for _, p := range cfg.Participants {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("deliberation: %w", err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("deliberation: duplicate participant id %q", p.ID)
		}
		seen[p.ID] = true
		if _, ok := adapters[p.ID]; !ok {
			return nil, fmt.Errorf("deliberation: no adapter for participant %q", p.ID)
		}
		model, err := c.reg.Resolve(p)
		if err != nil {
			return nil, fmt.Errorf("deliberation: %w", err)
		}
		resolved[p.ID] = model
	}

	c.exec = &roundExecutor{
		participants: cfg.Participants,
		adapters:     adapters,
		resolved:     resolved,
		maxTokens:    cfg.MaxTokens,
		emit:         c.emitResponse,
	}
	return c, nil
}

// ID returns the deliberation identifier.
func (c *Controller) ID() string { return c.id }

// Events returns the channel carrying the deliberation's event stream.
// The channel is closed when Run returns.
func (c *Controller) Events() <-chan Event { return c.events }

// Run executes the deliberation to a terminal outcome. It returns a
// DecisionRecord for every outcome except a fatal round-total-failure or
// unresolvable configuration, which return an error instead. The caller's
// context carries the overall deadline; if it elapses mid-round the record
// is produced from the rounds that finished, flagged incomplete.
func (c *Controller) Run(ctx context.Context) (*models.DecisionRecord, error) {
	defer close(c.events)

	startedAt := time.Now()
	c.emit(Event{Type: EventStarted, Message: c.cfg.Question})
	log.Printf("[deliberation] %s: started with %d participants, mode %s", c.id, len(c.cfg.Participants), c.cfg.Mode)

	var (
		rounds     []models.Round
		prev       []models.Position
		trace      []models.RoundScore
		incomplete bool
	)

	for idx := 1; idx <= c.maxRounds; idx++ {
		round := c.exec.run(ctx, idx, c.cfg.Question, prev)
		rounds = append(rounds, round)

		if ctx.Err() != nil {
			// Deadline elapsed mid-round. The round was finalized with
			// whatever had completed; stop here and keep the progress.
			incomplete = true
			c.emit(Event{Type: EventRoundCompleted, Round: idx})
			log.Printf("[deliberation] %s: deadline elapsed during round %d, finalizing early", c.id, idx)
			break
		}

		if round.Successes() == 0 {
			err := fmt.Errorf("round %d: %w", idx, ErrRoundTotalFailure)
			c.emit(Event{Type: EventError, Round: idx, Message: err.Error()})
			c.handoff(rounds, nil, err)
			return nil, err
		}

		positions := convergence.ExtractPositions(round)

		scoreComputed := false
		var score float64
		if c.cfg.Mode == ModeMultiRound && idx >= 2 {
			score = c.detector.Score(prev, positions)
			scoreComputed = true
			trace = append(trace, models.RoundScore{Round: idx, Score: score})
			log.Printf("[deliberation] %s: round %d convergence %.3f (threshold %.2f)", c.id, idx, score, c.threshold)
		}
		c.emit(Event{Type: EventRoundCompleted, Round: idx, Score: score, ScoreComputed: scoreComputed})

		prev = positions
		if scoreComputed && score >= c.threshold {
			break
		}
	}

	final, ok := lastUsableRound(rounds)
	if !ok {
		err := fmt.Errorf("deliberation %s: %w before any response completed", c.id, ErrRoundTotalFailure)
		c.emit(Event{Type: EventError, Message: err.Error()})
		c.handoff(rounds, nil, err)
		return nil, err
	}

	record := c.decide(final, rounds, trace, incomplete, startedAt)
	c.emit(Event{Type: EventCompleted, Record: record})
	c.handoff(rounds, record, nil)
	return record, nil
}

// decide parses the final round's votes and aggregates the decision.
func (c *Controller) decide(final models.Round, rounds []models.Round, trace []models.RoundScore, incomplete bool, startedAt time.Time) *models.DecisionRecord {
	var votes []models.Vote
	for _, resp := range final.Responses {
		if !resp.OK {
			continue
		}
		v, ok := ballot.Parse(resp.ParticipantID, resp.Text)
		if !ok {
			c.emit(Event{
				Type:          EventError,
				Round:         final.Index,
				ParticipantID: resp.ParticipantID,
				Err:           models.ErrorVoteParse,
				Message:       "final response had no extractable vote",
			})
			log.Printf("[deliberation] %s: vote parse failure for %s, excluding from aggregation", c.id, resp.ParticipantID)
			continue
		}
		votes = append(votes, v)
	}

	weights := make(map[string]float64, len(c.cfg.Participants))
	for _, p := range c.cfg.Participants {
		weights[p.ID] = p.EffectiveWeight()
	}

	res := c.agg.Aggregate(votes, weights)
	record := &models.DecisionRecord{
		ID:          c.id,
		Question:    c.cfg.Question,
		Choice:      res.Choice,
		Outcome:     res.Outcome,
		Confidence:  res.Confidence,
		Votes:       votes,
		Rounds:      len(rounds),
		Convergence: trace,
		Incomplete:  incomplete,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}
	log.Printf("[deliberation] %s: %s %q (confidence %.2f, %d rounds, incomplete=%v)",
		c.id, record.Outcome, record.Choice, record.Confidence, record.Rounds, record.Incomplete)
	return record
}

// lastUsableRound returns the most recent round with at least one success.
func lastUsableRound(rounds []models.Round) (models.Round, bool) {
	for i := len(rounds) - 1; i >= 0; i-- {
		if rounds[i].Successes() > 0 {
			return rounds[i], true
		}
	}
	return models.Round{}, false
}

// handoff delivers the full round history and record to the persistence
// collaborator. Persistence failures are logged, never propagated.
func (c *Controller) handoff(rounds []models.Round, record *models.DecisionRecord, fatal error) {
	t := transcript.Transcript{
		DeliberationID: c.id,
		Question:       c.cfg.Question,
		Participants:   c.cfg.Participants,
		Rounds:         rounds,
		Record:         record,
	}
	if fatal != nil {
		t.Failure = fatal.Error()
	}
	if err := c.writer.Write(t); err != nil {
		log.Printf("[deliberation] %s: transcript handoff failed: %v", c.id, err)
	}
}

// emitResponse publishes the per-participant events as a round settles.
func (c *Controller) emitResponse(participantID string, index int, resp models.Response) {
	c.emit(Event{
		Type:          EventResponseReceived,
		Round:         index,
		ParticipantID: participantID,
		Err:           resp.Err,
	})
	if !resp.OK {
		c.emit(Event{
			Type:          EventError,
			Round:         index,
			ParticipantID: participantID,
			Err:           resp.Err,
			Message:       resp.ErrDetail,
		})
	}
}

// emit publishes an event without ever blocking round progress. The channel
// is generously buffered; if a consumer falls this far behind the event is
// dropped and logged.
func (c *Controller) emit(ev Event) {
	ev.DeliberationID = c.id
	ev.Timestamp = time.Now()
	select {
	case c.events <- ev:
	default:
		log.Printf("[deliberation] %s: event buffer full, dropping %s", c.id, ev.Type)
	}
}
