package deliberation

import (
	"context"
	"log"
	"sync"

	"github.com/quorumhq/quorum/internal/adapter"
	"github.com/quorumhq/quorum/pkg/models"
)

// roundExecutor fans one round out to every participant concurrently and
// waits for all of them to settle.
type roundExecutor struct {
	participants []models.Participant
	adapters     map[string]adapter.Adapter
	// resolved maps participant ID to its registry-resolved model.
	resolved  map[string]string
	maxTokens int
	// emit publishes a response-received event as each participant
	// settles. May be nil.
	emit func(participantID string, index int, resp models.Response)
}

// run executes round index. The returned Round holds one Response per
// configured participant in configured order, regardless of completion
// order. Cancellation mid-round is cooperative: in-flight invocations see
// the context and settle as timeout failures, so the round still accounts
// for every participant.
func (e *roundExecutor) run(ctx context.Context, index int, question string, prior []models.Position) models.Round {
	prompt := buildPrompt(index, question, prior)
	responses := make([]models.Response, len(e.participants))

	var wg sync.WaitGroup
	for i, p := range e.participants {
		wg.Add(1)
		go func(i int, p models.Participant) {
			defer wg.Done()

			opts := adapter.InvokeOptions{
				Model:     e.resolved[p.ID],
				Stance:    p.Stance,
				MaxTokens: e.maxTokens,
			}
			resp := e.adapters[p.ID].Invoke(ctx, prompt, opts)
			resp.ParticipantID = p.ID
			responses[i] = resp

			if resp.OK {
				log.Printf("[round] %s settled in %v (round %d)", p.ID, resp.Latency, index)
			} else {
				log.Printf("[round] %s failed with %s (round %d): %s", p.ID, resp.Err, index, resp.ErrDetail)
			}
			if e.emit != nil {
				e.emit(p.ID, index, resp)
			}
		}(i, p)
	}
	wg.Wait()

	return models.Round{Index: index, Prompt: prompt, Responses: responses}
}
