// Package retry decorates an adapter with bounded retries, exponential
// backoff with jitter, per-attempt timeouts, and an overall deadline.
//
// Only transient failures are retried: connection failures, server-side
// (5xx-equivalent) errors, rate limits, and per-attempt timeouts. Rejections
// and malformed output fail immediately. On exhaustion the wrapper returns a
// failed Response tagged with the last classification; it never returns a Go
// error, so one slow or broken participant cannot abort a round.
package retry

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/quorumhq/quorum/internal/adapter"
	"github.com/quorumhq/quorum/pkg/models"
)

// Policy holds the retry and timeout settings.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseWait is the backoff base: wait = BaseWait * 2^attempt, jittered.
	BaseWait time.Duration
	// MaxWait caps a single backoff wait.
	MaxWait time.Duration
	// AttemptTimeout bounds each individual attempt.
	AttemptTimeout time.Duration
	// OverallTimeout bounds all attempts plus waits combined. Zero means
	// only the caller's context limits the invocation.
	OverallTimeout time.Duration
}

// DefaultPolicy returns the standard retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseWait:       500 * time.Millisecond,
		MaxWait:        8 * time.Second,
		AttemptTimeout: 60 * time.Second,
		OverallTimeout: 3 * time.Minute,
	}
}

// normalized fills zero fields with defaults.
func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseWait <= 0 {
		p.BaseWait = d.BaseWait
	}
	if p.MaxWait <= 0 {
		p.MaxWait = d.MaxWait
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = d.AttemptTimeout
	}
	return p
}

// Wrapper decorates an Adapter with the retry policy.
type Wrapper struct {
	inner  adapter.Adapter
	policy Policy
	name   string

	mu  sync.Mutex
	rng *rand.Rand

	// sleep is swappable for tests. Returns false if ctx expired first.
	sleep func(ctx context.Context, d time.Duration) bool
}

// Wrap decorates inner with the given policy. The name is used in logs.
func Wrap(inner adapter.Adapter, policy Policy, name string) *Wrapper {
	return &Wrapper{
		inner:  inner,
		policy: policy.normalized(),
		name:   name,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Invoke attempts the inner adapter under the policy.
func (w *Wrapper) Invoke(ctx context.Context, prompt string, opts adapter.InvokeOptions) models.Response {
	if w.policy.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.policy.OverallTimeout)
		defer cancel()
	}

	start := time.Now()
	var last models.Response

	for attempt := 0; attempt < w.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, w.policy.AttemptTimeout)
		resp := w.inner.Invoke(attemptCtx, prompt, opts)
		cancel()

		if resp.OK {
			resp.Latency = time.Since(start)
			return resp
		}
		last = resp

		if !resp.Transient {
			log.Printf("[retry] %s: %s failure, not retrying: %s", w.name, resp.Err, resp.ErrDetail)
			break
		}
		if attempt+1 >= w.policy.MaxAttempts {
			break
		}

		wait := w.backoff(attempt)
		log.Printf("[retry] %s: attempt %d failed (%s), retrying in %v", w.name, attempt+1, resp.Err, wait)
		if !w.sleep(ctx, wait) {
			break
		}
	}

	if last.Err == models.ErrorNone {
		// Never got an attempt in: the deadline was already gone.
		last = models.Response{
			OK:        false,
			Err:       models.ErrorTimeout,
			ErrDetail: "deadline elapsed before any attempt completed",
		}
	}
	last.Latency = time.Since(start)
	return last
}

// backoff computes BaseWait * 2^attempt with +/-25% jitter, capped at MaxWait.
func (w *Wrapper) backoff(attempt int) time.Duration {
	wait := w.policy.BaseWait << uint(attempt)
	if wait > w.policy.MaxWait {
		wait = w.policy.MaxWait
	}

	w.mu.Lock()
	jitter := time.Duration(w.rng.Int63n(int64(wait)/2+1)) - wait/4
	w.mu.Unlock()

	wait += jitter
	if wait < 0 {
		wait = 0
	}
	if wait > w.policy.MaxWait {
		wait = w.policy.MaxWait
	}
	return wait
}

// Verify Wrapper implements Adapter at compile time.
var _ adapter.Adapter = (*Wrapper)(nil)
