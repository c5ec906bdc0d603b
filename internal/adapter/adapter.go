// Package adapter provides the uniform invocation contract wrapping one
// model backend, with process- and network-based variants.
//
// Adapters never return a Go error for ordinary backend failures. Every
// failure mode (timeout, connection error, bad status, unusable output) is
// captured as a failed models.Response carrying an error classification, so
// one participant's failure can never abort a round. Adapters honor context
// cancellation: when the caller's deadline elapses the underlying call is
// aborted and a timeout failure is returned.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quorumhq/quorum/pkg/models"
)

// InvokeOptions carries per-invocation parameters.
type InvokeOptions struct {
	// Model is the backend model identifier. Never empty by the time an
	// adapter is invoked; the registry resolves defaults beforehand.
	Model string
	// Stance optionally fixes the participant's argumentative position.
	// Adapters render it into the system/preamble text.
	Stance models.Stance
	// MaxTokens bounds the response length. Zero means the adapter default.
	MaxTokens int
}

// Adapter is the uniform capability wrapping one model backend.
// Implementations must be safe for concurrent use.
type Adapter interface {
	// Invoke sends the prompt to the backend and returns its response.
	// The returned Response is failed (OK=false) rather than an error for
	// ordinary backend failures.
	Invoke(ctx context.Context, prompt string, opts InvokeOptions) models.Response
}

// DefaultMaxTokens is used when InvokeOptions.MaxTokens is zero.
const DefaultMaxTokens = 1024

// stancePreamble returns the instruction text for a fixed stance, or "".
func stancePreamble(s models.Stance) string {
	switch s {
	case models.StanceFor:
		return "You have been assigned the FOR position: argue in favor of the proposal under discussion."
	case models.StanceAgainst:
		return "You have been assigned the AGAINST position: argue against the proposal under discussion."
	case models.StanceNeutral:
		return "You have been assigned a NEUTRAL position: weigh both sides before answering."
	}
	return ""
}

// failure builds a failed Response with the given classification.
func failure(class models.ErrorClass, transient bool, latency time.Duration, format string, args ...interface{}) models.Response {
	return models.Response{
		OK:        false,
		Err:       class,
		ErrDetail: fmt.Sprintf(format, args...),
		Transient: transient,
		Latency:   latency,
	}
}

// success builds a successful Response.
func success(text string, latency time.Duration) models.Response {
	return models.Response{OK: true, Text: text, Latency: latency}
}

// ctxFailure classifies a context error: deadline or cancellation both
// surface as a timeout failure per the cancellation contract. Per-attempt
// timeouts are transient so the retry wrapper may try again; the wrapper
// itself stops once the overall deadline is gone.
func ctxFailure(err error, latency time.Duration) models.Response {
	return failure(models.ErrorTimeout, true, latency, "invocation aborted: %v", err)
}

// classifyStatus maps an HTTP-equivalent status code to an error class and
// whether the failure is transient.
func classifyStatus(status int) (models.ErrorClass, bool) {
	switch {
	case status == 429:
		return models.ErrorUnreachable, true
	case status >= 500:
		return models.ErrorUnreachable, true
	default:
		return models.ErrorRejected, false
	}
}

// isContextErr reports whether err is a context cancellation or deadline.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
