package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/quorumhq/quorum/internal/adapter"
	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/exec"
	"github.com/quorumhq/quorum/internal/retry"
	"github.com/quorumhq/quorum/pkg/models"
)

// parseParticipantSpec parses one --participant value. The format is a
// comma-separated list of key=value pairs:
//
//	id=claude,kind=anthropic,model=claude-sonnet-4-20250514,stance=for,weight=2
//	id=local,kind=process,backend="ollama run llama3"
//	id=gpt,kind=http,backend=https://api.openai.com/v1,model=gpt-4o
func parseParticipantSpec(spec string) (models.Participant, error) {
	var p models.Participant

	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return p, fmt.Errorf("participant spec %q: expected key=value, got %q", spec, field)
		}
		value = strings.Trim(value, `"`)

		switch strings.ToLower(key) {
		case "id":
			p.ID = value
		case "kind":
			p.Kind = models.AdapterKind(value)
		case "backend":
			p.Backend = value
		case "model":
			p.Model = value
		case "stance":
			p.Stance = models.Stance(value)
		case "weight":
			w, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return p, fmt.Errorf("participant spec %q: invalid weight %q", spec, value)
			}
			p.Weight = w
		default:
			return p, fmt.Errorf("participant spec %q: unknown key %q", spec, key)
		}
	}

	// The Anthropic adapter needs no backend address.
	if p.Kind == models.AdapterAnthropic && p.Backend == "" {
		p.Backend = "anthropic-api"
	}

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("participant spec %q: %w", spec, err)
	}
	return p, nil
}

// buildAdapter creates the adapter for one participant, wrapped in the
// configured retry policy.
func buildAdapter(p models.Participant, cfg *config.Config) (adapter.Adapter, error) {
	var inner adapter.Adapter

	switch p.Kind {
	case models.AdapterProcess:
		fields := strings.Fields(p.Backend)
		if len(fields) == 0 {
			return nil, fmt.Errorf("participant %q: empty process backend", p.ID)
		}
		inner = adapter.NewProcessAdapter(adapter.ProcessConfig{
			Command:   fields[0],
			Args:      fields[1:],
			ModelFlag: "--model",
		}, exec.NewRunner())

	case models.AdapterHTTP:
		if p.Backend == "" {
			return nil, fmt.Errorf("participant %q: http backend requires a base URL", p.ID)
		}
		inner = adapter.NewHTTPAdapter(adapter.HTTPConfig{
			BaseURL: p.Backend,
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Backend: p.ID,
		})

	case models.AdapterAnthropic:
		key, err := config.GetAPIKey(cfg)
		if err != nil && !cfg.Anthropic.UseBedrock {
			return nil, fmt.Errorf("participant %q: %w", p.ID, err)
		}
		a, err := adapter.NewAnthropicAdapter(adapter.AnthropicConfig{
			APIKey:     key,
			UseBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:  cfg.Anthropic.AWSRegion,
			AWSProfile: cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			return nil, fmt.Errorf("participant %q: %w", p.ID, err)
		}
		inner = a

	default:
		return nil, fmt.Errorf("participant %q: unknown kind %q", p.ID, p.Kind)
	}

	return retry.Wrap(inner, retryPolicy(cfg.Retry), p.ID), nil
}

// retryPolicy maps the retry config onto a policy, keeping defaults for
// unset fields.
func retryPolicy(rc config.RetryConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	if rc.MaxAttempts > 0 {
		policy.MaxAttempts = rc.MaxAttempts
	}
	if rc.BaseWait > 0 {
		policy.BaseWait = rc.BaseWait
	}
	if rc.MaxWait > 0 {
		policy.MaxWait = rc.MaxWait
	}
	if rc.AttemptTimeout > 0 {
		policy.AttemptTimeout = rc.AttemptTimeout
	}
	if rc.OverallTimeout > 0 {
		policy.OverallTimeout = rc.OverallTimeout
	}
	return policy
}
