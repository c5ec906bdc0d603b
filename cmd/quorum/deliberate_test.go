package main

import (
	"testing"
	"time"

	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/pkg/models"
)

func TestParseParticipantSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    models.Participant
		wantErr bool
	}{
		{
			name: "anthropic with stance and weight",
			spec: "id=claude,kind=anthropic,model=claude-sonnet-4-20250514,stance=for,weight=2",
			want: models.Participant{
				ID:      "claude",
				Kind:    models.AdapterAnthropic,
				Backend: "anthropic-api",
				Model:   "claude-sonnet-4-20250514",
				Stance:  models.StanceFor,
				Weight:  2,
			},
		},
		{
			name: "process with quoted backend",
			spec: `id=local,kind=process,backend="ollama run llama3"`,
			want: models.Participant{
				ID:      "local",
				Kind:    models.AdapterProcess,
				Backend: "ollama run llama3",
			},
		},
		{
			name: "http backend keeps URL colons",
			spec: "id=gpt,kind=http,backend=http://localhost:11434/v1,model=llama3",
			want: models.Participant{
				ID:      "gpt",
				Kind:    models.AdapterHTTP,
				Backend: "http://localhost:11434/v1",
				Model:   "llama3",
			},
		},
		{name: "missing id", spec: "kind=anthropic", wantErr: true},
		{name: "bad kind", spec: "id=x,kind=carrier-pigeon", wantErr: true},
		{name: "bad stance", spec: "id=x,kind=anthropic,stance=maybe", wantErr: true},
		{name: "bad weight", spec: "id=x,kind=anthropic,weight=heavy", wantErr: true},
		{name: "negative weight", spec: "id=x,kind=anthropic,weight=-1", wantErr: true},
		{name: "not key=value", spec: "id=x,kind=anthropic,extra", wantErr: true},
		{name: "unknown key", spec: "id=x,kind=anthropic,color=blue", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParticipantSpec(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseParticipantSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Errorf("parseParticipantSpec(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	policy := retryPolicy(config.RetryConfig{})

	if policy.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", policy.MaxAttempts)
	}
	if policy.BaseWait != 500*time.Millisecond {
		t.Errorf("expected default base wait 500ms, got %v", policy.BaseWait)
	}
}

func TestRetryPolicyOverrides(t *testing.T) {
	policy := retryPolicy(config.RetryConfig{
		MaxAttempts:    5,
		BaseWait:       time.Second,
		OverallTimeout: time.Minute,
	})

	if policy.MaxAttempts != 5 {
		t.Errorf("expected max attempts 5, got %d", policy.MaxAttempts)
	}
	if policy.BaseWait != time.Second {
		t.Errorf("expected base wait 1s, got %v", policy.BaseWait)
	}
	if policy.OverallTimeout != time.Minute {
		t.Errorf("expected overall timeout 1m, got %v", policy.OverallTimeout)
	}
	// Unset fields keep defaults.
	if policy.AttemptTimeout != 60*time.Second {
		t.Errorf("expected default attempt timeout 60s, got %v", policy.AttemptTimeout)
	}
}

func TestSetConfigValueValidation(t *testing.T) {
	cfg := config.Default()

	if err := setConfigValue(cfg, "deliberation.threshold", "0.9"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.Deliberation.Threshold != 0.9 {
		t.Errorf("expected threshold 0.9, got %v", cfg.Deliberation.Threshold)
	}

	if err := setConfigValue(cfg, "deliberation.threshold", "1.5"); err == nil {
		t.Error("expected error for threshold above 1")
	}
	if err := setConfigValue(cfg, "deliberation.mode", "triple-round"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if err := setConfigValue(cfg, "nope.nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}
