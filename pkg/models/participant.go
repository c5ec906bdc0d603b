// Package models defines the shared value types for deliberations.
package models

import "fmt"

// AdapterKind identifies how a participant's backend is invoked.
type AdapterKind string

const (
	// AdapterProcess invokes the backend as a local subprocess.
	AdapterProcess AdapterKind = "process"
	// AdapterHTTP invokes the backend over a generic chat-completion HTTP API.
	AdapterHTTP AdapterKind = "http"
	// AdapterAnthropic invokes the backend through the Anthropic SDK.
	AdapterAnthropic AdapterKind = "anthropic"
)

// Valid reports whether the kind is one of the known adapter kinds.
func (k AdapterKind) Valid() bool {
	switch k {
	case AdapterProcess, AdapterHTTP, AdapterAnthropic:
		return true
	}
	return false
}

// Stance is an optional fixed position assigned to a participant.
type Stance string

const (
	// StanceNone means the participant argues freely.
	StanceNone Stance = ""
	// StanceFor instructs the participant to argue in favor.
	StanceFor Stance = "for"
	// StanceAgainst instructs the participant to argue against.
	StanceAgainst Stance = "against"
	// StanceNeutral instructs the participant to weigh both sides.
	StanceNeutral Stance = "neutral"
)

// Valid reports whether the stance is a known value.
func (s Stance) Valid() bool {
	switch s {
	case StanceNone, StanceFor, StanceAgainst, StanceNeutral:
		return true
	}
	return false
}

// Participant identifies one model backend taking part in a deliberation.
// Participants are immutable for the lifetime of a deliberation.
type Participant struct {
	// ID uniquely identifies the participant within a deliberation.
	ID string `json:"id"`
	// Kind selects the adapter variant used to invoke the backend.
	Kind AdapterKind `json:"kind"`
	// Backend names the concrete backend (e.g. "claude-cli", "ollama").
	Backend string `json:"backend"`
	// Model is the backend model identifier. May be empty, in which case
	// the registry default for the adapter kind is resolved before use.
	Model string `json:"model,omitempty"`
	// Stance optionally fixes the participant's argumentative position.
	Stance Stance `json:"stance,omitempty"`
	// Weight is the participant's vote weight. Zero means the default 1.0.
	Weight float64 `json:"weight,omitempty"`
}

// Validate checks that the participant descriptor is well formed.
func (p Participant) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("participant: missing id")
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("participant %s: unknown adapter kind %q", p.ID, p.Kind)
	}
	if p.Backend == "" {
		return fmt.Errorf("participant %s: missing backend", p.ID)
	}
	if !p.Stance.Valid() {
		return fmt.Errorf("participant %s: unknown stance %q", p.ID, p.Stance)
	}
	if p.Weight < 0 {
		return fmt.Errorf("participant %s: negative weight %v", p.ID, p.Weight)
	}
	return nil
}

// EffectiveWeight returns the participant's vote weight, defaulting to 1.0.
func (p Participant) EffectiveWeight() float64 {
	if p.Weight == 0 {
		return 1.0
	}
	return p.Weight
}
