package models

import "testing"

func TestParticipantValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Participant
		wantErr bool
	}{
		{
			name: "valid process participant",
			p:    Participant{ID: "p1", Kind: AdapterProcess, Backend: "claude-cli"},
		},
		{
			name: "valid with stance and weight",
			p:    Participant{ID: "p2", Kind: AdapterHTTP, Backend: "ollama", Model: "llama3", Stance: StanceAgainst, Weight: 0.5},
		},
		{
			name:    "missing id",
			p:       Participant{Kind: AdapterProcess, Backend: "claude-cli"},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			p:       Participant{ID: "p1", Kind: "grpc", Backend: "x"},
			wantErr: true,
		},
		{
			name:    "missing backend",
			p:       Participant{ID: "p1", Kind: AdapterAnthropic},
			wantErr: true,
		},
		{
			name:    "unknown stance",
			p:       Participant{ID: "p1", Kind: AdapterHTTP, Backend: "x", Stance: "maybe"},
			wantErr: true,
		},
		{
			name:    "negative weight",
			p:       Participant{ID: "p1", Kind: AdapterHTTP, Backend: "x", Weight: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParticipantEffectiveWeight(t *testing.T) {
	p := Participant{ID: "p1", Kind: AdapterHTTP, Backend: "x"}
	if got := p.EffectiveWeight(); got != 1.0 {
		t.Errorf("default weight = %v, want 1.0", got)
	}

	p.Weight = 0.25
	if got := p.EffectiveWeight(); got != 0.25 {
		t.Errorf("explicit weight = %v, want 0.25", got)
	}
}

func TestRoundAccounting(t *testing.T) {
	r := Round{
		Index: 1,
		Responses: []Response{
			{ParticipantID: "a", OK: true, Text: "proceed"},
			{ParticipantID: "b", OK: false, Err: ErrorTimeout},
			{ParticipantID: "c", OK: true, Text: "halt"},
		},
	}

	if got := r.Successes(); got != 2 {
		t.Errorf("Successes() = %d, want 2", got)
	}
	if got := r.Failures(); got != 1 {
		t.Errorf("Failures() = %d, want 1", got)
	}
	if r.Successes()+r.Failures() != len(r.Responses) {
		t.Error("success + failure counts should equal response count")
	}

	resp, ok := r.Response("b")
	if !ok {
		t.Fatal("Response(b) not found")
	}
	if resp.Err != ErrorTimeout {
		t.Errorf("Response(b).Err = %q, want %q", resp.Err, ErrorTimeout)
	}
	if _, ok := r.Response("missing"); ok {
		t.Error("Response(missing) should not be found")
	}
}
