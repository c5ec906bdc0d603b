package transcript

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/quorumhq/quorum/pkg/models"
)

func TestFileWriterRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	w := NewFileWriter(dir)

	in := Transcript{
		DeliberationID: "abc12345",
		Question:       "Adopt proposal X?",
		Participants: []models.Participant{
			{ID: "a", Kind: models.AdapterHTTP, Backend: "http://localhost:1"},
		},
		Rounds: []models.Round{
			{Index: 1, Prompt: "Adopt proposal X?", Responses: []models.Response{
				{ParticipantID: "a", Text: "yes", OK: true},
			}},
		},
		Record: &models.DecisionRecord{
			ID:      "abc12345",
			Choice:  "yes",
			Outcome: models.OutcomeDecided,
		},
	}

	if err := w.Write(in); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "abc12345.json"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}

	var out Transcript
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}

	if out.Question != in.Question {
		t.Errorf("question = %q, want %q", out.Question, in.Question)
	}
	if len(out.Rounds) != 1 || out.Rounds[0].Responses[0].ParticipantID != "a" {
		t.Errorf("round history not preserved: %+v", out.Rounds)
	}
	if out.Record == nil || out.Record.Choice != "yes" {
		t.Errorf("record not preserved: %+v", out.Record)
	}
}

func TestFileWriterFatalFailure(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir)

	in := Transcript{
		DeliberationID: "deadbeef",
		Question:       "q",
		Failure:        "round 1: every participant failed",
	}
	if err := w.Write(in); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "deadbeef.json"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}

	var out Transcript
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if out.Record != nil {
		t.Errorf("expected nil record, got %+v", out.Record)
	}
	if out.Failure == "" {
		t.Error("expected failure text to be preserved")
	}
}

func TestDiscard(t *testing.T) {
	if err := (Discard{}).Write(Transcript{}); err != nil {
		t.Errorf("Discard.Write returned %v", err)
	}
}
