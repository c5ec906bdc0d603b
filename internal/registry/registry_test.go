package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quorumhq/quorum/pkg/models"
)

func testRegistry() *Registry {
	return New(map[models.AdapterKind]Kind{
		models.AdapterAnthropic: {
			Default: "claude-sonnet-4-20250514",
			Models:  []string{"claude-sonnet-4-20250514", "claude-opus-4-1-20250805"},
		},
		models.AdapterHTTP: {
			Default: "llama3",
		},
		models.AdapterProcess: {},
	})
}

func TestResolveAllowlisted(t *testing.T) {
	r := testRegistry()
	p := models.Participant{ID: "p1", Kind: models.AdapterAnthropic, Backend: "anthropic", Model: "claude-opus-4-1-20250805"}

	model, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if model != "claude-opus-4-1-20250805" {
		t.Errorf("model = %q", model)
	}
}

func TestResolveNotAllowlisted(t *testing.T) {
	r := testRegistry()
	p := models.Participant{ID: "p1", Kind: models.AdapterAnthropic, Backend: "anthropic", Model: "gpt-4o"}

	if _, err := r.Resolve(p); err == nil {
		t.Error("expected validation failure for non-allowlisted model")
	}
}

func TestResolveDefaultWhenEmpty(t *testing.T) {
	r := testRegistry()
	p := models.Participant{ID: "p1", Kind: models.AdapterAnthropic, Backend: "anthropic"}

	model, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q, want the kind default", model)
	}
}

func TestResolveEmptyAllowlistAcceptsAny(t *testing.T) {
	r := testRegistry()
	p := models.Participant{ID: "p1", Kind: models.AdapterHTTP, Backend: "ollama", Model: "mistral"}

	model, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if model != "mistral" {
		t.Errorf("model = %q", model)
	}
}

func TestResolveProcessWithoutModel(t *testing.T) {
	// Process backends may run without a model flag at all.
	r := testRegistry()
	p := models.Participant{ID: "p1", Kind: models.AdapterProcess, Backend: "claude-cli"}

	model, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if model != "" {
		t.Errorf("model = %q, want empty", model)
	}
}

func TestResolveUnregisteredKind(t *testing.T) {
	r := New(map[models.AdapterKind]Kind{})
	p := models.Participant{ID: "p1", Kind: models.AdapterHTTP, Backend: "ollama", Model: "m"}

	if _, err := r.Resolve(p); err == nil {
		t.Error("expected failure for unregistered kind")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	content := `kinds:
  anthropic:
    default: claude-sonnet-4-20250514
    models:
      - claude-sonnet-4-20250514
  http:
    default: llama3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	p := models.Participant{ID: "p1", Kind: models.AdapterHTTP, Backend: "ollama"}
	model, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if model != "llama3" {
		t.Errorf("model = %q", model)
	}
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	if err := os.WriteFile(path, []byte("kinds:\n  grpc:\n    default: x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected failure for unknown adapter kind")
	}
}
