// Package registry provides the read-only model registry consulted before a
// deliberation runs. It is loaded once at startup and never mutated, so a
// single instance may be shared across concurrent deliberations without
// synchronization.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quorumhq/quorum/pkg/models"
)

// Kind holds the registry entry for one adapter kind.
type Kind struct {
	// Default is resolved when a participant omits its model identifier.
	Default string `yaml:"default"`
	// Models is the allowlist. Empty means any model is accepted.
	Models []string `yaml:"models"`
}

// Registry maps adapter kinds to their allowed and default models.
type Registry struct {
	kinds map[models.AdapterKind]Kind
}

// fileFormat is the on-disk YAML shape.
type fileFormat struct {
	Kinds map[string]Kind `yaml:"kinds"`
}

// New creates a Registry from an in-memory kind table.
func New(kinds map[models.AdapterKind]Kind) *Registry {
	copied := make(map[models.AdapterKind]Kind, len(kinds))
	for k, v := range kinds {
		copied[k] = v
	}
	return &Registry{kinds: copied}
}

// Load reads a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}

	kinds := make(map[models.AdapterKind]Kind, len(ff.Kinds))
	for name, entry := range ff.Kinds {
		kind := models.AdapterKind(name)
		if !kind.Valid() {
			return nil, fmt.Errorf("registry %s: unknown adapter kind %q", path, name)
		}
		kinds[kind] = entry
	}
	return &Registry{kinds: kinds}, nil
}

// Default returns a registry that accepts any model for every kind. Used
// when no registry file is configured.
func Default() *Registry {
	return New(map[models.AdapterKind]Kind{
		models.AdapterProcess:   {},
		models.AdapterHTTP:      {},
		models.AdapterAnthropic: {Default: "claude-sonnet-4-20250514"},
	})
}

// Resolve validates a participant's model against the registry and returns
// the model identifier to use. An empty model resolves to the kind default;
// a model outside a non-empty allowlist is a validation failure.
func (r *Registry) Resolve(p models.Participant) (string, error) {
	entry, ok := r.kinds[p.Kind]
	if !ok {
		return "", fmt.Errorf("participant %s: adapter kind %q is not registered", p.ID, p.Kind)
	}

	model := p.Model
	if model == "" {
		if entry.Default == "" && p.Kind != models.AdapterProcess {
			return "", fmt.Errorf("participant %s: no model given and no default registered for kind %q", p.ID, p.Kind)
		}
		return entry.Default, nil
	}

	if len(entry.Models) > 0 {
		for _, m := range entry.Models {
			if m == model {
				return model, nil
			}
		}
		return "", fmt.Errorf("participant %s: model %q is not allowlisted for kind %q", p.ID, p.Kind, model)
	}
	return model, nil
}
