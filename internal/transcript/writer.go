// Package transcript defines the persistence handoff boundary. The
// deliberation core performs no file or database I/O itself; on every
// terminal path it hands the full round history and decision record to a
// Writer by value.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quorumhq/quorum/pkg/models"
)

// Transcript is the complete record of one deliberation.
type Transcript struct {
	// DeliberationID identifies the deliberation.
	DeliberationID string `json:"deliberation_id"`
	// Question is the original question.
	Question string `json:"question"`
	// Participants is the configured participant list, in order.
	Participants []models.Participant `json:"participants"`
	// Rounds is the full round history.
	Rounds []models.Round `json:"rounds"`
	// Record is the decision record. Nil when the deliberation failed
	// fatally before a record could be produced.
	Record *models.DecisionRecord `json:"record,omitempty"`
	// Failure carries the fatal error text when Record is nil.
	Failure string `json:"failure,omitempty"`
}

// Writer receives a finished transcript.
type Writer interface {
	Write(t Transcript) error
}

// FileWriter writes one JSON transcript file per deliberation.
type FileWriter struct {
	dir string
}

// NewFileWriter creates a FileWriter rooted at dir.
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir}
}

// Write stores the transcript as <dir>/<id>.json.
func (w *FileWriter) Write(t Transcript) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	path := filepath.Join(w.dir, t.DeliberationID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// Discard is a Writer that drops transcripts. Used when persistence is not
// configured.
type Discard struct{}

// Write discards the transcript.
func (Discard) Write(Transcript) error { return nil }

// Verify implementations at compile time.
var (
	_ Writer = (*FileWriter)(nil)
	_ Writer = Discard{}
)
