// Package history provides SQLite-backed storage of decision records, so
// past deliberations can be listed and searched from the CLI.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quorumhq/quorum/pkg/models"
)

// Store wraps an SQLite database holding decision records.
type Store struct {
	conn *sql.DB
	path string
}

// DefaultPath returns the decision history database path, honoring
// XDG_DATA_HOME.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "quorum", "history.db")
}

// Open opens (creating if needed) the history database at path.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := initSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func initSchema(conn *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	choice TEXT NOT NULL,
	outcome TEXT NOT NULL,
	confidence REAL NOT NULL,
	rounds INTEGER NOT NULL,
	incomplete INTEGER NOT NULL DEFAULT 0,
	votes TEXT NOT NULL,
	convergence TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_completed ON decisions(completed_at);
`
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Save stores a decision record. Saving the same record twice is an error;
// records are created exactly once per deliberation.
func (s *Store) Save(record *models.DecisionRecord) error {
	votes, err := json.Marshal(record.Votes)
	if err != nil {
		return fmt.Errorf("encode votes: %w", err)
	}
	convergence, err := json.Marshal(record.Convergence)
	if err != nil {
		return fmt.Errorf("encode convergence: %w", err)
	}

	_, err = s.conn.Exec(`
		INSERT INTO decisions (id, question, choice, outcome, confidence, rounds, incomplete, votes, convergence, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Question, record.Choice, string(record.Outcome),
		record.Confidence, record.Rounds, boolToInt(record.Incomplete),
		string(votes), string(convergence), record.StartedAt, record.CompletedAt)
	if err != nil {
		return fmt.Errorf("save decision %s: %w", record.ID, err)
	}
	return nil
}

// Get loads one decision record by ID.
func (s *Store) Get(id string) (*models.DecisionRecord, error) {
	row := s.conn.QueryRow(`
		SELECT id, question, choice, outcome, confidence, rounds, incomplete, votes, convergence, started_at, completed_at
		FROM decisions WHERE id = ?`, id)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("decision %s not found", id)
	}
	return record, err
}

// List returns the most recent records, newest first.
func (s *Store) List(limit int) ([]*models.DecisionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(`
		SELECT id, question, choice, outcome, confidence, rounds, incomplete, votes, convergence, started_at, completed_at
		FROM decisions ORDER BY completed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Search returns records whose question contains the query text, newest
// first.
func (s *Store) Search(query string, limit int) ([]*models.DecisionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(`
		SELECT id, question, choice, outcome, confidence, rounds, incomplete, votes, convergence, started_at, completed_at
		FROM decisions WHERE question LIKE ? ORDER BY completed_at DESC LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search decisions: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scannable) (*models.DecisionRecord, error) {
	var (
		record      models.DecisionRecord
		outcome     string
		incomplete  int
		votes       string
		convergence string
		startedAt   time.Time
		completedAt time.Time
	)
	err := row.Scan(&record.ID, &record.Question, &record.Choice, &outcome,
		&record.Confidence, &record.Rounds, &incomplete, &votes, &convergence,
		&startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	record.Outcome = models.Outcome(outcome)
	record.Incomplete = incomplete != 0
	record.StartedAt = startedAt
	record.CompletedAt = completedAt
	if err := json.Unmarshal([]byte(votes), &record.Votes); err != nil {
		return nil, fmt.Errorf("decode votes for %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(convergence), &record.Convergence); err != nil {
		return nil, fmt.Errorf("decode convergence for %s: %w", record.ID, err)
	}
	return &record, nil
}

func collectRecords(rows *sql.Rows) ([]*models.DecisionRecord, error) {
	var records []*models.DecisionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
