package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
    id         TEXT PRIMARY KEY,
    operation  TEXT NOT NULL,
    origin     TEXT NOT NULL,
    target     TEXT NOT NULL DEFAULT '',
    success    INTEGER NOT NULL DEFAULT 0,
    detail     TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS executions_created_at ON executions (created_at);
`

// Store wraps a SQLite database holding the execution history.
type Store struct {
	db *sql.DB
}

// Entry is one dispatched operation.
type Entry struct {
	ID        string
	Operation string
	Origin    string
	Target    string
	Success   bool
	Detail    string
	CreatedAt time.Time
}

// DefaultPath returns $XDG_STATE_HOME/opsgate/state.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "opsgate", "state.db"), nil
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL mode for safe concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts e, assigning an ID when it has none.
func (s *Store) Record(e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	success := 0
	if e.Success {
		success = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO executions (id, operation, origin, target, success, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, e.ID, e.Operation, e.Origin, e.Target, success, e.Detail)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, operation, origin, target, success, detail, created_at
		FROM executions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var success int
		var created string
		if err := rows.Scan(&e.ID, &e.Operation, &e.Origin, &e.Target, &success, &e.Detail, &created); err != nil {
			return nil, err
		}
		e.Success = success == 1
		e.CreatedAt = parseTimestamp(created)
		result = append(result, e)
	}
	return result, rows.Err()
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
