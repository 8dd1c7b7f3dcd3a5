// Package history keeps a SQLite log of asked questions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sadopc/askql/internal/config"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS questions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id    TEXT NOT NULL DEFAULT '',
	question      TEXT NOT NULL,
	sql           TEXT NOT NULL DEFAULT '',
	dialect       TEXT NOT NULL DEFAULT '',
	patterns      TEXT NOT NULL DEFAULT '',
	adapter       TEXT NOT NULL DEFAULT '',
	database_name TEXT NOT NULL DEFAULT '',
	asked_at      DATETIME NOT NULL,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	row_count     INTEGER NOT NULL DEFAULT 0,
	failed        BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS questions_asked_at ON questions (asked_at)`

// Entry is one asked question and how running it went.
type Entry struct {
	ID           int64     `json:"id" yaml:"id"`
	RequestID    string    `json:"request_id" yaml:"request_id"`
	Question     string    `json:"question" yaml:"question"`
	SQL          string    `json:"sql" yaml:"sql"`
	Dialect      string    `json:"dialect" yaml:"dialect"`
	Patterns     []string  `json:"patterns" yaml:"patterns"`
	Adapter      string    `json:"adapter,omitempty" yaml:"adapter,omitempty"`
	DatabaseName string    `json:"database_name,omitempty" yaml:"database_name,omitempty"`
	ExecutedAt   time.Time `json:"executed_at" yaml:"executed_at"`
	DurationMS   int64     `json:"duration_ms" yaml:"duration_ms"`
	RowCount     int64     `json:"row_count" yaml:"row_count"`
	IsError      bool      `json:"is_error" yaml:"is_error"`
}

// History is a question log stored in SQLite.
type History struct {
	db *sql.DB
}

// New opens the history database in ConfigDir.
func New() (*History, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return Open(filepath.Join(dir, "history.db"))
}

// Open opens or creates the history database at path.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init %s: %w", path, err)
	}
	return &History{db: db}, nil
}

// Add records e. A zero ExecutedAt is stamped with the current time.
func (h *History) Add(e Entry) error {
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}
	_, err := h.db.Exec(`INSERT INTO questions
		(request_id, question, sql, dialect, patterns, adapter, database_name, asked_at, duration_ms, row_count, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Question, e.SQL, e.Dialect, strings.Join(e.Patterns, ","),
		e.Adapter, e.DatabaseName, e.ExecutedAt.UTC(), e.DurationMS, e.RowCount, e.IsError)
	if err != nil {
		return fmt.Errorf("history: add: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (h *History) Recent(limit int) ([]Entry, error) {
	return h.list("", limit)
}

// Search returns up to limit entries whose question contains text, newest
// first. The match is case-insensitive for ASCII and treats % and _ as
// ordinary characters.
func (h *History) Search(text string, limit int) ([]Entry, error) {
	return h.list(text, limit)
}

func (h *History) list(contains string, limit int) ([]Entry, error) {
	query := `SELECT id, request_id, question, sql, dialect, patterns, adapter, database_name,
		asked_at, duration_ms, row_count, failed FROM questions`
	var args []any
	if contains != "" {
		query += ` WHERE question LIKE ? ESCAPE '\'`
		args = append(args, "%"+likeEscaper.Replace(contains)+"%")
	}
	query += ` ORDER BY asked_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			patterns string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Question, &e.SQL, &e.Dialect, &patterns,
			&e.Adapter, &e.DatabaseName, &e.ExecutedAt, &e.DurationMS, &e.RowCount, &e.IsError); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if patterns != "" {
			e.Patterns = strings.Split(patterns, ",")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Questions returns up to limit distinct questions ordered from the least
// to the most recently asked, the order input recall walks them in.
func (h *History) Questions(limit int) ([]string, error) {
	rows, err := h.db.Query(`SELECT question FROM (
			SELECT question, MAX(id) AS last FROM questions
			GROUP BY question ORDER BY last DESC LIMIT ?
		) ORDER BY last`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: questions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Clear deletes every entry.
func (h *History) Clear() error {
	if _, err := h.db.Exec(`DELETE FROM questions`); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}
