// Package audit appends one JSON line per answered question.
package audit

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Entry is a single audit log record: the question, the SQL it compiled
// to with its bound values, and how execution went.
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Question     string    `json:"question"`
	SQL          string    `json:"sql"`
	Parameters   []any     `json:"parameters"`
	Patterns     []string  `json:"patterns,omitempty"`
	Dialect      string    `json:"dialect"`
	Adapter      string    `json:"adapter,omitempty"`
	DatabaseName string    `json:"database_name,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	RowCount     int64     `json:"row_count"`
	IsError      bool      `json:"is_error"`
	Error        string    `json:"error,omitempty"`
	DSN          string    `json:"dsn,omitempty"`
}

const filePerm = 0o600

// Logger appends entries to a JSON Lines file. When a size limit is set the
// file is moved to path.1 once it grows past the limit; one backup is kept.
// A nil *Logger discards everything.
type Logger struct {
	path  string
	limit int64

	mu   sync.Mutex
	f    *os.File
	size int64
}

// New opens path for appending, creating missing directories. maxSizeMB <= 0
// disables rotation.
func New(path string, maxSizeMB int) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	l := &Logger{path: path, limit: int64(maxSizeMB) << 20}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return fmt.Errorf("audit: open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("audit: stat file: %w", err)
	}
	l.f, l.size = f, info.Size()
	return nil
}

// Log appends e. Write failures are dropped so auditing never fails a
// question. Safe for concurrent use.
func (l *Logger) Log(e Entry) {
	if l == nil {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	n, _ := l.f.Write(line)
	l.size += int64(n)
	if l.limit > 0 && l.size >= l.limit {
		l.rotate()
	}
}

// rotate moves the current file aside and starts a new one. On failure the
// logger stops writing rather than growing the old file without bound.
func (l *Logger) rotate() {
	l.f.Close()
	l.f = nil
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return
	}
	_ = l.open()
}

// Close closes the file. Closing a nil Logger is a no-op.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

var (
	driverCreds = regexp.MustCompile(`^[^@/]+@(tcp|unix)\(`)
	keywordPass = regexp.MustCompile(`(?i)\bpassword=\S+`)
)

// SanitizeDSN masks the credentials in a URL, MySQL driver or libpq keyword
// DSN. Anything else, such as a file path, is returned unchanged.
func SanitizeDSN(dsn string) string {
	if scheme, _, ok := strings.Cut(dsn, "://"); ok && !strings.ContainsAny(scheme, "/\\") {
		u, err := url.Parse(dsn)
		if err != nil || u.User == nil {
			return dsn
		}
		u.User = nil
		return strings.Replace(u.String(), "://", "://***@", 1)
	}
	if m := driverCreds.FindStringSubmatch(dsn); m != nil {
		return "***@" + m[1] + "(" + dsn[len(m[0]):]
	}
	return keywordPass.ReplaceAllString(dsn, "password=***")
}
