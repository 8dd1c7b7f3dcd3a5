// Package service answers questions end to end: it keeps the schema catalog,
// compiles questions, runs the SQL and records what happened.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/askql/internal/adapter"
	"github.com/sadopc/askql/internal/audit"
	"github.com/sadopc/askql/internal/history"
	"github.com/sadopc/askql/internal/nlq"
	"github.com/sadopc/askql/internal/schema"
)

// ErrNoConnection is returned by operations that need a database when the
// Asker was built without one.
var ErrNoConnection = errors.New("no database connection: pass --dsn or a saved connection")

// Config holds the parts an Asker is assembled from. Only Compiler is
// required; a nil Conn limits the Asker to compiling against Catalog.
type Config struct {
	Compiler *nlq.Compiler
	Conn     adapter.Connection
	// Catalog, when set, is used instead of discovering one from Conn.
	Catalog *schema.Catalog
	// Database and Schema scope discovery; empty means the connection's
	// defaults.
	Database string
	Schema   string
	Audit    *audit.Logger
	History  *history.History
	// DSN is recorded in the audit log with credentials removed.
	DSN    string
	Logger *slog.Logger
}

// Answer is one compiled and executed question.
type Answer struct {
	ID     string               `json:"id"`
	Query  *nlq.CompiledQuery   `json:"query"`
	Result *adapter.QueryResult `json:"result"`
}

// Asker is safe for concurrent use. The catalog is discovered once and
// cached until Refresh.
type Asker struct {
	compiler *nlq.Compiler
	conn     adapter.Connection
	database string
	schema   string
	audit    *audit.Logger
	history  *history.History
	dsn      string
	logger   *slog.Logger

	mu      sync.Mutex
	catalog *schema.Catalog
}

// New builds an Asker from cfg.
func New(cfg Config) (*Asker, error) {
	if cfg.Compiler == nil {
		return nil, errors.New("service: compiler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Asker{
		compiler: cfg.Compiler,
		conn:     cfg.Conn,
		database: cfg.Database,
		schema:   cfg.Schema,
		audit:    cfg.Audit,
		history:  cfg.History,
		dsn:      audit.SanitizeDSN(cfg.DSN),
		logger:   logger,
		catalog:  cfg.Catalog,
	}, nil
}

// Catalog returns the cached catalog, discovering it on first use.
func (a *Asker) Catalog(ctx context.Context) (*schema.Catalog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.catalog != nil {
		return a.catalog, nil
	}
	return a.discoverLocked(ctx)
}

// Refresh rediscovers the catalog from the connection.
func (a *Asker) Refresh(ctx context.Context) (*schema.Catalog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discoverLocked(ctx)
}

func (a *Asker) discoverLocked(ctx context.Context) (*schema.Catalog, error) {
	if a.conn == nil {
		return nil, fmt.Errorf("%w: %w", nlq.ErrSchemaRequired, ErrNoConnection)
	}
	start := time.Now()
	cat, err := adapter.Discover(ctx, a.conn, a.database, a.schema)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("schema discovered",
		"database", cat.Database, "schema", cat.Schema,
		"tables", len(cat.Tables), "duration", time.Since(start))
	a.catalog = cat
	return cat, nil
}

// Compile compiles req against the catalog without running it.
func (a *Asker) Compile(ctx context.Context, req nlq.Request) (*nlq.CompiledQuery, error) {
	cat, err := a.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	q, err := a.compiler.Compile(req, cat)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("question compiled",
		"question", req.Question, "patterns", q.MatchedPatterns, "params", len(q.Parameters))
	return q, nil
}

// Ask compiles req, runs the SQL and records the outcome in the audit log
// and history. Compile failures are returned without being recorded.
func (a *Asker) Ask(ctx context.Context, req nlq.Request) (*Answer, error) {
	if a.conn == nil {
		return nil, ErrNoConnection
	}
	q, err := a.Compile(ctx, req)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	start := time.Now()
	res, err := a.conn.Query(ctx, q.SQL, q.Parameters...)
	elapsed := time.Since(start)
	a.record(id, req.Question, q, res, elapsed, err)
	if err != nil {
		a.logger.Error("query failed", "request_id", id, "error", err)
		return nil, fmt.Errorf("run %s: %w", id, err)
	}

	a.logger.Info("question answered",
		"request_id", id, "rows", res.RowCount, "duration", elapsed)
	return &Answer{ID: id, Query: q, Result: res}, nil
}

// RecentQuestions returns up to limit previously asked questions, oldest
// first. It returns nothing when history is disabled.
func (a *Asker) RecentQuestions(limit int) ([]string, error) {
	if a.history == nil {
		return nil, nil
	}
	return a.history.Questions(limit)
}

// Close releases the connection, history store and audit log.
func (a *Asker) Close() error {
	var errs []error
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	errs = append(errs, a.audit.Close())
	return errors.Join(errs...)
}

func (a *Asker) record(id, question string, q *nlq.CompiledQuery, res *adapter.QueryResult, elapsed time.Duration, runErr error) {
	var rows int64
	if res != nil {
		rows = res.RowCount
	}
	now := time.Now().UTC()

	entry := audit.Entry{
		ID:           id,
		Timestamp:    now,
		Question:     question,
		SQL:          q.SQL,
		Parameters:   q.Parameters,
		Patterns:     q.MatchedPatterns,
		Dialect:      q.Dialect,
		Adapter:      a.conn.AdapterName(),
		DatabaseName: a.conn.DatabaseName(),
		DurationMS:   elapsed.Milliseconds(),
		RowCount:     rows,
		IsError:      runErr != nil,
		DSN:          a.dsn,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	a.audit.Log(entry)

	if a.history == nil {
		return
	}
	err := a.history.Add(history.Entry{
		RequestID:    id,
		Question:     question,
		SQL:          q.SQL,
		Dialect:      q.Dialect,
		Patterns:     q.MatchedPatterns,
		Adapter:      a.conn.AdapterName(),
		DatabaseName: a.conn.DatabaseName(),
		ExecutedAt:   now,
		DurationMS:   elapsed.Milliseconds(),
		RowCount:     rows,
		IsError:      runErr != nil,
	})
	if err != nil {
		a.logger.Warn("history not saved", "request_id", id, "error", err)
	}
}
