// Package adapter connects to the databases questions are answered against.
// Each driver package registers itself in Registry from init and provides
// schema introspection (for catalog discovery) and parameterized read
// queries (for executing compiled SQL).
package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sadopc/askql/internal/schema"
)

var (
	ErrNotConnected   = errors.New("not connected to database")
	ErrCancelled      = errors.New("query cancelled")
	ErrUnknownAdapter = errors.New("unknown adapter")
)

// ErrNoIntrospection means a connection can list tables but not describe
// them.
var ErrNoIntrospection = errors.New("connection cannot describe tables")

// Adapter creates database connections.
type Adapter interface {
	Connect(ctx context.Context, dsn string) (Connection, error)
	Name() string
	DefaultPort() int
}

// Connection is an open database session. Every connection lists the
// tables of a schema; describing them takes either a TableIntrospector or a
// BatchIntrospector, see Discover.
type Connection interface {
	Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error)

	// Query runs a read-only statement with bound arguments. The statement
	// must use the placeholder style of the connection's dialect.
	Query(ctx context.Context, query string, args ...any) (*QueryResult, error)
	Cancel() error

	Ping(ctx context.Context) error
	Close() error

	DatabaseName() string
	DefaultSchema() string
	AdapterName() string
}

// TableIntrospector describes one table per call. Engines without a
// schema-wide catalog view, such as SQLite's PRAGMA functions, implement it.
type TableIntrospector interface {
	Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error)
	Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error)
	ForeignKeys(ctx context.Context, db, schemaName, table string) ([]schema.ForeignKey, error)
}

// BatchIntrospector loads a whole schema's columns, indexes and foreign keys
// with one query each, keyed by table name.
type BatchIntrospector interface {
	AllColumns(ctx context.Context, db, schemaName string) (map[string][]schema.Column, error)
	AllIndexes(ctx context.Context, db, schemaName string) (map[string][]schema.Index, error)
	AllForeignKeys(ctx context.Context, db, schemaName string) (map[string][]schema.ForeignKey, error)
}

// QueryResult holds the rows of one query.
type QueryResult struct {
	Columns  []ColumnMeta  `json:"columns"`
	Rows     [][]string    `json:"rows"`
	RowCount int64         `json:"row_count"`
	Duration time.Duration `json:"duration"`
}

// ColumnMeta holds metadata about a result column.
type ColumnMeta struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// NullText is how SQL NULL is rendered in result rows.
const NullText = "NULL"

// ScanRows drains a database/sql result set into a QueryResult. Every value
// is scanned as text; NULL becomes NullText. Drivers built on database/sql
// share it.
func ScanRows(ctx context.Context, rows *sql.Rows, start time.Time) (*QueryResult, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	cols := make([]ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = ColumnMeta{
			Name: ct.Name(),
			Type: ct.DatabaseTypeName(),
		}
		if nullable, ok := ct.Nullable(); ok {
			cols[i].Nullable = nullable
		}
	}

	scanDest := make([]any, len(cols))
	for i := range scanDest {
		scanDest[i] = new(sql.NullString)
	}

	var out [][]string
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range scanDest {
			ns := v.(*sql.NullString)
			if ns.Valid {
				row[i] = ns.String
			} else {
				row[i] = NullText
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &QueryResult{
		Columns:  cols,
		Rows:     out,
		RowCount: int64(len(out)),
		Duration: time.Since(start),
	}, nil
}

// Querier is the query half of *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// EachRow runs query and calls fn once per row, stopping at the first error.
// Drivers built on database/sql use it for catalog queries.
func EachRow(ctx context.Context, q Querier, fn func(*sql.Rows) error, query string, args ...any) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// IsReadOnly reports whether query starts with a statement keyword that
// cannot modify data.
func IsReadOnly(query string) bool {
	trimmed := strings.TrimSpace(strings.ToUpper(query))
	for _, kw := range []string{"SELECT", "WITH", "EXPLAIN", "SHOW", "DESCRIBE", "PRAGMA"} {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}

// Registry holds registered adapters by name.
var Registry = map[string]Adapter{}

// Register adds an adapter to the global registry.
func Register(a Adapter) {
	Registry[a.Name()] = a
}

// Names returns the registered adapter names, sorted.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects through the adapter registered as name.
func Open(ctx context.Context, name, dsn string) (Connection, error) {
	a, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownAdapter, name, strings.Join(Names(), ", "))
	}
	return a.Connect(ctx, dsn)
}

// DetectAdapter guesses the adapter name from a DSN's scheme or file
// extension. A bare user@host DSN is taken as postgres. It returns "" when
// nothing matches.
func DetectAdapter(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"), strings.Contains(lower, "@tcp("):
		return "mysql"
	case strings.HasPrefix(lower, "duckdb://"), strings.HasSuffix(lower, ".duckdb"), strings.HasSuffix(lower, ".ddb"):
		return "duckdb"
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"),
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"),
		lower == ":memory:":
		return "sqlite"
	}
	if strings.Contains(dsn, "@") {
		return "postgres"
	}
	return ""
}
