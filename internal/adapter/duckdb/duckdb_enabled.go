//go:build duckdb

package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/sadopc/askql/internal/adapter"
	"github.com/sadopc/askql/internal/schema"
)

func init() {
	adapter.Register(duckdbAdapter{})
}

var errNotReadOnly = errors.New("only read-only statements are allowed")

// mainSchema is DuckDB's default schema in every catalog.
const mainSchema = "main"

type duckdbAdapter struct{}

func (duckdbAdapter) Name() string     { return "duckdb" }
func (duckdbAdapter) DefaultPort() int { return 0 }

// Connect opens a database file, or an in-memory database for an empty DSN.
// The duckdb:// prefix is optional.
func (duckdbAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	path := strings.TrimPrefix(dsn, "duckdb://")
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	// DuckDB names the catalog after the file stem; ask rather than derive it.
	var catalog string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&catalog); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: current database: %w", err)
	}
	return &duckdbConn{db: db, catalog: catalog}, nil
}

type duckdbConn struct {
	db      *sql.DB
	catalog string

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ adapter.BatchIntrospector = (*duckdbConn)(nil)

func (c *duckdbConn) DatabaseName() string  { return c.catalog }
func (c *duckdbConn) DefaultSchema() string { return mainSchema }
func (c *duckdbConn) AdapterName() string   { return "duckdb" }

func (c *duckdbConn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *duckdbConn) Close() error                   { return c.db.Close() }

// Cancel interrupts the running query, if any.
func (c *duckdbConn) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Catalog queries go through DuckDB's table functions, which cover every
// attached database and carry list-typed key columns.

const tablesSQL = `
	SELECT table_name
	FROM duckdb_tables()
	WHERE database_name = ? AND schema_name = ? AND NOT internal
	ORDER BY table_name`

func (c *duckdbConn) Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error) {
	var tables []schema.Table
	err := adapter.EachRow(ctx, c.db, func(rows *sql.Rows) error {
		var t schema.Table
		if err := rows.Scan(&t.Name); err != nil {
			return err
		}
		tables = append(tables, t)
		return nil
	}, tablesSQL, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("duckdb: tables: %w", err)
	}
	return tables, nil
}

const columnsSQL = `
	SELECT c.table_name, c.column_name, c.data_type, c.is_nullable,
	       COALESCE(c.column_default, ''),
	       EXISTS (
	           SELECT 1 FROM duckdb_constraints() k
	           WHERE k.database_name = c.database_name
	             AND k.schema_name   = c.schema_name
	             AND k.table_name    = c.table_name
	             AND k.constraint_type = 'PRIMARY KEY'
	             AND list_contains(k.constraint_column_names, c.column_name))
	FROM duckdb_columns() c
	WHERE c.database_name = ? AND c.schema_name = ?
	ORDER BY c.table_name, c.column_index`

func (c *duckdbConn) AllColumns(ctx context.Context, db, schemaName string) (map[string][]schema.Column, error) {
	out := make(map[string][]schema.Column)
	err := adapter.EachRow(ctx, c.db, func(rows *sql.Rows) error {
		var (
			table string
			col   schema.Column
		)
		if err := rows.Scan(&table, &col.Name, &col.Type, &col.Nullable, &col.Default, &col.IsPK); err != nil {
			return err
		}
		out[table] = append(out[table], col)
		return nil
	}, columnsSQL, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("duckdb: columns: %w", err)
	}
	return out, nil
}

const indexesSQL = `
	SELECT table_name, index_name, is_unique, COALESCE(sql, '')
	FROM duckdb_indexes()
	WHERE database_name = ? AND schema_name = ?
	ORDER BY table_name, index_name`

// AllIndexes lists explicit CREATE INDEX indexes. Key columns are read back
// from the index definition since duckdb_indexes() only exposes expressions.
func (c *duckdbConn) AllIndexes(ctx context.Context, db, schemaName string) (map[string][]schema.Index, error) {
	out := make(map[string][]schema.Index)
	err := adapter.EachRow(ctx, c.db, func(rows *sql.Rows) error {
		var (
			table, def string
			idx        schema.Index
		)
		if err := rows.Scan(&table, &idx.Name, &idx.Unique, &def); err != nil {
			return err
		}
		idx.Columns = parseIndexColumns(def)
		out[table] = append(out[table], idx)
		return nil
	}, indexesSQL, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("duckdb: indexes: %w", err)
	}
	return out, nil
}

// parseIndexColumns returns the parenthesized column list of a CREATE INDEX
// statement.
func parseIndexColumns(def string) []string {
	open, end := strings.LastIndex(def, "("), strings.LastIndex(def, ")")
	if open < 0 || end <= open {
		return nil
	}
	var cols []string
	for _, part := range strings.Split(def[open+1:end], ",") {
		if col := strings.TrimSpace(part); col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

// The referenced side of a foreign key is resolved through the unique
// constraint it points at, pairing columns by ordinal position.
const foreignKeysSQL = `
	SELECT src.table_name, rc.constraint_name, dst.table_name,
	       string_agg(src.column_name, ',' ORDER BY src.ordinal_position),
	       string_agg(dst.column_name, ',' ORDER BY src.ordinal_position)
	FROM information_schema.referential_constraints rc
	JOIN information_schema.key_column_usage src
	  ON src.constraint_catalog = rc.constraint_catalog
	 AND src.constraint_schema  = rc.constraint_schema
	 AND src.constraint_name    = rc.constraint_name
	JOIN information_schema.key_column_usage dst
	  ON dst.constraint_catalog = rc.unique_constraint_catalog
	 AND dst.constraint_schema  = rc.unique_constraint_schema
	 AND dst.constraint_name    = rc.unique_constraint_name
	 AND dst.ordinal_position   = src.ordinal_position
	WHERE src.table_catalog = ? AND src.table_schema = ?
	GROUP BY src.table_name, rc.constraint_name, dst.table_name
	ORDER BY src.table_name, rc.constraint_name`

func (c *duckdbConn) AllForeignKeys(ctx context.Context, db, schemaName string) (map[string][]schema.ForeignKey, error) {
	out := make(map[string][]schema.ForeignKey)
	err := adapter.EachRow(ctx, c.db, func(rows *sql.Rows) error {
		var (
			table, cols, refCols string
			fk                   schema.ForeignKey
		)
		if err := rows.Scan(&table, &fk.Name, &fk.RefTable, &cols, &refCols); err != nil {
			return err
		}
		fk.Columns = strings.Split(cols, ",")
		fk.RefColumns = strings.Split(refCols, ",")
		out[table] = append(out[table], fk)
		return nil
	}, foreignKeysSQL, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("duckdb: foreign keys: %w", err)
	}
	return out, nil
}

// Query runs a read-only statement with ? placeholders.
func (c *duckdbConn) Query(ctx context.Context, query string, args ...any) (*adapter.QueryResult, error) {
	if !adapter.IsReadOnly(query) {
		return nil, fmt.Errorf("duckdb: query: %w", errNotReadOnly)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}()

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("duckdb: query: %w", err)
	}
	defer rows.Close()

	res, err := adapter.ScanRows(ctx, rows, start)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query: %w", err)
	}
	return res, nil
}
