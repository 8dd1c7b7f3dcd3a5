package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sadopc/askql/internal/adapter"
	"github.com/sadopc/askql/internal/schema"

	_ "modernc.org/sqlite"
)

func init() {
	adapter.Register(sqliteAdapter{})
}

var errNotReadOnly = errors.New("only read-only statements are allowed")

// mainSchema is the schema name SQLite gives the opened database.
const mainSchema = "main"

const memoryDSN = ":memory:"

type sqliteAdapter struct{}

func (sqliteAdapter) Name() string     { return "sqlite" }
func (sqliteAdapter) DefaultPort() int { return 0 }

func (sqliteAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	path := normalizeDSN(dsn)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// Every connection to :memory: would see its own empty database.
	if path == memoryDSN {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}

	name := path
	if path != memoryDSN {
		name = filepath.Base(path)
	}
	return &sqliteConn{db: db, dbName: name}, nil
}

// normalizeDSN strips a sqlite:// or file: prefix, leaving a path the driver
// accepts.
func normalizeDSN(dsn string) string {
	for _, prefix := range []string{"sqlite://", "file:"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return rest
		}
	}
	return dsn
}

type sqliteConn struct {
	db     *sql.DB
	dbName string

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ adapter.TableIntrospector = (*sqliteConn)(nil)

func (c *sqliteConn) AdapterName() string   { return "sqlite" }
func (c *sqliteConn) DatabaseName() string  { return c.dbName }
func (c *sqliteConn) DefaultSchema() string { return mainSchema }

func (c *sqliteConn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *sqliteConn) Close() error                   { return c.db.Close() }

// SQLite has one database per file and no schema-wide catalog view, so
// tables are described one at a time through the pragma table functions.
// db and schemaName are accepted for the interface and ignored.

func (c *sqliteConn) Tables(ctx context.Context, _, _ string) ([]schema.Table, error) {
	var tables []schema.Table
	err := adapter.EachRow(ctx, c.db, func(rows *sql.Rows) error {
		var t schema.Table
		if err := rows.Scan(&t.Name); err != nil {
			return err
		}
		tables = append(tables, t)
		return nil
	}, `SELECT name FROM sqlite_schema
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite tables: %w", err)
	}
	return tables, nil
}

// Columns reports the rowid alias of an INTEGER PRIMARY KEY as nullable,
// matching what table_info says about it.
func (c *sqliteConn) Columns(ctx context.Context, _, _, table string) ([]schema.Column, error) {
	var cols []schema.Column
	err := adapter.EachRow(ctx, c.db, func(rows *sql.Rows) error {
		var (
			col  schema.Column
			dflt sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &dflt, &col.IsPK); err != nil {
			return err
		}
		col.Default = dflt.String
		cols = append(cols, col)
		return nil
	}, `SELECT name, type, "notnull" = 0, dflt_value, pk > 0
		FROM pragma_table_info(?)
		ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite columns of %s: %w", table, err)
	}
	return cols, nil
}

// Indexes includes the automatic indexes behind UNIQUE constraints.
// Expression index keys have no column name and are skipped.
func (c *sqliteConn) Indexes(ctx context.Context, _, _, table string) ([]schema.Index, error) {
	var indexes []schema.Index
	err := adapter.EachRow(ctx, c.db, func(rows *sql.Rows) error {
		var (
			name   string
			unique bool
			col    sql.NullString
		)
		if err := rows.Scan(&name, &unique, &col); err != nil {
			return err
		}
		if n := len(indexes); n == 0 || indexes[n-1].Name != name {
			indexes = append(indexes, schema.Index{Name: name, Unique: unique})
		}
		if col.Valid {
			last := &indexes[len(indexes)-1]
			last.Columns = append(last.Columns, col.String)
		}
		return nil
	}, `SELECT il.name, il."unique", ii.name
		FROM pragma_index_list(?) il
		JOIN pragma_index_info(il.name) ii
		ORDER BY il.name, ii.seqno`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite indexes of %s: %w", table, err)
	}
	return indexes, nil
}

// ForeignKeys names each constraint fk_<table>_<id>; SQLite does not keep
// constraint names.
func (c *sqliteConn) ForeignKeys(ctx context.Context, _, _, table string) ([]schema.ForeignKey, error) {
	var fks []schema.ForeignKey
	lastID := -1
	err := adapter.EachRow(ctx, c.db, func(rows *sql.Rows) error {
		var (
			id        int
			ref, from string
			to        sql.NullString // NULL when the parent's primary key is implied
		)
		if err := rows.Scan(&id, &ref, &from, &to); err != nil {
			return err
		}
		if id != lastID {
			fks = append(fks, schema.ForeignKey{Name: fmt.Sprintf("fk_%s_%d", table, id), RefTable: ref})
			lastID = id
		}
		fk := &fks[len(fks)-1]
		fk.Columns = append(fk.Columns, from)
		fk.RefColumns = append(fk.RefColumns, to.String)
		return nil
	}, `SELECT id, "table", "from", "to"
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite foreign keys of %s: %w", table, err)
	}
	return fks, nil
}

// Query runs a read-only statement with ? placeholders.
func (c *sqliteConn) Query(ctx context.Context, query string, args ...any) (*adapter.QueryResult, error) {
	if !adapter.IsReadOnly(query) {
		return nil, fmt.Errorf("sqlite query: %w", errNotReadOnly)
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
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer rows.Close()

	res, err := adapter.ScanRows(ctx, rows, start)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	return res, nil
}

// Cancel interrupts the running query, if any.
func (c *sqliteConn) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}
