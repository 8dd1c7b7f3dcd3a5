package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sadopc/askql/internal/adapter"
	"github.com/sadopc/askql/internal/schema"
)

func init() {
	adapter.Register(postgresAdapter{})
}

type postgresAdapter struct{}

func (postgresAdapter) Name() string     { return "postgres" }
func (postgresAdapter) DefaultPort() int { return 5432 }

// Connect accepts URL and keyword=value DSNs, plus the PG* environment
// variables pgx reads for anything the DSN leaves out.
func (postgresAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	// Without a database in the DSN the server picks one.
	dbName := cfg.ConnConfig.Database
	if dbName == "" {
		if err := pool.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres current database: %w", err)
		}
	}
	return &pgConn{pool: pool, dbName: dbName}, nil
}

type pgConn struct {
	pool   *pgxpool.Pool
	dbName string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// defaultSchema is where unqualified tables resolve on a stock server.
const defaultSchema = "public"

func (c *pgConn) DatabaseName() string  { return c.dbName }
func (c *pgConn) DefaultSchema() string { return defaultSchema }
func (c *pgConn) AdapterName() string   { return "postgres" }

func (c *pgConn) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *pgConn) Close() error {
	c.pool.Close()
	return nil
}

// Cancel interrupts the running query, if any. pgx turns the cancelled
// context into a protocol-level cancel request.
func (c *pgConn) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// track makes cancel reachable from Cancel until the returned func runs.
func (c *pgConn) track(cancel context.CancelFunc) (untrack func()) {
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}
}

// Discovery runs one query per kind of object for the whole schema and
// returns the results keyed by table name.

var _ adapter.BatchIntrospector = (*pgConn)(nil)

func (c *pgConn) Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT table_name
		 FROM information_schema.tables
		 WHERE table_catalog = $1 AND table_schema = $2 AND table_type = 'BASE TABLE'
		 ORDER BY table_name`, db, orDefault(schemaName))
	if err != nil {
		return nil, fmt.Errorf("postgres tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres tables: %w", err)
	}
	tables := make([]schema.Table, len(names))
	for i, name := range names {
		tables[i] = schema.Table{Name: name}
	}
	return tables, nil
}

const allColumnsSQL = `
SELECT c.table_name, c.column_name, c.data_type,
       c.is_nullable = 'YES', COALESCE(c.column_default, ''),
       EXISTS (
           SELECT 1
           FROM information_schema.table_constraints tc
           JOIN information_schema.key_column_usage k
             ON k.constraint_schema = tc.constraint_schema
            AND k.constraint_name   = tc.constraint_name
           WHERE tc.constraint_type = 'PRIMARY KEY'
             AND k.table_schema = c.table_schema
             AND k.table_name   = c.table_name
             AND k.column_name  = c.column_name)
FROM information_schema.columns c
WHERE c.table_catalog = $1 AND c.table_schema = $2
ORDER BY c.table_name, c.ordinal_position`

func (c *pgConn) AllColumns(ctx context.Context, db, schemaName string) (map[string][]schema.Column, error) {
	rows, err := c.pool.Query(ctx, allColumnsSQL, db, orDefault(schemaName))
	if err != nil {
		return nil, fmt.Errorf("postgres columns: %w", err)
	}
	out := make(map[string][]schema.Column)
	var (
		table string
		col   schema.Column
	)
	_, err = pgx.ForEachRow(rows, []any{&table, &col.Name, &col.Type, &col.Nullable, &col.Default, &col.IsPK}, func() error {
		out[table] = append(out[table], col)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres columns: %w", err)
	}
	return out, nil
}

// Index keys are unnested WITH ORDINALITY so composite columns keep their
// declared order.
const allIndexesSQL = `
SELECT t.relname, i.relname, ix.indisunique,
       array_agg(a.attname::text ORDER BY k.pos)
FROM pg_index ix
JOIN pg_class t     ON t.oid = ix.indrelid
JOIN pg_class i     ON i.oid = ix.indexrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, pos)
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname = $1
GROUP BY t.relname, i.relname, ix.indisunique
ORDER BY t.relname, i.relname`

func (c *pgConn) AllIndexes(ctx context.Context, _, schemaName string) (map[string][]schema.Index, error) {
	rows, err := c.pool.Query(ctx, allIndexesSQL, orDefault(schemaName))
	if err != nil {
		return nil, fmt.Errorf("postgres indexes: %w", err)
	}
	out := make(map[string][]schema.Index)
	var (
		table string
		idx   schema.Index
	)
	_, err = pgx.ForEachRow(rows, []any{&table, &idx.Name, &idx.Unique, &idx.Columns}, func() error {
		out[table] = append(out[table], idx)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres indexes: %w", err)
	}
	return out, nil
}

// conkey and confkey are parallel arrays; unnesting them together pairs each
// local column with the column it references.
const allForeignKeysSQL = `
SELECT t.relname, con.conname, r.relname,
       array_agg(a.attname::text  ORDER BY k.pos),
       array_agg(ra.attname::text ORDER BY k.pos)
FROM pg_constraint con
JOIN pg_class t     ON t.oid = con.conrelid
JOIN pg_class r     ON r.oid = con.confrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refnum, pos)
JOIN pg_attribute a  ON a.attrelid  = con.conrelid  AND a.attnum  = k.attnum
JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refnum
WHERE con.contype = 'f' AND n.nspname = $1
GROUP BY t.relname, con.conname, r.relname
ORDER BY t.relname, con.conname`

func (c *pgConn) AllForeignKeys(ctx context.Context, _, schemaName string) (map[string][]schema.ForeignKey, error) {
	rows, err := c.pool.Query(ctx, allForeignKeysSQL, orDefault(schemaName))
	if err != nil {
		return nil, fmt.Errorf("postgres foreign keys: %w", err)
	}
	out := make(map[string][]schema.ForeignKey)
	var (
		table string
		fk    schema.ForeignKey
	)
	_, err = pgx.ForEachRow(rows, []any{&table, &fk.Name, &fk.RefTable, &fk.Columns, &fk.RefColumns}, func() error {
		out[table] = append(out[table], fk)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres foreign keys: %w", err)
	}
	return out, nil
}

func orDefault(schemaName string) string {
	if schemaName == "" {
		return defaultSchema
	}
	return schemaName
}

// Query runs query with $n placeholders inside a read-only transaction, so a
// statement that slips past IsReadOnly still cannot write.
func (c *pgConn) Query(ctx context.Context, query string, args ...any) (*adapter.QueryResult, error) {
	if !adapter.IsReadOnly(query) {
		return nil, fmt.Errorf("postgres query: only read-only statements are allowed")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer c.track(cancel)()

	start := time.Now()
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("postgres begin: %w", err)
	}
	defer tx.Rollback(context.Background()) //nolint:errcheck

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	cols := fieldDescToMeta(rows.FieldDescriptions())
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]string, error) {
		vals, err := row.Values()
		if err != nil {
			return nil, err
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = valueToString(v)
		}
		return cells, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("postgres rows: %w", err)
	}

	return &adapter.QueryResult{
		Columns:  cols,
		Rows:     out,
		RowCount: int64(len(out)),
		Duration: time.Since(start),
	}, nil
}

// typeMap resolves OIDs of the built-in types. Lookups only read it.
var typeMap = pgtype.NewMap()

// fieldDescToMeta converts pgx field descriptions to adapter ColumnMeta.
func fieldDescToMeta(fds []pgconn.FieldDescription) []adapter.ColumnMeta {
	cols := make([]adapter.ColumnMeta, len(fds))
	for i, fd := range fds {
		cols[i] = adapter.ColumnMeta{
			Name: fd.Name,
			Type: typeName(fd.DataTypeOID),
		}
	}
	return cols
}

// typeName maps a type OID to its PostgreSQL name.
func typeName(oid uint32) string {
	if t, ok := typeMap.TypeForOID(oid); ok {
		return t.Name
	}
	return "oid:" + strconv.FormatUint(uint64(oid), 10)
}

// valueToString renders a decoded value the way psql would print it.
func valueToString(v any) string {
	switch val := v.(type) {
	case nil:
		return adapter.NullText
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case bool:
		return strconv.FormatBool(val)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Numeric:
		dv, err := val.Value()
		if err != nil || dv == nil {
			return adapter.NullText
		}
		return fmt.Sprint(dv)
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = valueToString(e)
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return fmt.Sprint(v)
	}
}
