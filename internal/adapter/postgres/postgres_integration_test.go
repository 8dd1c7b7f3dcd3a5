package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/askql/internal/adapter"
	"github.com/sadopc/askql/internal/nlq"
)

// Default DSN for a local PostgreSQL.
// Override with ASKQL_PG_DSN env var.
const defaultTestDSN = "postgres://localhost:5432/askql_test?sslmode=disable"

func testDSN() string {
	if dsn := os.Getenv("ASKQL_PG_DSN"); dsn != "" {
		return dsn
	}
	return defaultTestDSN
}

func connectForTest(t *testing.T) *pgConn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := postgresAdapter{}.Connect(ctx, testDSN())
	if err != nil {
		t.Skipf("skipping: cannot connect to PostgreSQL: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn.(*pgConn)
}

// seedMetrics creates the metrics schema in a throwaway schema and returns
// its name.
func seedMetrics(t *testing.T, c *pgConn) string {
	t.Helper()
	ctx := context.Background()
	const s = "askql_it"

	stmts := []string{
		"DROP SCHEMA IF EXISTS " + s + " CASCADE",
		"CREATE SCHEMA " + s,
		`CREATE TABLE ` + s + `.departments (
			id   SERIAL PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE ` + s + `.metrics (
			id                SERIAL PRIMARY KEY,
			department_id     INT NOT NULL REFERENCES ` + s + `.departments(id),
			metric_name       TEXT NOT NULL,
			metric_value      NUMERIC NOT NULL,
			percentage_change NUMERIC,
			metric_date       DATE NOT NULL
		)`,
		`INSERT INTO ` + s + `.departments (code, name) VALUES ('sales', 'Sales'), ('finance', 'Finance')`,
		`INSERT INTO ` + s + `.metrics (department_id, metric_name, metric_value, percentage_change, metric_date) VALUES
			(1, 'total_pipeline', 1200, 4.5, CURRENT_DATE),
			(1, 'total_pipeline', 800, 2.0, CURRENT_DATE - 40),
			(1, 'arr', 5000, 1.5, CURRENT_DATE),
			(2, 'burn_rate', 300, -3.0, CURRENT_DATE)`,
	}
	for _, stmt := range stmts {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	t.Cleanup(func() {
		c.pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+s+" CASCADE") //nolint:errcheck
	})
	return s
}

func TestIntegration_ConnectAndPing(t *testing.T) {
	conn := connectForTest(t)

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if conn.AdapterName() != "postgres" {
		t.Errorf("AdapterName() = %q, want %q", conn.AdapterName(), "postgres")
	}
	if conn.DatabaseName() == "" {
		t.Error("DatabaseName() is empty")
	}
}

// connectInSchema opens a second connection whose search_path is schemaName,
// so the compiler's unqualified table names resolve there.
func connectInSchema(t *testing.T, schemaName string) *pgConn {
	t.Helper()
	dsn := testDSN()
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := postgresAdapter{}.Connect(context.Background(), dsn+sep+"search_path="+schemaName)
	if err != nil {
		t.Fatalf("connect with search_path: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn.(*pgConn)
}

func TestIntegration_DiscoverAndAsk(t *testing.T) {
	s := seedMetrics(t, connectForTest(t))
	conn := connectInSchema(t, s)
	ctx := context.Background()

	cat, err := adapter.Discover(ctx, conn, "", s)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	m, ok := cat.Table("metrics")
	if !ok {
		t.Fatal("metrics table not discovered")
	}
	if len(m.FKs) != 1 || m.FKs[0].RefTable != "departments" ||
		m.FKs[0].Columns[0] != "department_id" || m.FKs[0].RefColumns[0] != "id" {
		t.Errorf("metrics foreign keys = %+v", m.FKs)
	}
	if len(m.Columns) != 6 || !m.Columns[0].IsPK || m.Columns[1].IsPK {
		t.Errorf("metrics columns = %+v", m.Columns)
	}
	d, _ := cat.Table("departments")
	var uniqueCode bool
	for _, idx := range d.Indexes {
		uniqueCode = uniqueCode || (idx.Unique && len(idx.Columns) == 1 && idx.Columns[0] == "code")
	}
	if !uniqueCode {
		t.Errorf("departments indexes = %+v, want unique code", d.Indexes)
	}

	c, err := nlq.New(nil, nlq.Options{Dialect: "postgres"})
	if err != nil {
		t.Fatalf("nlq.New: %v", err)
	}
	q, err := c.Compile(nlq.Request{Question: "total pipeline this month"}, cat)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	res, err := conn.Query(ctx, q.SQL, q.Parameters...)
	if err != nil {
		t.Fatalf("Query(%s): %v", q.SQL, err)
	}
	if res.RowCount != 1 {
		t.Fatalf("got %d rows, want 1: %v", res.RowCount, res.Rows)
	}
	if res.Rows[0][0] != "Sales" || res.Rows[0][1] != "total_pipeline" || res.Rows[0][2] != "1200" {
		t.Errorf("row = %v", res.Rows[0])
	}
}

func TestIntegration_QueryIsReadOnly(t *testing.T) {
	conn := connectForTest(t)
	s := seedMetrics(t, conn)
	ctx := context.Background()

	// Passes the keyword check but writes through a CTE.
	_, err := conn.Query(ctx, "WITH d AS (DELETE FROM "+s+".metrics RETURNING id) SELECT count(*) FROM d")
	if err == nil {
		t.Fatal("write inside a read-only transaction succeeded")
	}

	res, err := conn.Query(ctx, "SELECT count(*) FROM "+s+".metrics")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if res.Rows[0][0] != "4" {
		t.Errorf("metrics rows = %s, want 4", res.Rows[0][0])
	}
}

func TestIntegration_Cancel(t *testing.T) {
	conn := connectForTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := conn.Query(ctx, "SELECT pg_sleep(5)")
	if err == nil {
		t.Fatal("expected the query to be cancelled")
	}
	if !errors.Is(err, adapter.ErrCancelled) && ctx.Err() == nil {
		t.Errorf("Query error = %v, want cancellation", err)
	}
}
