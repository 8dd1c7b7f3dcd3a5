//go:build duckdb

package duckdb

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/sadopc/askql/internal/adapter"
)

func connectMemory(t *testing.T) *duckdbConn {
	t.Helper()
	conn, err := duckdbAdapter{}.Connect(context.Background(), "")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn.(*duckdbConn)
}

func TestParseIndexColumns(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"CREATE INDEX idx ON tbl (col1, col2)", []string{"col1", "col2"}},
		{"CREATE UNIQUE INDEX u ON t(a)", []string{"a"}},
		{"", nil},
		{"CREATE INDEX broken", nil},
	}
	for _, tt := range tests {
		if got := parseIndexColumns(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseIndexColumns(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestQuery_InMemory(t *testing.T) {
	c := connectMemory(t)
	ctx := context.Background()

	for _, stmt := range []string{
		"CREATE TABLE departments (id INTEGER PRIMARY KEY, code VARCHAR, name VARCHAR)",
		"CREATE TABLE metrics (id INTEGER PRIMARY KEY, department_id INTEGER REFERENCES departments(id), metric_name VARCHAR, metric_value DOUBLE, metric_date DATE)",
		"INSERT INTO departments VALUES (1, 'sales', 'Sales')",
		"INSERT INTO metrics VALUES (1, 1, 'arr', 5000, DATE '2024-11-02'), (2, 1, 'arr', 4000, DATE '2024-06-01')",
	} {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	res, err := c.Query(ctx, "SELECT metric_value FROM metrics WHERE metric_date >= ? ORDER BY id", "2024-10-01")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.RowCount != 1 || res.Rows[0][0] != "5000" {
		t.Errorf("rows = %v", res.Rows)
	}

	cat, err := adapter.Discover(ctx, c, "", "")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	m, ok := cat.Table("metrics")
	if !ok || len(m.Columns) != 5 {
		t.Fatalf("metrics = %+v", m)
	}
	if len(m.FKs) != 1 || m.FKs[0].RefTable != "departments" {
		t.Errorf("metrics foreign keys = %+v", m.FKs)
	}
	if !m.Columns[0].IsPK || m.Columns[1].IsPK {
		t.Errorf("primary key flags = %+v", m.Columns)
	}
}

func TestQuery_RejectsWrites(t *testing.T) {
	c := connectMemory(t)
	_, err := c.Query(context.Background(), "CREATE TABLE t (id INTEGER)")
	if !errors.Is(err, errNotReadOnly) {
		t.Errorf("Query() error = %v, want errNotReadOnly", err)
	}
	if c.DefaultSchema() != "main" || c.DatabaseName() != "memory" {
		t.Errorf("scope = %s.%s, want memory.main", c.DatabaseName(), c.DefaultSchema())
	}
}
