package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/sadopc/askql/internal/config"
	"github.com/sadopc/askql/internal/schema"
	"github.com/sadopc/askql/internal/service"
)

const catalogYAML = `schema: public
tables:
  - name: departments
    columns:
      - {name: id, type: integer}
      - {name: code, type: text}
      - {name: name, type: text}
  - name: metrics
    columns:
      - {name: department_id, type: integer}
      - {name: metric_name, type: text}
      - {name: metric_value, type: numeric}
      - {name: percentage_change, type: numeric, nullable: true}
      - {name: metric_date, type: date}
`

// isolate points the config directory at a temp dir and clears $ASKQL_DSN.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(envDSN, "")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	for _, stmt := range []string{
		`CREATE TABLE departments (id INTEGER PRIMARY KEY, code TEXT NOT NULL, name TEXT NOT NULL)`,
		`CREATE TABLE metrics (
			id INTEGER PRIMARY KEY,
			department_id INTEGER NOT NULL REFERENCES departments(id),
			metric_name TEXT NOT NULL,
			metric_value INTEGER NOT NULL,
			percentage_change REAL,
			metric_date TEXT NOT NULL
		)`,
		`INSERT INTO departments (id, code, name) VALUES (1, 'sales', 'Sales'), (2, 'finance', 'Finance')`,
		`INSERT INTO metrics (department_id, metric_name, metric_value, percentage_change, metric_date) VALUES
			(1, 'total_pipeline', 1200, 4.5, date('now')),
			(2, 'burn_rate', 300, NULL, date('now'))`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return path
}

func TestConnection(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Connections = []config.SavedConnection{
		{Name: "local", Adapter: "SQLite", File: "/data/metrics.db"},
		{Name: "prod", Adapter: "postgres", Host: "db", User: "ro", Database: "analytics"},
	}

	tests := []struct {
		name        string
		opts        options
		env         string
		wantAdapter string
		wantDSN     string
		wantErr     bool
	}{
		{name: "nothing", opts: options{}},
		{name: "saved file connection", opts: options{conn: "local"}, wantAdapter: "sqlite", wantDSN: "/data/metrics.db"},
		{name: "saved network connection", opts: options{conn: "prod"}, wantAdapter: "postgres", wantDSN: "postgres://ro@db/analytics"},
		{name: "unknown saved connection", opts: options{conn: "staging"}, wantErr: true},
		{name: "dsn flag", opts: options{dsn: "root:pw@tcp(db:3306)/app"}, wantAdapter: "mysql", wantDSN: "root:pw@tcp(db:3306)/app"},
		{name: "env dsn", env: "./metrics.duckdb", wantAdapter: "duckdb", wantDSN: "./metrics.duckdb"},
		{name: "flag beats env", opts: options{dsn: "a.db"}, env: "b.duckdb", wantAdapter: "sqlite", wantDSN: "a.db"},
		{name: "adapter flag overrides detection", opts: options{dsn: "warehouse", adapter: "duckdb"}, wantAdapter: "duckdb", wantDSN: "warehouse"},
		{
			name:        "built from fields",
			opts:        options{adapter: "mysql", host: "db", user: "root", database: "app"},
			wantAdapter: "mysql",
			wantDSN:     "root@tcp(db:3306)/app",
		},
		{name: "undetectable dsn", opts: options{dsn: "warehouse"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envDSN, tt.env)
			o := tt.opts
			o.cfg = cfg
			gotAdapter, gotDSN, err := o.connection()
			if (err != nil) != tt.wantErr {
				t.Fatalf("connection() error = %v, wantErr %v", err, tt.wantErr)
			}
			if gotAdapter != tt.wantAdapter || gotDSN != tt.wantDSN {
				t.Errorf("connection() = %q, %q, want %q, %q", gotAdapter, gotDSN, tt.wantAdapter, tt.wantDSN)
			}
		})
	}
}

func TestCompileCommand_CatalogFile(t *testing.T) {
	dir := isolate(t)
	catPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catPath, []byte(catalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "compile", "--catalog", catPath, "--format", "json", "total", "arr", "for", "sales", "in", "q3")
	if err != nil {
		t.Fatalf("compile error = %v", err)
	}
	var q struct {
		SQL             string   `json:"sql"`
		Parameters      []any    `json:"parameters"`
		Dialect         string   `json:"dialect"`
		MatchedPatterns []string `json:"matched_patterns"`
	}
	if err := json.Unmarshal([]byte(out), &q); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if q.Dialect != "postgres" || !strings.Contains(q.SQL, "$1") {
		t.Errorf("compiled = %+v", q)
	}
	if len(q.MatchedPatterns) == 0 {
		t.Error("no patterns reported")
	}

	out, err = run(t, "compile", "--catalog", catPath, "--dialect", "mysql", "--debug", "burn rate last month")
	if err != nil {
		t.Fatalf("compile text error = %v", err)
	}
	for _, want := range []string{"?", "Parameters:", "Explanation:", "Patterns:"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestCompileCommand_NoSchema(t *testing.T) {
	isolate(t)
	_, err := run(t, "compile", "arr")
	if !errors.Is(err, service.ErrNoConnection) {
		t.Errorf("compile without schema error = %v, want ErrNoConnection", err)
	}
}

func TestAskCommand_SQLite(t *testing.T) {
	isolate(t)
	dbPath := seedSQLite(t)

	out, err := run(t, "ask", "--dsn", dbPath, "--format", "csv", "total pipeline this month")
	if err != nil {
		t.Fatalf("ask error = %v", err)
	}
	if !strings.Contains(out, "total_pipeline") || !strings.Contains(out, "1200") {
		t.Errorf("ask output:\n%s", out)
	}

	out, err = run(t, "history", "--format", "json")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("invalid history JSON: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0]["question"] != "total pipeline this month" || entries[0]["dialect"] != "sqlite" {
		t.Errorf("history = %v", entries)
	}

	if _, err := run(t, "history", "--clear"); err != nil {
		t.Fatal(err)
	}
	out, _ = run(t, "history", "--format", "json")
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("history after clear = %s", out)
	}
}

func TestAskCommand_RequiresConnection(t *testing.T) {
	isolate(t)
	if _, err := run(t, "ask", "arr"); !errors.Is(err, service.ErrNoConnection) {
		t.Errorf("ask error = %v, want ErrNoConnection", err)
	}
}

func TestSchemaCommand(t *testing.T) {
	dir := isolate(t)
	dbPath := seedSQLite(t)
	outPath := filepath.Join(dir, "catalog.json")

	out, err := run(t, "schema", "--dsn", dbPath, "-o", outPath)
	if err != nil {
		t.Fatalf("schema error = %v", err)
	}
	if !strings.Contains(out, "Wrote 2 tables") {
		t.Errorf("schema output = %q", out)
	}
	cat, err := schema.LoadCatalog(outPath)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if _, ok := cat.Table("metrics"); !ok {
		t.Error("metrics missing from saved catalog")
	}

	// The saved catalog compiles offline.
	if _, err := run(t, "compile", "--catalog", outPath, "--dialect", "sqlite", "arr"); err != nil {
		t.Errorf("compile from saved catalog error = %v", err)
	}
}

func TestVocabCommand(t *testing.T) {
	isolate(t)
	out, err := run(t, "vocab", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"departments", "date_ranges", "aggregations", "metrics", "comparisons"} {
		if _, ok := v[key]; !ok {
			t.Errorf("vocabulary missing %q", key)
		}
	}

	out, err = run(t, "vocab")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "departments:") {
		t.Errorf("yaml output = %s", out)
	}

	if _, err := run(t, "vocab", "--path", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("vocab accepted a missing file")
	}
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"askql dev", "sqlite", "postgres", "mysql"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "askql", "config.yaml")

	out, err := run(t, "--config", path, "config", "path")
	if err != nil || strings.TrimSpace(out) != path {
		t.Fatalf("config path = %q, %v", out, err)
	}

	if _, err := run(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := run(t, "--config", path, "config", "init"); err == nil {
		t.Error("config init overwrote an existing file without --force")
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Theme != "default" || !cfg.History.Enabled {
		t.Errorf("written config = %+v", cfg)
	}

	out, _ = run(t, "--config", path, "config", "connections")
	if !strings.Contains(out, "No saved connections") {
		t.Errorf("connections = %q", out)
	}

	cfg.Connections = []config.SavedConnection{
		{Name: "local", Adapter: "sqlite", File: "/data/metrics.db"},
		{Name: "warehouse", Adapter: "postgres", Host: "db", Port: 5432, User: "ro", Password: "hunter2", Database: "analytics"},
	}
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "--config", path, "config", "connections")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"sqlite:///data/metrics.db", "postgres://db:5432/analytics"} {
		if !strings.Contains(out, want) {
			t.Errorf("connections missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Error("connections listing leaked a password")
	}
}
