package schema

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCatalogLookup(t *testing.T) {
	cat := &Catalog{Tables: []Table{
		{Name: "Metrics", Columns: []Column{{Name: "Metric_Date"}}},
		{Name: "departments"},
	}}

	tbl, ok := cat.Table("metrics")
	if !ok {
		t.Fatal("Table(metrics) not found")
	}
	if tbl.Name != "Metrics" {
		t.Errorf("Table(metrics).Name = %q", tbl.Name)
	}
	if _, ok := tbl.Column("metric_date"); !ok {
		t.Error("Column(metric_date) not found")
	}
	if _, ok := tbl.Column("missing"); ok {
		t.Error("Column(missing) found")
	}
	if _, ok := cat.Table("nope"); ok {
		t.Error("Table(nope) found")
	}

	var nilCat *Catalog
	if _, ok := nilCat.Table("metrics"); ok {
		t.Error("nil catalog returned a table")
	}
}

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join("testdata", "metrics.yaml"))
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if cat.Database != "analytics" || cat.Schema != "public" {
		t.Errorf("header = %q/%q", cat.Database, cat.Schema)
	}
	m, ok := cat.Table("metrics")
	if !ok {
		t.Fatal("metrics table missing")
	}
	if len(m.Columns) != 6 {
		t.Errorf("metrics has %d columns, want 6", len(m.Columns))
	}
	if c, _ := m.Column("percentage_change"); c == nil || !c.Nullable {
		t.Errorf("percentage_change = %+v, want nullable", c)
	}
	if len(m.FKs) != 1 || m.FKs[0].RefTable != "departments" {
		t.Errorf("foreign keys = %+v", m.FKs)
	}
}

func TestCatalogSaveRoundTrip(t *testing.T) {
	orig, err := LoadCatalog(filepath.Join("testdata", "metrics.yaml"))
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}

	dir := t.TempDir()
	for _, name := range []string{"out/catalog.yaml", "catalog.json"} {
		path := filepath.Join(dir, name)
		if err := orig.Save(path); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
		got, err := LoadCatalog(path)
		if err != nil {
			t.Fatalf("LoadCatalog(%s) error = %v", name, err)
		}
		if !reflect.DeepEqual(got, orig) {
			t.Errorf("%s: round trip differs\n got %+v\nwant %+v", name, got, orig)
		}
	}
}

func TestLoadCatalogErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadCatalog(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("database: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(empty); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("LoadCatalog(empty) error = %v, want ErrEmptyCatalog", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
