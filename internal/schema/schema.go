// Package schema describes database structure: what adapters discover and
// what the question compiler validates its table contract against.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyCatalog is returned when a catalog file lists no tables.
var ErrEmptyCatalog = errors.New("catalog has no tables")

// Catalog is the structural description of one schema that the query
// compiler reads. Tables keep the order they were discovered in.
type Catalog struct {
	Database string  `json:"database,omitempty" yaml:"database,omitempty"`
	Schema   string  `json:"schema,omitempty" yaml:"schema,omitempty"`
	Tables   []Table `json:"tables" yaml:"tables"`
}

// Table represents a database table.
type Table struct {
	Name    string       `json:"name" yaml:"name"`
	Columns []Column     `json:"columns" yaml:"columns"`
	Indexes []Index      `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	FKs     []ForeignKey `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
}

// Column represents a table column.
type Column struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
	Default  string `json:"default,omitempty" yaml:"default,omitempty"`
	IsPK     bool   `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
}

// Index represents a table index.
type Index struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// ForeignKey represents a foreign key constraint.
type ForeignKey struct {
	Name       string   `json:"name" yaml:"name"`
	Columns    []string `json:"columns" yaml:"columns"`
	RefTable   string   `json:"ref_table" yaml:"ref_table"`
	RefColumns []string `json:"ref_columns" yaml:"ref_columns"`
}

// Table returns the table with the given name, compared case-insensitively.
func (c *Catalog) Table(name string) (*Table, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Tables {
		if strings.EqualFold(c.Tables[i].Name, name) {
			return &c.Tables[i], true
		}
	}
	return nil, false
}

// Column returns the column with the given name, compared case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// LoadCatalog reads a catalog from a YAML or JSON file. The format follows
// the file extension; anything other than .json is read as YAML.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var cat Catalog
	if isJSON(path) {
		err = json.Unmarshal(data, &cat)
	} else {
		err = yaml.Unmarshal(data, &cat)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(cat.Tables) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCatalog)
	}
	return &cat, nil
}

// Save writes the catalog to path in the format its extension selects.
func (c *Catalog) Save(path string) error {
	data, err := c.Marshal(isJSON(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create catalog dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal encodes the catalog as indented JSON or as YAML.
func (c *Catalog) Marshal(asJSON bool) ([]byte, error) {
	if asJSON {
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal catalog: %w", err)
		}
		return append(data, '\n'), nil
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog: %w", err)
	}
	return data, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
