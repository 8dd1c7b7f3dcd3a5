// Package config loads askql's YAML settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/askql/internal/nlq"
)

// Config holds all application configuration.
type Config struct {
	Theme       string            `yaml:"theme"`
	LogLevel    string            `yaml:"log_level"` // debug, info, warn, error
	Compiler    CompilerConfig    `yaml:"compiler"`
	Output      OutputConfig      `yaml:"output"`
	Audit       AuditConfig       `yaml:"audit"`
	History     HistoryConfig     `yaml:"history"`
	Connections []SavedConnection `yaml:"connections"`
}

// CompilerConfig holds question compilation settings.
type CompilerConfig struct {
	// Dialect is empty to follow the connected adapter.
	Dialect   string `yaml:"dialect"`
	BindLimit bool   `yaml:"bind_limit"`
	MaxLimit  int    `yaml:"max_limit"`
	// Vocabulary is an optional path replacing the built-in vocabulary.
	Vocabulary string       `yaml:"vocabulary,omitempty"`
	Contract   nlq.Contract `yaml:"contract,omitempty"`
}

type OutputConfig struct {
	Format         string `yaml:"format"` // table, text, csv, json, yaml
	MaxColumnWidth int    `yaml:"max_column_width"`
}

// AuditConfig controls the JSON Lines audit log.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// SavedConnection is a named database connection. Either DSN is set or the
// DSN is assembled from the remaining fields.
type SavedConnection struct {
	Name     string `yaml:"name"`
	Adapter  string `yaml:"adapter"`
	DSN      string `yaml:"dsn,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
	File     string `yaml:"file,omitempty"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Theme:    "default",
		LogLevel: "warn",
		Compiler: CompilerConfig{MaxLimit: nlq.DefaultMaxLimit},
		Output:   OutputConfig{Format: "table", MaxColumnWidth: 50},
		Audit:    AuditConfig{MaxSizeMB: 10},
		History:  HistoryConfig{Enabled: true},
	}
}

// ConfigDir returns the askql directory under os.UserConfigDir, usually
// ~/.config/askql.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "askql"), nil
}

// DefaultPath is config.yaml inside ConfigDir.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads and validates the config file at path. Settings missing from
// the file keep their defaults, and a missing file yields DefaultConfig.
// Unknown keys are rejected so typos do not go unnoticed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the file at DefaultPath.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes c to path, readable by the owner only.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok && c.LogLevel != "" {
		return fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	if c.Compiler.Dialect != "" {
		if _, err := nlq.LookupDialect(c.Compiler.Dialect); err != nil {
			return fmt.Errorf("compiler.dialect: %w", err)
		}
	}
	if c.Compiler.MaxLimit < 0 {
		return fmt.Errorf("compiler.max_limit %d is negative", c.Compiler.MaxLimit)
	}
	seen := make(map[string]bool, len(c.Connections))
	for i, sc := range c.Connections {
		switch {
		case sc.Name == "":
			return fmt.Errorf("connections[%d]: name is required", i)
		case seen[sc.Name]:
			return fmt.Errorf("connections[%d]: duplicate name %q", i, sc.Name)
		case sc.Adapter == "":
			return fmt.Errorf("connection %q: adapter is required", sc.Name)
		}
		seen[sc.Name] = true
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean warn.
func (c *Config) SlogLevel() slog.Level {
	if l, ok := logLevels[strings.ToLower(c.LogLevel)]; ok {
		return l
	}
	return slog.LevelWarn
}

// Connection returns the saved connection called name.
func (c *Config) Connection(name string) (*SavedConnection, bool) {
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			return &c.Connections[i], true
		}
	}
	return nil, false
}

// AuditPath is Audit.Path, or audit.jsonl in ConfigDir when unset.
func (c *Config) AuditPath() (string, error) {
	return inConfigDir(c.Audit.Path, "audit.jsonl")
}

// HistoryPath is History.Path, or history.db in ConfigDir when unset.
func (c *Config) HistoryPath() (string, error) {
	return inConfigDir(c.History.Path, "history.db")
}

func inConfigDir(path, name string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// CompilerOptions converts the compiler section into nlq.Options. Dialect
// falls back to fallback (usually the connected adapter) when unset.
func (c *Config) CompilerOptions(fallback string) nlq.Options {
	opts := nlq.Options{
		Dialect:   c.Compiler.Dialect,
		Contract:  c.Compiler.Contract,
		BindLimit: c.Compiler.BindLimit,
		MaxLimit:  c.Compiler.MaxLimit,
	}
	if opts.Dialect == "" {
		opts.Dialect = fallback
	}
	return opts
}

// fileBased reports whether the adapter opens a local file.
func (sc *SavedConnection) fileBased() bool {
	a := strings.ToLower(sc.Adapter)
	return a == "sqlite" || a == "duckdb"
}

func (sc *SavedConnection) hostPort(defaultPort int) string {
	host := sc.Host
	if host == "" {
		host = "localhost"
	}
	port := sc.Port
	if port == 0 {
		port = defaultPort
	}
	if port == 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// BuildDSN returns DSN when set, otherwise a DSN assembled for the adapter:
// a file path (or :memory:) for sqlite and duckdb, a postgres:// URL, or a
// go-sql-driver user:pass@tcp(host:port)/db string. Unknown adapters yield
// an empty string.
func (sc *SavedConnection) BuildDSN() string {
	if sc.DSN != "" {
		return sc.DSN
	}
	if sc.fileBased() {
		switch {
		case sc.File != "":
			return sc.File
		case sc.Database != "":
			return sc.Database
		}
		return ":memory:"
	}

	switch strings.ToLower(sc.Adapter) {
	case "postgres":
		u := url.URL{Scheme: "postgres", Host: sc.hostPort(0)}
		switch {
		case sc.User != "" && sc.Password != "":
			u.User = url.UserPassword(sc.User, sc.Password)
		case sc.User != "":
			u.User = url.User(sc.User)
		}
		if sc.Database != "" {
			u.Path = "/" + sc.Database
		}
		return u.String()
	case "mysql":
		creds := sc.User
		if creds != "" && sc.Password != "" {
			creds += ":" + url.PathEscape(sc.Password)
		}
		if creds != "" {
			creds += "@"
		}
		dsn := creds + "tcp(" + sc.hostPort(3306) + ")"
		if sc.Database != "" {
			dsn += "/" + sc.Database
		}
		return dsn
	}
	return ""
}

// DisplayString describes the connection without credentials, as
// adapter://host:port/database or adapter://file.
func (sc *SavedConnection) DisplayString() string {
	if sc.fileBased() {
		file := sc.File
		if file == "" {
			file = sc.DSN
		}
		return sc.Adapter + "://" + file
	}
	s := sc.Adapter + "://" + sc.hostPort(0)
	if sc.Database != "" {
		s += "/" + sc.Database
	}
	return s
}
