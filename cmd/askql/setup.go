package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sadopc/askql/internal/adapter"
	"github.com/sadopc/askql/internal/audit"
	"github.com/sadopc/askql/internal/config"
	"github.com/sadopc/askql/internal/history"
	"github.com/sadopc/askql/internal/nlq"
	"github.com/sadopc/askql/internal/render"
	"github.com/sadopc/askql/internal/schema"
	"github.com/sadopc/askql/internal/service"
	"github.com/sadopc/askql/internal/theme"
	"github.com/sadopc/askql/internal/vocab"
)

// envDSN names the environment variable holding the default DSN. It may
// also be set in a .env file in the working directory.
const envDSN = "ASKQL_DSN"

// options holds the persistent flags and the state built from them.
type options struct {
	configPath string
	dsn        string
	conn       string
	adapter    string
	host       string
	port       int
	user       string
	password   string
	database   string
	file       string
	schema     string
	logLevel   string
	theme      string

	cfg    *config.Config
	logger *slog.Logger
}

// init loads .env and the config file, then sets up logging and the theme.
func (o *options) init(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	var err error
	if o.configPath != "" {
		o.cfg, err = config.Load(o.configPath)
	} else {
		o.cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not load config: %v\n", err)
		o.cfg = config.DefaultConfig()
	}
	if o.logLevel != "" {
		o.cfg.LogLevel = o.logLevel
	}
	if o.theme != "" {
		o.cfg.Theme = o.theme
	}

	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: o.cfg.SlogLevel(),
	}))
	slog.SetDefault(o.logger)
	theme.Current = theme.Get(o.cfg.Theme)
	return nil
}

// connection resolves the adapter and DSN from, in order: a saved
// connection, --dsn or $ASKQL_DSN, or --adapter with the individual
// connection flags. Both results are empty when nothing was given.
func (o *options) connection() (adapterName, dsn string, err error) {
	if o.conn != "" {
		sc, ok := o.cfg.Connection(o.conn)
		if !ok {
			return "", "", fmt.Errorf("no saved connection named %q", o.conn)
		}
		return strings.ToLower(sc.Adapter), sc.BuildDSN(), nil
	}

	dsn = o.dsn
	if dsn == "" {
		dsn = os.Getenv(envDSN)
	}
	adapterName = strings.ToLower(o.adapter)

	// Build DSN from individual flags if no DSN provided
	if dsn == "" && adapterName != "" {
		sc := config.SavedConnection{
			Adapter:  adapterName,
			Host:     o.host,
			Port:     o.port,
			User:     o.user,
			Password: o.password,
			Database: o.database,
			File:     o.file,
		}
		dsn = sc.BuildDSN()
	}
	if dsn == "" {
		return "", "", nil
	}
	if adapterName == "" {
		adapterName = adapter.DetectAdapter(dsn)
	}
	if adapterName == "" {
		return "", "", fmt.Errorf("cannot detect the adapter for DSN %q: pass --adapter", audit.SanitizeDSN(dsn))
	}
	return adapterName, dsn, nil
}

// askerOptions select what newAsker wires up.
type askerOptions struct {
	// needConn fails early when no connection is configured.
	needConn bool
	// catalogPath loads the catalog from a file instead of discovering it.
	catalogPath string
	// dialect overrides the configured and adapter-derived dialect.
	dialect string
}

// newAsker assembles a service.Asker from config and flags. The connection
// is skipped when a catalog file makes it unnecessary.
func (o *options) newAsker(ctx context.Context, ao askerOptions) (*service.Asker, error) {
	adapterName, dsn, err := o.connection()
	if err != nil {
		return nil, err
	}
	if ao.needConn && dsn == "" {
		return nil, service.ErrNoConnection
	}

	v, err := vocab.Load(o.cfg.Compiler.Vocabulary)
	if err != nil {
		return nil, err
	}
	opts := o.cfg.CompilerOptions(adapterName)
	if ao.dialect != "" {
		opts.Dialect = ao.dialect
	}
	compiler, err := nlq.New(v, opts)
	if err != nil {
		return nil, err
	}

	var cat *schema.Catalog
	if ao.catalogPath != "" {
		if cat, err = schema.LoadCatalog(ao.catalogPath); err != nil {
			return nil, err
		}
	}

	var conn adapter.Connection
	if dsn != "" && (ao.needConn || cat == nil) {
		o.logger.Debug("connecting", "adapter", adapterName, "dsn", audit.SanitizeDSN(dsn))
		if conn, err = adapter.Open(ctx, adapterName, dsn); err != nil {
			return nil, fmt.Errorf("connect %s: %w", adapterName, err)
		}
	}

	a, err := service.New(service.Config{
		Compiler: compiler,
		Conn:     conn,
		Catalog:  cat,
		Database: o.database,
		Schema:   o.schema,
		Audit:    o.openAudit(),
		History:  o.openHistory(),
		DSN:      dsn,
		Logger:   o.logger,
	})
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, err
	}
	return a, nil
}

// openAudit returns the audit logger, or nil when auditing is disabled or
// the log cannot be opened.
func (o *options) openAudit() *audit.Logger {
	if !o.cfg.Audit.Enabled {
		return nil
	}
	path, err := o.cfg.AuditPath()
	if err == nil {
		var l *audit.Logger
		if l, err = audit.New(path, o.cfg.Audit.MaxSizeMB); err == nil {
			return l
		}
	}
	o.logger.Warn("audit log disabled", "error", err)
	return nil
}

// openHistory returns the history store, or nil when history is disabled
// or cannot be opened.
func (o *options) openHistory() *history.History {
	if !o.cfg.History.Enabled {
		return nil
	}
	path, err := o.cfg.HistoryPath()
	if err == nil {
		var h *history.History
		if h, err = history.Open(path); err == nil {
			return h
		}
	}
	o.logger.Warn("history disabled", "error", err)
	return nil
}

func (o *options) renderer() *render.Renderer {
	return render.New(theme.Current, o.cfg.Output.MaxColumnWidth)
}

// format parses flag, falling back to the configured output format.
func (o *options) format(flag string) (render.Format, error) {
	if flag == "" {
		flag = o.cfg.Output.Format
	}
	return render.ParseFormat(flag)
}
