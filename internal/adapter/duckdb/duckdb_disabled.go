//go:build !duckdb

package duckdb

import (
	"context"
	"errors"

	"github.com/sadopc/askql/internal/adapter"
)

// errDisabled is returned when the binary was built without cgo DuckDB.
var errDisabled = errors.New("duckdb: support not compiled in, rebuild askql with -tags duckdb")

// The name stays registered so DSN detection and --adapter duckdb report
// the missing build tag instead of an unknown adapter.
func init() {
	adapter.Register(stub{})
}

type stub struct{}

func (stub) Name() string     { return "duckdb" }
func (stub) DefaultPort() int { return 0 }

func (stub) Connect(context.Context, string) (adapter.Connection, error) {
	return nil, errDisabled
}
