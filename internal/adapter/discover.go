package adapter

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sadopc/askql/internal/schema"
)

// discoverParallelism bounds concurrent per-table lookups.
const discoverParallelism = 4

// Discover builds the catalog of one schema: its tables and, per table, the
// columns, indexes and foreign keys. Empty db and schemaName select the
// connection's current database and default schema.
//
// A BatchIntrospector is used when the connection offers one. Otherwise a
// TableIntrospector describes the tables concurrently and the first failure
// cancels the rest.
func Discover(ctx context.Context, conn Connection, db, schemaName string) (*schema.Catalog, error) {
	if conn == nil {
		return nil, ErrNotConnected
	}
	if db == "" {
		db = conn.DatabaseName()
	}
	if schemaName == "" {
		schemaName = conn.DefaultSchema()
	}

	tables, err := conn.Tables(ctx, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	switch in := conn.(type) {
	case BatchIntrospector:
		err = discoverBatch(ctx, in, db, schemaName, tables)
	case TableIntrospector:
		err = discoverEach(ctx, in, db, schemaName, tables)
	default:
		err = fmt.Errorf("discover %s: %w", conn.AdapterName(), ErrNoIntrospection)
	}
	if err != nil {
		return nil, err
	}
	return &schema.Catalog{Database: db, Schema: schemaName, Tables: tables}, nil
}

// discoverEach fills tables with discoverParallelism lookups in flight.
func discoverEach(ctx context.Context, in TableIntrospector, db, schemaName string, tables []schema.Table) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(discoverParallelism)
	for i := range tables {
		t := &tables[i]
		g.Go(func() (err error) {
			if t.Columns, err = in.Columns(gctx, db, schemaName, t.Name); err != nil {
				return fmt.Errorf("discover columns of %s: %w", t.Name, err)
			}
			if t.Indexes, err = in.Indexes(gctx, db, schemaName, t.Name); err != nil {
				return fmt.Errorf("discover indexes of %s: %w", t.Name, err)
			}
			if t.FKs, err = in.ForeignKeys(gctx, db, schemaName, t.Name); err != nil {
				return fmt.Errorf("discover foreign keys of %s: %w", t.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// discoverBatch fills tables from three schema-wide queries run concurrently.
func discoverBatch(ctx context.Context, b BatchIntrospector, db, schemaName string, tables []schema.Table) error {
	var (
		cols map[string][]schema.Column
		idx  map[string][]schema.Index
		fks  map[string][]schema.ForeignKey
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if cols, err = b.AllColumns(gctx, db, schemaName); err != nil {
			return fmt.Errorf("discover columns: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if idx, err = b.AllIndexes(gctx, db, schemaName); err != nil {
			return fmt.Errorf("discover indexes: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if fks, err = b.AllForeignKeys(gctx, db, schemaName); err != nil {
			return fmt.Errorf("discover foreign keys: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range tables {
		t := &tables[i]
		t.Columns, t.Indexes, t.FKs = cols[t.Name], idx[t.Name], fks[t.Name]
	}
	return nil
}
