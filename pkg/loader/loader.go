// Package loader materialises a table's parquet snapshot into a fresh
// store. It is a thin seam between discovery (which finds the files) and
// store (which knows how to read them) — kept separate so the top-level
// orchestrator doesn't need to know about read_parquet directly.
package loader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eigne/pensieve/pkg/discovery"
	"github.com/eigne/pensieve/pkg/store"
)

// LoadTable opens a fresh store and materialises table's parquet snapshot
// files into it, returning the ready-to-query store alongside the
// discovered change-log path.
func LoadTable(ctx context.Context, dbDataDir, tableName string, log *slog.Logger) (*store.Store, discovery.Table, error) {
	resolved, err := discovery.ResolveTable(dbDataDir, tableName)
	if err != nil {
		return nil, discovery.Table{}, err
	}

	s, err := store.Open(ctx, log)
	if err != nil {
		return nil, discovery.Table{}, err
	}

	if err := s.LoadSnapshotFromParquet(ctx, tableName, resolved.ParquetFiles); err != nil {
		s.Close()
		return nil, discovery.Table{}, fmt.Errorf("loader: load snapshot for table %q: %w", tableName, err)
	}

	return s, resolved, nil
}
