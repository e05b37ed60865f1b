package store

import (
	"context"
	"fmt"
	"sync"
)

// SchemaProbe answers "what columns (and types) does this table have?"
// against a store's catalogue, conceptually PRAGMA table_info. Results are
// memoised for the lifetime of the probe — there is no DDL support, so
// entries are never invalidated.
//
// The spec deliberately allows duplicated schema caches: the parser and the
// applier each own an independent SchemaProbe over the same underlying
// store, rather than sharing one cache. Constructing a new SchemaProbe per
// component keeps that isolation explicit.
type SchemaProbe struct {
	exec Execer

	mu    sync.Mutex
	cache map[string]tableSchema
}

type tableSchema struct {
	columns []string
	types   []string
}

// NewSchemaProbe constructs a probe backed by exec.
func NewSchemaProbe(exec Execer) *SchemaProbe {
	return &SchemaProbe{exec: exec, cache: make(map[string]tableSchema)}
}

// Columns returns the ordered column names of table, or an empty slice if
// the table is unknown to the store (this is how callers detect "table not
// in snapshot" — it is a recovery path, not an error).
func (p *SchemaProbe) Columns(ctx context.Context, table string) ([]string, error) {
	cols, _, err := p.TableInfo(ctx, table)
	return cols, err
}

// TableInfo returns the ordered column names and parallel DuckDB type names
// for table, memoised after the first successful probe. An unresolvable
// table (not loaded into the store) yields two empty slices and a nil
// error: that is a normal "unknown table" result, not a failure.
func (p *SchemaProbe) TableInfo(ctx context.Context, table string) ([]string, []string, error) {
	p.mu.Lock()
	if cached, ok := p.cache[table]; ok {
		p.mu.Unlock()
		return cached.columns, cached.types, nil
	}
	p.mu.Unlock()

	query := fmt.Sprintf("PRAGMA table_info('%s')", table)
	rows, err := p.exec.QueryContext(ctx, query)
	if err != nil {
		// A failed catalogue probe is treated as "table unknown": the
		// caller (parser or applier) will skip the operation rather than
		// abort the whole run.
		return nil, nil, nil
	}
	defer rows.Close()

	var columns, types []string
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notnull   bool
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return nil, nil, fmt.Errorf("store: scan table_info row for %q: %w", table, err)
		}
		columns = append(columns, name)
		types = append(types, typ)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("store: iterate table_info for %q: %w", table, err)
	}

	p.mu.Lock()
	p.cache[table] = tableSchema{columns: columns, types: types}
	p.mu.Unlock()

	return columns, types, nil
}
