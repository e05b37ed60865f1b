// Package store wraps the embedded DuckDB engine that the rest of pensieve
// treats as an opaque collaborator: it can load a columnar snapshot into a
// named table, execute statements, run parameterised queries, and answer
// schema-introspection questions. Nothing outside this package (and the
// duckdb driver it imports) knows the store is DuckDB rather than some other
// embeddable SQL engine.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Execer is the minimal surface the rest of pensieve needs from a store
// handle: execute a statement, or run a query and get rows back. Schema
// probing, the applier and the parser all depend on this interface rather
// than on *Store directly, so tests can substitute a fake.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the single in-memory DuckDB instance backing one table for one
// run. It is exclusively owned by whichever component currently holds it:
// the loader creates it, the parser borrows it to probe schema, the
// normaliser and cursor own it through the applier. Only one component
// mutates it at a time; there is no internal locking.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates a fresh in-memory DuckDB instance. The returned Store owns
// the connection until Close is called.
func Open(ctx context.Context, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("store: open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping duckdb: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying DuckDB connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ExecContext executes a statement with no expectation of rows.
func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query and returns the resulting rows.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a query expected to return at most one row.
func (s *Store) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// LoadSnapshotFromParquet materialises table from the given columnar files,
// atomically, via DuckDB's read_parquet table function. This is the sole
// touchpoint with the columnar snapshot file format the spec treats as
// opaque: `CREATE TABLE <table> AS SELECT * FROM read_parquet([files...])`.
func (s *Store) LoadSnapshotFromParquet(ctx context.Context, table string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("store: no snapshot files supplied for table %q", table)
	}
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + strings.ReplaceAll(f, "'", "''") + "'"
	}
	sqlText := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_parquet([%s]);", table, strings.Join(quoted, ", "))
	s.log.Debug("loading snapshot from parquet", "table", table, "files", len(files))
	if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("store: load snapshot for table %q: %w", table, err)
	}
	return nil
}

// Bootstrap executes a sequence of raw SQL statements against a fresh
// in-memory store. It exists for tests (and other callers who don't have
// real Parquet files handy) to build fixture tables without the snapshot
// file format, mirroring the original implementation's load_table_from_sql.
func (s *Store) Bootstrap(ctx context.Context, statements []string) error {
	for i, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: bootstrap statement %d: %w", i+1, err)
		}
	}
	return nil
}
