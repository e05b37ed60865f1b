// Package pensieve wires the whole pipeline together: discover a table's
// snapshot and change log on disk, load the snapshot into an embedded
// store, parse the change log, normalise the snapshot against an
// approximate timestamp, and hand back a cursor ready for time navigation.
package pensieve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eigne/pensieve/pkg/applier"
	"github.com/eigne/pensieve/pkg/binlog"
	"github.com/eigne/pensieve/pkg/cursor"
	"github.com/eigne/pensieve/pkg/discovery"
	"github.com/eigne/pensieve/pkg/loader"
	"github.com/eigne/pensieve/pkg/normaliser"
	"github.com/eigne/pensieve/pkg/parser"
	"github.com/eigne/pensieve/pkg/progress"
	"github.com/eigne/pensieve/pkg/store"
)

// Pensieve holds a normalised snapshot, ready for time navigation via its
// Cursor. Only one table is ever loaded per instance.
type Pensieve struct {
	cursor    *cursor.Cursor
	tableName string
	store     *store.Store
}

// Options configures a pensieve run.
type Options struct {
	// DBDataDir is the root directory discovery.Tables/ResolveTable
	// searches under.
	DBDataDir string
	// TableName selects which table subdirectory to load. If empty, the
	// first table found (alphabetically) is used — multi-table support is
	// explicitly out of scope (spec Non-goals).
	TableName string
	// SnapshotTimestamp is the approximate "YYMMDD HH:MM:SS" creation time
	// of the snapshot.
	SnapshotTimestamp string
	// WindowHours bounds the alignment search window around
	// SnapshotTimestamp.
	WindowHours int
	Log         *slog.Logger
	Sink        progress.Sink
}

// New discovers, loads, parses and normalises a table per opts, returning
// a Pensieve ready for cursor-based navigation.
func New(ctx context.Context, opts Options) (*Pensieve, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	sink := opts.Sink
	if sink == nil {
		sink = progress.NewSlogSink(log)
	}

	tableName := opts.TableName
	if tableName == "" {
		tables, err := discovery.Tables(opts.DBDataDir)
		if err != nil {
			return nil, err
		}
		tableName = tables[0]
	}
	log.Info("loading table", "table", tableName)

	s, resolved, err := loader.LoadTable(ctx, opts.DBDataDir, tableName, log)
	if err != nil {
		return nil, err
	}

	log.Info("parsing change log", "path", resolved.ChangeLogFile)
	parserProbe := store.NewSchemaProbe(s)
	p := parser.New(parserProbe, log, sink)
	operations, err := p.ParseFile(ctx, resolved.ChangeLogFile)
	if err != nil {
		s.Close()
		return nil, err
	}
	log.Info("parsed operations", "count", len(operations))

	snapshotTS, err := binlog.ParseTimestamp(opts.SnapshotTimestamp)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("pensieve: parse snapshot timestamp: %w", err)
	}

	log.Info("normalising snapshot", "timestamp", snapshotTS.Format(), "window_hours", opts.WindowHours)
	normaliserApplier := applier.New(s, log)
	result, err := normaliser.Normalise(ctx, normaliserApplier, operations, snapshotTS, opts.WindowHours, sink)
	if err != nil {
		s.Close()
		return nil, err
	}
	log.Info("snapshot normalised", "position", result.TransactionZero, "run_id", result.RunID)

	c := cursor.New(s, result.Operations, result.TransactionZero)
	return &Pensieve{cursor: c, tableName: tableName, store: s}, nil
}

// Cursor returns the navigable cursor over the normalised snapshot.
func (p *Pensieve) Cursor() *cursor.Cursor { return p.cursor }

// TableName returns the table this instance loaded.
func (p *Pensieve) TableName() string { return p.tableName }

// Close releases the underlying store.
func (p *Pensieve) Close() error { return p.store.Close() }
