package applier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"github.com/eigne/pensieve/pkg/binlog"
	"github.com/eigne/pensieve/pkg/store"
)

// maxApplyAttempts bounds the retry loop for statement execution against a
// transient store error (DuckDB transaction-conflict errors under
// concurrent access to the same in-memory database). A single pensieve run
// only ever has one writer, so this almost never fires in practice; it
// exists for parity with the retry discipline the rest of the stack uses
// for DuckDB writes.
const maxApplyAttempts = 8

// Applier decides, for each operation, whether the store's current state
// admits the operation as a meaningful change, and executes the
// corresponding statement when it does. It owns an independent schema
// cache from the parser's — duplicated probing is fine, since the store
// answers the same question either way.
type Applier struct {
	exec  store.Execer
	probe *store.SchemaProbe
	log   *slog.Logger
}

// New constructs an Applier over exec.
func New(exec store.Execer, log *slog.Logger) *Applier {
	if log == nil {
		log = slog.Default()
	}
	return &Applier{exec: exec, probe: store.NewSchemaProbe(exec), log: log}
}

// ApplyConditionally executes op's statement iff ShouldApply reports true.
// It returns whether the store was mutated. Statement execution errors
// surface unchanged (wrapped), aborting the containing normalisation phase.
func (a *Applier) ApplyConditionally(ctx context.Context, op binlog.Operation) (bool, error) {
	should, err := a.ShouldApply(ctx, op)
	if err != nil {
		return false, fmt.Errorf("applier: should_apply %s: %w", op, err)
	}
	if !should {
		return false, nil
	}

	stmt := GenerateStatement(op)
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		_, execErr := a.exec.ExecContext(ctx, stmt)
		if execErr != nil && !isTransactionConflict(execErr) {
			return struct{}{}, backoff.Permanent(execErr)
		}
		return struct{}{}, execErr
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(maxApplyAttempts))
	if err != nil {
		return false, fmt.Errorf("applier: execute %q: %w", stmt, err)
	}
	return true, nil
}

// ShouldApply decides whether op still represents a real change against
// the store's current state:
//
//	Insert, row absent             -> apply
//	Insert, row present == after   -> skip (idempotent repeat)
//	Insert, row present != after   -> apply (conflict; caller's burden)
//	Update/Delete, row absent      -> skip
//	Update/Delete, row == before   -> apply
//	Update/Delete, row != before   -> skip
func (a *Applier) ShouldApply(ctx context.Context, op binlog.Operation) (bool, error) {
	switch op.Kind {
	case binlog.Insert:
		current, err := a.fetchCurrentRow(ctx, op.Table, op.Columns, op.After)
		if err != nil {
			return false, err
		}
		if current == nil {
			return true, nil
		}
		return !equalImages(current, op.After), nil

	case binlog.Update, binlog.Delete:
		current, err := a.fetchCurrentRow(ctx, op.Table, op.Columns, op.Before)
		if err != nil {
			return false, err
		}
		if current == nil {
			return false, nil
		}
		return equalImages(current, op.Before), nil

	default:
		return false, fmt.Errorf("applier: unknown operation kind %v", op.Kind)
	}
}

// fetchCurrentRow runs SELECT CAST(col AS TEXT) FROM table WHERE <non-null
// identifying cols> = <lit> AND ... LIMIT 1, and re-literalises the result
// using the cached column types so it has the same shape as before/after
// images: strings/temporals single-quoted, booleans normalised to 1/0,
// SQL NULL as the literal token "NULL". Returns nil, nil when no predicate
// can be built or no row matches — both are "absent", not errors.
//
// Rows are identified by every non-NULL image column, not by primary key:
// tables without a unique non-NULL projection can match more than one
// row, and LIMIT 1 makes the result non-deterministic in that case. This
// mirrors the change log's own row-identification approach and is
// preserved as-is rather than special-cased.
func (a *Applier) fetchCurrentRow(ctx context.Context, table string, columns, identifying []string) ([]string, error) {
	predicates := IdentifyingPredicates(columns, identifying)
	if len(predicates) == 0 {
		return nil, nil
	}

	_, types, err := a.probe.TableInfo(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("applier: probe schema for %q: %w", table, err)
	}
	if len(types) == 0 {
		return nil, nil
	}

	selectParts := make([]string, len(columns))
	for i, col := range columns {
		selectParts[i] = fmt.Sprintf("CAST(%s AS VARCHAR)", col)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 1",
		strings.Join(selectParts, ", "), table, strings.Join(predicates, " AND "))

	rows, err := a.exec.QueryContext(ctx, query)
	if err != nil {
		// A query that fails to prepare/run (e.g. unknown table) is treated
		// as "no matching row", the same way the schema probe treats an
		// unresolvable table as "unknown" rather than fatal.
		return nil, nil
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	raw := make([]*string, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range raw {
		scanArgs[i] = &raw[i]
	}
	if err := rows.Scan(scanArgs...); err != nil {
		return nil, fmt.Errorf("applier: scan row from %q: %w", table, err)
	}

	values := make([]string, len(columns))
	for i, v := range raw {
		values[i] = literalise(v, columnType(types, i))
	}
	return values, nil
}

func columnType(types []string, i int) string {
	if i < len(types) {
		return types[i]
	}
	return ""
}

// literalise re-quotes a value read back from the store to match the
// literal shape the parser would have produced for it.
func literalise(v *string, colType string) string {
	if v == nil {
		return "NULL"
	}
	value := *v
	upper := strings.ToUpper(colType)
	switch {
	case strings.Contains(upper, "BOOL"):
		switch value {
		case "true", "t":
			return "1"
		case "false", "f":
			return "0"
		default:
			return value
		}
	case strings.Contains(upper, "VARCHAR"), strings.Contains(upper, "TEXT"), strings.Contains(upper, "CHAR"),
		strings.Contains(upper, "TIMESTAMP"), strings.Contains(upper, "DATE"):
		return "'" + value + "'"
	default:
		return value
	}
}

func equalImages(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on tuple deletion") ||
		errors.Is(err, context.Canceled)
}
