// Package applier decides whether a binlog operation represents a real
// change against the store's current state, and if so generates and
// executes the corresponding statement. It is the heart of normalisation:
// within the alignment window every operation is checked against ground
// truth before being touched, which is what makes the snapshot's unknown
// exact position irrelevant.
package applier

import (
	"fmt"
	"strings"

	"github.com/eigne/pensieve/pkg/binlog"
)

// GenerateStatement renders op as store-native SQL. Values in op are
// already literal-formatted by the parser, so this function never quotes
// or escapes them: a string value containing a stray single quote is
// rendered verbatim, exactly as the change log recorded it.
func GenerateStatement(op binlog.Operation) string {
	switch op.Kind {
	case binlog.Insert:
		return insertStatement(op)
	case binlog.Update:
		return updateStatement(op)
	case binlog.Delete:
		return deleteStatement(op)
	default:
		return ""
	}
}

func insertStatement(op binlog.Operation) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		op.Table,
		strings.Join(op.Columns, ", "),
		strings.Join(op.After, ", "),
	)
}

func updateStatement(op binlog.Operation) string {
	setParts := make([]string, len(op.Columns))
	for i, col := range op.Columns {
		setParts[i] = fmt.Sprintf("%s = %s", col, op.After[i])
	}

	whereParts := nonNullPredicates(op.Columns, op.Before)

	if len(whereParts) == 0 {
		return fmt.Sprintf("UPDATE %s SET %s;", op.Table, strings.Join(setParts, ", "))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s;",
		op.Table, strings.Join(setParts, ", "), strings.Join(whereParts, " AND "))
}

func deleteStatement(op binlog.Operation) string {
	whereParts := nonNullPredicates(op.Columns, op.Before)
	if len(whereParts) == 0 {
		return fmt.Sprintf("DELETE FROM %s;", op.Table)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s;", op.Table, strings.Join(whereParts, " AND "))
}

// nonNullPredicates builds "col = literal" predicates for every column
// whose value isn't the NULL literal — SQL's "= NULL" never matches, so a
// pre-image NULL column is excluded from the WHERE clause rather than
// rendered as a predicate that can never hold.
func nonNullPredicates(columns, values []string) []string {
	var parts []string
	for i, col := range columns {
		if values[i] == "NULL" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = %s", col, values[i]))
	}
	return parts
}

// IdentifyingPredicates builds the same "non-NULL columns" WHERE predicates
// GenerateStatement uses, for callers (the applier's row-fetch) that need
// the predicate list without a full statement around it.
func IdentifyingPredicates(columns, values []string) []string {
	return nonNullPredicates(columns, values)
}
