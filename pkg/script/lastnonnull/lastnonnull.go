// Package lastnonnull implements a script that walks the full operation
// history and, per row id, records the last non-NULL value a given column
// held — useful for reconstructing "what was this field most recently set
// to" across a table's lifetime.
package lastnonnull

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/eigne/pensieve/pkg/cursor"
	"github.com/eigne/pensieve/pkg/script"
)

// Script records the last non-NULL value of Column for each row id,
// scanning Table at every point along the cursor's operation history.
type Script struct {
	Table  string
	Column string
	log    *slog.Logger
}

// New constructs a Script over table/column. A nil logger falls back to
// slog.Default().
func New(table, column string, log *slog.Logger) *Script {
	if log == nil {
		log = slog.Default()
	}
	return &Script{Table: table, Column: column, log: log}
}

var _ script.Script = (*Script)(nil)

func (s *Script) Headers() []string {
	return []string{"id", "last_non_null_value"}
}

func (s *Script) Execute(ctx context.Context, c *cursor.Cursor) ([]script.Result, error) {
	lastValues := make(map[int64]string)

	if err := c.GotoPosition(ctx, 0); err != nil {
		return nil, fmt.Errorf("lastnonnull: reset cursor: %w", err)
	}

	total := c.OperationCount()
	s.log.Info("analyzing operations", "total", total)

	query := fmt.Sprintf("SELECT id, CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL", s.Column, s.Table, s.Column)

	for pos := 0; pos < total; pos++ {
		if pos%10 == 0 {
			s.log.Debug("progress", "position", pos, "total", total)
		}

		if pos > 0 {
			if _, err := c.StepForward(ctx); err != nil {
				return nil, fmt.Errorf("lastnonnull: step forward to %d: %w", pos, err)
			}
		}

		rows, err := c.Store().QueryContext(ctx, query)
		if err != nil {
			// A query failure at one point in history (e.g. the column
			// didn't exist yet under this row's schema) is skipped rather
			// than aborting the whole walk.
			continue
		}
		for rows.Next() {
			var id int64
			var value string
			if err := rows.Scan(&id, &value); err != nil {
				continue
			}
			if existing, ok := lastValues[id]; !ok || existing != value {
				lastValues[id] = value
			}
		}
		rows.Close()
	}

	ids := make([]int64, 0, len(lastValues))
	for id := range lastValues {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	results := make([]script.Result, 0, len(ids))
	for _, id := range ids {
		results = append(results, script.Result{
			Columns: s.Headers(),
			Values:  []string{fmt.Sprint(id), lastValues[id]},
		})
	}

	s.log.Info("analysis complete", "results", len(results))
	return results, nil
}
