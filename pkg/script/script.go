// Package script defines the extension point pensieve scripts run against:
// a Script walks a cursor across the full operation history and produces a
// table of results, which the CLI can render or write out as CSV.
package script

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/eigne/pensieve/pkg/cursor"
)

// Result is one row of a script's output.
type Result struct {
	Columns []string
	Values  []string
}

// Script walks a cursor and produces a table of results. Headers is called
// independently of Execute so callers (e.g. the CLI table writer) can
// render column headers even for a zero-row result set.
type Script interface {
	Execute(ctx context.Context, c *cursor.Cursor) ([]Result, error)
	Headers() []string
}

// WriteCSV writes results to path, using the first result's columns as the
// header row. An empty results slice produces an empty file.
func WriteCSV(results []Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("script: create %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(results) > 0 {
		if err := w.Write(results[0].Columns); err != nil {
			return fmt.Errorf("script: write header to %q: %w", path, err)
		}
	}
	for _, r := range results {
		if err := w.Write(r.Values); err != nil {
			return fmt.Errorf("script: write row to %q: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}
