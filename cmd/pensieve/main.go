// Command pensieve loads a MySQL snapshot and change log and normalises the
// snapshot to a known point in time. Its "inspect" subcommand prints the
// operations from transaction zero onward; its "script" subcommand runs a
// built-in analysis script that walks the whole history, querying the
// embedded store at each position. It offers no interactive navigation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/eigne/pensieve/pkg/pensieve"
	"github.com/eigne/pensieve/pkg/progress"
	"github.com/eigne/pensieve/pkg/script"
	"github.com/eigne/pensieve/pkg/script/lastnonnull"
)

func main() {
	os.Exit(int(run()))
}

type exitCode int

const (
	exitSuccess exitCode = 0
	exitError   exitCode = 1
)

func run() exitCode {
	var (
		verbose           bool
		dbDataDir         string
		tableName         string
		snapshotTimestamp string
		windowHours       int
	)

	rootCmd := &cobra.Command{
		Use:   "pensieve",
		Short: "Navigate a MySQL snapshot through time using its change log",
	}
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")
	flags.StringVar(&dbDataDir, "db-data", envOr("PENSIEVE_DB_DATA", "db_data"), "directory containing table snapshot/change-log data")
	flags.StringVar(&tableName, "table", envOr("PENSIEVE_TABLE", ""), "table name to load (defaults to the first table discovered)")
	flags.StringVar(&snapshotTimestamp, "snapshot-timestamp", envOr("PENSIEVE_SNAPSHOT_TIMESTAMP", ""), "approximate snapshot creation time, format YYMMDD HH:MM:SS")
	flags.IntVar(&windowHours, "window-hours", envOrInt("PENSIEVE_WINDOW_HOURS", 1), "alignment window size in hours around the snapshot timestamp")

	rootCmd.AddCommand(newInspectCmd(&dbDataDir, &tableName, &snapshotTimestamp, &windowHours, &verbose))
	rootCmd.AddCommand(newScriptCmd(&dbDataDir, &tableName, &snapshotTimestamp, &windowHours, &verbose))

	if err := rootCmd.Execute(); err != nil {
		return exitError
	}
	return exitSuccess
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}

func openPensieve(ctx context.Context, dbDataDir, tableName, snapshotTimestamp string, windowHours int, log *slog.Logger) (*pensieve.Pensieve, error) {
	if snapshotTimestamp == "" {
		return nil, fmt.Errorf("--snapshot-timestamp (or PENSIEVE_SNAPSHOT_TIMESTAMP) is required")
	}
	return pensieve.New(ctx, pensieve.Options{
		DBDataDir:         dbDataDir,
		TableName:         tableName,
		SnapshotTimestamp: snapshotTimestamp,
		WindowHours:       windowHours,
		Log:               log,
		Sink:              progress.NewSlogSink(log),
	})
}

func newInspectCmd(dbDataDir, tableName, snapshotTimestamp *string, windowHours *int, verbose *bool) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load, normalise, and print N operations starting at transaction zero",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*verbose)
			ctx := context.Background()

			p, err := openPensieve(ctx, *dbDataDir, *tableName, *snapshotTimestamp, *windowHours, log)
			if err != nil {
				return err
			}
			defer p.Close()

			c := p.Cursor()
			fmt.Printf("Table: %s\n", p.TableName())
			fmt.Printf("Transaction zero: position %d of %d\n", c.Position(), c.OperationCount())

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Index", "Kind", "Table", "Timestamp", "Position"})
			table.SetAutoFormatHeaders(false)

			start := c.Position()
			end := start + limit
			for i, op := range c.OperationsRange(start, end) {
				ts := "-"
				if op.HasTimestamp {
					ts = op.Timestamp.Format()
				}
				pos := "-"
				if op.HasPosition {
					pos = fmt.Sprint(op.Position)
				}
				table.Append([]string{fmt.Sprint(start + i), op.Kind.String(), op.Table, ts, pos})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of operations to print, starting at transaction zero")
	return cmd
}

func newScriptCmd(dbDataDir, tableName, snapshotTimestamp *string, windowHours *int, verbose *bool) *cobra.Command {
	var (
		column string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Run a built-in analysis script over the full operation history",
	}

	lastNonNull := &cobra.Command{
		Use:   "last-non-null",
		Short: "Report the last non-NULL value of a column for every row id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if column == "" {
				return fmt.Errorf("--column is required")
			}
			log := newLogger(*verbose)
			ctx := context.Background()

			p, err := openPensieve(ctx, *dbDataDir, *tableName, *snapshotTimestamp, *windowHours, log)
			if err != nil {
				return err
			}
			defer p.Close()

			s := lastnonnull.New(p.TableName(), column, log)
			var results []script.Result
			results, err = s.Execute(ctx, p.Cursor())
			if err != nil {
				return err
			}

			if out != "" {
				return script.WriteCSV(results, out)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader(s.Headers())
			table.SetAutoFormatHeaders(false)
			for _, r := range results {
				table.Append(r.Values)
			}
			table.Render()
			return nil
		},
	}
	lastNonNull.Flags().StringVar(&column, "column", "", "column to track across history")
	lastNonNull.Flags().StringVar(&out, "out", "", "write results to this CSV path instead of printing a table")

	cmd.AddCommand(lastNonNull)
	return cmd
}
