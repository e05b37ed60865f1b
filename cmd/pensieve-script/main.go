// Command pensieve-script runs a single built-in analysis script against a
// normalised snapshot and writes its results to CSV — a thin, flag-driven
// complement to the richer "pensieve" CLI, for scripted/cron use.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"

	"github.com/eigne/pensieve/pkg/pensieve"
	"github.com/eigne/pensieve/pkg/progress"
	"github.com/eigne/pensieve/pkg/script"
	"github.com/eigne/pensieve/pkg/script/lastnonnull"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	dbDataFlag := flag.String("db-data", "db_data", "directory containing table snapshot/change-log data")
	tableFlag := flag.String("table", "", "table name to load (defaults to the first table discovered)")
	snapshotTimestampFlag := flag.String("snapshot-timestamp", "", "approximate snapshot creation time, format YYMMDD HH:MM:SS")
	windowHoursFlag := flag.Int("window-hours", 1, "alignment window size in hours around the snapshot timestamp")
	columnFlag := flag.String("column", "", "column to track across history (last-non-null script)")
	outputFlag := flag.String("output", "", "CSV output path")

	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pensieve-script <script-name> [options]")
		fmt.Fprintln(os.Stderr, "Available scripts:")
		fmt.Fprintln(os.Stderr, "  last-non-null --table <name> --column <name> --output <file.csv>")
		return nil
	}
	scriptName := flag.Arg(0)

	if envDBData := os.Getenv("PENSIEVE_DB_DATA"); envDBData != "" {
		*dbDataFlag = envDBData
	}
	if envTable := os.Getenv("PENSIEVE_TABLE"); envTable != "" {
		*tableFlag = envTable
	}
	if envSnapshotTimestamp := os.Getenv("PENSIEVE_SNAPSHOT_TIMESTAMP"); envSnapshotTimestamp != "" {
		*snapshotTimestampFlag = envSnapshotTimestamp
	}

	switch scriptName {
	case "last-non-null":
		return runLastNonNull(*dbDataFlag, *tableFlag, *snapshotTimestampFlag, *windowHoursFlag, *columnFlag, *outputFlag, *verboseFlag)
	default:
		fmt.Fprintf(os.Stderr, "Unknown script: %s\n", scriptName)
		return nil
	}
}

func runLastNonNull(dbDataDir, table, snapshotTimestamp string, windowHours int, column, output string, verbose bool) error {
	if column == "" {
		return fmt.Errorf("--column is required")
	}
	if output == "" {
		return fmt.Errorf("--output is required")
	}
	if snapshotTimestamp == "" {
		return fmt.Errorf("--snapshot-timestamp is required")
	}

	log := newLogger(verbose)
	ctx := context.Background()

	p, err := pensieve.New(ctx, pensieve.Options{
		DBDataDir:         dbDataDir,
		TableName:         table,
		SnapshotTimestamp: snapshotTimestamp,
		WindowHours:       windowHours,
		Log:               log,
		Sink:              progress.NewSlogSink(log),
	})
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

	if err := script.WriteCSV(results, output); err != nil {
		return err
	}
	log.Info("wrote script results", "path", output, "rows", len(results))
	return nil
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
