// Package discovery locates a table's snapshot and change-log files on
// disk, following pensieve's directory convention:
//
//	db_data/
//	  <table_name>/
//	    binlog.sql
//	    snapshot-part-01.parquet
//	    snapshot-part-02.parquet
//
// This is deliberately kept outside the core parser/normaliser/cursor
// chain: those packages never see a directory to search. Only pkg/loader
// and the pkg/pensieve orchestrator depend on this package.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Table describes the on-disk layout found for one table.
type Table struct {
	Name          string
	ParquetFiles  []string
	ChangeLogFile string
}

// Tables lists the table subdirectories immediately under dbDataDir.
// Pensieve only ever operates on a single table at a time; callers pick
// which one (typically the first, alphabetically, when none is named
// explicitly).
func Tables(dbDataDir string) ([]string, error) {
	info, err := os.Stat(dbDataDir)
	if err != nil {
		return nil, fmt.Errorf("discovery: db_data directory not found at %q: %w", dbDataDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discovery: %q is not a directory", dbDataDir)
	}

	entries, err := os.ReadDir(dbDataDir)
	if err != nil {
		return nil, fmt.Errorf("discovery: read %q: %w", dbDataDir, err)
	}

	var tables []string
	for _, e := range entries {
		if e.IsDir() {
			tables = append(tables, e.Name())
		}
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("discovery: no table directories found in %q", dbDataDir)
	}
	sort.Strings(tables)
	return tables, nil
}

// ResolveTable discovers the parquet snapshot files and the single change
// log file for table under dbDataDir.
func ResolveTable(dbDataDir, table string) (Table, error) {
	tablePath := filepath.Join(dbDataDir, table)

	parquetFiles, err := parquetFiles(tablePath)
	if err != nil {
		return Table{}, err
	}
	changeLog, err := changeLogFile(tablePath)
	if err != nil {
		return Table{}, err
	}

	return Table{Name: table, ParquetFiles: parquetFiles, ChangeLogFile: changeLog}, nil
}

func parquetFiles(tablePath string) ([]string, error) {
	entries, err := os.ReadDir(tablePath)
	if err != nil {
		return nil, fmt.Errorf("discovery: read %q: %w", tablePath, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".parquet" {
			files = append(files, filepath.Join(tablePath, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("discovery: no parquet files found in %q", tablePath)
	}
	sort.Strings(files)
	return files, nil
}

// changeLogFile returns the first .sql file found in tablePath. Only one
// is expected; if more than one is present, the lexicographically first
// by file name wins (os.ReadDir returns entries sorted by name), matching
// the original implementation's "return on first match" behavior.
func changeLogFile(tablePath string) (string, error) {
	entries, err := os.ReadDir(tablePath)
	if err != nil {
		return "", fmt.Errorf("discovery: read %q: %w", tablePath, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".sql" {
			return filepath.Join(tablePath, e.Name()), nil
		}
	}
	return "", fmt.Errorf("discovery: no change log (.sql) file found in %q", tablePath)
}
