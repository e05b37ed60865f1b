// Package parser turns a MySQL text-format change log (the output of
// mysqlbinlog run with --verbose --base64-output=DECODE-ROWS) into a
// sequence of binlog.Operation values, gated against the columns actually
// present in the loaded snapshot.
package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/eigne/pensieve/pkg/binlog"
	"github.com/eigne/pensieve/pkg/progress"
	"github.com/eigne/pensieve/pkg/store"
)

var (
	timestampRegex   = regexp.MustCompile(`^#(\d{6})\s+(\d{1,2}:\d{2}:\d{2})`)
	positionRegex    = regexp.MustCompile(`end_log_pos\s+(\d+)`)
	updateRegex      = regexp.MustCompile(`^### UPDATE\s+(.+)`)
	insertRegex      = regexp.MustCompile(`^### INSERT INTO\s+(.+)`)
	deleteRegex      = regexp.MustCompile(`^### DELETE FROM\s+(.+)`)
	tableNameRegex   = regexp.MustCompile("`([^`]+)`\\.`([^`]+)`")
	columnValueRegex = regexp.MustCompile(`^###\s+@(\d+)=(.*)$`)
	beginRegex       = regexp.MustCompile(`^BEGIN`)
	commitRegex      = regexp.MustCompile(`^COMMIT`)
	rollbackRegex    = regexp.MustCompile(`^ROLLBACK`)
)

// maxLineSize bounds a single change-log line, matching the 10MB read
// buffer the original parser sized its BufReader with.
const maxLineSize = 10 * 1024 * 1024

// Parser reads a text-format change log and produces structured operations,
// gated against the column schema of the snapshot already loaded into the
// store. It owns its own schema cache, independent of any cache the
// applier keeps over the same store — see store.SchemaProbe's doc comment.
type Parser struct {
	probe *store.SchemaProbe
	log   *slog.Logger
	sink  progress.Sink
}

// New constructs a Parser that resolves table schemas through probe. A nil
// sink falls back to progress.NoopSink.
func New(probe *store.SchemaProbe, log *slog.Logger, sink progress.Sink) *Parser {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = progress.NoopSink{}
	}
	return &Parser{probe: probe, log: log, sink: sink}
}

// ParseFile opens path and parses it as a change log.
func (p *Parser) ParseFile(ctx context.Context, path string) ([]binlog.Operation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parser: open %q: %w", path, err)
	}
	defer f.Close()
	return p.Parse(ctx, f)
}

// Parse reads a change log from r. Only operations inside a committed
// transaction are retained: BEGIN clears the pending buffer, COMMIT flushes
// it in encounter order, ROLLBACK discards it. A nested BEGIN before a
// COMMIT silently resets the buffer rather than erroring — the previous
// transaction's operations are lost with no diagnostic, matching the
// original parser's behavior exactly.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]binlog.Operation, error) {
	lines := newLineSource(r)

	var operations []binlog.Operation
	var pending []binlog.Operation
	var currentTimestamp binlog.Timestamp
	var haveTimestamp bool
	var currentPosition uint64
	var havePosition bool
	inTransaction := false

	lineNum := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, ok, err := lines.next()
		if err != nil {
			return nil, fmt.Errorf("parser: read change log: %w", err)
		}
		if !ok {
			break
		}
		lineNum++
		if lineNum%100000 == 0 {
			p.sink.LinesRead(lineNum)
		}

		if beginRegex.MatchString(line) {
			inTransaction = true
			pending = pending[:0]
			continue
		}
		if commitRegex.MatchString(line) {
			if inTransaction {
				operations = append(operations, pending...)
			}
			inTransaction = false
			pending = pending[:0]
			continue
		}
		if rollbackRegex.MatchString(line) {
			if inTransaction {
				pending = pending[:0]
			}
			inTransaction = false
			continue
		}

		if m := timestampRegex.FindStringSubmatch(line); m != nil {
			if ts, err := binlog.ParseTimestamp(m[1] + " " + m[2]); err == nil {
				currentTimestamp = ts
				haveTimestamp = true
			}
		}

		if m := positionRegex.FindStringSubmatch(line); m != nil {
			if pos, err := strconv.ParseUint(m[1], 10, 64); err == nil {
				currentPosition = pos
				havePosition = true
			}
		}

		var op *binlog.Operation
		switch {
		case updateRegex.MatchString(line):
			tablePath := updateRegex.FindStringSubmatch(line)[1]
			op, err = p.parseUpdate(ctx, lines, tablePath, currentTimestamp, haveTimestamp, currentPosition, havePosition)
		case insertRegex.MatchString(line):
			tablePath := insertRegex.FindStringSubmatch(line)[1]
			op, err = p.parseInsert(ctx, lines, tablePath, currentTimestamp, haveTimestamp, currentPosition, havePosition)
		case deleteRegex.MatchString(line):
			tablePath := deleteRegex.FindStringSubmatch(line)[1]
			op, err = p.parseDelete(ctx, lines, tablePath, currentTimestamp, haveTimestamp, currentPosition, havePosition)
		}
		if err != nil {
			return nil, err
		}
		if op != nil && inTransaction {
			// A row event outside any BEGIN/COMMIT framing is parsed
			// (so its lines are consumed) but never emitted.
			pending = append(pending, *op)
		}
	}

	return operations, nil
}

func (p *Parser) parseUpdate(ctx context.Context, lines *lineSource, tablePath string, ts binlog.Timestamp, haveTS bool, pos uint64, havePos bool) (*binlog.Operation, error) {
	db, table := extractTableName(tablePath)
	columns, err := p.probe.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("parser: probe schema for %q: %w", table, err)
	}
	if len(columns) == 0 {
		lines.skipToNextStatement()
		return nil, nil
	}

	where, foundSet, err := collectColumnValues(lines, true)
	if err != nil {
		return nil, err
	}
	var set map[int]string
	if foundSet {
		set, _, err = collectColumnValues(lines, false)
		if err != nil {
			return nil, err
		}
	}

	before := imageFromMap(columns, where)
	after := imageFromMap(columns, set)

	op, err := binlog.NewUpdate(db, table, columns, before, after)
	if err != nil {
		return nil, fmt.Errorf("parser: build update for %q: %w", table, err)
	}
	stampOperation(&op, ts, haveTS, pos, havePos)
	return &op, nil
}

func (p *Parser) parseInsert(ctx context.Context, lines *lineSource, tablePath string, ts binlog.Timestamp, haveTS bool, pos uint64, havePos bool) (*binlog.Operation, error) {
	db, table := extractTableName(tablePath)
	columns, err := p.probe.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("parser: probe schema for %q: %w", table, err)
	}
	if len(columns) == 0 {
		lines.skipToNextStatement()
		return nil, nil
	}

	values, _, err := collectColumnValues(lines, false)
	if err != nil {
		return nil, err
	}
	after := imageFromMap(columns, values)

	op, err := binlog.NewInsert(db, table, columns, after)
	if err != nil {
		return nil, fmt.Errorf("parser: build insert for %q: %w", table, err)
	}
	stampOperation(&op, ts, haveTS, pos, havePos)
	return &op, nil
}

func (p *Parser) parseDelete(ctx context.Context, lines *lineSource, tablePath string, ts binlog.Timestamp, haveTS bool, pos uint64, havePos bool) (*binlog.Operation, error) {
	db, table := extractTableName(tablePath)
	columns, err := p.probe.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("parser: probe schema for %q: %w", table, err)
	}
	if len(columns) == 0 {
		lines.skipToNextStatement()
		return nil, nil
	}

	where, _, err := collectColumnValues(lines, false)
	if err != nil {
		return nil, err
	}
	before := imageFromMap(columns, where)

	op, err := binlog.NewDelete(db, table, columns, before)
	if err != nil {
		return nil, fmt.Errorf("parser: build delete for %q: %w", table, err)
	}
	stampOperation(&op, ts, haveTS, pos, havePos)
	return &op, nil
}

func stampOperation(op *binlog.Operation, ts binlog.Timestamp, haveTS bool, pos uint64, havePos bool) {
	if haveTS {
		op.Timestamp = ts
		op.HasTimestamp = true
	}
	if havePos {
		op.Position = pos
		op.HasPosition = true
	}
}

// collectColumnValues consumes "###   @N=value" lines until it hits a line
// that isn't a "###"-prefixed image line, or the start of the next SQL
// operation. When stopAtSet is true (WHERE-image parsing), a "### SET"
// marker line is consumed and ends the loop with foundSet = true instead
// of being treated as ordinary image content.
func collectColumnValues(lines *lineSource, stopAtSet bool) (map[int]string, bool, error) {
	values := make(map[int]string)
	for {
		line, ok, err := lines.peek()
		if err != nil {
			return nil, false, err
		}
		if !ok || !hasImagePrefix(line) {
			return values, false, nil
		}
		if isStatementHeader(line) {
			return values, false, nil
		}
		if stopAtSet && isSetMarker(line) {
			lines.discardPeeked()
			return values, true, nil
		}

		line, _, err = lines.next()
		if err != nil {
			return nil, false, err
		}
		if m := columnValueRegex.FindStringSubmatch(line); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, false, fmt.Errorf("parser: invalid column index in %q: %w", line, err)
			}
			values[idx] = m[2]
		}
	}
}

// imageFromMap converts a 1-indexed @N=value map into a column-ordered
// image vector, defaulting any column not present in the map to the SQL
// NULL literal.
func imageFromMap(columns []string, values map[int]string) []string {
	image := make([]string, len(columns))
	for i := range columns {
		if v, ok := values[i+1]; ok {
			image[i] = v
		} else {
			image[i] = "NULL"
		}
	}
	return image
}

func extractTableName(tablePath string) (db, table string) {
	if m := tableNameRegex.FindStringSubmatch(tablePath); m != nil {
		return m[1], m[2]
	}
	return "", tablePath
}

func hasImagePrefix(line string) bool {
	return len(line) >= 3 && line[:3] == "###"
}

func isStatementHeader(line string) bool {
	return updateRegex.MatchString(line) || insertRegex.MatchString(line) || deleteRegex.MatchString(line)
}

func isSetMarker(line string) bool {
	return len(line) >= 7 && line[:7] == "### SET"
}

// lineSource is a single-line-of-lookahead reader over the change log,
// decoding each line with UTF-8 replacement so stray non-UTF-8 bytes in a
// binary column value never abort parsing.
type lineSource struct {
	sc       *bufio.Scanner
	peeked   *string
	peekErr  error
	havePeek bool
}

func newLineSource(r io.Reader) *lineSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineSource{sc: sc}
}

func (l *lineSource) peek() (string, bool, error) {
	if l.havePeek {
		if l.peeked == nil {
			return "", false, l.peekErr
		}
		return *l.peeked, true, nil
	}
	if !l.sc.Scan() {
		l.havePeek = true
		l.peeked = nil
		l.peekErr = l.sc.Err()
		return "", false, l.peekErr
	}
	line := toUTF8Lossy(l.sc.Bytes())
	l.havePeek = true
	l.peeked = &line
	return line, true, nil
}

func (l *lineSource) next() (string, bool, error) {
	if l.havePeek {
		l.havePeek = false
		if l.peeked == nil {
			return "", false, l.peekErr
		}
		return *l.peeked, true, nil
	}
	if !l.sc.Scan() {
		return "", false, l.sc.Err()
	}
	return toUTF8Lossy(l.sc.Bytes()), true, nil
}

func (l *lineSource) discardPeeked() {
	l.havePeek = false
}

// skipToNextStatement discards lines until the next statement header (or
// end of input), used when an operation's table isn't present in the
// loaded snapshot and its body must be skipped wholesale.
func (l *lineSource) skipToNextStatement() {
	for {
		line, ok, err := l.peek()
		if err != nil || !ok || !hasImagePrefix(line) || isStatementHeader(line) {
			return
		}
		l.discardPeeked()
	}
}

// toUTF8Lossy mirrors String::from_utf8_lossy: invalid byte sequences are
// replaced with U+FFFD rather than aborting the read, since change logs can
// carry arbitrary binary column values inline as text.
func toUTF8Lossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb []byte
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb = append(sb, "�"...)
			b = b[1:]
			continue
		}
		sb = append(sb, b[:size]...)
		b = b[size:]
	}
	return string(sb)
}
