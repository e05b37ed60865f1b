// Package binlog models the row-level change stream produced by a MySQL
// server running with --verbose --base64-output=DECODE-ROWS: timestamps,
// operations, and their inverses.
package binlog

import (
	"fmt"
	"strconv"
	"time"
)

// binlogLayout is the exact "YYMMDD HH:MM:SS" shape a binlog event header
// uses, with the two-digit year already expanded to four digits (see
// ParseTimestamp) so time.ParseInLocation never applies its own windowing.
const binlogLayout = "20060102 15:04:05"

// outputLayout is binlogLayout with the year chopped back to two digits,
// used only by Format to render timestamps back in their original shape.
const outputLayout = "060102 15:04:05"

// Timestamp is a calendar instant at one-second resolution, as recorded in
// binlog event headers. It has a total order and supports hour arithmetic
// with proper overflow into days/months/years.
type Timestamp struct {
	t time.Time
}

// ParseTimestamp parses a string in the strict "YYMMDD HH:MM:SS" format: one
// space between date and time, exactly six date digits, colon-separated
// HH:MM:SS. Any other shape is an error.
//
// The two-digit year is expanded to 2000+YY unconditionally, not via Go's
// stdlib POSIX-style windowing (69-99 -> 1900s, 00-68 -> 2000s): a YY of 99
// is year 2099 here, never 1999, matching the change log's own convention.
func ParseTimestamp(s string) (Timestamp, error) {
	if len(s) != len(outputLayout) {
		return Timestamp{}, fmt.Errorf("binlog: invalid timestamp %q: want format %q", s, "YYMMDD HH:MM:SS")
	}
	if s[6] != ' ' {
		return Timestamp{}, fmt.Errorf("binlog: invalid timestamp %q: expected single space between date and time", s)
	}
	if s[9] != ':' || s[12] != ':' {
		return Timestamp{}, fmt.Errorf("binlog: invalid timestamp %q: expected HH:MM:SS", s)
	}
	if _, err := strconv.Atoi(s[0:2]); err != nil {
		return Timestamp{}, fmt.Errorf("binlog: invalid timestamp %q: non-numeric year", s)
	}

	expanded := "20" + s
	t, err := time.ParseInLocation(binlogLayout, expanded, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("binlog: invalid timestamp %q: %w", s, err)
	}
	return Timestamp{t: t}, nil
}

// Format renders the timestamp back in binlog form, "YYMMDD HH:MM:SS".
func (ts Timestamp) Format() string {
	return ts.t.Format(outputLayout)
}

func (ts Timestamp) String() string { return ts.Format() }

// AddHours returns a new Timestamp n hours later, normalising across day,
// month and year boundaries.
func (ts Timestamp) AddHours(n int) Timestamp {
	return Timestamp{t: ts.t.Add(time.Duration(n) * time.Hour)}
}

// SubtractHours returns a new Timestamp n hours earlier, normalising across
// day, month and year boundaries.
func (ts Timestamp) SubtractHours(n int) Timestamp {
	return ts.AddHours(-n)
}

// Before reports whether ts occurs strictly before other.
func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }

// After reports whether ts occurs strictly after other.
func (ts Timestamp) After(other Timestamp) bool { return ts.t.After(other.t) }

// Equal reports whether ts and other denote the same instant.
func (ts Timestamp) Equal(other Timestamp) bool { return ts.t.Equal(other.t) }

// Compare returns -1, 0 or 1 as ts is before, equal to, or after other. It
// exists so callers can sort a slice of Timestamps with the standard
// library's slices.SortFunc.
func (ts Timestamp) Compare(other Timestamp) int {
	switch {
	case ts.t.Before(other.t):
		return -1
	case ts.t.After(other.t):
		return 1
	default:
		return 0
	}
}

// IsZero reports whether ts is the zero value (no timestamp was recorded).
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// InWindow reports whether ts falls within [lower, upper], inclusive.
func (ts Timestamp) InWindow(lower, upper Timestamp) bool {
	return !ts.Before(lower) && !ts.After(upper)
}
