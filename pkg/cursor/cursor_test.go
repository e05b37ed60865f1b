package cursor

import (
	"context"
	"fmt"
	"testing"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/stretchr/testify/require"

	"github.com/eigne/pensieve/pkg/binlog"
	"github.com/eigne/pensieve/pkg/store"
)

func newTestCursor(t *testing.T) (*Cursor, []binlog.Operation) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Bootstrap(ctx, []string{
		"CREATE TABLE accounts (id INTEGER, balance INTEGER)",
		"INSERT INTO accounts VALUES (1, 100)",
	}))

	ops := make([]binlog.Operation, 5)
	balance := 100
	for i := range ops {
		op, err := binlog.NewUpdate("db", "accounts",
			[]string{"id", "balance"},
			[]string{"1", fmt.Sprint(balance)},
			[]string{"1", fmt.Sprint(balance + 10)},
		)
		require.NoError(t, err)
		balance += 10
		ops[i] = op
	}

	return New(s, ops, 0), ops
}

// dumpState renders the store's full table content as a diffable string,
// in the teacher's own idiom of comparing JSON/text snapshots with
// gotextdiff rather than field-by-field struct equality.
func dumpState(t *testing.T, s *store.Store) string {
	t.Helper()
	rows, err := s.QueryContext(context.Background(), "SELECT id, balance FROM accounts ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	out := ""
	for rows.Next() {
		var id, balance int
		require.NoError(t, rows.Scan(&id, &balance))
		out += fmt.Sprintf("id=%d balance=%d\n", id, balance)
	}
	require.NoError(t, rows.Err())
	return out
}

func requireNoDiff(t *testing.T, label, before, after string) {
	t.Helper()
	edits := myers.ComputeEdits(span.URIFromPath("before/"+label), before, after)
	diff := fmt.Sprint(gotextdiff.ToUnified("before/"+label, "after/"+label, before, edits))
	require.Empty(t, diff, "store state diverged:\n%s", diff)
}

func TestCursor_StepForwardThenBackwardRestoresState(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCursor(t)

	before := dumpState(t, c.Store())

	ok, err := c.StepForward(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, c.Position())

	ok, err = c.StepBackward(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, c.Position())

	after := dumpState(t, c.Store())
	requireNoDiff(t, "accounts", before, after)
}

func TestCursor_GotoPositionRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCursor(t)

	before := dumpState(t, c.Store())

	require.NoError(t, c.GotoPosition(ctx, 3))
	require.Equal(t, 3, c.Position())

	require.NoError(t, c.GotoPosition(ctx, 0))
	require.Equal(t, 0, c.Position())

	after := dumpState(t, c.Store())
	requireNoDiff(t, "accounts", before, after)
}

func TestCursor_GotoPositionOutOfBoundsErrors(t *testing.T) {
	ctx := context.Background()
	c, ops := newTestCursor(t)
	err := c.GotoPosition(ctx, len(ops)+5)
	require.Error(t, err)
}

func TestCursor_StepForwardAtEndIsNoop(t *testing.T) {
	ctx := context.Background()
	c, ops := newTestCursor(t)
	require.NoError(t, c.GotoPosition(ctx, len(ops)-1))

	ok, err := c.StepForward(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, len(ops)-1, c.Position())
}

func TestCursor_GotoTimestampExactMatch(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Bootstrap(ctx, []string{
		"CREATE TABLE accounts (id INTEGER, balance INTEGER)",
		"INSERT INTO accounts VALUES (1, 100)",
	}))

	stamps := []string{"250101 10:00:00", "250101 11:00:00", "250101 12:00:00"}
	ops := make([]binlog.Operation, len(stamps))
	balance := 100
	for i, s := range stamps {
		op, err := binlog.NewUpdate("db", "accounts",
			[]string{"id", "balance"},
			[]string{"1", fmt.Sprint(balance)},
			[]string{"1", fmt.Sprint(balance + 10)},
		)
		require.NoError(t, err)
		ts, err := binlog.ParseTimestamp(s)
		require.NoError(t, err)
		op.Timestamp = ts
		op.HasTimestamp = true
		ops[i] = op
		balance += 10
	}

	c := New(s, ops, 0)
	require.NoError(t, c.GotoTimestamp(ctx, "250101 11:00:00"))
	require.Equal(t, 1, c.Position())
}
