package applier

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigne/pensieve/pkg/binlog"
	"github.com/eigne/pensieve/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Bootstrap(ctx, []string{
		"CREATE TABLE accounts (id INTEGER, balance INTEGER, name VARCHAR)",
		"INSERT INTO accounts VALUES (1, 100, 'Alice')",
	}))
	return s
}

func selectBalance(t *testing.T, s *store.Store, id int) int {
	t.Helper()
	query := fmt.Sprintf("SELECT balance FROM accounts WHERE id = %d", id)
	row := s.QueryRowContext(context.Background(), query)
	var balance int
	require.NoError(t, row.Scan(&balance))
	return balance
}

// Scenario 4: a stale Update whose pre-image no longer matches the store's
// current row is skipped rather than applied.
func TestApplyConditionally_StaleUpdateIsSkipped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := New(s, nil)

	// Pre-image claims balance was 999, but the store has 100: stale.
	op, err := binlog.NewUpdate("db", "accounts",
		[]string{"id", "balance", "name"},
		[]string{"1", "999", "'Alice'"},
		[]string{"1", "150", "'Alice'"},
	)
	require.NoError(t, err)

	applied, err := a.ApplyConditionally(ctx, op)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, 100, selectBalance(t, s, 1))
}

// Scenario 5: apply forward (mutates), apply the same op again (no-op,
// since the pre-image no longer matches), then apply the inverse (restores
// the original row).
func TestApplyConditionally_BidirectionalRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := New(s, nil)

	op, err := binlog.NewUpdate("db", "accounts",
		[]string{"id", "balance", "name"},
		[]string{"1", "100", "'Alice'"},
		[]string{"1", "150", "'Alice'"},
	)
	require.NoError(t, err)

	applied, err := a.ApplyConditionally(ctx, op)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 150, selectBalance(t, s, 1))

	applied, err = a.ApplyConditionally(ctx, op)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, 150, selectBalance(t, s, 1))

	applied, err = a.ApplyConditionally(ctx, op.Invert())
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 100, selectBalance(t, s, 1))
}

func TestApplyConditionally_InsertSkippedWhenRowAlreadyIdentical(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := New(s, nil)

	op, err := binlog.NewInsert("db", "accounts",
		[]string{"id", "balance", "name"},
		[]string{"1", "100", "'Alice'"},
	)
	require.NoError(t, err)

	applied, err := a.ApplyConditionally(ctx, op)
	require.NoError(t, err)
	require.False(t, applied)
}

func TestApplyConditionally_DeleteSkippedWhenRowAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := New(s, nil)

	op, err := binlog.NewDelete("db", "accounts",
		[]string{"id", "balance", "name"},
		[]string{"999", "0", "'Nobody'"},
	)
	require.NoError(t, err)

	applied, err := a.ApplyConditionally(ctx, op)
	require.NoError(t, err)
	require.False(t, applied)
}
