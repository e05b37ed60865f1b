package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigne/pensieve/pkg/binlog"
	"github.com/eigne/pensieve/pkg/store"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Bootstrap(ctx, []string{
		`CREATE TABLE users (
			id INTEGER, name VARCHAR, email VARCHAR, age INTEGER,
			balance DECIMAL(10,2), is_active BOOLEAN, created_at TIMESTAMP
		)`,
	}))
	return New(store.NewSchemaProbe(s), nil, nil)
}

const updateChangeLog = `#251020 19:43:32 server id 123  end_log_pos 1000
BEGIN
### UPDATE ` + "`main`.`users`" + `
### WHERE
###   @1=1
###   @2='Alice'
###   @3='alice@example.com'
###   @4=30
###   @5=1000.50
###   @6=1
###   @7='2024-01-01 10:00:00'
### SET
###   @1=1
###   @2='Alice Smith'
###   @3='alice@example.com'
###   @4=31
###   @5=1000.50
###   @6=1
###   @7='2024-01-01 10:00:00'
COMMIT
`

// Scenario 1: a committed UPDATE yields exactly one Update operation with
// the expected before/after images.
func TestParse_CommittedUpdate(t *testing.T) {
	p := newTestParser(t)
	ops, err := p.Parse(context.Background(), strings.NewReader(updateChangeLog))
	require.NoError(t, err)
	require.Len(t, ops, 1)

	op := ops[0]
	require.Equal(t, binlog.Update, op.Kind)
	require.Equal(t, "users", op.Table)
	require.Equal(t, "main", op.Database)
	require.True(t, op.HasTimestamp)
	require.Equal(t, "251020 19:43:32", op.Timestamp.Format())
	require.True(t, op.HasPosition)
	require.EqualValues(t, 1000, op.Position)

	require.Equal(t, "'Alice'", op.Before[1])
	require.Equal(t, "'Alice Smith'", op.After[1])
	require.Equal(t, "30", op.Before[3])
	require.Equal(t, "31", op.After[3])
}

// Scenario 2: the same log, but ROLLBACK instead of COMMIT, discards the
// buffered operation entirely.
func TestParse_RollbackDiscardsOperations(t *testing.T) {
	rolledBack := strings.Replace(updateChangeLog, "COMMIT", "ROLLBACK", 1)
	p := newTestParser(t)
	ops, err := p.Parse(context.Background(), strings.NewReader(rolledBack))
	require.NoError(t, err)
	require.Empty(t, ops)
}

func TestParse_InsertWithoutBeforeImage(t *testing.T) {
	const log = `#251020 19:43:32 server id 123  end_log_pos 2000
BEGIN
### INSERT INTO ` + "`main`.`users`" + `
### SET
###   @1=4
###   @2='David'
###   @3='david@example.com'
###   @4=28
###   @5=750.25
###   @6=1
###   @7='2024-01-04 13:00:00'
COMMIT
`
	p := newTestParser(t)
	ops, err := p.Parse(context.Background(), strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, ops, 1)

	op := ops[0]
	require.Equal(t, binlog.Insert, op.Kind)
	require.Nil(t, op.Before)
	require.Equal(t, "4", op.After[0])
	require.Equal(t, "'David'", op.After[1])
}

func TestParse_UnknownTableIsSkipped(t *testing.T) {
	const log = `#251020 19:43:32 server id 123  end_log_pos 3000
BEGIN
### INSERT INTO ` + "`main`.`ghost_table`" + `
### SET
###   @1=1
###   @2='X'
COMMIT
`
	p := newTestParser(t)
	ops, err := p.Parse(context.Background(), strings.NewReader(log))
	require.NoError(t, err)
	require.Empty(t, ops)
}

func TestParse_NestedBeginResetsPendingBuffer(t *testing.T) {
	const log = `#251020 19:43:32 server id 123  end_log_pos 4000
BEGIN
### INSERT INTO ` + "`main`.`users`" + `
### SET
###   @1=5
###   @2='Eve'
BEGIN
### INSERT INTO ` + "`main`.`users`" + `
### SET
###   @1=6
###   @2='Frank'
COMMIT
`
	p := newTestParser(t)
	ops, err := p.Parse(context.Background(), strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, "6", ops[0].After[0])
}
