package applier

import (
	"testing"

	"github.com/eigne/pensieve/pkg/binlog"
	"github.com/stretchr/testify/require"
)

func TestGenerateStatement_Insert(t *testing.T) {
	op, err := binlog.NewInsert("db", "t", []string{"id", "name"}, []string{"1", "'X'"})
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO t (id, name) VALUES (1, 'X');", GenerateStatement(op))
}

func TestGenerateStatement_Update_OneNullInPreImage(t *testing.T) {
	op, err := binlog.NewUpdate("db", "t", []string{"id", "name"}, []string{"1", "NULL"}, []string{"1", "'X'"})
	require.NoError(t, err)
	require.Equal(t, "UPDATE t SET id = 1, name = 'X' WHERE id = 1;", GenerateStatement(op))
}

func TestGenerateStatement_Update_AllPreImageNull_OmitsWhere(t *testing.T) {
	op, err := binlog.NewUpdate("db", "t", []string{"id"}, []string{"NULL"}, []string{"1"})
	require.NoError(t, err)
	require.Equal(t, "UPDATE t SET id = 1;", GenerateStatement(op))
}

func TestGenerateStatement_Delete_WithPredicate(t *testing.T) {
	op, err := binlog.NewDelete("db", "t", []string{"id", "name"}, []string{"1", "NULL"})
	require.NoError(t, err)
	require.Equal(t, "DELETE FROM t WHERE id = 1;", GenerateStatement(op))
}

func TestGenerateStatement_Delete_AllNull_Unconditional(t *testing.T) {
	op, err := binlog.NewDelete("db", "t", []string{"id"}, []string{"NULL"})
	require.NoError(t, err)
	require.Equal(t, "DELETE FROM t;", GenerateStatement(op))
}
