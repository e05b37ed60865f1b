package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_BootstrapAndSchemaProbe(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, nil)
	require.NoError(t, err)
	defer s.Close()

	err = s.Bootstrap(ctx, []string{
		"CREATE TABLE users (id INTEGER, name VARCHAR, active BOOLEAN)",
		"INSERT INTO users VALUES (1, 'Alice', true)",
	})
	require.NoError(t, err)

	probe := NewSchemaProbe(s)
	cols, types, err := probe.TableInfo(ctx, "users")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "active"}, cols)
	require.Len(t, types, 3)
}

func TestStore_SchemaProbe_UnknownTableIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, nil)
	require.NoError(t, err)
	defer s.Close()

	probe := NewSchemaProbe(s)
	cols, types, err := probe.TableInfo(ctx, "does_not_exist")
	require.NoError(t, err)
	require.Empty(t, cols)
	require.Empty(t, types)
}

func TestStore_SchemaProbe_Memoises(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Bootstrap(ctx, []string{"CREATE TABLE t (a INTEGER)"}))

	probe := NewSchemaProbe(s)
	cols1, _, err := probe.TableInfo(ctx, "t")
	require.NoError(t, err)

	// Drop-and-recreate with a different shape: a cached probe must not
	// notice, matching the spec's "no DDL support" invariant.
	require.NoError(t, s.Bootstrap(ctx, []string{"DROP TABLE t", "CREATE TABLE t (a INTEGER, b INTEGER)"}))

	cols2, _, err := probe.TableInfo(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, cols1, cols2)
}

func TestStore_LoadSnapshotFromParquet_NoFiles(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, nil)
	require.NoError(t, err)
	defer s.Close()

	err = s.LoadSnapshotFromParquet(ctx, "t", nil)
	require.Error(t, err)
}
