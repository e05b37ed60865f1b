package binlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_Invert_InsertBecomesDelete(t *testing.T) {
	op, err := NewInsert("db", "t", []string{"id", "name"}, []string{"1", "'a'"})
	require.NoError(t, err)

	inv := op.Invert()
	assert.Equal(t, Delete, inv.Kind)
	assert.Nil(t, inv.After)
	assert.Equal(t, []string{"1", "'a'"}, inv.Before)
	assert.Equal(t, op.Columns, inv.Columns)
}

func TestOperation_Invert_DeleteBecomesInsert(t *testing.T) {
	op, err := NewDelete("db", "t", []string{"id", "name"}, []string{"1", "'a'"})
	require.NoError(t, err)

	inv := op.Invert()
	assert.Equal(t, Insert, inv.Kind)
	assert.Nil(t, inv.Before)
	assert.Equal(t, []string{"1", "'a'"}, inv.After)
}

func TestOperation_Invert_UpdateSwapsImages(t *testing.T) {
	op, err := NewUpdate("db", "t", []string{"id", "name"}, []string{"1", "'a'"}, []string{"1", "'b'"})
	require.NoError(t, err)

	inv := op.Invert()
	assert.Equal(t, Update, inv.Kind)
	assert.Equal(t, []string{"1", "'b'"}, inv.Before)
	assert.Equal(t, []string{"1", "'a'"}, inv.After)
}

func TestOperation_Invert_IsItsOwnInverse(t *testing.T) {
	ops := []Operation{
		mustInsert(t),
		mustUpdate(t),
		mustDelete(t),
	}
	for _, op := range ops {
		roundTripped := op.Invert().Invert()
		assert.Equal(t, op, roundTripped)
	}
}

func TestOperation_ColumnLengthValidation(t *testing.T) {
	_, err := NewInsert("db", "t", []string{"id", "name"}, []string{"1"})
	assert.Error(t, err)

	_, err = NewUpdate("db", "t", []string{"id"}, []string{"1"}, []string{"1", "2"})
	assert.Error(t, err)

	_, err = NewDelete("db", "t", []string{"id", "name"}, []string{"1", "2", "3"})
	assert.Error(t, err)
}

func TestOperation_IdentifyingImage(t *testing.T) {
	ins := mustInsert(t)
	assert.Equal(t, ins.After, ins.IdentifyingImage())

	upd := mustUpdate(t)
	assert.Equal(t, upd.Before, upd.IdentifyingImage())

	del := mustDelete(t)
	assert.Equal(t, del.Before, del.IdentifyingImage())
}

func mustInsert(t *testing.T) Operation {
	t.Helper()
	op, err := NewInsert("db", "t", []string{"id", "name"}, []string{"1", "'a'"})
	require.NoError(t, err)
	return op
}

func mustUpdate(t *testing.T) Operation {
	t.Helper()
	op, err := NewUpdate("db", "t", []string{"id", "name"}, []string{"1", "'a'"}, []string{"1", "'b'"})
	require.NoError(t, err)
	return op
}

func mustDelete(t *testing.T) Operation {
	t.Helper()
	op, err := NewDelete("db", "t", []string{"id", "name"}, []string{"1", "'a'"})
	require.NoError(t, err)
	return op
}
