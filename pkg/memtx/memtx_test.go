package memtx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInTx_RollbackRunsUndoInReverse(t *testing.T) {
	t.Parallel()

	db := New()
	var order []int
	boom := errors.New("boom")

	err := db.InTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, OnRollback(ctx, func() { order = append(order, 1) }))
		require.NoError(t, OnRollback(ctx, func() { order = append(order, 2) }))
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{2, 1}, order)
}

func TestInTx_CommitSkipsUndo(t *testing.T) {
	t.Parallel()

	db := New()
	called := false
	err := db.InTx(context.Background(), func(ctx context.Context) error {
		return OnRollback(ctx, func() { called = true })
	})

	require.NoError(t, err)
	require.False(t, called)
}

func TestInTx_NestedJoinsOuter(t *testing.T) {
	t.Parallel()

	db := New()
	undone := 0
	err := db.InTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, db.InTx(ctx, func(inner context.Context) error {
			require.True(t, db.Active(inner))
			return OnRollback(inner, func() { undone++ })
		}))
		return errors.New("outer failed")
	})

	require.Error(t, err)
	require.Equal(t, 1, undone)
}

func TestOnRollback_WithoutTx(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, OnRollback(context.Background(), func() {}), ErrNoTx)
}

func TestActive_OtherDB(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	_ = a.InTx(context.Background(), func(ctx context.Context) error {
		require.False(t, b.Active(ctx))
		return nil
	})
}
