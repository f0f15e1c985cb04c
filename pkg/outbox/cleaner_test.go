package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/pkg/outbox"
)

func TestCleaner_PurgesOnlyOldDeliveredRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ob, store := newFixture(t)
	old := enqueue(t, ob, "o-1", "CREATED")
	fresh := enqueue(t, ob, "o-2", "CREATED")
	undelivered := enqueue(t, ob, "o-3", "CREATED")

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkDelivered(ctx, old.ID, now.Add(-8*24*time.Hour)))
	require.NoError(t, store.MarkDelivered(ctx, fresh.ID, now.Add(-time.Hour)))

	cleaner, err := outbox.NewCleaner(store, outbox.CleanerOptions{
		Name:    "test",
		Enabled: true,
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)

	n, err := cleaner.CleanOnce(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = store.Get(ctx, old.ID)
	require.ErrorIs(t, err, outbox.ErrRecordNotFound)
	_, err = store.Get(ctx, fresh.ID)
	require.NoError(t, err)
	_, err = store.Get(ctx, undelivered.ID)
	require.NoError(t, err)
}

func TestCleaner_DisabledReturnsImmediately(t *testing.T) {
	t.Parallel()

	_, store := newFixture(t)
	cleaner, err := outbox.NewCleaner(store, outbox.CleanerOptions{})
	require.NoError(t, err)
	require.NoError(t, cleaner.Run(context.Background()))
}
