//go:build integration

package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/internal/testinfra"
	"github.com/iota-uz/order-saga/modules/inventory/infrastructure/persistence"
	"github.com/iota-uz/order-saga/modules/inventory/services"
	"github.com/iota-uz/order-saga/pkg/composables"
	"github.com/iota-uz/order-saga/pkg/ledger"
	"github.com/iota-uz/order-saga/pkg/outbox"
	outboxpg "github.com/iota-uz/order-saga/pkg/outbox/postgres"
	"github.com/iota-uz/order-saga/pkg/saga"
)

func TestInventoryService_Integration_ConcurrentRedeliveryReservesOnce(t *testing.T) {
	pool := testinfra.Pool(t, "inventory")
	ctx, cancel := context.WithTimeout(composables.WithPool(context.Background(), pool), 30*time.Second)
	defer cancel()

	store := outboxpg.New(pool, nil)
	ob, err := outbox.New("inventory", store, store.Transactor())
	require.NoError(t, err)

	stockRepo := persistence.NewStockRepository()
	svc := services.NewInventoryService(stockRepo, ledger.NewPostgresRepository("inventory_reservation"))
	h := saga.NewStepHandler(svc, ob, saga.Forward("saga-orchestrator"), saga.StepHandlerOptions{})

	env := envelope(line{"COMIC_BOOKS", 1})
	env.Source = saga.SourcePayment
	env.Status = saga.StatusSuccess

	const deliveries = 2
	var wg sync.WaitGroup
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.HandleForward(ctx, env)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	moves, err := stockRepo.Movements(ctx, env.AggregateID, env.TransactionID)
	require.NoError(t, err)
	require.Len(t, moves, 1)

	all, err := stockRepo.GetAll(ctx)
	require.NoError(t, err)
	for _, s := range all {
		if s.ProductCode == "COMIC_BOOKS" {
			require.Equal(t, 9, s.Available)
		}
	}

	pending, err := store.QueryPending(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}
