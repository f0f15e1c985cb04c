package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/modules/inventory/infrastructure/persistence"
	"github.com/iota-uz/order-saga/modules/inventory/services"
	"github.com/iota-uz/order-saga/pkg/ledger"
	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/saga"
)

type line struct {
	code string
	qty  int
}

func envelope(lines ...line) saga.Envelope {
	items := make([]saga.OrderProduct, 0, len(lines))
	for _, l := range lines {
		items = append(items, saga.OrderProduct{
			Product:  saga.Product{Code: l.code, UnitValue: decimal.NewFromInt(5)},
			Quantity: l.qty,
		})
	}
	return saga.Envelope{
		TransactionID: "1700000000000_tx",
		AggregateID:   "order-1",
		Payload:       saga.OrderSnapshot{ID: "order-1", TransactionID: "1700000000000_tx", Products: items},
	}
}

func newService() (*services.InventoryService, *memtx.DB, *persistence.MemoryStockRepository, *ledger.MemoryRepository) {
	db := memtx.New()
	repo := persistence.NewMemoryStockRepository(db, persistence.DefaultStock()...)
	reservations := ledger.NewMemoryRepository(db)
	return services.NewInventoryService(repo, reservations), db, repo, reservations
}

func TestInventoryService_ReservesAndReleases(t *testing.T) {
	t.Parallel()

	svc, db, repo, _ := newService()
	ctx := context.Background()
	env := envelope(line{"COMIC_BOOKS", 3}, line{"MUSIC", 1})

	require.NoError(t, db.InTx(ctx, func(ctx context.Context) error { return svc.Execute(ctx, env) }))
	require.Equal(t, 7, repo.Available("COMIC_BOOKS"))
	require.Equal(t, 8, repo.Available("MUSIC"))

	moves, err := repo.Movements(ctx, "order-1", "1700000000000_tx")
	require.NoError(t, err)
	require.Len(t, moves, 2)
	require.Equal(t, 10, moves[0].OldQuantity)
	require.Equal(t, 7, moves[0].NewQuantity)

	var state saga.StepState
	require.NoError(t, db.InTx(ctx, func(ctx context.Context) error {
		var err error
		state, err = svc.State(ctx, env.Key())
		return err
	}))
	require.Equal(t, saga.StateSuccess, state)

	require.NoError(t, db.InTx(ctx, func(ctx context.Context) error {
		return svc.Compensate(ctx, env, saga.StateSuccess)
	}))
	require.Equal(t, 10, repo.Available("COMIC_BOOKS"))
	require.Equal(t, 9, repo.Available("MUSIC"))
}

func TestInventoryService_ShortageRollsBackEveryLine(t *testing.T) {
	t.Parallel()

	svc, db, repo, reservations := newService()
	ctx := context.Background()
	env := envelope(line{"MOVIES", 2}, line{"BOOKS", 3})

	err := db.InTx(ctx, func(ctx context.Context) error { return svc.Execute(ctx, env) })
	require.True(t, saga.IsBusiness(err))
	require.Contains(t, err.Error(), "BOOKS out of stock")
	require.Equal(t, 5, repo.Available("MOVIES"))
	require.Equal(t, 2, repo.Available("BOOKS"))
	require.Empty(t, reservations.All())

	moves, err := repo.Movements(ctx, "order-1", "1700000000000_tx")
	require.NoError(t, err)
	require.Empty(t, moves)
}

func TestInventoryService_UnknownProduct(t *testing.T) {
	t.Parallel()

	svc, db, _, _ := newService()
	err := db.InTx(context.Background(), func(ctx context.Context) error {
		return svc.Execute(ctx, envelope(line{"VINYL", 1}))
	})
	require.True(t, saga.IsBusiness(err))
}

func TestInventoryService_CompensateWithoutReservation(t *testing.T) {
	t.Parallel()

	svc, db, repo, reservations := newService()
	env := envelope(line{"BOOKS", 1})

	require.NoError(t, db.InTx(context.Background(), func(ctx context.Context) error {
		return svc.Compensate(ctx, env, saga.StateNone)
	}))
	require.Equal(t, 2, repo.Available("BOOKS"))
	entries := reservations.All()
	require.Len(t, entries, 1)
	require.Equal(t, saga.StateCompensated, entries[0].Status)
}
