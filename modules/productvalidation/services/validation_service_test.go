package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/modules/productvalidation/infrastructure/persistence"
	"github.com/iota-uz/order-saga/modules/productvalidation/services"
	"github.com/iota-uz/order-saga/pkg/ledger"
	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/saga"
)

func envelope(codes ...string) saga.Envelope {
	items := make([]saga.OrderProduct, 0, len(codes))
	for _, c := range codes {
		items = append(items, saga.OrderProduct{
			Product:  saga.Product{Code: c, UnitValue: decimal.NewFromInt(10)},
			Quantity: 1,
		})
	}
	return saga.Envelope{
		TransactionID: "1700000000000_tx",
		AggregateID:   "order-1",
		Source:        saga.SourceOrder,
		Status:        saga.StatusSuccess,
		Payload: saga.OrderSnapshot{
			ID:            "order-1",
			TransactionID: "1700000000000_tx",
			Products:      items,
		},
	}
}

func newService() (*services.ValidationService, *memtx.DB, *ledger.MemoryRepository) {
	db := memtx.New()
	validations := ledger.NewMemoryRepository(db)
	svc := services.NewValidationService(persistence.NewMemoryProductRepository(persistence.DefaultCatalog()...), validations)
	return svc, db, validations
}

func TestValidationService_Execute(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		env     saga.Envelope
		wantErr string
	}{
		{name: "known products", env: envelope("COMIC_BOOKS", "MUSIC")},
		{name: "empty list", env: envelope(), wantErr: "product list is empty"},
		{name: "unknown product", env: envelope("BOOKS", "VINYL"), wantErr: "VINYL does not exist"},
		{name: "blank code", env: envelope(""), wantErr: "product must be informed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, db, validations := newService()
			ctx := context.Background()
			err := db.InTx(ctx, func(txCtx context.Context) error {
				return svc.Execute(txCtx, tc.env)
			})
			if tc.wantErr == "" {
				require.NoError(t, err)
				st, err := svc.State(ctx, tc.env.Key())
				require.NoError(t, err)
				require.Equal(t, saga.StateSuccess, st)
				return
			}
			require.True(t, saga.IsBusiness(err), "expected business error, got %v", err)
			require.Contains(t, err.Error(), tc.wantErr)
			require.Empty(t, validations.All())
		})
	}
}

func TestValidationService_CompensateWritesTombstone(t *testing.T) {
	t.Parallel()

	svc, db, _ := newService()
	ctx := context.Background()
	env := envelope("BOOKS")

	require.NoError(t, db.InTx(ctx, func(txCtx context.Context) error {
		return svc.Compensate(txCtx, env, saga.StateNone)
	}))
	st, err := svc.State(ctx, env.Key())
	require.NoError(t, err)
	require.Equal(t, saga.StateCompensated, st)
}
