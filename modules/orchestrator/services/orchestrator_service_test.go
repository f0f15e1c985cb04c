package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/modules/orchestrator/infrastructure/persistence"
	"github.com/iota-uz/order-saga/modules/orchestrator/services"
	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/outbox"
	"github.com/iota-uz/order-saga/pkg/outbox/memory"
	"github.com/iota-uz/order-saga/pkg/saga"
)

type fixture struct {
	svc    *services.OrchestratorService
	store  *memory.Store
	parked *persistence.MemoryParkedRepository
}

func newFixture(t *testing.T, table saga.RouteTable) fixture {
	t.Helper()

	router, err := saga.NewRouter(table)
	require.NoError(t, err)

	db := memtx.New()
	store := memory.New(db)
	ob, err := outbox.New("orchestrator", store, db)
	require.NoError(t, err)

	repo := persistence.NewMemoryParkedRepository(db)
	return fixture{
		svc:    services.NewOrchestratorService(router, ob, repo, services.Options{}),
		store:  store,
		parked: repo,
	}
}

func envelope(source saga.Source, status saga.Status) saga.Envelope {
	return saga.Envelope{
		TransactionID: "1700000000000_tx",
		AggregateID:   "order-1",
		Payload:       saga.OrderSnapshot{ID: "order-1", TransactionID: "1700000000000_tx"},
		Source:        source,
		Status:        status,
	}
}

func TestOrchestratorService_RoutesUnchangedEnvelope(t *testing.T) {
	t.Parallel()

	topics := saga.DefaultTopics()
	f := newFixture(t, saga.DefaultRoutes(topics))
	in := envelope(saga.SourcePayment, saga.StatusRollbackPending)

	require.NoError(t, f.svc.Handle(context.Background(), in))

	recs := f.store.All()
	require.Len(t, recs, 1)
	require.Equal(t, topics.ProductValidationFail, recs[0].Destination)
	require.Equal(t, "PAYMENT_ROLLBACK_PENDING", recs[0].EventType)

	out, err := saga.DecodeEnvelope([]byte(recs[0].EventData))
	require.NoError(t, err)
	require.Equal(t, in.Source, out.Source)
	require.Equal(t, in.Status, out.Status)
	require.Equal(t, in.TransactionID, out.TransactionID)
}

func TestOrchestratorService_ParksUnroutable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, saga.DefaultRoutes(saga.DefaultTopics()))
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, envelope("SHIPPING_SERVICE", saga.StatusSuccess)))
	require.Empty(t, f.store.All())

	events, err := f.svc.Parked(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, saga.Source("SHIPPING_SERVICE"), events[0].Source)
	require.Contains(t, events[0].Reason, "SHIPPING_SERVICE")

	_, err = f.svc.Reprocess(ctx, events[0].ID)
	require.ErrorIs(t, err, saga.ErrNoRoute)

	events, err = f.svc.Parked(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1, "a failed re-drive leaves the event parked")
}

func TestOrchestratorService_ReprocessWithExtendedTable(t *testing.T) {
	t.Parallel()

	topics := saga.DefaultTopics()
	ctx := context.Background()

	first := newFixture(t, saga.DefaultRoutes(topics))
	require.NoError(t, first.svc.Handle(ctx, envelope("SHIPPING_SERVICE", saga.StatusSuccess)))
	events, err := first.svc.Parked(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	extended := saga.DefaultRoutes(topics)
	extended[saga.Transition{Source: "SHIPPING_SERVICE", Status: saga.StatusSuccess}] = topics.FinishSuccess
	router, err := saga.NewRouter(extended)
	require.NoError(t, err)

	db := memtx.New()
	store := memory.New(db)
	ob, err := outbox.New("orchestrator", store, db)
	require.NoError(t, err)
	repo := persistence.NewMemoryParkedRepository(db)
	require.NoError(t, db.InTx(ctx, func(txCtx context.Context) error {
		return repo.Save(txCtx, events[0])
	}))
	svc := services.NewOrchestratorService(router, ob, repo, services.Options{})

	dest, err := svc.Reprocess(ctx, events[0].ID)
	require.NoError(t, err)
	require.Equal(t, topics.FinishSuccess, dest)
	require.Len(t, store.All(), 1)

	open, err := svc.Parked(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, open)

	_, err = svc.Reprocess(ctx, events[0].ID)
	require.Error(t, err)
}
