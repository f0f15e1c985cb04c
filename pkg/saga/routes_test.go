package saga_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/pkg/saga"
)

func TestDefaultRoutes_Complete(t *testing.T) {
	t.Parallel()

	rt := saga.DefaultRoutes(saga.DefaultTopics())
	require.NoError(t, rt.Validate(saga.Sources, saga.Statuses))
	require.Len(t, rt, len(saga.Sources)*len(saga.Statuses))
}

func TestDefaultRoutes_Graph(t *testing.T) {
	t.Parallel()

	topics := saga.DefaultTopics()
	rt := saga.DefaultRoutes(topics)
	cases := []struct {
		source saga.Source
		status saga.Status
		want   string
	}{
		{saga.SourceOrder, saga.StatusSuccess, "product-validation-start"},
		{saga.SourceProductValidation, saga.StatusSuccess, "payment-start"},
		{saga.SourcePayment, saga.StatusSuccess, "inventory-start"},
		{saga.SourceInventory, saga.StatusSuccess, "finish-success"},
		{saga.SourceProductValidation, saga.StatusFail, "product-validation-fail"},
		{saga.SourcePayment, saga.StatusFail, "payment-fail"},
		{saga.SourceInventory, saga.StatusFail, "inventory-fail"},
		{saga.SourceInventory, saga.StatusRollbackPending, "payment-fail"},
		{saga.SourcePayment, saga.StatusRollbackPending, "product-validation-fail"},
		{saga.SourceProductValidation, saga.StatusRollbackPending, "finish-fail"},
		{saga.SourceOrder, saga.StatusFail, "finish-fail"},
	}
	for _, tc := range cases {
		got, err := rt.Lookup(tc.source, tc.status)
		require.NoError(t, err)
		if got != tc.want {
			t.Fatalf("%s/%s: want %q got %q", tc.source, tc.status, tc.want, got)
		}
	}
}

func TestServiceRoutes_UnionEqualsDefault(t *testing.T) {
	t.Parallel()

	topics := saga.DefaultTopics()
	tables := make([]saga.RouteTable, 0, len(saga.Sources))
	for _, src := range saga.Sources {
		own := saga.ServiceRoutes(src, topics)
		require.NoError(t, own.Validate([]saga.Source{src}, saga.Statuses))
		tables = append(tables, own)
	}
	union, err := saga.Union(tables...)
	require.NoError(t, err)
	require.True(t, union.Equal(saga.DefaultRoutes(topics)))
}

func TestUnion_RejectsConflict(t *testing.T) {
	t.Parallel()

	a := saga.RouteTable{{Source: saga.SourcePayment, Status: saga.StatusSuccess}: "x"}
	b := saga.RouteTable{{Source: saga.SourcePayment, Status: saga.StatusSuccess}: "y"}
	_, err := saga.Union(a, b)
	require.ErrorIs(t, err, saga.ErrIncompleteRoutes)
}

func TestLookup_MissingEntry(t *testing.T) {
	t.Parallel()

	rt := saga.RouteTable{}
	_, err := rt.Lookup(saga.SourcePayment, saga.StatusSuccess)
	require.ErrorIs(t, err, saga.ErrNoRoute)
}

func TestNewRouter_RejectsIncompleteTable(t *testing.T) {
	t.Parallel()

	rt := saga.DefaultRoutes(saga.DefaultTopics())
	delete(rt, saga.Transition{Source: saga.SourceInventory, Status: saga.StatusRollbackPending})
	_, err := saga.NewRouter(rt)
	require.ErrorIs(t, err, saga.ErrIncompleteRoutes)
	require.Contains(t, err.Error(), "INVENTORY_SERVICE/ROLLBACK_PENDING")
}

func TestNewDecider(t *testing.T) {
	t.Parallel()

	topics := saga.DefaultTopics()

	d, err := saga.NewDecider(saga.Orchestrated, saga.SourcePayment, topics, nil)
	require.NoError(t, err)
	for _, st := range saga.Statuses {
		got, err := d.Next(saga.SourcePayment, st)
		require.NoError(t, err)
		require.Equal(t, "orchestrator", got)
	}

	d, err = saga.NewDecider(saga.Choreographed, saga.SourcePayment, topics, nil)
	require.NoError(t, err)
	got, err := d.Next(saga.SourcePayment, saga.StatusFail)
	require.NoError(t, err)
	require.Equal(t, "payment-fail", got)
	_, err = d.Next(saga.SourceInventory, saga.StatusFail)
	require.ErrorIs(t, err, saga.ErrNoRoute)

	_, err = saga.NewDecider("ring", saga.SourcePayment, topics, nil)
	require.ErrorIs(t, err, saga.ErrInvalidTopology)
}

func TestTopics_Validate(t *testing.T) {
	t.Parallel()

	topics := saga.DefaultTopics()
	require.NoError(t, topics.Validate())

	topics.PaymentFail = topics.PaymentStart
	require.ErrorIs(t, topics.Validate(), saga.ErrInvalidTopics)

	topics = saga.DefaultTopics()
	topics.NotifyEnding = ""
	require.ErrorIs(t, topics.Validate(), saga.ErrInvalidTopics)
}

func TestEnvelope_NextDoesNotMutate(t *testing.T) {
	t.Parallel()

	env := saga.Envelope{TransactionID: "tx", AggregateID: "a", Source: saga.SourceOrder, Status: saga.StatusSuccess}
	next := env.Next(saga.SourcePayment, saga.StatusFail, env.CreatedAt)
	require.Equal(t, saga.SourceOrder, env.Source)
	require.Equal(t, saga.SourcePayment, next.Source)
	require.Equal(t, "PAYMENT_FAIL", next.EventType())
	require.Equal(t, env.Key(), next.Key())
}

func TestNewDecider_RejectsIncompleteOwnTable(t *testing.T) {
	t.Parallel()

	own := saga.RouteTable{{Source: saga.SourcePayment, Status: saga.StatusSuccess}: "inventory-start"}
	_, err := saga.NewDecider(saga.Choreographed, saga.SourcePayment, saga.DefaultTopics(), own)
	require.ErrorIs(t, err, saga.ErrIncompleteRoutes)
}
