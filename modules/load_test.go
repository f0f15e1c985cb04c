package modules_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/modules"
	"github.com/iota-uz/order-saga/pkg/saga"
)

func TestDecentralizedRoutesEqualDefault(t *testing.T) {
	t.Parallel()

	topics := saga.DefaultTopics()
	union, err := modules.DecentralizedRoutes(topics)
	require.NoError(t, err)
	require.True(t, union.Equal(saga.DefaultRoutes(topics)))

	// Renamed topics must flow through both graphs alike.
	topics.PaymentFail = "payments.compensate"
	union, err = modules.DecentralizedRoutes(topics)
	require.NoError(t, err)
	require.True(t, union.Equal(saga.DefaultRoutes(topics)))
}

func TestBuiltInModules(t *testing.T) {
	t.Parallel()

	names := func(topology saga.Topology) []string {
		var out []string
		for _, m := range modules.BuiltInModules(topology, modules.Options{}) {
			out = append(out, m.Name())
		}
		return out
	}
	require.Equal(t, []string{"order", "productvalidation", "payment", "inventory", "orchestrator"}, names(saga.Orchestrated))
	require.Equal(t, []string{"order", "productvalidation", "payment", "inventory"}, names(saga.Choreographed))
}

func TestSelect(t *testing.T) {
	t.Parallel()

	mods := modules.BuiltInModules(saga.Orchestrated, modules.Options{})

	all, err := modules.Select(mods, "all")
	require.NoError(t, err)
	require.Len(t, all, len(mods))

	one, err := modules.Select(mods, "payment")
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, "payment", one[0].Name())

	_, err = modules.Select(mods, "shipping")
	require.Error(t, err)
}
