package productvalidation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/modules/productvalidation"
	"github.com/iota-uz/order-saga/pkg/saga"
)

func TestRoutes_MatchDefaultSlice(t *testing.T) {
	t.Parallel()

	topics := saga.DefaultTopics()
	require.True(t, productvalidation.Routes(topics).Equal(saga.ServiceRoutes(saga.SourceProductValidation, topics)))
}
