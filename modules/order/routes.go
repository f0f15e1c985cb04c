package order

import "github.com/iota-uz/order-saga/pkg/saga"

// Routes is what the order service decides on its own when choreographed.
func Routes(t saga.Topics) saga.RouteTable {
	return saga.RouteTable{
		{Source: saga.SourceOrder, Status: saga.StatusSuccess}:         t.ProductValidationStart,
		{Source: saga.SourceOrder, Status: saga.StatusFail}:            t.FinishFail,
		{Source: saga.SourceOrder, Status: saga.StatusRollbackPending}: t.FinishFail,
	}
}
