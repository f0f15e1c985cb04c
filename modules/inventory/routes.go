package inventory

import "github.com/iota-uz/order-saga/pkg/saga"

// Routes is what inventory decides on its own when choreographed.
func Routes(t saga.Topics) saga.RouteTable {
	return saga.RouteTable{
		{Source: saga.SourceInventory, Status: saga.StatusSuccess}:         t.FinishSuccess,
		{Source: saga.SourceInventory, Status: saga.StatusFail}:            t.InventoryFail,
		{Source: saga.SourceInventory, Status: saga.StatusRollbackPending}: t.PaymentFail,
	}
}
