package payment

import "github.com/iota-uz/order-saga/pkg/saga"

// Routes is what payment decides on its own when choreographed.
func Routes(t saga.Topics) saga.RouteTable {
	return saga.RouteTable{
		{Source: saga.SourcePayment, Status: saga.StatusSuccess}:         t.InventoryStart,
		{Source: saga.SourcePayment, Status: saga.StatusFail}:            t.PaymentFail,
		{Source: saga.SourcePayment, Status: saga.StatusRollbackPending}: t.ProductValidationFail,
	}
}
