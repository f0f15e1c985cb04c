package productvalidation

import "github.com/iota-uz/order-saga/pkg/saga"

// Routes is what product validation decides on its own when choreographed.
// A rollback reaching the first step ends the saga.
func Routes(t saga.Topics) saga.RouteTable {
	return saga.RouteTable{
		{Source: saga.SourceProductValidation, Status: saga.StatusSuccess}:         t.PaymentStart,
		{Source: saga.SourceProductValidation, Status: saga.StatusFail}:            t.ProductValidationFail,
		{Source: saga.SourceProductValidation, Status: saga.StatusRollbackPending}: t.FinishFail,
	}
}
