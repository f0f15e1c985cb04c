package services

import (
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/modules/order/domain/aggregates/order"
	"github.com/iota-uz/order-saga/pkg/eventbus"
)

// SubscribeSagaLog writes the SAGA_START, SAGA_END and ROLLBACK lines that
// load tests grep for.
func SubscribeSagaLog(bus eventbus.EventBus, logger *logrus.Entry) {
	bus.Subscribe(func(e *order.CreatedEvent) {
		logger.WithFields(logrus.Fields{
			"order_id":       e.Order.ID,
			"transaction_id": e.Order.TransactionID,
		}).Info("SAGA_START")
	})
	bus.Subscribe(func(e *order.FinishedEvent) {
		fields := logrus.Fields{
			"order_id":       e.Order.ID,
			"transaction_id": e.Order.TransactionID,
			"status":         e.Order.Status,
			"duration_ms":    e.Order.Duration().Milliseconds(),
		}
		if e.Order.Status == order.StatusFail {
			logger.WithFields(fields).Info("ROLLBACK")
		}
		logger.WithFields(fields).Info("SAGA_END")
	})
}
