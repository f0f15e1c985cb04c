package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/modules/order/domain/aggregates/order"
	"github.com/iota-uz/order-saga/pkg/eventbus"
	"github.com/iota-uz/order-saga/pkg/outbox"
	"github.com/iota-uz/order-saga/pkg/saga"
	"github.com/iota-uz/order-saga/pkg/serrors"
)

const (
	EventOrderCreated  = "ORDER_CREATED"
	EventOrderFinished = "ORDER_FINISHED"
)

var ErrInvalidOrder = serrors.NewError("ORDER_INVALID", "invalid order", "")

var errAlreadyFinished = errors.New("order: already finished")

type OrderService struct {
	repo      order.Repository
	outbox    *outbox.Outbox
	decider   saga.Decider
	topics    saga.Topics
	publisher eventbus.EventBus
	validate  *validator.Validate
	now       func() time.Time
	logger    *logrus.Entry
}

type Options struct {
	Logger *logrus.Entry
	Now    func() time.Time
}

func NewOrderService(
	repo order.Repository,
	ob *outbox.Outbox,
	decider saga.Decider,
	topics saga.Topics,
	publisher eventbus.EventBus,
	opts Options,
) *OrderService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &OrderService{
		repo:      repo,
		outbox:    ob,
		decider:   decider,
		topics:    topics,
		publisher: publisher,
		validate:  validator.New(),
		now:       opts.Now,
		logger:    opts.Logger,
	}
}

// NewTransactionID follows the <epochMillis>_<uuid> pattern.
func NewTransactionID(now time.Time) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), uuid.NewString())
}

// CreateOrder persists a pending order and enqueues the event that starts its
// saga in the same unit of work. Catalog and stock checks belong to the saga
// steps, so an empty product list is accepted here.
func (s *OrderService) CreateOrder(ctx context.Context, products []saga.OrderProduct) (order.Order, error) {
	if err := s.validate.Var(products, "dive"); err != nil {
		return order.Order{}, ErrInvalidOrder.Wrapf("%v", err)
	}

	now := s.now().UTC()
	o := order.Order{
		ID:            uuid.NewString(),
		TransactionID: NewTransactionID(now),
		Products:      products,
		Status:        order.StatusPending,
		CreatedAt:     now,
	}
	o.TotalAmount, o.TotalItems = totals(products)

	env := saga.Envelope{
		TransactionID: o.TransactionID,
		AggregateID:   o.ID,
		Payload:       o.Snapshot(),
		Source:        saga.SourceOrder,
		Status:        saga.StatusSuccess,
		CreatedAt:     now,
	}
	dest, err := s.decider.Next(saga.SourceOrder, saga.StatusSuccess)
	if err != nil {
		return order.Order{}, err
	}

	if _, err := s.outbox.RecordAndEnqueue(ctx, func(txCtx context.Context) error {
		return s.repo.Save(txCtx, o)
	}, EventOrderCreated, env, dest); err != nil {
		return order.Order{}, err
	}

	s.publisher.Publish(order.NewCreatedEvent(o))
	return o, nil
}

// Finish moves the order of env to status and notifies the ending. Only the
// first finish of an order takes effect.
func (s *OrderService) Finish(ctx context.Context, env saga.Envelope, status order.Status) error {
	log := s.logger.WithFields(logrus.Fields{
		"order_id":       env.AggregateID,
		"transaction_id": env.TransactionID,
		"status":         status,
	})

	sagaStatus := saga.StatusSuccess
	if status == order.StatusFail {
		sagaStatus = saga.StatusFail
	}
	ending := env.Next(saga.SourceOrder, sagaStatus, s.now())

	var finished order.Order
	_, err := s.outbox.RecordAndEnqueue(ctx, func(txCtx context.Context) error {
		o, err := s.repo.GetByID(txCtx, env.AggregateID)
		if err != nil {
			return err
		}
		if o.TransactionID != env.TransactionID || o.Status.Terminal() {
			return errAlreadyFinished
		}
		finished = o.Finish(status, s.now())
		return s.repo.Save(txCtx, finished)
	}, EventOrderFinished, ending, s.topics.NotifyEnding)

	switch {
	case errors.Is(err, errAlreadyFinished):
		log.Debug("order: finish ignored, order already terminal")
		return nil
	case errors.Is(err, order.ErrOrderNotFound):
		log.Error("order: finish for unknown order")
		return nil
	case err != nil:
		return err
	}

	s.publisher.Publish(order.NewFinishedEvent(finished))
	return nil
}

func (s *OrderService) Get(ctx context.Context, id string) (order.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func totals(products []saga.OrderProduct) (decimal.Decimal, int) {
	amount := decimal.Zero
	items := 0
	for _, p := range products {
		amount = amount.Add(p.Product.UnitValue.Mul(decimal.NewFromInt(int64(p.Quantity))))
		items += p.Quantity
	}
	return amount, items
}
