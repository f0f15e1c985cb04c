package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/order-saga/modules/payment/domain/entities/payment"
	"github.com/iota-uz/order-saga/pkg/saga"
)

var DefaultMinAmount = decimal.RequireFromString("0.1")

type Options struct {
	MinAmount decimal.Decimal
	// SimulateFailure rejects every charge, to exercise the rollback path.
	SimulateFailure bool
	Now             func() time.Time
}

// PaymentService is the payment step: it charges the order total and refunds
// it on compensation.
type PaymentService struct {
	repo payment.Repository
	opts Options
}

func NewPaymentService(repo payment.Repository, opts Options) *PaymentService {
	if opts.MinAmount.IsZero() {
		opts.MinAmount = DefaultMinAmount
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PaymentService{repo: repo, opts: opts}
}

func (s *PaymentService) Source() saga.Source {
	return saga.SourcePayment
}

func (s *PaymentService) State(ctx context.Context, key saga.Key) (saga.StepState, error) {
	if err := s.repo.Lock(ctx, key); err != nil {
		return saga.StateNone, err
	}
	p, err := s.repo.GetByKey(ctx, key)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		return saga.StateNone, nil
	}
	if err != nil {
		return saga.StateNone, err
	}
	return p.Status, nil
}

// Totals recomputes amount and item count from the order lines.
func Totals(order saga.OrderSnapshot) (decimal.Decimal, int) {
	amount := decimal.Zero
	items := 0
	for _, line := range order.Products {
		amount = amount.Add(line.Product.UnitValue.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items += line.Quantity
	}
	return amount, items
}

func (s *PaymentService) Execute(ctx context.Context, env saga.Envelope) error {
	if s.opts.SimulateFailure {
		return saga.Rejectf("payment failure simulated")
	}
	amount, items := Totals(env.Payload)
	if amount.LessThan(s.opts.MinAmount) {
		return saga.Rejectf("minimum amount available is %s", s.opts.MinAmount.String())
	}
	return s.save(ctx, env, amount, items, saga.StateSuccess, "")
}

func (s *PaymentService) RecordFailure(ctx context.Context, env saga.Envelope, reason string) error {
	amount, items := Totals(env.Payload)
	return s.save(ctx, env, amount, items, saga.StateFailed, reason)
}

// Compensate refunds a charged payment. A saga that was never charged only
// gets the COMPENSATED tombstone.
func (s *PaymentService) Compensate(ctx context.Context, env saga.Envelope, prior saga.StepState) error {
	amount, items := Totals(env.Payload)
	reason := "payment refunded"
	if prior == saga.StateSuccess {
		p, err := s.repo.GetByKey(ctx, env.Key())
		if err != nil {
			return err
		}
		amount, items = p.TotalAmount, p.TotalItems
	} else {
		reason = "rollback before payment was charged"
	}
	return s.save(ctx, env, amount, items, saga.StateCompensated, reason)
}

func (s *PaymentService) save(ctx context.Context, env saga.Envelope, amount decimal.Decimal, items int, status saga.StepState, reason string) error {
	now := s.opts.Now().UTC()
	created := now
	if prev, err := s.repo.GetByKey(ctx, env.Key()); err == nil {
		created = prev.CreatedAt
	}
	return s.repo.Save(ctx, payment.Payment{
		OrderID:       env.AggregateID,
		TransactionID: env.TransactionID,
		TotalAmount:   amount,
		TotalItems:    items,
		Status:        status,
		Reason:        reason,
		CreatedAt:     created,
		UpdatedAt:     now,
	})
}
