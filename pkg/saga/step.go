package saga

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/pkg/outbox"
)

// StepState is a participant's ledger state for one saga Key.
type StepState string

const (
	StateNone        StepState = ""
	StateSuccess     StepState = "SUCCESS"
	StateFailed      StepState = "FAIL"
	StateCompensated StepState = "COMPENSATED"
)

// Step is the local business logic of a participant. Every method runs
// inside the unit of work opened by the handler.
type Step interface {
	Source() Source
	// State returns StateNone when the step has not seen the saga. It holds
	// the key for the rest of the unit of work, so a concurrent delivery of
	// the same envelope waits and then sees the committed state.
	State(ctx context.Context, key Key) (StepState, error)
	// Execute applies the forward operation and records StateSuccess. Business
	// rule violations are returned as *BusinessError.
	Execute(ctx context.Context, env Envelope) error
	// RecordFailure persists the StateFailed marker with reason.
	RecordFailure(ctx context.Context, env Envelope, reason string) error
	// Compensate undoes the forward operation when prior is StateSuccess and
	// records StateCompensated in every case, including StateNone.
	Compensate(ctx context.Context, env Envelope, prior StepState) error
}

var errDuplicate = errors.New("saga: duplicate delivery")

// StepHandler drives one Step: it keys everything by (aggregateId,
// transactionId), skips redeliveries and enqueues the next envelope in the
// same unit of work as the step's state change.
type StepHandler struct {
	step    Step
	outbox  *outbox.Outbox
	decider Decider
	now     func() time.Time
	logger  *logrus.Entry
}

type StepHandlerOptions struct {
	Logger *logrus.Entry
	Now    func() time.Time
}

func NewStepHandler(step Step, ob *outbox.Outbox, decider Decider, opts StepHandlerOptions) *StepHandler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &StepHandler{
		step:    step,
		outbox:  ob,
		decider: decider,
		now:     opts.Now,
		logger:  opts.Logger.WithField("step", step.Source()),
	}
}

// HandleForward processes an envelope delivered on the step's start topic.
func (h *StepHandler) HandleForward(ctx context.Context, env Envelope) error {
	src := h.step.Source()
	next := env.Next(src, StatusSuccess, h.now())
	dest, err := h.decider.Next(src, StatusSuccess)
	if err != nil {
		return err
	}

	_, err = h.outbox.RecordAndEnqueue(ctx, func(txCtx context.Context) error {
		state, err := h.step.State(txCtx, env.Key())
		if err != nil {
			return err
		}
		if state != StateNone {
			return errDuplicate
		}
		return h.step.Execute(txCtx, env)
	}, next.EventType(), next, dest)

	switch {
	case err == nil:
		h.log(env).WithField("destination", dest).Info("saga: step succeeded")
		return nil
	case errors.Is(err, errDuplicate):
		h.log(env).Debug("saga: forward event already handled")
		return nil
	case IsBusiness(err):
		return h.fail(ctx, env, err.Error())
	default:
		return err
	}
}

func (h *StepHandler) fail(ctx context.Context, env Envelope, reason string) error {
	src := h.step.Source()
	next := env.Next(src, StatusFail, h.now())
	dest, err := h.decider.Next(src, StatusFail)
	if err != nil {
		return err
	}

	_, err = h.outbox.RecordAndEnqueue(ctx, func(txCtx context.Context) error {
		state, err := h.step.State(txCtx, env.Key())
		if err != nil {
			return err
		}
		if state != StateNone {
			return errDuplicate
		}
		return h.step.RecordFailure(txCtx, env, reason)
	}, next.EventType(), next, dest)
	if errors.Is(err, errDuplicate) {
		return nil
	}
	if err != nil {
		return err
	}
	h.log(env).WithField("reason", reason).WithField("destination", dest).Warn("saga: step failed, rollback started")
	return nil
}

// HandleCompensation processes an envelope delivered on the step's
// compensation topic and forwards the rollback upstream.
func (h *StepHandler) HandleCompensation(ctx context.Context, env Envelope) error {
	src := h.step.Source()
	next := env.Next(src, StatusRollbackPending, h.now())
	dest, err := h.decider.Next(src, StatusRollbackPending)
	if err != nil {
		return err
	}

	var prior StepState
	_, err = h.outbox.RecordAndEnqueue(ctx, func(txCtx context.Context) error {
		state, err := h.step.State(txCtx, env.Key())
		if err != nil {
			return err
		}
		if state == StateCompensated {
			return errDuplicate
		}
		prior = state
		return h.step.Compensate(txCtx, env, state)
	}, next.EventType(), next, dest)
	if errors.Is(err, errDuplicate) {
		h.log(env).Debug("saga: compensation already applied")
		return nil
	}
	if err != nil {
		return err
	}
	h.log(env).WithField("prior_state", string(prior)).WithField("destination", dest).Info("saga: step compensated")
	return nil
}

func (h *StepHandler) log(env Envelope) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"transaction_id": env.TransactionID,
		"aggregate_id":   env.AggregateID,
		"from_source":    env.Source,
		"from_status":    env.Status,
	})
}
