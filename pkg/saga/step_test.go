package saga_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/outbox"
	"github.com/iota-uz/order-saga/pkg/outbox/memory"
	"github.com/iota-uz/order-saga/pkg/saga"
)

// ledgerStep is a payment-like step backed by an undoable map.
type ledgerStep struct {
	states      map[saga.Key]saga.StepState
	reject      bool
	infraErr    error
	executed    int
	compensated int
}

func (s *ledgerStep) Source() saga.Source { return saga.SourcePayment }

func (s *ledgerStep) State(_ context.Context, key saga.Key) (saga.StepState, error) {
	return s.states[key], nil
}

func (s *ledgerStep) set(ctx context.Context, key saga.Key, st saga.StepState) error {
	prev, had := s.states[key]
	s.states[key] = st
	return memtx.OnRollback(ctx, func() {
		if had {
			s.states[key] = prev
		} else {
			delete(s.states, key)
		}
	})
}

func (s *ledgerStep) Execute(ctx context.Context, env saga.Envelope) error {
	if s.infraErr != nil {
		return s.infraErr
	}
	if err := s.set(ctx, env.Key(), saga.StateSuccess); err != nil {
		return err
	}
	if s.reject {
		return saga.Rejectf("amount below minimum")
	}
	s.executed++
	return nil
}

func (s *ledgerStep) RecordFailure(ctx context.Context, env saga.Envelope, _ string) error {
	return s.set(ctx, env.Key(), saga.StateFailed)
}

func (s *ledgerStep) Compensate(ctx context.Context, env saga.Envelope, prior saga.StepState) error {
	if prior == saga.StateSuccess {
		s.compensated++
	}
	return s.set(ctx, env.Key(), saga.StateCompensated)
}

func newHandler(t *testing.T, topology saga.Topology) (*saga.StepHandler, *ledgerStep, *memory.Store) {
	t.Helper()

	db := memtx.New()
	store := memory.New(db)
	ob, err := outbox.New("payment", store, db)
	require.NoError(t, err)
	decider, err := saga.NewDecider(topology, saga.SourcePayment, saga.DefaultTopics(), nil)
	require.NoError(t, err)
	step := &ledgerStep{states: map[saga.Key]saga.StepState{}}
	return saga.NewStepHandler(step, ob, decider, saga.StepHandlerOptions{}), step, store
}

func incoming() saga.Envelope {
	return saga.Envelope{
		TransactionID: "1700000000000_tx",
		AggregateID:   "order-1",
		Source:        saga.SourceProductValidation,
		Status:        saga.StatusSuccess,
		CreatedAt:     time.Now().UTC(),
	}
}

func decode(t *testing.T, rec outbox.Record) saga.Envelope {
	t.Helper()
	var env saga.Envelope
	require.NoError(t, json.Unmarshal([]byte(rec.EventData), &env))
	return env
}

func TestStepHandler_ForwardSuccess(t *testing.T) {
	t.Parallel()

	h, step, store := newHandler(t, saga.Choreographed)
	env := incoming()
	require.NoError(t, h.HandleForward(context.Background(), env))

	recs := store.All()
	require.Len(t, recs, 1)
	require.Equal(t, "inventory-start", recs[0].Destination)
	require.Equal(t, "PAYMENT_SUCCESS", recs[0].EventType)
	require.Equal(t, "order-1", recs[0].AggregateID)
	out := decode(t, recs[0])
	require.Equal(t, saga.SourcePayment, out.Source)
	require.Equal(t, saga.StatusSuccess, out.Status)
	require.Equal(t, env.TransactionID, out.TransactionID)
	require.Equal(t, saga.StateSuccess, step.states[env.Key()])
}

func TestStepHandler_DuplicateForwardIsAcked(t *testing.T) {
	t.Parallel()

	h, step, store := newHandler(t, saga.Choreographed)
	env := incoming()
	require.NoError(t, h.HandleForward(context.Background(), env))
	require.NoError(t, h.HandleForward(context.Background(), env))

	require.Equal(t, 1, step.executed)
	require.Len(t, store.All(), 1)
}

func TestStepHandler_BusinessFailureEmitsFail(t *testing.T) {
	t.Parallel()

	h, step, store := newHandler(t, saga.Choreographed)
	step.reject = true
	env := incoming()
	require.NoError(t, h.HandleForward(context.Background(), env))

	recs := store.All()
	require.Len(t, recs, 1)
	require.Equal(t, "payment-fail", recs[0].Destination)
	require.Equal(t, "PAYMENT_FAIL", recs[0].EventType)
	// the forward unit of work was rolled back before the failure was recorded
	require.Equal(t, saga.StateFailed, step.states[env.Key()])
}

func TestStepHandler_InfrastructureErrorIsReturned(t *testing.T) {
	t.Parallel()

	h, step, store := newHandler(t, saga.Choreographed)
	boom := errors.New("connection reset")
	step.infraErr = boom

	err := h.HandleForward(context.Background(), incoming())
	require.ErrorIs(t, err, boom)
	require.Empty(t, store.All())
	require.Empty(t, step.states)
}

func TestStepHandler_CompensationAfterSuccess(t *testing.T) {
	t.Parallel()

	h, step, store := newHandler(t, saga.Choreographed)
	env := incoming()
	require.NoError(t, h.HandleForward(context.Background(), env))

	fail := env.Next(saga.SourceInventory, saga.StatusFail, time.Now())
	require.NoError(t, h.HandleCompensation(context.Background(), fail))
	require.NoError(t, h.HandleCompensation(context.Background(), fail))

	require.Equal(t, 1, step.compensated)
	recs := store.All()
	require.Len(t, recs, 2)
	require.Equal(t, "product-validation-fail", recs[1].Destination)
	require.Equal(t, "PAYMENT_ROLLBACK_PENDING", recs[1].EventType)
	require.Equal(t, saga.StateCompensated, step.states[env.Key()])
}

func TestStepHandler_CompensationBeforeForwardLeavesTombstone(t *testing.T) {
	t.Parallel()

	h, step, store := newHandler(t, saga.Choreographed)
	env := incoming()
	require.NoError(t, h.HandleCompensation(context.Background(), env.Next(saga.SourceInventory, saga.StatusFail, time.Now())))
	require.Equal(t, 0, step.compensated)

	// late forward delivery is ignored
	require.NoError(t, h.HandleForward(context.Background(), env))
	require.Equal(t, 0, step.executed)
	require.Len(t, store.All(), 1)
}

func TestStepHandler_OrchestratedRoutesToOrchestrator(t *testing.T) {
	t.Parallel()

	h, step, store := newHandler(t, saga.Orchestrated)
	step.reject = true
	require.NoError(t, h.HandleForward(context.Background(), incoming()))

	recs := store.All()
	require.Len(t, recs, 1)
	require.Equal(t, "orchestrator", recs[0].Destination)
}
