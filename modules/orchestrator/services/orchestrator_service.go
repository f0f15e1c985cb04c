package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/modules/orchestrator/domain/entities/parked"
	"github.com/iota-uz/order-saga/pkg/outbox"
	"github.com/iota-uz/order-saga/pkg/saga"
)

// OrchestratorService forwards every envelope it receives, unchanged, to the
// topic the central table names for its (source, status).
type OrchestratorService struct {
	router *saga.Router
	outbox *outbox.Outbox
	parked parked.Repository
	now    func() time.Time
	logger *logrus.Entry
}

type Options struct {
	Logger *logrus.Entry
	Now    func() time.Time
}

func NewOrchestratorService(router *saga.Router, ob *outbox.Outbox, repo parked.Repository, opts Options) *OrchestratorService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &OrchestratorService{router: router, outbox: ob, parked: repo, now: opts.Now, logger: opts.Logger}
}

// Handle routes env. An envelope without a route is parked, never dropped.
func (s *OrchestratorService) Handle(ctx context.Context, env saga.Envelope) error {
	log := s.logger.WithFields(logrus.Fields{
		"order_id":       env.AggregateID,
		"transaction_id": env.TransactionID,
		"source":         env.Source,
		"status":         env.Status,
	})

	dest, err := s.router.Next(env.Source, env.Status)
	if errors.Is(err, saga.ErrNoRoute) {
		log.WithError(err).Error("orchestrator: no route, parking envelope")
		return s.park(ctx, env, err.Error())
	}
	if err != nil {
		return err
	}

	if _, err := s.outbox.RecordAndEnqueue(ctx, nil, env.EventType(), env, dest); err != nil {
		return err
	}
	log.WithField("destination", dest).Debug("orchestrator: routed")
	return nil
}

func (s *OrchestratorService) park(ctx context.Context, env saga.Envelope, reason string) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.outbox.Transactor().InTx(ctx, func(txCtx context.Context) error {
		return s.parked.Save(txCtx, parked.Event{
			ID:            uuid.New(),
			TransactionID: env.TransactionID,
			AggregateID:   env.AggregateID,
			Source:        env.Source,
			Status:        env.Status,
			EventData:     string(data),
			Reason:        reason,
			ParkedAt:      s.now().UTC(),
		})
	})
}

func (s *OrchestratorService) Parked(ctx context.Context, limit int) ([]parked.Event, error) {
	var out []parked.Event
	err := s.outbox.Transactor().InTx(ctx, func(txCtx context.Context) error {
		var err error
		out, err = s.parked.ListOpen(txCtx, limit)
		return err
	})
	return out, err
}

// Reprocess re-drives a parked envelope through the current table. It fails
// with saga.ErrNoRoute and leaves the event parked when the table still has
// no entry.
func (s *OrchestratorService) Reprocess(ctx context.Context, id uuid.UUID) (string, error) {
	var dest string
	err := s.outbox.Transactor().InTx(ctx, func(txCtx context.Context) error {
		e, err := s.parked.Get(txCtx, id)
		if err != nil {
			return err
		}
		if e.ReprocessedAt != nil {
			return parked.ErrParkedNotFound
		}
		env, err := saga.DecodeEnvelope([]byte(e.EventData))
		if err != nil {
			return err
		}
		dest, err = s.router.Next(env.Source, env.Status)
		if err != nil {
			return err
		}
		if err := s.parked.MarkReprocessed(txCtx, id, s.now()); err != nil {
			return err
		}
		_, err = s.outbox.Enqueue(txCtx, env.EventType(), env, dest)
		return err
	})
	if err != nil {
		return "", err
	}
	s.outbox.Notify()
	return dest, nil
}
