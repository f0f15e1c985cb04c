package saga

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/pkg/broker"
)

// EnvelopeHandler processes one decoded envelope.
type EnvelopeHandler func(ctx context.Context, env Envelope) error

// Consume adapts h to a broker handler. A payload that does not decode into a
// valid envelope can never succeed, so it is logged and acknowledged.
func Consume(h EnvelopeHandler, logger *logrus.Entry) broker.Handler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return func(ctx context.Context, msg broker.Message) error {
		env, err := DecodeEnvelope(msg.Value)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"topic": msg.Topic,
				"key":   msg.Key,
			}).Error("saga: dropping malformed envelope")
			return nil
		}
		return h(ctx, env)
	}
}

// DedupKey identifies one delivery of an envelope on a topic. Redeliveries of
// the same outbox record share it.
func DedupKey(topic string, env Envelope) string {
	return topic + ":" + env.TransactionID + ":" + string(env.Source) + ":" + string(env.Status)
}

// MessageKey returns DedupKey for a broker message carrying an envelope.
func MessageKey(msg broker.Message) (string, bool) {
	env, err := DecodeEnvelope(msg.Value)
	if err != nil {
		return "", false
	}
	return DedupKey(msg.Topic, env), true
}

// Subscriber registers broker handlers; application.Application satisfies it.
type Subscriber interface {
	Subscribe(topic, group string, h broker.Handler)
}

// Bind subscribes h to its step's start topic and compensation topic.
func (h *StepHandler) Bind(sub Subscriber, topics Topics, group string) {
	src := h.step.Source()
	sub.Subscribe(topics.Start(src), group, Consume(h.HandleForward, h.logger))
	sub.Subscribe(topics.Fail(src), group, Consume(h.HandleCompensation, h.logger))
}
