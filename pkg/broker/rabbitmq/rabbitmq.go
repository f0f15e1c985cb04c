// Package rabbitmq implements broker.Broker over a durable topic exchange.
// Each (topic, group) pair owns a durable queue bound with the topic as the
// routing key; publishes wait for the broker confirm.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/pkg/broker"
)

const DefaultExchange = "order-saga"

type Config struct {
	URL            string
	Exchange       string
	ConfirmTimeout time.Duration
	Prefetch       int
}

type Broker struct {
	cfg    Config
	conn   *amqp.Connection
	logger *logrus.Entry

	publishMu sync.Mutex
	pubCh     *amqp.Channel
}

func Dial(cfg Config, logger *logrus.Entry) (*Broker, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 5 * time.Second
	}
	if cfg.Prefetch == 0 {
		cfg.Prefetch = 1
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	b := &Broker{cfg: cfg, conn: conn, logger: logger}
	if err := b.openPublisher(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *Broker) declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(b.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange %s: %w", b.cfg.Exchange, err)
	}
	return nil
}

func (b *Broker) openPublisher() error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := b.declareExchange(ch); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}
	b.pubCh = ch
	return nil
}

func toTable(h map[string]string) amqp.Table {
	t := amqp.Table{}
	for k, v := range h {
		t[k] = v
	}
	return t
}

func fromTable(t amqp.Table) map[string]string {
	out := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Publish is serialized per broker so confirms arrive in publish order.
func (b *Broker) Publish(ctx context.Context, msg broker.Message) error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	if b.pubCh == nil || b.pubCh.IsClosed() {
		if err := b.openPublisher(); err != nil {
			return fmt.Errorf("%w: %v", broker.ErrUnavailable, err)
		}
	}

	dc, err := b.pubCh.PublishWithDeferredConfirmWithContext(ctx, b.cfg.Exchange, msg.Topic, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.Headers["outbox_id"],
		CorrelationId: msg.Key,
		Timestamp:     time.Now().UTC(),
		Headers:       toTable(msg.Headers),
		Body:          msg.Value,
	})
	if err != nil {
		return fmt.Errorf("%w: rabbitmq publish %s: %v", broker.ErrUnavailable, msg.Topic, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.cfg.ConfirmTimeout)
	defer cancel()
	acked, err := dc.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("%w: rabbitmq confirm %s: %v", broker.ErrUnavailable, msg.Topic, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s", broker.ErrNotAcked, msg.Topic)
	}
	return nil
}

func queueName(topic, group string) string {
	return group + "." + topic
}

// Subscribe acks a delivery after h returned nil and requeues it otherwise.
func (b *Broker) Subscribe(ctx context.Context, topic, group string, h broker.Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := b.declareExchange(ch); err != nil {
		return err
	}
	q := queueName(topic, group)
	if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare queue %s: %w", q, err)
	}
	if err := ch.QueueBind(q, topic, b.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind %s: %w", q, err)
	}
	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: qos: %w", err)
	}
	deliveries, err := ch.Consume(q, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume %s: %w", q, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: delivery channel closed for %s", broker.ErrUnavailable, q)
			}
			msg := broker.Message{Topic: topic, Key: d.CorrelationId, Value: d.Body, Headers: fromTable(d.Headers)}
			if herr := h(broker.ExtractTrace(ctx, msg.Headers), msg); herr != nil {
				b.logger.WithError(herr).WithFields(logrus.Fields{"queue": q, "key": msg.Key}).
					Warn("rabbitmq: handler failed, requeueing")
				if err := d.Nack(false, true); err != nil {
					return fmt.Errorf("rabbitmq: nack: %w", err)
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				return fmt.Errorf("rabbitmq: ack: %w", err)
			}
		}
	}
}

func (b *Broker) Close() error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()
	var errs []error
	if b.pubCh != nil && !b.pubCh.IsClosed() {
		errs = append(errs, b.pubCh.Close())
	}
	if !b.conn.IsClosed() {
		errs = append(errs, b.conn.Close())
	}
	return errors.Join(errs...)
}
