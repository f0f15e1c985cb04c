// Package kafka implements broker.Broker on segmentio/kafka-go. Messages are
// keyed by aggregate id so every event of one order lands on one partition.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/pkg/broker"
)

type Config struct {
	Brokers      []string
	ClientID     string
	BatchTimeout time.Duration
	// StartFirst makes a new consumer group start at the oldest offset.
	StartFirst bool
}

type Broker struct {
	cfg    Config
	writer *kafka.Writer
	logger *logrus.Entry

	mu      sync.Mutex
	readers []*kafka.Reader
}

func New(cfg Config, logger *logrus.Entry) (*Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker address is required")
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           cfg.BatchTimeout,
	}
	return &Broker{cfg: cfg, writer: w, logger: logger}, nil
}

func toHeaders(h map[string]string) []kafka.Header {
	out := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func fromHeaders(h []kafka.Header) map[string]string {
	out := make(map[string]string, len(h))
	for _, kv := range h {
		out[kv.Key] = string(kv.Value)
	}
	return out
}

func (b *Broker) Publish(ctx context.Context, msg broker.Message) error {
	err := b.writer.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: toHeaders(msg.Headers),
	})
	if err != nil {
		return fmt.Errorf("%w: kafka write %s: %v", broker.ErrUnavailable, msg.Topic, err)
	}
	return nil
}

// Subscribe commits an offset only after h returned nil for that message.
// A failing message is fetched again from the last committed offset.
func (b *Broker) Subscribe(ctx context.Context, topic, group string, h broker.Handler) error {
	for {
		err := b.consume(ctx, topic, group, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.WithError(err).WithFields(logrus.Fields{"topic": topic, "group": group}).
			Warn("kafka: consumer restarting from last committed offset")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (b *Broker) consume(ctx context.Context, topic, group string, h broker.Handler) error {
	start := kafka.LastOffset
	if b.cfg.StartFirst {
		start = kafka.FirstOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		GroupID:     group,
		Topic:       topic,
		StartOffset: start,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	b.track(r)
	defer func() {
		b.untrack(r)
		if err := r.Close(); err != nil {
			b.logger.WithError(err).Warn("kafka: close reader")
		}
	}()

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			return err
		}
		msg := broker.Message{Topic: m.Topic, Key: string(m.Key), Value: m.Value, Headers: fromHeaders(m.Headers)}
		if err := h(broker.ExtractTrace(ctx, msg.Headers), msg); err != nil {
			return fmt.Errorf("kafka: handle %s@%d: %w", m.Topic, m.Offset, err)
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("kafka: commit %s@%d: %w", m.Topic, m.Offset, err)
		}
	}
}

func (b *Broker) track(r *kafka.Reader) {
	b.mu.Lock()
	b.readers = append(b.readers, r)
	b.mu.Unlock()
}

func (b *Broker) untrack(r *kafka.Reader) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, x := range b.readers {
		if x == r {
			b.readers = append(b.readers[:i], b.readers[i+1:]...)
			return
		}
	}
}

func (b *Broker) Close() error {
	b.mu.Lock()
	readers := append([]*kafka.Reader(nil), b.readers...)
	b.mu.Unlock()
	var errs []error
	for _, r := range readers {
		errs = append(errs, r.Close())
	}
	errs = append(errs, b.writer.Close())
	return errors.Join(errs...)
}
