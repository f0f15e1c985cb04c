// Package memory is an in-process broker. Every topic is an append-only log
// and every consumer group keeps its own offset, so a group that subscribes
// late still sees the whole topic.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/pkg/broker"
)

const redeliveryDelay = 20 * time.Millisecond

type group struct {
	mu     sync.Mutex
	offset int
}

type topic struct {
	log    []broker.Message
	groups map[string]*group
	signal chan struct{}
}

type Broker struct {
	mu        sync.Mutex
	topics    map[string]*topic
	available atomic.Bool
	closed    atomic.Bool
	logger    *logrus.Entry
}

func New(logger *logrus.Entry) *Broker {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	b := &Broker{topics: map[string]*topic{}, logger: logger}
	b.available.Store(true)
	return b
}

// SetAvailable toggles whether Publish is accepted.
func (b *Broker) SetAvailable(ok bool) {
	b.available.Store(ok)
}

func (b *Broker) topic(name string) *topic {
	t, ok := b.topics[name]
	if !ok {
		t = &topic{groups: map[string]*group{}, signal: make(chan struct{})}
		b.topics[name] = t
	}
	return t
}

func (b *Broker) Publish(ctx context.Context, msg broker.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.closed.Load() {
		return broker.ErrClosed
	}
	if !b.available.Load() {
		return broker.ErrUnavailable
	}
	headers := make(map[string]string, len(msg.Headers))
	for k, v := range msg.Headers {
		headers[k] = v
	}
	msg.Headers = headers
	msg.Value = append([]byte(nil), msg.Value...)

	b.mu.Lock()
	t := b.topic(msg.Topic)
	t.log = append(t.log, msg)
	close(t.signal)
	t.signal = make(chan struct{})
	b.mu.Unlock()
	return nil
}

// Messages returns a copy of everything published to name.
func (b *Broker) Messages(name string) []broker.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	if !ok {
		return nil
	}
	return append([]broker.Message(nil), t.log...)
}

// Lag is the number of messages on name that group has not acknowledged.
func (b *Broker) Lag(name, groupName string) int {
	b.mu.Lock()
	t, ok := b.topics[name]
	if !ok {
		b.mu.Unlock()
		return 0
	}
	g, ok := t.groups[groupName]
	size := len(t.log)
	b.mu.Unlock()
	if !ok {
		return size
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return size - g.offset
}

func (b *Broker) next(name, groupName string, offset int) (broker.Message, bool, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topic(name)
	if offset < len(t.log) {
		return t.log[offset], true, nil
	}
	return broker.Message{}, false, t.signal
}

func (b *Broker) group(name, groupName string) *group {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topic(name)
	g, ok := t.groups[groupName]
	if !ok {
		g = &group{}
		t.groups[groupName] = g
	}
	return g
}

// Subscribe delivers messages of name to h one at a time. A message is
// acknowledged only when h returns nil; otherwise it is delivered again.
func (b *Broker) Subscribe(ctx context.Context, name, groupName string, h broker.Handler) error {
	g := b.group(name, groupName)
	for {
		if b.closed.Load() {
			return broker.ErrClosed
		}
		g.mu.Lock()
		msg, ok, wait := b.next(name, groupName, g.offset)
		if !ok {
			g.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wait:
			}
			continue
		}
		err := h(broker.ExtractTrace(ctx, msg.Headers), msg)
		if err == nil {
			g.offset++
		}
		g.mu.Unlock()
		if err != nil {
			b.logger.WithError(err).WithFields(logrus.Fields{
				"topic": name,
				"group": groupName,
				"key":   msg.Key,
			}).Warn("memory broker: handler failed, redelivering")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(redeliveryDelay):
			}
		}
	}
}

func (b *Broker) Close() error {
	b.closed.Store(true)
	b.mu.Lock()
	for _, t := range b.topics {
		close(t.signal)
		t.signal = make(chan struct{})
	}
	b.mu.Unlock()
	return nil
}
