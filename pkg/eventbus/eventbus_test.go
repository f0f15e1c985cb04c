package eventbus_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/modules/order/domain/aggregates/order"
	"github.com/iota-uz/order-saga/pkg/eventbus"
)

func finished(id string, status order.Status) *order.FinishedEvent {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	o := order.Order{ID: id, TransactionID: "1704067200000_" + id, Status: order.StatusPending, CreatedAt: created}
	return order.NewFinishedEvent(o.Finish(status, created.Add(time.Second)))
}

func TestPublish_DispatchesBySignature(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewEventPublisher(nil)
	var started []string
	var ended []order.Status
	bus.Subscribe(func(e *order.CreatedEvent) { started = append(started, e.Order.ID) })
	bus.Subscribe(func(e *order.FinishedEvent) { ended = append(ended, e.Order.Status) })

	bus.Publish(order.NewCreatedEvent(order.Order{ID: "o-1", Status: order.StatusPending}))
	bus.Publish(finished("o-1", order.StatusSuccess))
	bus.Publish(finished("o-2", order.StatusFail))

	require.Equal(t, []string{"o-1"}, started)
	require.Equal(t, []order.Status{order.StatusSuccess, order.StatusFail}, ended)
}

func TestPublish_WarnsWhenNobodyListens(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	bus := eventbus.NewEventPublisher(logger)
	bus.Subscribe(func(e *order.CreatedEvent) { t.Error("created handler must not see finished events") })

	bus.Publish(finished("o-1", order.StatusSuccess))

	require.Len(t, hook.AllEntries(), 1)
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	require.Contains(t, hook.LastEntry().Message, "no matching subscribers")
}

func TestPublish_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	bus := eventbus.NewEventPublisher(logger)
	bus.Subscribe(func(e *order.FinishedEvent) { panic("saga log sink closed") })
	var got string
	bus.Subscribe(func(e *order.FinishedEvent) { got = e.Order.ID })

	require.NotPanics(t, func() { bus.Publish(finished("o-9", order.StatusFail)) })
	require.Equal(t, "o-9", got)

	var errs int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errs++
			require.Contains(t, e.Message, "saga log sink closed")
		}
	}
	require.Equal(t, 1, errs)
}

func TestMatchSignature(t *testing.T) {
	t.Parallel()

	created := order.NewCreatedEvent(order.Order{ID: "o-1"})
	cases := map[string]struct {
		handler interface{}
		args    []interface{}
		want    bool
	}{
		"same type":       {func(e *order.CreatedEvent) {}, []interface{}{created}, true},
		"other type":      {func(e *order.FinishedEvent) {}, []interface{}{created}, false},
		"too few args":    {func(e *order.CreatedEvent) {}, nil, false},
		"too many args":   {func(e *order.CreatedEvent) {}, []interface{}{created, created}, false},
		"interface param": {func(err error) {}, []interface{}{order.ErrOrderNotFound}, true},
		"nil for pointer": {func(e *order.CreatedEvent) {}, []interface{}{nil}, true},
		"not a function":  {"SAGA_START", []interface{}{created}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := eventbus.MatchSignature(tc.handler, tc.args); got != tc.want {
				t.Fatalf("MatchSignature = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSubscribe_RejectsNonFunction(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewEventPublisher(nil)
	require.Panics(t, func() { bus.Subscribe(order.NewCreatedEvent(order.Order{})) })
	require.Equal(t, 0, bus.SubscribersCount())
}

func TestPublish_ConcurrentWithSubscribe(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewEventPublisher(nil)
	var mu sync.Mutex
	seen := map[string]order.Status{}
	bus.Subscribe(func(e *order.FinishedEvent) {
		mu.Lock()
		seen[e.Order.ID] = e.Order.Status
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			bus.Publish(finished(fmt.Sprintf("o-%d", i), order.StatusSuccess))
		}(i)
		go func() {
			defer wg.Done()
			bus.Subscribe(func(e *order.CreatedEvent) {})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 16)
	require.Equal(t, 17, bus.SubscribersCount())
}
