package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpnet/helpdesk/internal/observability"
)

func TestAsyncDispatcherDeliversAfterCallerCancels(t *testing.T) {
	d := NewAsyncDispatcher(2, 8, nil, nil)
	var (
		mu       sync.Mutex
		received []string
	)
	d.Subscribe(EventTicketCreated, func(ctx context.Context, e Event) error {
		assert.NoError(t, ctx.Err())
		mu.Lock()
		received = append(received, e.TicketID)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Publish(ctx, Event{Type: EventTicketCreated, TicketID: "t1"}))
	cancel()

	d.Start()
	d.Stop()

	assert.Equal(t, []string{"t1"}, received)
}

func TestAsyncDispatcherDropsWhenFull(t *testing.T) {
	metrics := observability.NewMetrics()
	d := NewAsyncDispatcher(1, 1, nil, metrics)

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketAssigned}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketAssigned}))

	assert.Equal(t, int64(1), metrics.Snapshot()["dropped_events|ticket_assigned"])
	d.Start()
	d.Stop()
}

func TestAsyncDispatcherRejectsAfterStop(t *testing.T) {
	d := NewAsyncDispatcher(1, 1, nil, nil)
	d.Start()
	d.Stop()

	err := d.Publish(context.Background(), Event{Type: EventTicketClosed})
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}

func TestAsyncDispatcherAcceptedEventsSurviveConcurrentStop(t *testing.T) {
	const publishers = 50
	d := NewAsyncDispatcher(2, publishers, nil, nil)
	var (
		mu        sync.Mutex
		delivered int
	)
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})
	d.Start()

	var (
		wg       sync.WaitGroup
		accepted int64
		rejected int64
		countMu  sync.Mutex
	)
	start := make(chan struct{})
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
			countMu.Lock()
			defer countMu.Unlock()
			if errors.Is(err, ErrDispatcherStopped) {
				rejected++
				return
			}
			assert.NoError(t, err)
			accepted++
		}()
	}
	close(start)
	d.Stop()
	wg.Wait()

	assert.Equal(t, int64(publishers), accepted+rejected)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int(accepted), delivered)
}

func TestHandlerFailuresDoNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	calls := 0
	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		calls++
		return errors.New("smtp down")
	})
	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		calls++
		panic("boom")
	})
	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		calls++
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketUpdated, Timestamp: time.Now()}))
	assert.Equal(t, 3, calls)
}
