package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/corpnet/helpdesk/internal/observability"
)

// ErrDispatcherStopped is returned by Publish after Stop.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

type registry struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

func (r *registry) Subscribe(eventType EventType, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[eventType] = append(r.listeners[eventType], handler)
}

func (r *registry) handlers(eventType EventType) []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventHandler{}, r.listeners[eventType]...)
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	registry
	logger *zap.Logger
}

// NewInMemoryDispatcher creates a synchronous dispatcher. Handler errors are
// logged and never returned.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inMemoryDispatcher{
		registry: registry{listeners: make(map[EventType][]EventHandler)},
		logger:   logger,
	}
}

func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	run(ctx, d.logger, event, d.handlers(event.Type))
	return nil
}

// AsyncDispatcher queues events and runs handlers on a fixed worker pool.
// Publish never blocks: when the queue is full the event is dropped.
type AsyncDispatcher struct {
	registry
	queue   chan queued
	done    chan struct{}
	workers int
	logger  *zap.Logger
	metrics *observability.Metrics

	// gate orders Publish against Stop: an accepted event is queued before
	// done closes, so the workers' drain always sees it.
	gate    sync.RWMutex
	stopped bool

	wg        sync.WaitGroup
	startOnce sync.Once
}

type queued struct {
	ctx   context.Context
	event Event
}

// NewAsyncDispatcher creates a dispatcher with the given worker count and queue size.
func NewAsyncDispatcher(workers, queueSize int, logger *zap.Logger, metrics *observability.Metrics) *AsyncDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncDispatcher{
		registry: registry{listeners: make(map[EventType][]EventHandler)},
		queue:    make(chan queued, queueSize),
		done:     make(chan struct{}),
		workers:  workers,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *AsyncDispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.work()
		}
	})
}

// Stop prevents further publishing, drains queued events and waits for the workers.
func (d *AsyncDispatcher) Stop() {
	d.gate.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.done)
	}
	d.gate.Unlock()
	d.wg.Wait()
}

// Publish enqueues the event. The caller's cancellation does not reach handlers.
func (d *AsyncDispatcher) Publish(ctx context.Context, event Event) error {
	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		d.metrics.RecordDroppedEvent(string(event.Type))
		d.logger.Warn("event queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
		return nil
	}
}

func (d *AsyncDispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case item := <-d.queue:
			run(item.ctx, d.logger, item.event, d.handlers(item.event.Type))
		case <-d.done:
			for {
				select {
				case item := <-d.queue:
					run(item.ctx, d.logger, item.event, d.handlers(item.event.Type))
				default:
					return
				}
			}
		}
	}
}

func run(ctx context.Context, logger *zap.Logger, event Event, handlers []EventHandler) {
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event handler panic",
						zap.String("event_type", string(event.Type)),
						zap.Any("panic", r))
				}
			}()
			if err := handler(ctx, event); err != nil {
				logger.Warn("event handler failed",
					zap.String("event_type", string(event.Type)),
					zap.String("ticket_id", event.TicketID),
					zap.Error(err))
			}
		}()
	}
}

var _ Dispatcher = (*AsyncDispatcher)(nil)
