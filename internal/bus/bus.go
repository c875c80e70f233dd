package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// defaultQueueCapacity is the bounded queue size allocated per subscriber.
const defaultQueueCapacity = 256

// Handler processes one event. A handler panic/error never tears down
// the bus — the worker logs it and continues (spec §7).
type Handler func(Event)

type subscriber struct {
	handler Handler
	queue   chan Event
}

// Bus is a typed publish/subscribe event bus with per-subscriber bounded
// queues. Ordering is FIFO within a (kind, subscriber) pair; there is no
// ordering guarantee across kinds or across subscribers (spec §5).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]*subscriber
	cap         int

	wg     sync.WaitGroup
	cancel context.CancelFunc
	ctx    context.Context
}

// New creates a Bus. queueCapacity <= 0 uses the spec default of 256.
func New(queueCapacity int) *Bus {
	if queueCapacity <= 0 {
		queueCapacity = defaultQueueCapacity
	}
	return &Bus{
		subscribers: make(map[Kind][]*subscriber),
		cap:         queueCapacity,
	}
}

// Subscribe registers a handler for the given kind. Must be called before
// Start; registering after Start has no effect on already-running workers.
func (b *Bus) Subscribe(kind Kind, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], &subscriber{
		handler: handler,
		queue:   make(chan Event, b.cap),
	})
}

// Publish delivers event to every subscriber of event.Kind. Enqueueing is
// non-blocking: a full subscriber queue drops the event for that
// subscriber and logs at WARNING (spec's BusQueueFull — never raised to
// the publisher).
func (b *Bus) Publish(kind Kind, payload any) Event {
	ev := Event{
		Kind:      kind,
		ID:        uuid.NewString(),
		CreatedAt: nowFunc(),
		Payload:   payload,
	}

	b.mu.RLock()
	subs := b.subscribers[kind]
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.queue <- ev:
		default:
			slog.Warn("bus: queue full, dropping event", "kind", kind, "event_id", ev.ID)
		}
	}
	return ev
}

// Start spawns one worker goroutine per (handler, queue) pair. Each worker
// dequeues events in FIFO order and invokes the handler; a handler panic
// is recovered and logged, the worker keeps running.
func (b *Bus) Start(ctx context.Context) {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for kind, subs := range b.subscribers {
		for _, s := range subs {
			b.wg.Add(1)
			go b.runWorker(kind, s)
		}
	}
}

func (b *Bus) runWorker(kind Kind, s *subscriber) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ev := <-s.queue:
			b.invoke(kind, s.handler, ev)
		}
	}
}

func (b *Bus) invoke(kind Kind, handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus: handler panicked", "kind", kind, "event_id", ev.ID, "panic", r)
		}
	}()
	handler(ev)
}

// Stop signals all worker goroutines to exit and waits for them to return.
// Events still sitting in a queue at that point are not delivered.
func (b *Bus) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

// nowFunc is overridable in tests.
var nowFunc = defaultNow
