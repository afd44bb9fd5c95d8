package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event represents a pipeline event routed through the bus — currently
// just newly emitted signals, pushed to the API's websocket subscribers
// outside the engine lock.
type Event struct {
	Type      string
	Timestamp time.Time
	Data      interface{}
}

// Bus is an in-process event bus that routes signal events from the
// flush coordinator to the API's websocket layer, keyed by event type. It
// uses Go channels for delivery and is safe for concurrent use.
//
// Unlike a plain fire-and-forget pub/sub, SolFlow's bus tracks a
// per-type dropped-event counter: the flush coordinator can publish a
// burst of signals across many mints in one tick, and a slow websocket
// bridge channel filling up is itself an observability signal worth
// surfacing through /stats rather than silently swallowing.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan<- Event
	dropped     map[string]*int64
	closed      bool
}

// New creates a new Bus ready for use.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan<- Event),
		dropped:     make(map[string]*int64),
	}
}

// Subscribe registers a channel to receive events of the given type.
// The caller is responsible for creating the channel with sufficient
// buffer capacity; slow subscribers will have events dropped.
func (b *Bus) Subscribe(eventType string, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	if _, ok := b.dropped[eventType]; !ok {
		b.dropped[eventType] = new(int64)
	}
}

// Publish sends an event to all subscribers registered for that event type.
// If a subscriber's channel is full, the event is dropped for that subscriber
// and counted toward DroppedCount(evt.Type). Publish is a no-op after Close
// has been called.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	counter := b.dropped[evt.Type]
	for _, ch := range b.subscribers[evt.Type] {
		select {
		case ch <- evt:
		default:
			if counter != nil {
				atomic.AddInt64(counter, 1)
			}
		}
	}
}

// SubscriberCount reports how many channels are currently registered for
// eventType, used by the /stats snapshot to show whether anything is
// listening. Each registered channel counts once (for example the API's
// websocket bridge), however many websocket clients are connected to it.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// DroppedCount reports how many deliveries of eventType were discarded
// because a subscriber's channel was full at publish time; one event that
// finds two full subscriber channels counts twice.
func (b *Bus) DroppedCount(eventType string) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counter := b.dropped[eventType]
	if counter == nil {
		return 0
	}
	return atomic.LoadInt64(counter)
}

// Close marks the bus as closed. After Close, Publish is a no-op.
// Close does not close subscriber channels; that is the caller's responsibility.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
