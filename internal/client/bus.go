package client

import (
	"sync"

	"github.com/taskflow-io/taskflow/internal/realtime"
)

// Bus dispatches inbound events to typed subscribers. Subscriptions carry an
// explicit handle so handler lifetime and cleanup stay visible to the caller;
// an abandoned subscription is a leak the compiler can at least point at.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[realtime.EventType]map[int]func(realtime.Event)
}

// Subscription identifies one registered handler.
type Subscription struct {
	bus  *Bus
	typ  realtime.EventType
	id   int
	once sync.Once
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[realtime.EventType]map[int]func(realtime.Event))}
}

// Subscribe registers a handler for one event type. Handlers run on the
// connection's read goroutine, so they must not block.
func (b *Bus) Subscribe(t realtime.EventType, fn func(realtime.Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	byID, ok := b.handlers[t]
	if !ok {
		byID = make(map[int]func(realtime.Event))
		b.handlers[t] = byID
	}
	byID[id] = fn

	return &Subscription{bus: b, typ: t, id: id}
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		delete(s.bus.handlers[s.typ], s.id)
	})
}

// publish invokes every handler registered for the event's type. Handlers
// are snapshotted under the lock and called outside it, so a handler may
// subscribe or unsubscribe without deadlocking.
func (b *Bus) publish(event realtime.Event) {
	b.mu.Lock()
	fns := make([]func(realtime.Event), 0, len(b.handlers[event.Type]))
	for _, fn := range b.handlers[event.Type] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}
