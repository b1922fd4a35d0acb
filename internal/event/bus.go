package event

import (
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Handler is a function that handles an event.
type Handler func(Event)

// wildcard is the subscription key matching every event type.
const wildcard = "*"

// subscription is a registered handler.
type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous pub-sub bus for team lifecycle events. It lets the
// coordination loops notify hook callbacks without depending on them.
// A Bus must not be copied after first use.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // event type -> subscriptions
	nextID        atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscriptions: make(map[string][]subscription)}
}

// Subscribe registers a handler for a specific event type and returns a
// subscription id for Unsubscribe.
func (b *Bus) Subscribe(t Type, handler Handler) uint64 {
	return b.subscribe(string(t), handler)
}

// SubscribeAll registers a handler invoked for every published event.
func (b *Bus) SubscribeAll(handler Handler) uint64 {
	return b.subscribe(wildcard, handler)
}

func (b *Bus) subscribe(key string, handler Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID.Add(1)
	b.subscriptions[key] = append(b.subscriptions[key], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a subscription by id. Returns true if it was found.
func (b *Bus) Unsubscribe(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[key] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event to type-specific handlers first, then wildcard
// handlers, each in registration order. A panicking handler is recovered and
// logged so publishing continues; the coordination loops rely on Publish
// never failing.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	specific := make([]subscription, len(b.subscriptions[string(e.Type)]))
	copy(specific, b.subscriptions[string(e.Type)])
	all := make([]subscription, len(b.subscriptions[wildcard]))
	copy(all, b.subscriptions[wildcard])
	b.mu.RUnlock()

	for _, sub := range specific {
		b.safeCall(sub.handler, e)
	}
	for _, sub := range all {
		b.safeCall(sub.handler, e)
	}
}

// safeCall invokes a handler, recovering and logging panics with a stack
// trace so one misbehaving hook cannot block delivery to the rest.
func (b *Bus) safeCall(handler Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked for %s: %v\n%s", e.Type, r, debug.Stack())
		}
	}()
	handler(e)
}
