package events

import "sync"

// Listener is a function that handles events.
type Listener func(*Event)

// Bus manages event distribution to listeners.
//
// Publish dispatches synchronously in the caller's goroutine. Sessions
// publish from their single-writer loop, so synchronous dispatch preserves
// per-session event order all the way into each connection's send queue.
type Bus struct {
	mu              sync.RWMutex
	listeners       map[Type][]Listener
	globalListeners []Listener
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[Type][]Listener),
	}
}

// Subscribe registers a listener for a specific event type.
func (b *Bus) Subscribe(eventType Type, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventType] = append(b.listeners[eventType], listener)
}

// SubscribeAll registers a listener for all event types.
func (b *Bus) SubscribeAll(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.globalListeners = append(b.globalListeners, listener)
}

// Publish delivers an event to all registered listeners in order. A panicking
// listener is contained and does not affect the others.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	typeListeners := b.listeners[event.Type]

	specificListeners := make([]Listener, len(typeListeners))
	copy(specificListeners, typeListeners)

	globalListeners := make([]Listener, len(b.globalListeners))
	copy(globalListeners, b.globalListeners)
	b.mu.RUnlock()

	for _, listener := range specificListeners {
		safeInvoke(listener, event)
	}
	for _, listener := range globalListeners {
		safeInvoke(listener, event)
	}
}

// Clear removes all listeners (primarily for tests).
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[Type][]Listener)
	b.globalListeners = nil
}

func safeInvoke(listener Listener, event *Event) {
	defer func() { _ = recover() }()
	listener(event)
}
