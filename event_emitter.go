package wsfeed

import (
	"sync"
	"sync/atomic"
)

type callback[T any] func(T)

// ListenerID identifies a registered listener so that it can be removed later on.
type ListenerID uint64

type listenerEntry[V any] struct {
	id ListenerID
	fn callback[V]
}

// EventEmitterCallback is a simple event emitter. It maps events (of type K) to listeners, which are
// callbacks receiving the event data (of type V).
// Listeners are invoked outside the emitter lock, so a listener may register or remove listeners,
// including itself. A listener removed concurrently with an Emit may still observe that one Emit.
type EventEmitterCallback[K comparable, V any] struct {
	listeners map[K][]listenerEntry[V]
	latched   map[K]V
	nextID    ListenerID
	lock      sync.RWMutex
}

// NewEventEmitter creates a new EventEmitterCallback and returns a pointer to it.
func NewEventEmitter[K comparable, V any]() *EventEmitterCallback[K, V] {
	return &EventEmitterCallback[K, V]{
		listeners: make(map[K][]listenerEntry[V]),
		latched:   make(map[K]V),
	}
}

// On registers a new listener for the given event and returns its id. If the event has been latched,
// the listener is invoked right away with the latched data.
func (e *EventEmitterCallback[K, V]) On(event K, listener callback[V]) ListenerID {
	e.lock.Lock()
	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], listenerEntry[V]{id: id, fn: listener})
	data, latched := e.latched[event]
	e.lock.Unlock()

	if latched {
		listener(data)
	}

	return id
}

// Once registers a listener that is removed right before its first invocation.
func (e *EventEmitterCallback[K, V]) Once(event K, listener callback[V]) ListenerID {
	var (
		fired atomic.Bool
		id    atomic.Uint64
	)

	registered := e.On(event, func(data V) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		if lid := id.Load(); lid != 0 {
			e.Off(event, ListenerID(lid))
		}
		listener(data)
	})
	id.Store(uint64(registered))

	// latched events fire before On returns the id
	if fired.Load() {
		e.Off(event, registered)
	}

	return registered
}

// Off removes the listener registered under id. It reports whether the listener was found.
func (e *EventEmitterCallback[K, V]) Off(event K, id ListenerID) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	listeners := e.listeners[event]
	for i, l := range listeners {
		if l.id != id {
			continue
		}
		next := make([]listenerEntry[V], 0, len(listeners)-1)
		next = append(next, listeners[:i]...)
		next = append(next, listeners[i+1:]...)
		if len(next) == 0 {
			delete(e.listeners, event)
		} else {
			e.listeners[event] = next
		}
		return true
	}

	return false
}

// ListenerCount returns the amount of listeners registered for the given event.
func (e *EventEmitterCallback[K, V]) ListenerCount(event K) int {
	e.lock.RLock()
	defer e.lock.RUnlock()

	return len(e.listeners[event])
}

// TotalListenerCount returns the amount of listeners registered for every event.
func (e *EventEmitterCallback[K, V]) TotalListenerCount() int {
	e.lock.RLock()
	defer e.lock.RUnlock()

	total := 0
	for _, l := range e.listeners {
		total += len(l)
	}
	return total
}

// Emit triggers all listeners registered for the given event synchronously, in registration order.
func (e *EventEmitterCallback[K, V]) Emit(event K, data V) {
	e.lock.RLock()
	listeners := e.listeners[event]
	e.lock.RUnlock()

	for _, listener := range listeners {
		listener.fn(data)
	}
}

// Latch emits the event and remembers it: listeners registered afterwards are invoked on registration.
// Only the first latch of an event is kept; later ones are ignored altogether.
func (e *EventEmitterCallback[K, V]) Latch(event K, data V) {
	e.lock.Lock()
	if _, ok := e.latched[event]; ok {
		e.lock.Unlock()
		return
	}
	e.latched[event] = data
	e.lock.Unlock()

	e.Emit(event, data)
}

// Close removes all listeners to prevent memory leaks. Latched events are kept.
func (e *EventEmitterCallback[K, V]) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.listeners = make(map[K][]listenerEntry[V])
}
