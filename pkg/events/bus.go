// Package events implements a small synchronous publish/subscribe bus keyed by
// event kind.
package events

import (
	"sync"
)

// ListenerID identifies a registered listener so it can be removed with Off.
type ListenerID uint64

// Handler receives published events.
type Handler[E any] func(E)

type listener[E any] struct {
	id      ListenerID
	handler Handler[E]
}

// Bus maps an event kind to the ordered list of listeners subscribed to it.
// Emit notifies listeners synchronously in registration order. There is no
// buffering: a listener added after an event fires never sees it.
//
// Listeners may call On, Off and Emit from inside a handler.
type Bus[K comparable, E any] struct {
	mutex     sync.RWMutex
	listeners map[K][]listener[E]
	nextID    ListenerID
	closed    bool
}

// NewBus creates an empty Bus.
func NewBus[K comparable, E any]() *Bus[K, E] {
	return &Bus[K, E]{
		listeners: make(map[K][]listener[E]),
	}
}

// On subscribes handler to kind and returns its id. A nil handler or a closed
// bus yields id 0, which Off ignores.
func (b *Bus[K, E]) On(kind K, handler Handler[E]) ListenerID {
	if handler == nil {
		return 0
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return 0
	}

	b.nextID++
	b.listeners[kind] = append(b.listeners[kind], listener[E]{id: b.nextID, handler: handler})
	return b.nextID
}

// Off removes the listener with the given id from kind. It reports whether a
// listener was removed.
func (b *Bus[K, E]) Off(kind K, id ListenerID) bool {
	if id == 0 {
		return false
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	ls := b.listeners[kind]
	for i, l := range ls {
		if l.id != id {
			continue
		}
		// Copy so that an in-progress Emit iterating the old slice is unaffected.
		next := make([]listener[E], 0, len(ls)-1)
		next = append(next, ls[:i]...)
		next = append(next, ls[i+1:]...)
		if len(next) == 0 {
			delete(b.listeners, kind)
		} else {
			b.listeners[kind] = next
		}
		return true
	}
	return false
}

// Emit delivers event to every listener currently subscribed to kind and
// returns the number of listeners notified.
func (b *Bus[K, E]) Emit(kind K, event E) int {
	b.mutex.RLock()
	if b.closed {
		b.mutex.RUnlock()
		return 0
	}
	ls := b.listeners[kind]
	b.mutex.RUnlock()

	for _, l := range ls {
		l.handler(event)
	}
	return len(ls)
}

// Close drops every listener. Subsequent On and Emit calls are no-ops.
func (b *Bus[K, E]) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.closed = true
	b.listeners = make(map[K][]listener[E])
}
