// Package events implements a small event emitter keyed by event name.
//
// Subscribing returns a Handle; the handle is the only way to unsubscribe,
// so callers never need to hold on to the listener function itself.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Listener receives the payload of an emitted event
type Listener func(payload any)

// Handle identifies one subscription
type Handle struct {
	Event string
	ID    uuid.UUID
}

// IsZero reports whether the handle was never issued
func (h Handle) IsZero() bool {
	return h.ID == uuid.Nil
}

type subscriber struct {
	id       uuid.UUID
	listener Listener
}

// Emitter maps event names to ordered sets of subscribers
type Emitter struct {
	mu   sync.RWMutex
	subs map[string][]subscriber
}

// NewEmitter creates an empty emitter
func NewEmitter() *Emitter {
	return &Emitter{
		subs: make(map[string][]subscriber),
	}
}

// On subscribes a listener to an event
func (e *Emitter) On(event string, listener Listener) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subs == nil {
		e.subs = make(map[string][]subscriber)
	}

	id := uuid.New()
	e.subs[event] = append(e.subs[event], subscriber{id: id, listener: listener})
	return Handle{Event: event, ID: id}
}

// Once subscribes a listener that is removed before its first invocation
func (e *Emitter) Once(event string, listener Listener) Handle {
	var (
		h    Handle
		once sync.Once
	)
	h = e.On(event, func(payload any) {
		once.Do(func() {
			e.Off(h)
			listener(payload)
		})
	})
	return h
}

// Off removes a subscription. Removing an unknown or already removed handle is a no-op.
// Returns true if a subscription was removed.
func (e *Emitter) Off(h Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subs[h.Event]
	for i, s := range subs {
		if s.id == h.ID {
			// keep order for the remaining subscribers
			e.subs[h.Event] = append(subs[:i:i], subs[i+1:]...)
			if len(e.subs[h.Event]) == 0 {
				delete(e.subs, h.Event)
			}
			return true
		}
	}
	return false
}

// Emit calls every listener of the event in subscription order.
// Listeners run outside the emitter lock and may subscribe or unsubscribe.
func (e *Emitter) Emit(event string, payload any) {
	e.mu.RLock()
	subs := make([]subscriber, len(e.subs[event]))
	copy(subs, e.subs[event])
	e.mu.RUnlock()

	for _, s := range subs {
		s.listener(payload)
	}
}

// ListenerCount returns the number of subscribers of an event
func (e *Emitter) ListenerCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs[event])
}
