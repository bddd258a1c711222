// Package notify fans state snapshots out to host-registered
// listeners in deterministic subscription order.
package notify

import "sync"

// Hub delivers values to subscribers in the order they subscribed.
// The zero value is ready to use.
//
// Dispatch is synchronous on the publisher's goroutine and runs
// outside the hub lock, so a listener may re-enter the publishing
// component. Listeners must return quickly; a slow listener stalls
// the publisher, never the hub.
type Hub[T any] struct {
	mu   sync.Mutex
	next int
	subs []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a cancel function. Cancel is
// idempotent and safe to call concurrently with Publish; a listener
// cancelled mid-publish may still receive that publish.
func (h *Hub[T]) Subscribe(fn func(T)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs = append(h.subs, subscriber[T]{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == id {
				// Full slice expression so published snapshots never
				// alias the mutated tail.
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers v to every subscriber registered at call time.
// Subscribers added by a listener during dispatch see the next
// publish, not this one.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	snapshot := make([]subscriber[T], len(h.subs))
	copy(snapshot, h.subs)
	h.mu.Unlock()

	for _, s := range snapshot {
		s.fn(v)
	}
}

// Len reports the live subscriber count.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
