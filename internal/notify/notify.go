// Package notify implements the Notification Bus (spec.md §4.8): listener
// registration and FIFO-per-tick delivery. The teacher has no analogous
// pub/sub primitive, so this is built directly from spec.md's description
// rather than adapted from a teacher file. The listener registry is a
// mutex-guarded slice kept in registration order, so register/unregister
// may be called from other goroutines; they take the same mutex as the
// delivering tickle.
package notify

import (
	"sync"
	"time"
)

// Kind is the closed set of notification parameter kinds the core uses,
// per spec.md §6.
type Kind int

const (
	KindStartAction Kind = iota
	KindEndAction
	KindPresenter
	KindStreamer
	KindKeyPress
	KindButtonUp
	KindButtonDown
	KindMouseMove
	KindClick
	KindDragStart
	KindDrag
	KindDragEnd
	KindTimer
	KindControl
	KindEndAnim
	KindPathStruct
	KindNewPresenter
	KindTransitioned
)

// Notification is cloned at Send time so the sender may reuse its stack
// frame, per spec.md §4.8.
type Notification struct {
	Kind   Kind
	Sender uint32 // sender's object id
	Param  any
}

// Listener receives delivered notifications.
type Listener interface {
	Notify(n Notification)
}

type registration struct {
	id       uint64
	listener Listener
}

// Handle is returned by Register; Unregister takes a Handle rather than a
// raw Listener so deregistering twice, or from a stale reference, cannot
// misidentify a listener that happens to compare equal.
type Handle struct {
	id uint64
}

// Bus is the engine's notification bus. Queue manipulation is guarded by a
// mutex (spec.md §5: "the notification queue is guarded by a critical
// section"); delivery itself runs only from Drain, called by the
// scheduler thread.
type Bus struct {
	mu sync.Mutex

	nextID    uint64
	listeners []*registration // registration order

	// queued holds notifications sent since the last Drain. Drain swaps
	// this out for a fresh empty slice before delivering, so Send calls
	// made reentrantly from inside a listener's Notify land in the fresh
	// slice and are only delivered on the *next* Drain — the queue-swap
	// that prevents reentrant starvation (spec.md §4.8).
	queued []queued
}

type queued struct {
	handle Handle
	n      Notification
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Register adds listener and returns a Handle for Unregister/Send.
func (b *Bus) Register(listener Listener) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	h := Handle{id: b.nextID}
	b.listeners = append(b.listeners, &registration{id: h.id, listener: listener})
	return h
}

// Unregister removes the listener behind h. Any notification already
// queued for it is discarded rather than delivered (spec.md §4.8 and
// scenario S6).
func (b *Bus) Unregister(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, r := range b.listeners {
		if r.id == h.id {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			break
		}
	}

	b.queued = discard(b.queued, h)
}

func discard(qs []queued, h Handle) []queued {
	out := qs[:0]
	for _, q := range qs {
		if q.handle != h {
			out = append(out, q)
		}
	}
	return out
}

// Send queues n for delivery to the listener behind h on the next Drain.
// Callers on any goroutine may call Send.
func (b *Bus) Send(h Handle, n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.listeners {
		if r.id == h.id {
			b.queued = append(b.queued, queued{handle: h, n: n})
			return
		}
	}
	// listener already unregistered; nothing to deliver to.
}

// Broadcast queues n for every currently registered listener, in
// registration order.
func (b *Bus) Broadcast(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.listeners {
		b.queued = append(b.queued, queued{handle: Handle{id: r.id}, n: n})
	}
}

// Drain delivers every notification queued since the last Drain, in FIFO
// order. Notifications Send (or Broadcast) queues reentrantly from inside
// a Notify callback land in a fresh queue swapped in before delivery
// starts, so they are delivered on the *next* Drain rather than extending
// this one (spec.md §4.8's anti-starvation guarantee).
func (b *Bus) Drain() {
	b.mu.Lock()
	batch := b.queued
	b.queued = nil
	b.mu.Unlock()

	for _, q := range batch {
		b.mu.Lock()
		var listener Listener
		for _, r := range b.listeners {
			if r.id == q.handle.id {
				listener = r.listener
				break
			}
		}
		b.mu.Unlock()

		if listener != nil {
			listener.Notify(q.n)
		}
	}
}

// Tickle satisfies internal/tickle.Client, letting the bus's drain run on
// the cooperative scheduler like any other periodic client.
func (b *Bus) Tickle(now time.Time) bool {
	b.Drain()
	return false
}
