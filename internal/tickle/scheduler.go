// Package tickle implements the cooperative scheduler (spec.md §4.6): a
// single-threaded loop that calls each registered client at its own
// period, preserving registration order among clients ready in the same
// pass.
//
// Grounded on the registration-ordered sweep in the teacher's
// proxy/stream/buffer/registry.go StreamRegistry.cleanup/runCleanup,
// generalized from a one-shot cleanup pass into a per-period dispatch
// loop. Kept to stdlib time.Time comparisons — no library in the pack
// models a cooperative scheduler, so this is genuinely domain-specific
// code the spec asks to be built from scratch.
package tickle

import (
	"sync"
	"time"
)

// Client is anything the scheduler can tickle. Tickle returns true to
// request unregistration (the "unregister me" sentinel from spec.md §4.6).
type Client interface {
	Tickle(now time.Time) (unregister bool)
}

// Handle is returned by Register and is the only way to unregister a
// client, per §9's "Tickle-as-interface" redesign note: a handle-drop
// instead of a raw pointer removal, so unregistering twice or from a
// stale handle cannot dangle.
type Handle struct {
	id uint64
}

type registration struct {
	id           uint64
	client       Client
	period       time.Duration
	nextDeadline time.Time
}

// Scheduler is the single-threaded cooperative scheduler. It is not safe
// for concurrent Pass calls, matching the "one thread drives the
// scheduler" model of spec.md §5; Register/Unregister may be called from
// other goroutines and are synchronized internally.
type Scheduler struct {
	mu      sync.Mutex
	nextID  uint64
	regs    []*registration // registration order, authoritative for tie-breaks
	pending []uint64        // unregister requests deferred from mid-pass
	inPass  bool
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Register adds client with the given period, starting at now. Its first
// deadline is now+period, matching spec.md §4.6's "next_deadline
// initialized to now + period."
func (s *Scheduler) Register(client Client, period time.Duration, now time.Time) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.regs = append(s.regs, &registration{
		id:           id,
		client:       client,
		period:       period,
		nextDeadline: now.Add(period),
	})
	return Handle{id: id}
}

// Unregister removes the client behind h. If called during a Pass (e.g.
// from inside a client's own Tickle), the removal is deferred until the
// pass finishes, per spec.md §4.6's "a drop requested during the
// iteration is deferred to the end of the pass."
func (s *Scheduler) Unregister(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inPass {
		s.pending = append(s.pending, h.id)
		return
	}
	s.removeLocked(h.id)
}

func (s *Scheduler) removeLocked(id uint64) {
	for i, r := range s.regs {
		if r.id == id {
			s.regs = append(s.regs[:i], s.regs[i+1:]...)
			return
		}
	}
}

// Pass runs one scheduler sweep: for every registered client, in
// registration order, whose next_deadline has arrived, call Tickle and
// advance its deadline by whole periods until it is back in the future
// (catching up if the caller fell behind by more than one period).
func (s *Scheduler) Pass(now time.Time) {
	s.mu.Lock()
	s.inPass = true
	due := make([]*registration, 0, len(s.regs))
	for _, r := range s.regs {
		if !now.Before(r.nextDeadline) {
			due = append(due, r)
		}
	}
	s.mu.Unlock()

	for _, r := range due {
		if unregister := r.client.Tickle(now); unregister {
			s.mu.Lock()
			s.pending = append(s.pending, r.id)
			s.mu.Unlock()
			continue
		}
		if r.period > 0 {
			for !now.Before(r.nextDeadline) {
				r.nextDeadline = r.nextDeadline.Add(r.period)
			}
		}
	}

	s.mu.Lock()
	s.inPass = false
	for _, id := range s.pending {
		s.removeLocked(id)
	}
	s.pending = s.pending[:0]
	s.mu.Unlock()
}

// Len reports the number of currently registered clients.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regs)
}

// RegisterThreaded wraps client in its own goroutine, driven by a
// dedicated ticker rather than the cooperative Pass loop — the secondary
// "tickle thread" escape hatch from spec.md §4.6/§9. This is a documented
// non-default path: the client must tolerate its Tickle being called
// concurrently with the cooperative scheduler's own clients, since it is
// no longer serialized against them. Stop the returned function to end
// the goroutine; it does not call Unregister because the client was never
// registered with the cooperative Scheduler.
func (s *Scheduler) RegisterThreaded(client Client, period time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				if client.Tickle(now) {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}
