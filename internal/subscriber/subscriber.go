// Package subscriber implements the Subscriber (spec.md §4.4): a
// presenter's (object_id, sub_id) claim check against a controller's chunk
// stream, holding two explicit doubly-linked queues (pending/consumed)
// instead of the original's intrusive MxStreamChunkList — a direct,
// container/list-free rendering of the same intrusive-node idiom, per
// the redesign notes on replacing linked-list containers with explicit
// queues.
package subscriber

import "github.com/omni-engine/omni/internal/omnibuf"

// node is one link in a queue: the chunk it holds plus its neighbors.
// Queues own their nodes outright, so removal is a pointer splice with no
// allocator or container package involved.
type node struct {
	chunk *omnibuf.Chunk
	prev  *node
	next  *node
}

// queue is a minimal intrusive doubly-linked FIFO over *node, supporting
// push at either end and O(1) removal given a node pointer.
type queue struct {
	head *node // oldest
	tail *node // newest
	n    int
}

func (q *queue) pushBack(c *omnibuf.Chunk) {
	nd := &node{chunk: c, prev: q.tail}
	if q.tail != nil {
		q.tail.next = nd
	} else {
		q.head = nd
	}
	q.tail = nd
	q.n++
}

func (q *queue) pushFront(c *omnibuf.Chunk) {
	nd := &node{chunk: c, next: q.head}
	if q.head != nil {
		q.head.prev = nd
	} else {
		q.tail = nd
	}
	q.head = nd
	q.n++
}

// remove splices nd out of the queue. nd must belong to q.
func (q *queue) remove(nd *node) {
	if nd.prev != nil {
		nd.prev.next = nd.next
	} else {
		q.head = nd.next
	}
	if nd.next != nil {
		nd.next.prev = nd.prev
	} else {
		q.tail = nd.prev
	}
	nd.prev, nd.next = nil, nil
	q.n--
}

// popFront removes and returns the head node, or nil if empty.
func (q *queue) popFront() *node {
	nd := q.head
	if nd == nil {
		return nil
	}
	q.remove(nd)
	return nd
}

func (q *queue) reset() { q.head, q.tail, q.n = nil, nil, 0 }

// Subscriber pairs a presenter with a specific (object_id, sub_id) and
// buffers the chunks routed to it until the presenter consumes them.
type Subscriber struct {
	ObjectID uint32
	SubID    int16

	pending  queue // of *omnibuf.Chunk, oldest at head
	consumed queue // of *omnibuf.Chunk, oldest at head
}

// New creates an empty Subscriber for (objectID, subID).
func New(objectID uint32, subID int16) *Subscriber {
	return &Subscriber{ObjectID: objectID, SubID: subID}
}

// Matches reports whether this subscriber should receive a chunk
// belonging to objectID. Only the object id is compared; SubID is not
// consulted, so every subscriber for that object matches.
func (s *Subscriber) Matches(objectID uint32) bool {
	return s.ObjectID == objectID
}

// Add enqueues chunk onto the pending queue, appending to the tail (normal
// streaming order) or prepending to the head (priority delivery, used by
// the controller for chunks flagged FlagBit16). Always succeeds — the chunk's memory
// is owned by its buffer, not by this call.
func (s *Subscriber) Add(chunk *omnibuf.Chunk, append bool) {
	if append {
		s.pending.pushBack(chunk)
	} else {
		s.pending.pushFront(chunk)
	}
}

// Pop moves the head of pending to the tail of consumed and returns it, or
// returns nil if nothing is pending.
func (s *Subscriber) Pop() *omnibuf.Chunk {
	nd := s.pending.popFront()
	if nd == nil {
		return nil
	}
	s.consumed.pushBack(nd.chunk)
	return nd.chunk
}

// Peek returns the head of pending without removing it, or nil.
func (s *Subscriber) Peek() *omnibuf.Chunk {
	if s.pending.head == nil {
		return nil
	}
	return s.pending.head.chunk
}

// Free releases chunk's reference on its owning buffer and detaches it
// from the consumed queue. Chunks not found in consumed are released
// anyway — "single-use chunks" the caller never popped still get their
// buffer reference dropped, matching MxDSSubscriber::FreeDataChunk.
func (s *Subscriber) Free(chunk *omnibuf.Chunk) {
	for nd := s.consumed.head; nd != nil; nd = nd.next {
		if nd.chunk == chunk {
			s.consumed.remove(nd)
			break
		}
	}
	chunk.Release()
}

// DestroyAll drops every pending and consumed chunk, releasing each one's
// buffer reference. Used on stream termination or error.
func (s *Subscriber) DestroyAll() {
	for nd := s.pending.head; nd != nil; nd = nd.next {
		nd.chunk.Release()
	}
	s.pending.reset()

	for nd := s.consumed.head; nd != nil; nd = nd.next {
		nd.chunk.Release()
	}
	s.consumed.reset()
}

// PendingLen and ConsumedLen report queue depth, for diagnostics and tests.
func (s *Subscriber) PendingLen() int  { return s.pending.n }
func (s *Subscriber) ConsumedLen() int { return s.consumed.n }
