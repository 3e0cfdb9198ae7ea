// Package bufpool implements the engine's fixed-size block pools. The disk
// provider pulls its block-read scratch space from here instead of the
// heap; Chunk-mode omnibuf buffers wrap existing memory and do not draw
// from these pools. The pools follow spec.md §5's
// shared-resource policy: a bounded set of slots, guarded so exhaustion is a
// retryable condition rather than a crash.
//
// The teacher models a similar "fixed ring of pre-allocated segments,
// handed out and returned" discipline in
// proxy/stream/buffer/coordinator.go's container/ring.Ring of ChunkData.
// Here the slot count is fixed (not a rotating write cursor) so a buffered
// channel of pre-allocated slices is the more direct fit.
package bufpool

import "errors"

// ErrPoolExhausted is returned by Get when no slot is currently free.
var ErrPoolExhausted = errors.New("bufpool: pool exhausted")

// Pool is a fixed-size free list of equally sized byte slices.
type Pool struct {
	slotSize int
	free     chan []byte
}

// New creates a Pool of n slots, each slotSize bytes, all pre-allocated.
func New(slotSize, n int) *Pool {
	p := &Pool{
		slotSize: slotSize,
		free:     make(chan []byte, n),
	}
	for i := 0; i < n; i++ {
		p.free <- make([]byte, slotSize)
	}
	return p
}

// SlotSize returns the fixed size of every slot in this pool.
func (p *Pool) SlotSize() int { return p.slotSize }

// Get removes a free slot from the pool without blocking. It returns
// ErrPoolExhausted if every slot is currently checked out; the caller is
// expected to retry on a later tick rather than wait.
func (p *Pool) Get() ([]byte, error) {
	select {
	case slot := <-p.free:
		return slot[:p.slotSize], nil
	default:
		return nil, ErrPoolExhausted
	}
}

// Put returns a slot to the pool. Slots not obtained from this Pool, or of
// the wrong size, are rejected silently (the caller leaked it instead of
// corrupting the pool).
func (p *Pool) Put(slot []byte) {
	if cap(slot) != p.slotSize {
		return
	}
	select {
	case p.free <- slot[:p.slotSize]:
	default:
		// pool is already full; drop it (shouldn't happen with correct usage)
	}
}

// Available reports how many slots are currently free, for diagnostics.
func (p *Pool) Available() int { return len(p.free) }

// Capacity reports the total number of slots this pool manages.
func (p *Pool) Capacity() int { return cap(p.free) }

// Sizes used by the default engine block pools (spec.md §5): a 64-byte pool
// sized 22 slots and a 128-byte pool sized 2 slots. Both are configurable —
// these are only the defaults a coordinator wires up if the caller doesn't
// override them.
const (
	DefaultSmallSlotSize = 64
	DefaultSmallSlots    = 22
	DefaultLargeSlotSize = 128
	DefaultLargeSlots    = 2
)

// Pools bundles the two fixed-size pools the disk provider draws from.
type Pools struct {
	Small *Pool
	Large *Pool
}

// NewDefault creates Pools at the spec's default sizes.
func NewDefault() *Pools {
	return &Pools{
		Small: New(DefaultSmallSlotSize, DefaultSmallSlots),
		Large: New(DefaultLargeSlotSize, DefaultLargeSlots),
	}
}

// Get returns a slot of at least size bytes from whichever pool fits,
// preferring the smallest pool that satisfies the request. Requests larger
// than the Large pool's slot size fall back to a plain heap allocation
// (not pooled), matching the spec's description of the pools as serving
// "streaming buffer" sized requests, not arbitrary allocations.
func (p *Pools) Get(size int) (slot []byte, pooled bool, err error) {
	switch {
	case size <= p.Small.SlotSize():
		slot, err = p.Small.Get()
		return slot, err == nil, err
	case size <= p.Large.SlotSize():
		slot, err = p.Large.Get()
		return slot, err == nil, err
	default:
		return make([]byte, size), false, nil
	}
}

// Put returns a previously pooled slot obtained from Get. Non-pooled
// allocations are ignored.
func (p *Pools) Put(slot []byte, pooled bool) {
	if !pooled {
		return
	}
	switch cap(slot) {
	case p.Small.SlotSize():
		p.Small.Put(slot)
	case p.Large.SlotSize():
		p.Large.Put(slot)
	}
}
