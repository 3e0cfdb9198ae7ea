package omnibuf

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Mode tags how a Buffer's backing memory is owned, mirroring MxDSBuffer's
// Type enum (mxdsbuffer.h).
type Mode int

const (
	// ModeChunk wraps a slice this Buffer neither owns nor can grow — it
	// is a view into someone else's memory (e.g. a parent stream buffer
	// a Chunk was read out of).
	ModeChunk Mode = iota
	// ModeAllocated owns heap memory drawn from bytebufferpool; released
	// back to the pool once the refcount reaches zero.
	ModeAllocated
	// ModePreallocated wraps caller-supplied memory (e.g. an mmap'd RAM
	// provider region) that this Buffer must never free or resize.
	ModePreallocated
	// ModeUnknown matches the original's catch-all default; Buffers in
	// this mode behave like ModeChunk but signal "not yet classified".
	ModeUnknown
)

func (m Mode) String() string {
	switch m {
	case ModeChunk:
		return "chunk"
	case ModeAllocated:
		return "allocated"
	case ModePreallocated:
		return "preallocated"
	default:
		return "unknown"
	}
}

// markers recognized by SkipToData.
var markers = [][4]byte{
	{'R', 'I', 'F', 'F'},
	{'L', 'I', 'S', 'T'},
	{'M', 'x', 'D', 'a'},
	{'M', 'x', 'O', 'b'},
	{'M', 'x', 'C', 'h'},
	{'M', 'x', 'H', 'd'},
}

// Buffer is a reference-counted block of stream data. One Buffer may back
// many Chunk views simultaneously (e.g. a disk provider's read-ahead block
// containing several chunks for different objects); AddRef/ReleaseRef track
// how many Chunks currently point into it so its memory isn't recycled or
// freed while still in use.
type Buffer struct {
	mode     Mode
	data     []byte
	bb       *bytebufferpool.ByteBuffer // only set in ModeAllocated
	capacity int                        // reserved bytes; Append cannot grow past this
	refs     atomic.Int32
	cursor   int // SkipToData / chunk-read parse position
	write    int // bytes currently valid ("write offset")
	remain   int // bytes left to stream, per CalcBytesRemaining
}

// NewChunkBuffer wraps an existing slice as a ModeChunk buffer. The Buffer
// does not take ownership of data; it must outlive every Chunk read from it.
func NewChunkBuffer(data []byte) *Buffer {
	b := &Buffer{mode: ModeChunk, data: data, write: len(data)}
	b.refs.Store(1)
	return b
}

// NewPreallocatedBuffer wraps caller-owned memory (typically an mmap'd
// region from the RAM provider) that this Buffer must never grow or free.
func NewPreallocatedBuffer(data []byte) *Buffer {
	b := &Buffer{mode: ModePreallocated, data: data, write: len(data)}
	b.refs.Store(1)
	return b
}

// Allocate creates a new ModeAllocated buffer of exactly size bytes, drawn
// from bytebufferpool, with no spare room to Append into. The returned
// Buffer owns its memory and returns it to the pool once its refcount drops
// to zero.
func Allocate(size int) *Buffer {
	return allocate(size, size)
}

// AllocateCapacity creates a new empty ModeAllocated buffer reserving room
// for up to capacity bytes, filled in by one or more Append calls. Used to
// reassemble a chunk split across two wire fragments (the DS_CHUNK_SPLIT
// flag) into one contiguous buffer sized to the known total up front,
// rather than reallocating past it.
func AllocateCapacity(capacity int) *Buffer {
	return allocate(0, capacity)
}

func allocate(size, capacity int) *Buffer {
	bb := bytebufferpool.Get()
	if cap(bb.B) < capacity {
		bb.B = make([]byte, capacity)
	} else {
		bb.B = bb.B[:capacity]
	}
	b := &Buffer{mode: ModeAllocated, data: bb.B[:size], bb: bb, write: size, capacity: capacity}
	b.refs.Store(1)
	return b
}

// Mode reports this buffer's ownership mode.
func (b *Buffer) Mode() Mode { return b.mode }

// Bytes returns the full backing slice. Callers must not retain it past a
// ReleaseRef that drops the count to zero.
func (b *Buffer) Bytes() []byte { return b.data }

// WriteOffset returns the number of bytes currently valid in the buffer.
func (b *Buffer) WriteOffset() int { return b.write }

// BytesRemaining returns the number of bytes this buffer still expects to
// receive before its stream is complete, as tracked by CalcBytesRemaining.
func (b *Buffer) BytesRemaining() int { return b.remain }

// RefCount reports the current reference count.
func (b *Buffer) RefCount() int32 { return b.refs.Load() }

// HasRef reports whether any references are outstanding.
func (b *Buffer) HasRef() bool { return b.refs.Load() > 0 }

// AddRef increments the reference count, taken by a Chunk reading a view
// into this buffer (or by split-chunk reassembly holding onto a fragment).
func (b *Buffer) AddRef() int32 { return b.refs.Add(1) }

// ReleaseRef decrements the reference count. When it reaches zero and the
// buffer owns allocated memory, that memory is returned to bytebufferpool
// and the Buffer becomes unusable.
func (b *Buffer) ReleaseRef() int32 {
	n := b.refs.Add(-1)
	if n <= 0 && b.mode == ModeAllocated && b.bb != nil {
		bytebufferpool.Put(b.bb)
		b.bb = nil
		b.data = nil
	}
	return n
}

// CalcBytesRemaining records how many bytes are still owed to complete this
// buffer's stream, given the write position data represents. It mirrors
// MxDSBuffer::CalcBytesRemaining: the caller has already written up to
// writeOffset and declares total bytes remaining from here.
func (b *Buffer) CalcBytesRemaining(remaining int) error {
	if remaining < 0 {
		return ErrOutOfMemory
	}
	b.remain = remaining
	return nil
}

// SetStreamingOffset repositions the parse cursor, equivalent to
// MxDSBuffer::FUN_100c6f80 (renamed SetStreamingOffset in the decompilation
// notes).
func (b *Buffer) SetStreamingOffset(offset int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(b.data) {
		offset = len(b.data)
	}
	b.cursor = offset
}

// Cursor returns the current parse position.
func (b *Buffer) Cursor() int { return b.cursor }

// SkipToData scans forward from the current cursor for the next recognized
// container marker (RIFF, LIST, MxDa, MxOb, MxCh, MxHd), advances the cursor
// to its start, and returns the marker found. It returns ErrNoData if none
// remain before the end of the buffer.
func (b *Buffer) SkipToData() (marker string, offset int, err error) {
	for i := b.cursor; i+4 <= b.write; i++ {
		for _, m := range markers {
			if b.data[i] == m[0] && b.data[i+1] == m[1] && b.data[i+2] == m[2] && b.data[i+3] == m[3] {
				b.cursor = i
				return string(m[:]), i, nil
			}
		}
	}
	return "", 0, ErrNoData
}

// Append copies src into this buffer's reserved capacity, used to
// reassemble a chunk split across buffers (the DS_CHUNK_SPLIT flag). Only
// ModeAllocated buffers can grow; every other mode returns
// ErrNotAppendable. Append never reallocates past the capacity fixed at
// construction — a reader may already hold a view into the old segment —
// so src that would not fit returns ErrBufferFull instead of growing.
func (b *Buffer) Append(src []byte) error {
	if b.mode != ModeAllocated {
		return ErrNotAppendable
	}
	if b.bb == nil {
		return ErrOutOfMemory
	}
	if b.write+len(src) > b.capacity {
		return ErrBufferFull
	}
	copy(b.bb.B[b.write:b.write+len(src)], src)
	b.write += len(src)
	b.data = b.bb.B[:b.write]
	return nil
}
