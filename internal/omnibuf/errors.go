// Package omnibuf implements the Buffer and Chunk primitives that every
// other engine component streams, routes, and consumes: a reference-counted
// memory block in one of four ownership modes, and the framed Chunk view
// parsed out of it.
//
// The refcounting and swap-and-reset discipline are grounded on
// proxy/stream/buffer/coordinator.go's ChunkData/bytebufferpool usage; the
// exact wire layout (RIFF envelope + inner stream-chunk header) follows
// original_source/LEGO1/omni/include/mxdschunk.h's Size() formula and
// MxStreamChunk's header accessors.
package omnibuf

import "errors"

var (
	// ErrInvalidMagic is returned when a chunk's leading four bytes are not "MxCh".
	ErrInvalidMagic = errors.New("omnibuf: chunk missing MxCh magic")
	// ErrTruncatedChunk is returned when a buffer doesn't hold enough bytes
	// to satisfy the length declared in a chunk's header.
	ErrTruncatedChunk = errors.New("omnibuf: truncated chunk")
	// ErrOutOfMemory is returned when a Buffer can't grow to satisfy an
	// Allocate or Append call.
	ErrOutOfMemory = errors.New("omnibuf: out of memory")
	// ErrNotAppendable is returned when Append is called on a buffer whose
	// mode doesn't own growable storage (Preallocated, Unknown).
	ErrNotAppendable = errors.New("omnibuf: buffer mode does not support append")
	// ErrBufferFull is returned when Append's src would grow a buffer past
	// the capacity reserved for it at construction.
	ErrBufferFull = errors.New("omnibuf: append exceeds buffer capacity")
	// ErrNoData is returned when SkipToData exhausts the buffer without
	// finding a recognized marker.
	ErrNoData = errors.New("omnibuf: no further chunk or object marker found")
)
