// Package provider implements the Stream Provider (spec.md §4.2): the two
// ways the engine pulls container bytes off of storage. The RAM provider
// maps a whole container read-only and serves reads as memory moves; the
// Disk provider keeps only the parsed header directory resident and pulls
// data blocks on demand through the shared block pools.
package provider

import (
	"errors"
	"io"

	"github.com/omni-engine/omni/internal/container"
)

var (
	ErrCannotOpen         = errors.New("provider: cannot open source")
	ErrCannotRead         = errors.New("provider: cannot read")
	ErrChunkNotFound      = errors.New("provider: chunk not found")
	ErrUnsupportedVersion = errors.New("provider: unsupported container version")
)

// Provider is the abstraction over a container file, whether RAM-resident
// or disk-streamed, per spec.md §4.2.
type Provider interface {
	io.ReadSeekCloser

	// Open loads sourceName and makes it ready for Read/Seek.
	Open(sourceName string) error

	// BufferSize is the recommended streaming buffer size, read from the
	// container's MxHd header.
	BufferSize() uint32

	// StreamBufferCount is the number of concurrent buffers the format
	// expects the caller to keep in flight.
	StreamBufferCount() uint16

	// Directory returns the container's parsed object/chunk offset index,
	// consulted by the Stream Controller (C3) when routing chunks to
	// subscribers without re-scanning the container on every tick.
	Directory() *container.Directory
}
