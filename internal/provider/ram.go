package provider

import (
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/omni-engine/omni/internal/container"
)

// RAMProvider reads an entire container file once at Open and serves every
// subsequent Read/Seek as a memory move against an mmap'd, read-only
// mapping — deterministic and synchronous, per spec.md §4.2.
type RAMProvider struct {
	file  *os.File
	data  mmap.MMap
	dir   *container.Directory
	pos   int64
	cache *container.DirectoryCache
}

func NewRAMProvider() *RAMProvider {
	return &RAMProvider{}
}

// SetCache attaches a header-directory cache (spec.md §4.2) that Open
// consults before walking the container and populates after a miss.
// A nil cache (the default) makes Open always parse.
func (p *RAMProvider) SetCache(c *container.DirectoryCache) { p.cache = c }

func (p *RAMProvider) Open(sourceName string) error {
	f, err := os.Open(sourceName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}

	var fingerprint string
	if p.cache != nil {
		if info, statErr := f.Stat(); statErr == nil {
			fingerprint = container.Fingerprint(sourceName, info.Size(), info.ModTime())
			if dir, ok, getErr := p.cache.Get(fingerprint); getErr == nil && ok {
				m, mapErr := mmap.Map(f, mmap.RDONLY, 0)
				if mapErr != nil {
					f.Close()
					return fmt.Errorf("%w: %v", ErrCannotOpen, mapErr)
				}
				p.file = f
				p.data = m
				p.dir = dir
				p.pos = 0
				return nil
			}
		}
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}

	dir, err := container.ParseDirectory(m)
	if err != nil {
		m.Unmap()
		f.Close()
		if err == container.ErrUnsupportedVersion {
			return fmt.Errorf("%w: %v", ErrUnsupportedVersion, err)
		}
		return fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}

	if p.cache != nil && fingerprint != "" {
		// A population failure degrades to "always parse next time"; it
		// never aborts this Open.
		p.cache.Put(fingerprint, dir)
	}

	p.file = f
	p.data = m
	p.dir = dir
	p.pos = 0
	return nil
}

func (p *RAMProvider) Read(dest []byte) (int, error) {
	if p.pos >= int64(len(p.data)) {
		return 0, io.EOF
	}
	n := copy(dest, p.data[p.pos:])
	p.pos += int64(n)
	return n, nil
}

func (p *RAMProvider) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = p.pos
	case io.SeekEnd:
		base = int64(len(p.data))
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", ErrCannotRead, whence)
	}

	next := base + offset
	if next < 0 || next > int64(len(p.data)) {
		return 0, fmt.Errorf("%w: seek out of range", ErrCannotRead)
	}
	p.pos = next
	return p.pos, nil
}

func (p *RAMProvider) Close() error {
	var unmapErr error
	if p.data != nil {
		unmapErr = p.data.Unmap()
		p.data = nil
	}
	var closeErr error
	if p.file != nil {
		closeErr = p.file.Close()
		p.file = nil
	}
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}

func (p *RAMProvider) BufferSize() uint32 {
	if p.dir == nil {
		return 0
	}
	return p.dir.Header.BufferSize
}

func (p *RAMProvider) StreamBufferCount() uint16 {
	if p.dir == nil {
		return 0
	}
	return uint16(p.dir.Header.StreamBufferCount)
}

func (p *RAMProvider) Directory() *container.Directory {
	return p.dir
}
