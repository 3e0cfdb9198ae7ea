package provider

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/omni-engine/omni/internal/backoff"
	"github.com/omni-engine/omni/internal/bufpool"
	"github.com/omni-engine/omni/internal/container"
)

// DiskProvider keeps only the parsed header directory resident and pulls
// data blocks on demand, one buffer_size unit at a time, through the
// shared block pools (spec.md §4.2, §5). A transient block read is retried
// with exponential backoff before giving up.
type DiskProvider struct {
	file *os.File
	size int64
	dir  *container.Directory
	pos  int64

	pools *bufpool.Pools
	cache *container.DirectoryCache

	retryInitial time.Duration
	retryMax     time.Duration
	maxAttempts  int
}

// NewDiskProvider creates a DiskProvider drawing prefetch blocks from
// pools, retrying a failed block read up to maxAttempts times with backoff
// between retryInitial and retryMax.
func NewDiskProvider(pools *bufpool.Pools, retryInitial, retryMax time.Duration, maxAttempts int) *DiskProvider {
	return &DiskProvider{
		pools:        pools,
		retryInitial: retryInitial,
		retryMax:     retryMax,
		maxAttempts:  maxAttempts,
	}
}

// SetCache attaches a header-directory cache (spec.md §4.2) that Open
// consults before walking the container and populates after a miss.
// A nil cache (the default) makes Open always parse.
func (p *DiskProvider) SetCache(c *container.DirectoryCache) { p.cache = c }

func (p *DiskProvider) Open(sourceName string) error {
	f, err := os.Open(sourceName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}

	var fingerprint string
	if p.cache != nil {
		fingerprint = container.Fingerprint(sourceName, info.Size(), info.ModTime())
		if dir, ok, getErr := p.cache.Get(fingerprint); getErr == nil && ok {
			p.file = f
			p.size = info.Size()
			p.dir = dir
			p.pos = 0
			return nil
		}
	}

	dir, err := container.ParseDirectoryFromReader(f, info.Size())
	if err != nil {
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
	p.size = info.Size()
	p.dir = dir
	p.pos = 0
	return nil
}

// Read pulls up to len(dest) bytes starting at the current position,
// internally issuing one block fetch per buffer_size unit (or per pool
// slot size if the container declares none).
func (p *DiskProvider) Read(dest []byte) (int, error) {
	if p.pos >= p.size {
		return 0, io.EOF
	}

	unit := int(p.BufferSize())
	if unit <= 0 {
		unit = p.pools.Small.SlotSize()
	}

	total := 0
	for total < len(dest) && p.pos < p.size {
		want := len(dest) - total
		if want > unit {
			want = unit
		}

		slot, pooled, err := p.pools.Get(want)
		if err != nil {
			// pool exhaustion: bubble up verbatim so the caller (the
			// stream controller's tick) can retry on the next pass
			// instead of treating this as a hard read failure.
			return total, err
		}

		n, err := p.readBlockWithRetry(slot[:want], p.pos)
		if err != nil {
			p.pools.Put(slot, pooled)
			return total, err
		}

		copy(dest[total:total+n], slot[:n])
		p.pools.Put(slot, pooled)
		p.pos += int64(n)
		total += n
		if n < want {
			break
		}
	}
	return total, nil
}

func (p *DiskProvider) readBlockWithRetry(buf []byte, offset int64) (int, error) {
	strat := backoff.New(p.retryInitial, p.retryMax)

	var lastErr error
	for attempt := 0; attempt <= p.maxAttempts; attempt++ {
		n, err := p.file.ReadAt(buf, offset)
		if err == nil {
			return n, nil
		}
		if err == io.EOF {
			return n, nil
		}
		lastErr = err
		if attempt < p.maxAttempts {
			time.Sleep(strat.Next())
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrCannotRead, lastErr)
}

func (p *DiskProvider) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = p.pos
	case io.SeekEnd:
		base = p.size
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", ErrCannotRead, whence)
	}

	next := base + offset
	if next < 0 || next > p.size {
		return 0, fmt.Errorf("%w: seek out of range", ErrCannotRead)
	}
	p.pos = next
	return p.pos, nil
}

func (p *DiskProvider) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

func (p *DiskProvider) BufferSize() uint32 {
	if p.dir == nil {
		return 0
	}
	return p.dir.Header.BufferSize
}

func (p *DiskProvider) StreamBufferCount() uint16 {
	if p.dir == nil {
		return 0
	}
	return uint16(p.dir.Header.StreamBufferCount)
}

func (p *DiskProvider) Directory() *container.Directory {
	return p.dir
}
