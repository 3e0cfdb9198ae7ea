package omnibuf

import (
	"bytes"
	"testing"
)

func TestSkipToDataFindsMarker(t *testing.T) {
	raw := append([]byte("junk"), []byte("MxChrest")...)
	buf := NewChunkBuffer(raw)

	marker, offset, err := buf.SkipToData()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if marker != "MxCh" || offset != 4 {
		t.Fatalf("got marker=%q offset=%d, want MxCh at 4", marker, offset)
	}
	if buf.Cursor() != 4 {
		t.Fatalf("expected cursor to advance to marker, got %d", buf.Cursor())
	}
}

func TestSkipToDataNoMarker(t *testing.T) {
	buf := NewChunkBuffer([]byte("no markers at all here"))
	if _, _, err := buf.SkipToData(); err != ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestAllocateAndRelease(t *testing.T) {
	b := Allocate(32)
	if b.Mode() != ModeAllocated {
		t.Fatalf("expected ModeAllocated, got %v", b.Mode())
	}
	if len(b.Bytes()) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(b.Bytes()))
	}
	if b.RefCount() != 1 {
		t.Fatalf("expected refcount 1, got %d", b.RefCount())
	}

	b.AddRef()
	if n := b.ReleaseRef(); n != 1 {
		t.Fatalf("expected refcount 1 after one release, got %d", n)
	}
	if !b.HasRef() {
		t.Fatalf("expected buffer to still have a reference")
	}

	if n := b.ReleaseRef(); n != 0 {
		t.Fatalf("expected refcount 0, got %d", n)
	}
	if b.HasRef() {
		t.Fatalf("expected no references left")
	}
}

func TestAppendGrowsWithinReservedCapacity(t *testing.T) {
	b := AllocateCapacity(8)

	if err := b.Append([]byte("abcd")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Append([]byte("efgh")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := b.Bytes(); !bytes.Equal(got, []byte("abcdefgh")) {
		t.Fatalf("got %q, want abcdefgh", got)
	}
	if b.WriteOffset() != 8 {
		t.Fatalf("expected write offset 8, got %d", b.WriteOffset())
	}
}

func TestAppendRejectsPastCapacity(t *testing.T) {
	b := AllocateCapacity(4)
	if err := b.Append([]byte("abcd")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Append([]byte("e")); err != ErrBufferFull {
		t.Fatalf("expected ErrBufferFull, got %v", err)
	}
}

func TestAppendRejectsNonAllocatedMode(t *testing.T) {
	b := NewPreallocatedBuffer([]byte("fixed"))
	if err := b.Append([]byte("more")); err != ErrNotAppendable {
		t.Fatalf("expected ErrNotAppendable, got %v", err)
	}
}

func TestCalcBytesRemaining(t *testing.T) {
	b := NewChunkBuffer([]byte("data"))
	if err := b.CalcBytesRemaining(128); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.BytesRemaining() != 128 {
		t.Fatalf("got %d, want 128", b.BytesRemaining())
	}
	if err := b.CalcBytesRemaining(-1); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory for negative remaining, got %v", err)
	}
}

func TestSetStreamingOffsetClamps(t *testing.T) {
	b := NewChunkBuffer(make([]byte, 10))

	b.SetStreamingOffset(5)
	if b.Cursor() != 5 {
		t.Fatalf("got cursor %d, want 5", b.Cursor())
	}

	b.SetStreamingOffset(100)
	if b.Cursor() != 10 {
		t.Fatalf("expected clamp to buffer length 10, got %d", b.Cursor())
	}

	b.SetStreamingOffset(-5)
	if b.Cursor() != 0 {
		t.Fatalf("expected clamp to 0, got %d", b.Cursor())
	}
}
