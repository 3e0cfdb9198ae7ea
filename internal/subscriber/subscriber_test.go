package subscriber

import (
	"testing"

	"github.com/omni-engine/omni/internal/omnibuf"
)

func newTestChunk(t *testing.T, objectID uint32, data string) *omnibuf.Chunk {
	t.Helper()
	wire := omnibuf.EncodeChunk(0, objectID, 0, []byte(data))
	buf := omnibuf.NewChunkBuffer(wire)
	c, err := omnibuf.ReadChunk(buf)
	if err != nil {
		t.Fatalf("unexpected error building fixture chunk: %v", err)
	}
	return c
}

func TestAddPopOrdering(t *testing.T) {
	s := New(1, 0)
	a := newTestChunk(t, 1, "a")
	b := newTestChunk(t, 1, "b")

	s.Add(a, true)
	s.Add(b, true)

	if got := s.Pop(); got != a {
		t.Fatalf("expected a first, got %v", got)
	}
	if got := s.Pop(); got != b {
		t.Fatalf("expected b second, got %v", got)
	}
	if got := s.Pop(); got != nil {
		t.Fatalf("expected nil once drained, got %v", got)
	}
}

func TestPrependPriority(t *testing.T) {
	s := New(1, 0)
	a := newTestChunk(t, 1, "a")
	b := newTestChunk(t, 1, "b")

	s.Add(a, true)
	s.Add(b, false) // prepend: b should come out first

	if got := s.Pop(); got != b {
		t.Fatalf("expected prepended b first, got %v", got)
	}
	if got := s.Pop(); got != a {
		t.Fatalf("expected a second, got %v", got)
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	s := New(1, 0)
	a := newTestChunk(t, 1, "a")
	s.Add(a, true)

	if got := s.Peek(); got != a {
		t.Fatalf("expected peek to return a, got %v", got)
	}
	if s.PendingLen() != 1 {
		t.Fatalf("expected peek to leave queue untouched, len=%d", s.PendingLen())
	}
}

func TestFreeReleasesBufferRef(t *testing.T) {
	wire := omnibuf.EncodeChunk(0, 1, 0, []byte("x"))
	buf := omnibuf.NewChunkBuffer(wire)
	c, err := omnibuf.ReadChunk(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := New(1, 0)
	s.Add(c, true)
	popped := s.Pop()
	if popped != c {
		t.Fatalf("expected popped chunk to match")
	}
	if buf.RefCount() != 2 {
		t.Fatalf("expected refcount 2 before free, got %d", buf.RefCount())
	}

	s.Free(popped)
	if buf.RefCount() != 1 {
		t.Fatalf("expected refcount 1 after free, got %d", buf.RefCount())
	}
	if s.ConsumedLen() != 0 {
		t.Fatalf("expected consumed queue empty after free, got %d", s.ConsumedLen())
	}
}

func TestDestroyAllReleasesEverything(t *testing.T) {
	wireA := omnibuf.EncodeChunk(0, 1, 0, []byte("a"))
	wireB := omnibuf.EncodeChunk(0, 1, 0, []byte("b"))
	bufA := omnibuf.NewChunkBuffer(wireA)
	bufB := omnibuf.NewChunkBuffer(wireB)
	a, _ := omnibuf.ReadChunk(bufA)
	b, _ := omnibuf.ReadChunk(bufB)

	s := New(1, 0)
	s.Add(a, true)
	s.Add(b, true)
	s.Pop() // move a to consumed

	s.DestroyAll()

	if bufA.RefCount() != 0 || bufB.RefCount() != 0 {
		t.Fatalf("expected all buffer refs released, got a=%d b=%d", bufA.RefCount(), bufB.RefCount())
	}
	if s.PendingLen() != 0 || s.ConsumedLen() != 0 {
		t.Fatalf("expected both queues empty after DestroyAll")
	}
}

func TestMatches(t *testing.T) {
	s := New(42, 3)
	if !s.Matches(42) {
		t.Fatalf("expected subscriber to match its own object id")
	}
	if s.Matches(7) {
		t.Fatalf("did not expect subscriber to match a different object id")
	}
}
