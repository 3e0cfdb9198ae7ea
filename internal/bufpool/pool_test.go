package bufpool

import "testing"

func TestGetExhaustionAndPut(t *testing.T) {
	p := New(64, 2)

	a, err := p.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := p.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := p.Get(); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}

	p.Put(a)
	if got, err := p.Get(); err != nil || len(got) != 64 {
		t.Fatalf("expected to reclaim freed slot, got %v err=%v", got, err)
	}
	p.Put(b)
}

func TestPoolsRoutesBySize(t *testing.T) {
	p := NewDefault()

	slot, pooled, err := p.Get(40)
	if err != nil || !pooled || cap(slot) != DefaultSmallSlotSize {
		t.Fatalf("expected small pool slot, got cap=%d pooled=%v err=%v", cap(slot), pooled, err)
	}
	p.Put(slot, pooled)

	slot, pooled, err = p.Get(100)
	if err != nil || !pooled || cap(slot) != DefaultLargeSlotSize {
		t.Fatalf("expected large pool slot, got cap=%d pooled=%v err=%v", cap(slot), pooled, err)
	}
	p.Put(slot, pooled)

	slot, pooled, err = p.Get(1000)
	if err != nil || pooled {
		t.Fatalf("expected unpooled fallback for oversized request, got pooled=%v err=%v", pooled, err)
	}
	if len(slot) != 1000 {
		t.Fatalf("expected slot of requested size, got %d", len(slot))
	}
}

func TestAvailableAndCapacity(t *testing.T) {
	p := New(128, 2)
	if p.Capacity() != 2 || p.Available() != 2 {
		t.Fatalf("expected fresh pool fully available, got cap=%d avail=%d", p.Capacity(), p.Available())
	}
	slot, _ := p.Get()
	if p.Available() != 1 {
		t.Fatalf("expected 1 available after one Get, got %d", p.Available())
	}
	p.Put(slot)
	if p.Available() != 2 {
		t.Fatalf("expected 2 available after Put, got %d", p.Available())
	}
}
