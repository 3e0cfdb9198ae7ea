package presenter

import (
	"testing"
	"time"

	"github.com/omni-engine/omni/internal/action"
	"github.com/omni-engine/omni/internal/notify"
	"github.com/omni-engine/omni/internal/omnibuf"
	"github.com/omni-engine/omni/internal/subscriber"
)

func newTestChunk(t *testing.T, objectID uint32, data string, flags uint16) *omnibuf.Chunk {
	t.Helper()
	wire := omnibuf.EncodeChunk(flags, objectID, 0, []byte(data))
	buf := omnibuf.NewChunkBuffer(wire)
	c, err := omnibuf.ReadChunk(buf)
	if err != nil {
		t.Fatalf("unexpected error building fixture chunk: %v", err)
	}
	return c
}

type recordingDisplay struct {
	frames [][]byte
}

func (d *recordingDisplay) Blit(x, y, z int32, frame []byte) error {
	d.frames = append(d.frames, frame)
	return nil
}

type endActionListener struct {
	senders []uint32
}

func (l *endActionListener) Notify(n notify.Notification) {
	if n.Kind == notify.KindEndAction {
		l.senders = append(l.senders, n.Sender)
	}
}

// TestS1SingleVideoAction follows scenario S1: 10 chunks, last with
// EndOfStream, no looping. Expected: all 10 delivered, state trace ends
// Freezing->Done, one EndAction.
func TestS1SingleVideoAction(t *testing.T) {
	start := time.Unix(0, 0)
	bus := notify.New()
	listener := &endActionListener{}
	h := bus.Register(listener)

	sub := subscriber.New(7, 0)
	display := &recordingDisplay{}
	media := action.MediaAction{
		Meta:      action.Meta{Type: action.TypeAnim, ObjectID: 7},
		LoopCount: 1,
	}
	p := NewVideoPresenter(media, 0, sub, display, bus, h, 0, nil)

	if err := p.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.State() != Ready {
		t.Fatalf("expected Ready after Start, got %v", p.State())
	}

	for i := 0; i < 10; i++ {
		flags := uint16(0)
		if i == 9 {
			flags = omnibuf.FlagEndOfSteam
		}
		sub.Add(newTestChunk(t, 7, "frame", flags), true)
	}

	now := start
	for i := 0; i < 20 && p.State() != Done; i++ {
		now = now.Add(33 * time.Millisecond)
		p.Tickle(now)
	}

	if p.State() != Done {
		t.Fatalf("expected presenter to reach Done, got %v", p.State())
	}
	if !p.HasStatePassed(Ready) || !p.HasStatePassed(Starting) || !p.HasStatePassed(Streaming) || !p.HasStatePassed(Freezing) {
		t.Fatalf("expected full state trace to have been visited")
	}
	if len(display.frames) != 10 {
		t.Fatalf("expected 10 frames blitted, got %d", len(display.frames))
	}
	bus.Drain()
	if len(listener.senders) != 1 || listener.senders[0] != 7 {
		t.Fatalf("expected exactly one EndAction from sender 7, got %v", listener.senders)
	}
}

// TestS2LoopedSoundAction follows scenario S2: loop_count=3, 4 chunks per
// play ending in EndOfStream. Expected: Repeating visited at least 3
// times, single final EndAction.
func TestS2LoopedSoundAction(t *testing.T) {
	start := time.Unix(0, 0)
	bus := notify.New()
	listener := &endActionListener{}
	h := bus.Register(listener)

	sub := subscriber.New(3, 0)
	rewindCount := 0
	rewind := func() error {
		rewindCount++
		// Re-queue another play's worth of chunks, simulating a rewound
		// source producing the same 4 frames again.
		for i := 0; i < 3; i++ {
			sub.Add(newTestChunk(t, 3, "frame", 0), true)
		}
		sub.Add(newTestChunk(t, 3, "frame", omnibuf.FlagEndOfSteam), true)
		return nil
	}

	media := action.MediaAction{
		Meta:      action.Meta{Type: action.TypeSound, ObjectID: 3, Flags: action.FlagLooping},
		LoopCount: 3,
	}
	var output fakeAudioOutput
	p := NewAudioPresenter(media, 0, sub, &output, 11025, bus, h, 0, rewind)

	if err := p.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		sub.Add(newTestChunk(t, 3, "frame", 0), true)
	}
	sub.Add(newTestChunk(t, 3, "frame", omnibuf.FlagEndOfSteam), true)

	now := start
	for i := 0; i < 200 && p.State() != Done; i++ {
		now = now.Add(10 * time.Millisecond)
		p.Tickle(now)
	}

	if p.State() != Done {
		t.Fatalf("expected presenter to reach Done, got %v", p.State())
	}
	if p.RepeatCount() < 3 {
		t.Fatalf("expected Repeating visited at least 3 times, got %d", p.RepeatCount())
	}
	if len(output.writes) != 12 {
		t.Fatalf("expected 12 audio frames total (3x4), got %d", len(output.writes))
	}
	bus.Drain()
	if len(listener.senders) != 1 {
		t.Fatalf("expected single final EndAction, got %v", listener.senders)
	}
}

type fakeAudioOutput struct {
	writes [][]byte
}

func (f *fakeAudioOutput) Write(samples []byte, sampleRate uint32) error {
	f.writes = append(f.writes, samples)
	return nil
}

func TestStateMonotonicity(t *testing.T) {
	// Invariant 3: a presenter's observed state sequence is a subsequence
	// of [Idle, Ready, Starting, Streaming, Repeating, Freezing, Done].
	order := []State{Idle, Ready, Starting, Streaming, Repeating, Freezing, Done}
	rank := make(map[State]int, len(order))
	for i, s := range order {
		rank[s] = i
	}

	start := time.Unix(0, 0)
	sub := subscriber.New(1, 0)
	media := action.MediaAction{Meta: action.Meta{Type: action.TypeStill, ObjectID: 1}, LoopCount: 1}
	p := NewVideoPresenter(media, 0, sub, &recordingDisplay{}, nil, notify.Handle{}, 0, nil)

	seen := []State{Idle}
	if err := p.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen = append(seen, p.State())

	sub.Add(newTestChunk(t, 1, "x", omnibuf.FlagEndOfSteam), true)
	now := start
	for i := 0; i < 10 && p.State() != Done; i++ {
		now = now.Add(33 * time.Millisecond)
		p.Tickle(now)
		if p.State() != seen[len(seen)-1] {
			seen = append(seen, p.State())
		}
	}

	lastRank := -1
	for _, s := range seen {
		r, ok := rank[s]
		if !ok || r < lastRank {
			t.Fatalf("state sequence %v is not monotonic per canonical order", seen)
		}
		lastRank = r
	}
}

func TestIsHitDefaultsFalse(t *testing.T) {
	sub := subscriber.New(1, 0)
	media := action.MediaAction{Meta: action.Meta{ObjectID: 1}}
	p := NewAudioPresenter(media, 0, sub, &fakeAudioOutput{}, 8000, nil, notify.Handle{}, 0, nil)
	if p.IsHit(5, 5) {
		t.Fatalf("expected default IsHit to be false")
	}
}

func TestVideoIsHitRespectsBox(t *testing.T) {
	sub := subscriber.New(1, 0)
	media := action.MediaAction{Meta: action.Meta{ObjectID: 1}, LocationX: 10, LocationY: 10}
	p := NewVideoPresenter(media, 0, sub, &recordingDisplay{}, nil, notify.Handle{}, 0, nil)
	p.SetHitBox(20, 20)

	if !p.IsHit(15, 15) {
		t.Fatalf("expected hit inside box")
	}
	if p.IsHit(100, 100) {
		t.Fatalf("expected miss outside box")
	}
}
