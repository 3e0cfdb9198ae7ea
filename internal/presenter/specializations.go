package presenter

import (
	"time"

	"github.com/omni-engine/omni/internal/action"
	"github.com/omni-engine/omni/internal/notify"
	"github.com/omni-engine/omni/internal/subscriber"
)

// VideoPresenter decodes FLIC/Smacker/still-image chunks, blitting one
// frame per tick, per spec.md §4.7's Video specialization.
type VideoPresenter struct {
	Core
	display   VideoOutput
	loopCount int32
	remaining int32
	locationX int32
	locationY int32
	displayZ  int32
	rewind    func() error
	hitWidth  int32
	hitHeight int32
}

// NewVideoPresenter creates a VideoPresenter for media, driven by sub.
// rewind is called to restart the source when looping; it may be nil for
// non-looping media.
func NewVideoPresenter(media action.MediaAction, subID int16, sub *subscriber.Subscriber, display VideoOutput, bus *notify.Bus, busH notify.Handle, holdFor time.Duration, rewind func() error) *VideoPresenter {
	return &VideoPresenter{
		Core:      NewCore(media.Meta, subID, sub, bus, busH, holdFor),
		display:   display,
		loopCount: media.LoopCount,
		remaining: media.LoopCount,
		locationX: media.LocationX,
		locationY: media.LocationY,
		displayZ:  media.DisplayZ,
		rewind:    rewind,
	}
}

// SetHitBox gives IsHit a rectangle to test against, rooted at the
// presenter's location.
func (p *VideoPresenter) SetHitBox(w, h int32) {
	p.hitWidth, p.hitHeight = w, h
}

func (p *VideoPresenter) IsHit(x, y int32) bool {
	if p.hitWidth == 0 && p.hitHeight == 0 {
		return false
	}
	return x >= p.locationX && x < p.locationX+p.hitWidth &&
		y >= p.locationY && y < p.locationY+p.hitHeight
}

func (p *VideoPresenter) Tickle(now time.Time) (unregister bool) {
	run, unregister := p.advance(now, func() bool { return p.sub.Peek() != nil }, nil)
	if unregister || !run {
		return unregister
	}

	chunk := p.sub.Pop()
	if chunk == nil {
		return false
	}
	defer p.sub.Free(chunk)

	_ = p.display.Blit(p.locationX, p.locationY, p.displayZ, chunk.Data)

	if chunk.IsEndOfStream() {
		p.handleEndOfStream(now, p.loopCount, &p.remaining, p.rewind)
	}
	return false
}

// AudioPresenter fills an output buffer from wave/MIDI chunks, per
// spec.md §4.7's Audio specialization. Streaming→Streaming advances are
// driven by the same tick loop here rather than a device consumption
// callback — the callback itself lives in the device.Audio implementation
// the host wires in, which is free to pace writes however its backend
// requires.
type AudioPresenter struct {
	Core
	output     AudioOutput
	loopCount  int32
	remaining  int32
	sampleRate uint32
	rewind     func() error
}

func NewAudioPresenter(media action.MediaAction, subID int16, sub *subscriber.Subscriber, output AudioOutput, sampleRate uint32, bus *notify.Bus, busH notify.Handle, holdFor time.Duration, rewind func() error) *AudioPresenter {
	return &AudioPresenter{
		Core:       NewCore(media.Meta, subID, sub, bus, busH, holdFor),
		output:     output,
		loopCount:  media.LoopCount,
		remaining:  media.LoopCount,
		sampleRate: sampleRate,
		rewind:     rewind,
	}
}

func (p *AudioPresenter) Tickle(now time.Time) (unregister bool) {
	run, unregister := p.advance(now, func() bool { return p.sub.Peek() != nil }, nil)
	if unregister || !run {
		return unregister
	}

	chunk := p.sub.Pop()
	if chunk == nil {
		return false
	}
	defer p.sub.Free(chunk)

	_ = p.output.Write(chunk.Data, p.sampleRate)

	if chunk.IsEndOfStream() {
		p.handleEndOfStream(now, p.loopCount, &p.remaining, p.rewind)
	}
	return false
}

// AnimationPresenter writes decoded frames into a scene graph keyframe
// each tick, per spec.md §4.7's Animation specialization.
type AnimationPresenter struct {
	Core
	scene SceneOutput
}

func NewAnimationPresenter(media action.MediaAction, subID int16, sub *subscriber.Subscriber, scene SceneOutput, bus *notify.Bus, busH notify.Handle, holdFor time.Duration) *AnimationPresenter {
	return &AnimationPresenter{
		Core:  NewCore(media.Meta, subID, sub, bus, busH, holdFor),
		scene: scene,
	}
}

func (p *AnimationPresenter) Tickle(now time.Time) (unregister bool) {
	run, unregister := p.advance(now, func() bool { return p.sub.Peek() != nil }, nil)
	if unregister || !run {
		return unregister
	}

	chunk := p.sub.Pop()
	if chunk == nil {
		return false
	}
	defer p.sub.Free(chunk)

	_ = p.scene.WriteKeyframe(p.ObjectID(), chunk.Data)

	if chunk.IsEndOfStream() {
		p.enterFreezing(now)
	}
	return false
}

// ChildOrder selects how CompositePresenter pumps its children each tick,
// per spec.md §4.5's composite action kinds.
type ChildOrder int

const (
	// OrderSerial runs children one after another; Done fires when the
	// last child ends (SerialAction).
	OrderSerial ChildOrder = iota
	// OrderParallel runs children simultaneously; Done fires when all
	// children end (ParallelAction).
	OrderParallel
	// OrderSelect pumps only the single child chosen ahead of time by an
	// action.Predicate (SelectAction); the rest were already discarded by
	// the caller before construction.
	OrderSelect
)

// CompositePresenter owns child presenters and pumps them per its
// composite action's semantics, replacing the original's multiple
// inheritance with plain composition (spec.md §9).
type CompositePresenter struct {
	Core
	order    ChildOrder
	children []Presenter
	active   int // index of the currently running child, for OrderSerial/OrderSelect
}

func NewCompositePresenter(meta action.Meta, order ChildOrder, children []Presenter, bus *notify.Bus, busH notify.Handle) *CompositePresenter {
	return &CompositePresenter{
		Core:     NewCore(meta, 0, nil, bus, busH, 0),
		order:    order,
		children: children,
	}
}

func (p *CompositePresenter) Start() error {
	if err := p.Core.Start(); err != nil {
		return err
	}
	switch p.order {
	case OrderParallel:
		for _, c := range p.children {
			_ = c.Start()
		}
	default: // OrderSerial, OrderSelect: only the first/chosen child starts now
		if len(p.children) > 0 {
			_ = p.children[0].Start()
		}
	}
	return nil
}

func (p *CompositePresenter) Tickle(now time.Time) (unregister bool) {
	switch p.state {
	case Idle:
		return false
	case Ready, Starting:
		p.transition(p.state + 1)
		return false
	case Streaming, Repeating:
		// fall through to child pumping below
	case Freezing:
		p.transition(Done)
		p.emitEndAction()
		return false
	case Done:
		return true
	}

	switch p.order {
	case OrderParallel:
		allDone := true
		for _, c := range p.children {
			if c.State() != Done {
				c.Tickle(now)
				allDone = false
			}
		}
		if allDone {
			p.enterFreezing(now)
		}
	case OrderSerial, OrderSelect:
		if p.active >= len(p.children) {
			p.enterFreezing(now)
			return false
		}
		child := p.children[p.active]
		if child.State() == Done {
			p.active++
			if p.active < len(p.children) {
				_ = p.children[p.active].Start()
			} else {
				p.enterFreezing(now)
			}
			return false
		}
		child.Tickle(now)
	}
	return false
}

// ControlEventPresenter emits a notification as soon as its chunk fires,
// with no media output, per spec.md §4.7's Control/Event specialization.
type ControlEventPresenter struct {
	Core
}

func NewControlEventPresenter(meta action.Meta, subID int16, sub *subscriber.Subscriber, bus *notify.Bus, busH notify.Handle) *ControlEventPresenter {
	return &ControlEventPresenter{
		Core: NewCore(meta, subID, sub, bus, busH, 0),
	}
}

func (p *ControlEventPresenter) Tickle(now time.Time) (unregister bool) {
	run, unregister := p.advance(now, func() bool { return p.sub.Peek() != nil }, nil)
	if unregister || !run {
		return unregister
	}

	chunk := p.sub.Pop()
	if chunk == nil {
		return false
	}
	defer p.sub.Free(chunk)

	if p.hasBus {
		p.bus.Send(p.busH, notify.Notification{Kind: notify.KindControl, Sender: p.ObjectID()})
	}

	if chunk.IsEndOfStream() {
		p.transition(Done)
		p.emitEndAction()
	}
	return false
}
