// Package presenter implements the Presenter state machine (spec.md
// §4.7): a seven-state tickle lifecycle shared by every media
// specialization, with an O(1) history bitset, ported from
// original_source's MxPresenter::TickleState / m_previousTickleStates
// idiom. Multiple inheritance across Core/Presenter/Mediums (§9's
// redesign note) becomes composition here: one Core embedded in each
// specialization, plus a capability interface per output family
// (VideoOutput/AudioOutput/SceneOutput) instead of a deep class tree.
package presenter

import (
	"fmt"
	"time"

	"github.com/omni-engine/omni/internal/action"
	"github.com/omni-engine/omni/internal/notify"
	"github.com/omni-engine/omni/internal/subscriber"
)

// State is the presenter's tickle lifecycle stage, matching
// MxPresenter::TickleState.
type State int

const (
	Idle State = iota
	Ready
	Starting
	Streaming
	Repeating
	Freezing
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Starting:
		return "starting"
	case Streaming:
		return "streaming"
	case Repeating:
		return "repeating"
	case Freezing:
		return "freezing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// history is a bitset over State values, giving HasStatePassed O(1) cost —
// a direct port of m_previousTickleStates.
type history uint8

func (h *history) mark(s State) { *h |= 1 << uint(s) }
func (h history) has(s State) bool {
	return h&(1<<uint(s)) != 0
}

// Presenter is the capability every specialization implements: the
// tickle-state machine surface spec.md §4.7 and §9's "Presenter
// capability trait (name-type-name, is-a, tickle, start, end, is-hit)"
// describe.
type Presenter interface {
	ObjectID() uint32
	SubID() int16
	State() State
	HasStatePassed(s State) bool
	Start() error
	End()
	// Tickle advances the state machine by one scheduler period. It
	// satisfies internal/tickle.Client; the bool return is the
	// unregister-me sentinel, raised once the presenter reaches Done.
	Tickle(now time.Time) (unregister bool)
	IsHit(x, y int32) bool
}

// VideoOutput is the capability a video/animation presenter's display
// family needs.
type VideoOutput interface {
	Blit(x, y, z int32, frame []byte) error
}

// AudioOutput is the capability an audio presenter's output family needs.
type AudioOutput interface {
	Write(samples []byte, sampleRate uint32) error
}

// SceneOutput is the capability an animation presenter writing into a
// scene graph needs.
type SceneOutput interface {
	WriteKeyframe(objectID uint32, frame []byte) error
}

// Core holds the state every specialization shares: tickle state,
// history, the driving subscriber, and the notification bus used to emit
// EndAction. Specializations embed Core and implement the per-tick media
// behavior on top of it.
type Core struct {
	meta   action.Meta
	subID  int16
	state  State
	hist   history
	sub    *subscriber.Subscriber
	bus    *notify.Bus
	busH   notify.Handle
	hasBus bool

	holdUntil   time.Time // Freezing state exit condition
	holdFor     time.Duration
	repeatCount int // number of times Repeating has been entered
}

// NewCore wires a Core for meta's action, driven by sub, optionally
// emitting EndAction through bus (busH is ignored if bus is nil).
func NewCore(meta action.Meta, subID int16, sub *subscriber.Subscriber, bus *notify.Bus, busH notify.Handle, holdFor time.Duration) Core {
	return Core{
		meta:    meta,
		subID:   subID,
		state:   Idle,
		sub:     sub,
		bus:     bus,
		busH:    busH,
		hasBus:  bus != nil,
		holdFor: holdFor,
	}
}

func (c *Core) ObjectID() uint32 { return c.meta.ObjectID }
func (c *Core) SubID() int16     { return c.subID }
func (c *Core) State() State     { return c.state }

func (c *Core) HasStatePassed(s State) bool { return c.hist.has(s) }

// RepeatCount reports how many times this presenter has entered
// Repeating over its lifetime — the rewind-visit count scenario S2 checks,
// exposed explicitly because Repeating may be passed through within a
// single tick (rewind completing synchronously) rather than persisting
// as the observed state across a Tickle boundary.
func (c *Core) RepeatCount() int { return c.repeatCount }

// transition records the outgoing state in history and moves to next,
// matching ProgressTickleState.
func (c *Core) transition(next State) {
	c.hist.mark(c.state)
	c.state = next
}

// Start moves Idle→Ready, clearing history (spec.md §4.7's Idle entry
// action). It is an error to Start a presenter not in Idle.
func (c *Core) Start() error {
	if c.state != Idle {
		return fmt.Errorf("presenter: Start called in state %s, want %s", c.state, Idle)
	}
	c.hist = 0
	c.state = Ready
	return nil
}

// End forces a transition to Done and emits EndAction, matching
// MxPresenter::EndAction's "notifies listeners and resets state."
func (c *Core) End() {
	if c.state == Done {
		return
	}
	c.transition(Done)
	c.emitEndAction()
}

func (c *Core) emitEndAction() {
	if !c.hasBus {
		return
	}
	c.bus.Send(c.busH, notify.Notification{
		Kind:   notify.KindEndAction,
		Sender: c.meta.ObjectID,
	})
}

// IsHit is the default hit-test: never hit, per spec.md §4.7. Specializations
// with clickable geometry override it.
func (c *Core) IsHit(x, y int32) bool { return false }

// advance runs the shared Ready/Starting/Freezing/Done legs of the state
// machine (the legs that don't differ by media kind) and reports whether
// the specialization's Streaming/Repeating leg should run this tick.
// readyToStart and codecReady let a specialization gate the Ready→Starting
// and Starting→Streaming transitions on its own preconditions (e.g.
// "first chunk headers seen", "decoder initialized"); nil means "always
// ready", matching the base class's unconditional ProgressTickleState.
func (c *Core) advance(now time.Time, readyToStart, codecReady func() bool) (runMediaTick bool, unregister bool) {
	switch c.state {
	case Idle:
		return false, false
	case Ready:
		if readyToStart == nil || readyToStart() {
			c.transition(Starting)
		}
		return false, false
	case Starting:
		if codecReady == nil || codecReady() {
			c.transition(Streaming)
		}
		return false, false
	case Streaming, Repeating:
		return true, false
	case Freezing:
		if now.After(c.holdUntil) || now.Equal(c.holdUntil) {
			c.transition(Done)
			c.emitEndAction()
		}
		return false, false
	case Done:
		return false, true
	default:
		return false, false
	}
}

// enterFreezing transitions Streaming/Repeating→Freezing and starts the
// hold timer, matching "hold last frame / silence" (spec.md §4.7).
func (c *Core) enterFreezing(now time.Time) {
	c.transition(Freezing)
	c.holdUntil = now.Add(c.holdFor)
}

// handleEndOfStream implements the shared Streaming→Repeating looping leg
// (spec.md §4.5/§4.7): loopCount==0 means loop forever; otherwise
// remaining tracks plays left, decrementing once per EndOfStream and
// rewinding via rewind until exhausted, at which point the presenter
// freezes. It always passes through Repeating at least once per loop,
// matching scenario S2's "Repeating state visited at least loopCount
// times."
func (c *Core) handleEndOfStream(now time.Time, loopCount int32, remaining *int32, rewind func() error) {
	c.transition(Repeating)
	c.repeatCount++

	infinite := loopCount == 0
	if !infinite {
		*remaining--
	}

	if infinite || *remaining > 0 {
		if rewind == nil {
			c.transition(Streaming)
			return
		}
		// A failed rewind degrades to ending the loop early rather than
		// retrying forever, per spec.md §7's "engine degrades rather than
		// crashes."
		if err := rewind(); err == nil {
			c.transition(Streaming)
			return
		}
	}

	c.enterFreezing(now)
}
