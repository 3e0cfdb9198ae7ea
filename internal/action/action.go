// Package action implements the Action tree (spec.md §4.5) as a tagged sum
// type: one Go interface (Action) satisfied by a small set of concrete
// structs, instead of the original's virtual-dispatch class hierarchy —
// per spec.md §9's "composite action dispatch via virtual calls → tagged
// sum type" redesign note.
package action

import "time"

// Type enumerates the action kinds a container's MxOb objects deserialize
// into, mirroring MxDSObject::Type.
type Type int

const (
	TypeObject Type = iota
	TypeAction
	TypeMediaAction
	TypeAnim
	TypeSound
	TypeMultiAction
	TypeSerialAction
	TypeParallelAction
	TypeEvent
	TypeSelectAction
	TypeStill
	TypeObjectAction
)

func (t Type) String() string {
	switch t {
	case TypeObject:
		return "object"
	case TypeAction:
		return "action"
	case TypeMediaAction:
		return "media-action"
	case TypeAnim:
		return "anim"
	case TypeSound:
		return "sound"
	case TypeMultiAction:
		return "multi-action"
	case TypeSerialAction:
		return "serial-action"
	case TypeParallelAction:
		return "parallel-action"
	case TypeEvent:
		return "event"
	case TypeSelectAction:
		return "select-action"
	case TypeStill:
		return "still"
	case TypeObjectAction:
		return "object-action"
	default:
		return "unknown"
	}
}

// Flags are the per-action bits of note from spec.md §4.5.
type Flags uint16

const (
	FlagEnabled Flags = 1 << iota
	FlagLooping
	FlagWorld
	FlagBit3
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Meta holds the fields every action carries, matching MxDSObject's common
// base fields. Every concrete action type embeds Meta so it automatically
// satisfies the Action interface via method promotion.
type Meta struct {
	Type       Type
	ObjectID   uint32
	ObjectName string
	SourceName string
	AtomKey    string
	SizeOnDisk uint32
	Flags      Flags
}

// Info satisfies the Action interface.
func (m Meta) Info() Meta { return m }

// Action is the tagged-union interface every action kind implements.
type Action interface {
	Info() Meta
}

// MediaAction is a leaf action that streams to a presenter: Anim, Sound,
// Still, or a generic MediaAction. Keeping one struct for all of these
// (rather than a type per kind) mirrors how little they actually differ at
// the data-model level — Meta.Type distinguishes them, and presenter
// selection switches on it, the same way MxDSObject::Type drives dispatch
// in the original.
type MediaAction struct {
	Meta
	Duration  time.Duration
	LoopCount int32 // 0 means infinite, per spec.md §4.5
	LocationX int32
	LocationY int32
	DisplayZ  int32
}

// Infinite reports whether this action loops forever.
func (m MediaAction) Infinite() bool { return m.LoopCount == 0 }

// CompositeAction groups children under Serial, Parallel, or Multi
// semantics (Meta.Type distinguishes which). Done-propagation rules differ
// per kind and live in the presenter that drives a composite, not here.
type CompositeAction struct {
	Meta
	Children []Action
}

// Predicate chooses which child of a SelectAction runs, returning its
// index, or -1 if none should. The default implementation resolves
// against a variable table (internal/variable); callers may supply any
// other policy (random, scripted).
type Predicate func() int

// SelectAction picks exactly one child via Predicate; the rest are
// discarded for that activation.
type SelectAction struct {
	Meta
	Children  []Action
	Predicate Predicate
}

// EventAction fires a notification as soon as its chunk arrives; it has no
// media output (spec.md §4.7's Control/Event presenter).
type EventAction struct {
	Meta
}
