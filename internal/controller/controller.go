// Package controller implements the Stream Controller (spec.md §4.3): one
// instance per open atom, decoding a container's directory and routing
// chunks to the subscribers registered against it. The chunk routing/
// delivery loop is adapted from the teacher's
// proxy/stream/buffer/coordinator.go Write/ReadChunks swap-and-reset
// discipline, re-keyed from "one ring per stream" to "one controller per
// atom, routed by object_id to every matching subscriber".
package controller

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/omni-engine/omni/internal/action"
	"github.com/omni-engine/omni/internal/atom"
	"github.com/omni-engine/omni/internal/bufpool"
	"github.com/omni-engine/omni/internal/container"
	"github.com/omni-engine/omni/internal/logging"
	"github.com/omni-engine/omni/internal/notify"
	"github.com/omni-engine/omni/internal/omnibuf"
	"github.com/omni-engine/omni/internal/provider"
	"github.com/omni-engine/omni/internal/subscriber"
)

// ErrAlreadyOpen is returned by open when the controller already owns a
// provider.
var ErrAlreadyOpen = errors.New("controller: already open")

// inProgressAction is one entry in the controller's in_progress list
// (spec.md §4.3).
type inProgressAction struct {
	act         action.Action
	correlation uuid.UUID
	endOfStream bool
}

// splitHalf holds the first fragment of a two-part split chunk awaiting
// its continuation (spec.md §4.3 step 2). The container format carries no
// sub_id, so reassembly keys on object_id alone — the only axis the wire
// format exposes.
type splitHalf struct {
	data  []byte
	flags uint16
	time  int32
}

// Controller owns one provider for one open atom: it decodes the
// container's directory in file order, pacing delivery against its own
// opened-at clock, and fans chunks out to every subscriber whose
// object_id matches.
type Controller struct {
	atomID  atom.ID
	bus     *notify.Bus
	busH    notify.Handle
	log     logging.Logger

	prov      provider.Provider
	dir       *container.Directory
	openedAt  time.Time
	nextChunk int

	subs    []*subscriber.Subscriber // registration order, tie-break per spec.md §4.3
	inProg  map[uint32]*inProgressAction
	splits  map[uint32]*splitHalf
}

func newController(id atom.ID, bus *notify.Bus, busH notify.Handle, log logging.Logger) *Controller {
	return &Controller{
		atomID: id,
		bus:    bus,
		busH:   busH,
		log:    log,
		inProg: make(map[uint32]*inProgressAction),
		splits: make(map[uint32]*splitHalf),
	}
}

// AtomKey returns the atom this controller was opened against.
func (c *Controller) AtomKey() string { return c.atomID.Key() }

// open creates a provider via newProvider (the caller's RAM-vs-Disk policy
// decision, spec.md §4.9), opens sourceName on it, and starts the
// controller's playback clock.
func (c *Controller) open(sourceName string, newProvider func() provider.Provider) error {
	if c.prov != nil {
		return ErrAlreadyOpen
	}
	prov := newProvider()
	if err := prov.Open(sourceName); err != nil {
		return fmt.Errorf("controller: opening %q: %w", sourceName, err)
	}
	c.prov = prov
	c.dir = prov.Directory()
	c.openedAt = time.Now()
	return nil
}

func (c *Controller) close() {
	if c.prov != nil {
		_ = c.prov.Close()
	}
	for _, s := range c.subs {
		s.DestroyAll()
	}
}

// StartAction clones act into in_progress and assigns it a correlation id,
// matching spec.md §4.3's start_action. It emits a KindStartAction
// notification so world clients observing the bus learn playback began.
func (c *Controller) StartAction(act action.Action) uuid.UUID {
	meta := act.Info()
	id := uuid.New()
	c.inProg[meta.ObjectID] = &inProgressAction{act: act, correlation: id}

	if c.bus != nil {
		c.bus.Send(c.busH, notify.Notification{
			Kind:   notify.KindStartAction,
			Sender: meta.ObjectID,
			Param:  id,
		})
	}
	return id
}

// EndAction removes objectID from in_progress and emits the end-action
// notification, matching spec.md §4.3's end_action. Callers invoke it
// directly (omni.Coordinator.DeleteObject, or a host once it sees the
// corresponding presenter reach presenter.Done) — the controller itself
// has no visibility into presenter state.
func (c *Controller) EndAction(objectID uint32) {
	delete(c.inProg, objectID)
	delete(c.splits, objectID)
	if c.bus != nil {
		c.bus.Send(c.busH, notify.Notification{
			Kind:   notify.KindEndAction,
			Sender: objectID,
		})
	}
}

// HasSeenEndOfStream reports whether a chunk carrying EndOfStream has been
// routed for objectID's in-progress action.
func (c *Controller) HasSeenEndOfStream(objectID uint32) bool {
	ip, ok := c.inProg[objectID]
	return ok && ip.endOfStream
}

// HasInProgress reports whether objectID is currently in this controller's
// in_progress list, consulted by the coordinator's does_entity_exist.
func (c *Controller) HasInProgress(objectID uint32) bool {
	_, ok := c.inProg[objectID]
	return ok
}

// NextActionDataStart looks up the byte offset of the next not-yet-routed
// chunk belonging to objectID, matching spec.md §4.3's
// next_action_data_start. It returns ok=false once no further chunk for
// objectID remains ahead of the controller's read cursor.
func (c *Controller) NextActionDataStart(objectID uint32) (offset int, ok bool) {
	if c.dir == nil {
		return 0, false
	}
	for i := c.nextChunk; i < len(c.dir.Chunks); i++ {
		if c.dir.Chunks[i].ObjectID == objectID {
			return c.dir.Chunks[i].Offset, true
		}
	}
	return 0, false
}

// AddSubscriber registers sub, appending it to registration order —
// the order chunk routing's tie-break (spec.md §4.3) delivers in.
func (c *Controller) AddSubscriber(sub *subscriber.Subscriber) {
	c.subs = append(c.subs, sub)
}

// RemoveSubscriber drops sub from the registry. It does not touch
// whatever chunks sub already holds; the caller is expected to have
// drained or DestroyAll'd it first.
func (c *Controller) RemoveSubscriber(sub *subscriber.Subscriber) {
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// SubscriberCount reports how many subscribers are currently registered,
// consulted by the coordinator's housekeeping job to reap idle
// controllers (spec.md §4.9's domain-stack addition).
func (c *Controller) SubscriberCount() int { return len(c.subs) }

// Tickle pulls and routes every chunk that is due as of now, stopping
// once the next chunk in file order isn't due yet or the directory is
// exhausted — spec.md §4.3's tickle contract. It satisfies
// internal/tickle.Client; the bool return is always false, since a
// controller's lifetime is governed by the registry, not the scheduler.
func (c *Controller) Tickle(now time.Time) (unregister bool) {
	if c.dir == nil {
		return false
	}
	for c.nextChunk < len(c.dir.Chunks) {
		entry := c.dir.Chunks[c.nextChunk]
		if now.Sub(c.openedAt) < time.Duration(entry.Time)*time.Millisecond {
			return false // next chunk isn't due yet
		}

		chunk, err := c.readChunk(entry)
		if err != nil {
			if errors.Is(err, provider.ErrCannotRead) || errors.Is(err, bufpool.ErrPoolExhausted) {
				// abort this pass; cursor stays put for a retry next tick.
				c.log.Warnf("controller %s: read failed at offset %d: %v", c.atomID.Key(), entry.Offset, err)
				return false
			}
			c.log.Errorf("controller %s: dropping unreadable chunk at offset %d: %v", c.atomID.Key(), entry.Offset, err)
			c.nextChunk++
			continue
		}

		c.nextChunk++
		c.route(entry.ObjectID, chunk)
	}
	return false
}

// readChunk seeks the provider to entry's envelope and reads its exact
// on-wire size.
func (c *Controller) readChunk(entry container.ChunkEntry) (*omnibuf.Chunk, error) {
	total := 8 + 16 + int(entry.Length)
	if entry.Length%2 == 1 {
		total++
	}

	if _, err := c.prov.Seek(int64(entry.Offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrCannotRead, err)
	}
	raw := make([]byte, total)
	if _, err := io.ReadFull(c.prov, raw); err != nil {
		if errors.Is(err, bufpool.ErrPoolExhausted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", provider.ErrCannotRead, err)
	}

	buf := omnibuf.NewChunkBuffer(raw)
	return omnibuf.ReadChunk(buf)
}

// LoadActions decodes every action-tree object this controller's directory
// located, via action.Parse, in file order. Call after open (the
// coordinator does this right after Registry.Open succeeds) — this is
// spec.md §4.5's "actions are created by parsing a typed header in a
// buffer" entry point, as an alternative to a caller constructing an
// action.Action by hand.
func (c *Controller) LoadActions() ([]action.Action, error) {
	if c.dir == nil {
		return nil, fmt.Errorf("controller %s: not open", c.atomID.Key())
	}

	actions := make([]action.Action, 0, len(c.dir.Objects))
	for _, entry := range c.dir.Objects {
		act, err := c.readObject(entry)
		if err != nil {
			return nil, fmt.Errorf("controller %s: decoding object at offset %d: %w", c.atomID.Key(), entry.Offset, err)
		}
		actions = append(actions, act)
	}
	return actions, nil
}

// readObject seeks the provider to entry's MxOb envelope, reads its exact
// on-wire size, and decodes the payload via action.Parse.
func (c *Controller) readObject(entry container.ObjectEntry) (action.Action, error) {
	total := 8 + int(entry.Length)
	if entry.Length%2 == 1 {
		total++
	}

	if _, err := c.prov.Seek(int64(entry.Offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrCannotRead, err)
	}
	raw := make([]byte, total)
	if _, err := io.ReadFull(c.prov, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrCannotRead, err)
	}
	if string(raw[0:4]) != "MxOb" {
		return nil, fmt.Errorf("object at offset %d missing MxOb magic", entry.Offset)
	}

	payload := raw[8 : 8+entry.Length]
	buf := omnibuf.NewChunkBuffer(payload)
	return action.Parse(buf)
}

// route implements spec.md §4.3's chunk routing algorithm steps 2-5, given
// a chunk already read off the provider (step 1, the header peek, is
// folded into the directory entry already on hand).
func (c *Controller) route(objectID uint32, chunk *omnibuf.Chunk) {
	if chunk.IsSplit() {
		c.routeSplit(objectID, chunk)
		return
	}
	c.deliver(objectID, chunk)
}

func (c *Controller) routeSplit(objectID uint32, chunk *omnibuf.Chunk) {
	defer chunk.Release()

	first, pending := c.splits[objectID]
	if !pending {
		// first half: stash a private copy, since chunk.Data aliases the
		// provider's read buffer, which the caller is free to reuse.
		stash := append([]byte(nil), chunk.Data...)
		c.splits[objectID] = &splitHalf{data: stash, flags: chunk.Flags, time: chunk.Time}
		return
	}

	// second half completes the pair; surface as one chunk. Reassembled
	// through Buffer.Append, sized exactly to the known total so the
	// append can never silently grow past what this pair actually needs.
	delete(c.splits, objectID)
	merge := omnibuf.AllocateCapacity(len(first.data) + len(chunk.Data))
	defer merge.ReleaseRef()
	if err := merge.Append(first.data); err != nil {
		c.log.Errorf("controller %s: reassembling split chunk for object %d: %v", c.atomID.Key(), objectID, err)
		return
	}
	if err := merge.Append(chunk.Data); err != nil {
		c.log.Errorf("controller %s: reassembling split chunk for object %d: %v", c.atomID.Key(), objectID, err)
		return
	}
	flags := (first.flags | chunk.Flags) &^ omnibuf.FlagSplit

	wire := omnibuf.EncodeChunk(flags, objectID, first.time, merge.Bytes())
	buf := omnibuf.NewChunkBuffer(wire)
	combined, err := omnibuf.ReadChunk(buf)
	if err != nil {
		c.log.Errorf("controller %s: reassembling split chunk for object %d: %v", c.atomID.Key(), objectID, err)
		return
	}
	c.deliver(objectID, combined)
}

// deliverPriority is the flag this controller treats as "prepend rather
// than append to pending" (spec.md §4.3 step 4's "per flag"): the
// high reserved bit original_source leaves unclassified, repurposed here
// as an explicit out-of-band/priority marker.
const deliverPriority = omnibuf.FlagBit16

func (c *Controller) deliver(objectID uint32, chunk *omnibuf.Chunk) {
	var matched []*subscriber.Subscriber
	for _, s := range c.subs {
		if s.Matches(objectID) {
			matched = append(matched, s)
		}
	}

	if len(matched) == 0 {
		c.log.Warnf("controller %s: dropping chunk for object %d, no subscriber", c.atomID.Key(), objectID)
		chunk.Release()
	} else {
		appendMode := chunk.Flags&deliverPriority == 0
		for i, s := range matched {
			view := chunk
			if i > 0 {
				view = chunk.Clone()
			}
			s.Add(view, appendMode)
		}
	}

	if chunk.IsEndOfStream() {
		if ip, ok := c.inProg[objectID]; ok {
			ip.endOfStream = true
		}
	}
}
