package controller

import (
	"github.com/cespare/xxhash/v2"

	"github.com/omni-engine/omni/internal/atom"
	"github.com/omni-engine/omni/internal/logging"
	"github.com/omni-engine/omni/internal/notify"
	"github.com/omni-engine/omni/internal/provider"
	"github.com/omni-engine/omni/internal/safemap"
)

const shardCount = 16

// Registry keeps one Controller per open atom, sharded by a hash of the
// atom key so lookups off the cooperative tick thread never contend with
// each other — grounded on the teacher's ShardedStreamMap
// (source_processor/shards.go), keyed here by atom string rather than stream id.
type Registry struct {
	shards [shardCount]*safemap.Map[string, *Controller]
	atoms  *atom.Table
	bus    *notify.Bus
	log    logging.Logger
}

// NewRegistry creates an empty registry. atoms interns every opened
// source name; bus is wired into every controller it opens so
// start_action/end_action can emit notifications.
func NewRegistry(atoms *atom.Table, bus *notify.Bus, log logging.Logger) *Registry {
	r := &Registry{atoms: atoms, bus: bus, log: log}
	for i := range r.shards {
		r.shards[i] = safemap.New[string, *Controller]()
	}
	return r
}

func (r *Registry) shardFor(key string) *safemap.Map[string, *Controller] {
	h := xxhash.Sum64String(key)
	return r.shards[h%uint64(len(r.shards))]
}

// Open returns the controller already open for sourceName's atom, or
// opens a new one via newProvider (the RAM-vs-Disk policy decision,
// spec.md §4.9). When multiple callers race to open the same atom, the
// first one through wins — spec.md §4.3's controller tie-break — and
// later callers get that controller back instead of opening a second
// provider on the same source.
func (r *Registry) Open(sourceName string, newProvider func() provider.Provider, busH notify.Handle) (*Controller, error) {
	id, err := r.atoms.Intern(sourceName, atom.Exact)
	if err != nil {
		return nil, err
	}

	shard := r.shardFor(id.Key())
	if existing, ok := shard.Get(id.Key()); ok {
		r.atoms.Release(id)
		return existing, nil
	}

	c := newController(id, r.bus, busH, r.log)
	if err := c.open(sourceName, newProvider); err != nil {
		r.atoms.Release(id)
		return nil, err
	}

	actual, loaded := shard.GetOrSet(id.Key(), c)
	if loaded {
		c.close()
		r.atoms.Release(id)
	}
	return actual, nil
}

// Lookup returns the controller open for sourceName's atom, if any,
// without opening one.
func (r *Registry) Lookup(sourceName string) (*Controller, bool) {
	return r.shardFor(sourceName).Get(sourceName)
}

// Close shuts down and forgets the controller open for sourceName, if
// any.
func (r *Registry) Close(sourceName string) {
	shard := r.shardFor(sourceName)
	if c, ok := shard.Del(sourceName); ok {
		c.close()
		r.atoms.Release(c.atomID)
	}
}

// Range calls fn for every open controller until fn returns false.
// Used by the coordinator's housekeeping job to find controllers with no
// remaining subscribers.
func (r *Registry) Range(fn func(sourceName string, c *Controller) bool) {
	for _, shard := range r.shards {
		keepGoing := true
		shard.Range(func(key string, c *Controller) bool {
			keepGoing = fn(key, c)
			return keepGoing
		})
		if !keepGoing {
			return
		}
	}
}
