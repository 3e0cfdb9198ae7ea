// Package omni implements the Omni Coordinator (spec.md §4.9): the
// process-wide object that wires together the atom table, the variable
// table, the notification bus, the controller registry, and the
// cooperative scheduler into the engine's single entry point for
// starting, tracking, and tearing down actions.
package omni

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omni-engine/omni/internal/action"
	"github.com/omni-engine/omni/internal/atom"
	"github.com/omni-engine/omni/internal/bufpool"
	"github.com/omni-engine/omni/internal/container"
	"github.com/omni-engine/omni/internal/controller"
	"github.com/omni-engine/omni/internal/logging"
	"github.com/omni-engine/omni/internal/notify"
	"github.com/omni-engine/omni/internal/provider"
	"github.com/omni-engine/omni/internal/tickle"
	"github.com/omni-engine/omni/internal/variable"
)

// TickPeriod is the default period controllers and the notification bus
// are scheduled at, matching the ~30Hz pacing internal/presenter's tests
// assume for frame-driven media.
const TickPeriod = 33 * time.Millisecond

// ramResidentThreshold is the size below which Start opens a source
// through the RAM provider rather than the Disk provider — a concrete
// resolution of spec.md §4.9's "RAM vs Disk choice based on action.flags":
// original_source keeps small, frequently reused resources memory-resident
// (MxDSObject::AddToCache paths) and only streams large media sequentially
// from disk, so size rather than a dedicated flag bit drives the choice
// here. An action with SizeOnDisk left at zero (unknown) defaults to RAM.
const ramResidentThreshold = 8 << 20 // 8 MiB

// Coordinator is the single process-wide instance described by spec.md
// §4.9: it owns the scheduler, the atom table, the variable table, the
// notification bus, and the controller registry, and exposes the
// engine's start/delete/exists/pause surface.
type Coordinator struct {
	Scheduler *tickle.Scheduler
	Atoms     *atom.Table
	Variables *variable.Table
	Bus       *notify.Bus
	Registry  *controller.Registry

	pools *bufpool.Pools
	log   logging.Logger
	dirs  *container.DirectoryCache // optional; nil means every Open parses fresh

	busHandle notify.Handle

	mu      sync.Mutex
	tickled map[string]tickle.Handle // atom key -> scheduler registration

	housekeeping *cron.Cron

	paused atomic.Bool
}

// New wires a Coordinator. listener is registered with the notification
// bus once and its handle is threaded through every controller the
// coordinator opens — the bus is built for point-to-point
// delivery (spec.md §4.8), so a single well-known recipient is how a host
// application observes everything the engine reports.
func New(log logging.Logger, listener notify.Listener) (*Coordinator, error) {
	atoms, err := atom.NewTable()
	if err != nil {
		return nil, fmt.Errorf("omni: initializing atom table: %w", err)
	}
	vars, err := variable.New()
	if err != nil {
		return nil, fmt.Errorf("omni: initializing variable table: %w", err)
	}

	bus := notify.New()
	busH := bus.Register(listener)

	scheduler := tickle.New()
	registry := controller.NewRegistry(atoms, bus, log)

	co := &Coordinator{
		Scheduler: scheduler,
		Atoms:     atoms,
		Variables: vars,
		Bus:       bus,
		Registry:  registry,
		pools:     bufpool.NewDefault(),
		log:       log,
		busHandle: busH,
		tickled:   make(map[string]tickle.Handle),
	}

	scheduler.Register(bus, TickPeriod, time.Now())
	return co, nil
}

// SetDirectoryCache attaches a shared header-directory cache (spec.md
// §4.2) that every provider this coordinator opens from now on will
// consult before parsing a container's RIFF structure. Passing nil (the
// default) makes every Open parse fresh, which is always correct — the
// cache is strictly an optimization.
func (co *Coordinator) SetDirectoryCache(c *container.DirectoryCache) { co.dirs = c }

// providerFactory decides RAM vs Disk for meta, per ramResidentThreshold,
// and attaches the coordinator's shared directory cache, if any.
func (co *Coordinator) providerFactory(meta action.Meta) func() provider.Provider {
	if meta.SizeOnDisk != 0 && meta.SizeOnDisk >= ramResidentThreshold {
		return func() provider.Provider {
			p := provider.NewDiskProvider(co.pools, 10*time.Millisecond, 500*time.Millisecond, 3)
			p.SetCache(co.dirs)
			return p
		}
	}
	return func() provider.Provider {
		p := provider.NewRAMProvider()
		p.SetCache(co.dirs)
		return p
	}
}

// Start opens (or reuses) the controller for act's source, registering it
// with the scheduler on first use, and calls start_action on it —
// spec.md §4.9's start(action). Use this when the caller already has an
// action.Action in hand (e.g. one built by StartContainer, or supplied by a
// host that keeps its own object metadata outside any container).
func (co *Coordinator) Start(act action.Action, now time.Time) (*controller.Controller, error) {
	meta := act.Info()
	if meta.SourceName == "" {
		return nil, fmt.Errorf("omni: action %d has no source name", meta.ObjectID)
	}

	c, err := co.Registry.Open(meta.SourceName, co.providerFactory(meta), co.busHandle)
	if err != nil {
		return nil, fmt.Errorf("omni: starting object %d: %w", meta.ObjectID, err)
	}

	co.scheduleOnce(c, now)
	c.StartAction(act)
	return c, nil
}

// StartContainer opens sourceName, decodes every action-tree object its
// directory locates via action.Parse, and calls start_action for each in
// file order — spec.md §4.5's "actions are created by parsing a typed
// header in a buffer" entry point, driven entirely off container bytes
// rather than a caller-constructed Action.
func (co *Coordinator) StartContainer(sourceName string, now time.Time) ([]action.Action, *controller.Controller, error) {
	newProvider := func() provider.Provider {
		if info, err := os.Stat(sourceName); err == nil && uint32(info.Size()) >= ramResidentThreshold {
			p := provider.NewDiskProvider(co.pools, 10*time.Millisecond, 500*time.Millisecond, 3)
			p.SetCache(co.dirs)
			return p
		}
		p := provider.NewRAMProvider()
		p.SetCache(co.dirs)
		return p
	}

	c, err := co.Registry.Open(sourceName, newProvider, co.busHandle)
	if err != nil {
		return nil, nil, fmt.Errorf("omni: opening container %q: %w", sourceName, err)
	}

	actions, err := c.LoadActions()
	if err != nil {
		return nil, c, fmt.Errorf("omni: parsing actions in %q: %w", sourceName, err)
	}

	co.scheduleOnce(c, now)
	for _, act := range actions {
		c.StartAction(act)
	}
	return actions, c, nil
}

// scheduleOnce registers c with the scheduler the first time any caller
// starts an action against its atom; later calls for the same atom are
// no-ops, so repeated Start/StartContainer calls against one source never
// double-register its controller.
func (co *Coordinator) scheduleOnce(c *controller.Controller, now time.Time) {
	co.mu.Lock()
	defer co.mu.Unlock()
	if _, already := co.tickled[c.AtomKey()]; !already {
		h := co.Scheduler.Register(c, TickPeriod, now)
		co.tickled[c.AtomKey()] = h
	}
}

// DeleteObject unregisters act from every open controller and notifies
// world clients that it is gone — spec.md §4.9's delete_object(action). A
// controller that never saw this object simply no-ops, so it is safe to
// sweep every controller rather than track which one owns which object.
func (co *Coordinator) DeleteObject(act action.Action) {
	objectID := act.Info().ObjectID
	co.Registry.Range(func(_ string, c *controller.Controller) bool {
		if c.HasInProgress(objectID) {
			c.EndAction(objectID)
		}
		return true
	})
}

// DoesEntityExist reports whether objectID is currently in progress on any
// open controller — spec.md §4.9's does_entity_exist(action).
func (co *Coordinator) DoesEntityExist(objectID uint32) bool {
	found := false
	co.Registry.Range(func(_ string, c *controller.Controller) bool {
		if c.HasInProgress(objectID) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Pause sets the paused flag. The scheduler keeps ticking regardless —
// spec.md §4.9 pauses playback, not the cooperative loop itself — so
// presenters and other clients that must freeze while paused consult
// IsPaused themselves rather than being forcibly stopped here.
func (co *Coordinator) Pause() { co.paused.Store(true) }

// Resume clears the paused flag.
func (co *Coordinator) Resume() { co.paused.Store(false) }

// IsPaused reports the current paused state.
func (co *Coordinator) IsPaused() bool { return co.paused.Load() }

// Tick runs one scheduler pass, driving every registered controller and
// the notification bus's drain.
func (co *Coordinator) Tick(now time.Time) { co.Scheduler.Pass(now) }

// StartHousekeeping schedules a recurring reap of controllers with no
// remaining subscribers, per spec's domain-stack addition (this is not a
// tickle-scheduler duty: it runs on its own wall-clock cadence rather than
// the frame-paced cooperative loop, so a cron expression rather than a
// tickle period drives it). schedule is a standard 5-field cron
// expression, e.g. "*/1 * * * *" for once a minute.
func (co *Coordinator) StartHousekeeping(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, co.reapIdleControllers); err != nil {
		return fmt.Errorf("omni: scheduling housekeeping: %w", err)
	}
	c.Start()
	co.housekeeping = c
	return nil
}

func (co *Coordinator) reapIdleControllers() {
	var idle []string
	co.Registry.Range(func(key string, c *controller.Controller) bool {
		if c.SubscriberCount() == 0 {
			idle = append(idle, key)
		}
		return true
	})

	for _, key := range idle {
		co.Registry.Close(key)
		co.mu.Lock()
		if h, ok := co.tickled[key]; ok {
			co.Scheduler.Unregister(h)
			delete(co.tickled, key)
		}
		co.mu.Unlock()
		co.log.Infof("omni: reaped idle controller %s", key)
	}
}

// Stop halts the housekeeping cron job, if one was started. It does not
// touch the cooperative scheduler, which the caller drives explicitly via
// Tick.
func (co *Coordinator) Stop() {
	if co.housekeeping != nil {
		co.housekeeping.Stop()
	}
}
