// Package safemap provides a generic concurrent map. The controller
// registry's shards are built on it, so that lookups and inserts off the
// cooperative tick thread never need their own ad-hoc mutex.
package safemap

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Map is a thread-safe map keyed by any comparable type.
type Map[K comparable, V any] struct {
	internal *xsync.MapOf[K, V]
}

// New creates an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{internal: xsync.NewMapOf[K, V]()}
}

// Set stores value under key, overwriting any existing entry.
func (m *Map[K, V]) Set(key K, value V) {
	m.internal.Store(key, value)
}

// Get returns the value stored under key, if any.
func (m *Map[K, V]) Get(key K) (V, bool) {
	return m.internal.Load(key)
}

// GetOrSet returns the existing value for key, or stores and returns value
// if key was absent. loaded reports which happened.
func (m *Map[K, V]) GetOrSet(key K, value V) (actual V, loaded bool) {
	return m.internal.LoadOrStore(key, value)
}

// GetOrCompute returns the existing value for key, or computes, stores and
// returns a new one via valueFn if key was absent.
func (m *Map[K, V]) GetOrCompute(key K, valueFn func() V) (actual V, loaded bool) {
	return m.internal.LoadOrCompute(key, valueFn)
}

// Compute atomically updates (or deletes) the entry for key.
func (m *Map[K, V]) Compute(key K, fn func(oldValue V, loaded bool) (newValue V, del bool)) (actual V, ok bool) {
	return m.internal.Compute(key, fn)
}

// Del removes key from the map, returning the value it held if present.
func (m *Map[K, V]) Del(key K) (V, bool) {
	return m.internal.LoadAndDelete(key)
}

// Len returns the number of entries currently stored.
func (m *Map[K, V]) Len() int {
	return m.internal.Size()
}

// Range calls fn for every entry until fn returns false.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	m.internal.Range(fn)
}
