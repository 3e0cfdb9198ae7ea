// Package atom implements string interning (spec.md glossary: Atom),
// matching MxAtom/MxAtomId: a process-wide set of unique, refcounted
// strings so engine components compare identifiers by reference instead
// of repeated string comparisons.
//
// The original keeps a single global std::set<MxAtom*>; here a
// hashicorp/go-memdb table gives the same unique-key set with indexed
// lookup, consistent with internal/variable's use of the same library for
// the coordinator's other named table.
package atom

import (
	"fmt"
	"strings"
	"sync"

	memdb "github.com/hashicorp/go-memdb"
)

// LookupMode controls case normalization applied before interning or
// comparing a string, matching MxAtom::LookupMode.
type LookupMode int

const (
	Exact LookupMode = iota
	LowerCase
	UpperCase
)

func normalize(s string, mode LookupMode) string {
	switch mode {
	case LowerCase:
		return strings.ToLower(s)
	case UpperCase:
		return strings.ToUpper(s)
	default:
		return s
	}
}

const tableName = "atoms"

type record struct {
	Key   string
	Count uint16
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableName: {
			Name: tableName,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
			},
		},
	},
}

// Table is the process-wide atom set: unique strings with a reference
// count, mirroring MxAtomSet.
type Table struct {
	mu sync.Mutex
	db *memdb.MemDB
}

// NewTable creates an empty atom table.
func NewTable() (*Table, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("atom: initializing table: %w", err)
	}
	return &Table{db: db}, nil
}

// ID is a handle to one interned atom, analogous to MxAtomId: holding one
// increments the atom's reference count; Release decrements it.
type ID struct {
	table *Table
	key   string
}

// Key returns the interned (normalized) string this ID refers to.
func (id ID) Key() string { return id.key }

// Equal reports whether two IDs refer to the same atom.
func (id ID) Equal(other ID) bool { return id.key == other.key }

// Intern normalizes s per mode, registers (or finds) its atom, increments
// its reference count, and returns a handle to it. Call Release when done.
func (t *Table) Intern(s string, mode LookupMode) (ID, error) {
	key := normalize(s, mode)

	t.mu.Lock()
	defer t.mu.Unlock()

	txn := t.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableName, "id", key)
	if err != nil {
		return ID{}, fmt.Errorf("atom: looking up %q: %w", key, err)
	}

	var rec *record
	if raw != nil {
		rec = raw.(*record)
	} else {
		rec = &record{Key: key}
	}
	rec.Count++

	if err := txn.Insert(tableName, rec); err != nil {
		return ID{}, fmt.Errorf("atom: interning %q: %w", key, err)
	}
	txn.Commit()

	return ID{table: t, key: key}, nil
}

// Release decrements the atom's reference count. Atoms that reach zero
// stay in the table (cheap to keep, matching the original's "ready for
// cleanup" comment rather than an eager sweep); RefCount reports zero for
// them.
func (t *Table) Release(id ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	txn := t.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableName, "id", id.key)
	if err != nil || raw == nil {
		return nil
	}
	rec := raw.(*record)
	if rec.Count > 0 {
		rec.Count--
	}
	if err := txn.Insert(tableName, rec); err != nil {
		return fmt.Errorf("atom: releasing %q: %w", id.key, err)
	}
	txn.Commit()
	return nil
}

// RefCount reports the current reference count for key, or 0 if never
// interned.
func (t *Table) RefCount(key string) uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()

	txn := t.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableName, "id", key)
	if err != nil || raw == nil {
		return 0
	}
	return raw.(*record).Count
}
