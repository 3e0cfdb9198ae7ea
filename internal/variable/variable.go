// Package variable implements the coordinator's variable table: the named
// key/value store SelectAction predicates consult to choose which child
// runs (spec.md §4.5/§9 Open Question — resolved here by making
// "variable-table key lookup" the concrete default predicate, with
// action.Predicate left pluggable for callers who want something else).
//
// Indexed storage uses github.com/hashicorp/go-memdb, the same
// radix-backed in-memory table the engine's atom interning
// (internal/atom) uses, so a lookup stays O(log n) rather than scanning.
package variable

import (
	"fmt"

	memdb "github.com/hashicorp/go-memdb"
)

const tableName = "variables"

type entry struct {
	Name  string
	Value string
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableName: {
			Name: tableName,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name"},
				},
			},
		},
	},
}

// Table is the coordinator's variable table: a name-indexed store of
// string values, consulted by SelectAction predicates and scriptable
// control actions.
type Table struct {
	db *memdb.MemDB
}

// New creates an empty variable table.
func New() (*Table, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("variable: initializing table: %w", err)
	}
	return &Table{db: db}, nil
}

// Set stores value under name, replacing any existing value.
func (t *Table) Set(name, value string) error {
	txn := t.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tableName, &entry{Name: name, Value: value}); err != nil {
		return fmt.Errorf("variable: setting %q: %w", name, err)
	}
	txn.Commit()
	return nil
}

// Get returns the value stored under name, or ("", false) if unset.
func (t *Table) Get(name string) (string, bool) {
	txn := t.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableName, "id", name)
	if err != nil || raw == nil {
		return "", false
	}
	return raw.(*entry).Value, true
}

// Delete removes name from the table. It is not an error to delete a name
// that was never set.
func (t *Table) Delete(name string) error {
	txn := t.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(tableName, "id", name); err != nil {
		return fmt.Errorf("variable: deleting %q: %w", name, err)
	}
	txn.Commit()
	return nil
}

// SelectByEquals builds an action.Predicate-shaped closure (returning a
// child index, or -1) that chooses the first candidate whose variable
// equals want. candidates[i] is the variable name guarding child i.
func (t *Table) SelectByEquals(candidates []string, want string) func() int {
	return func() int {
		for i, name := range candidates {
			if v, ok := t.Get(name); ok && v == want {
				return i
			}
		}
		return -1
	}
}
