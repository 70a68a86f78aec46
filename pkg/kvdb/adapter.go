// Package kvdb adapts a CometBFT-compatible byte store to the KV
// interface the tree-store package builds its authenticated layout on.
package kvdb

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
)

// Adapter wraps a cometbft-db DB and exposes a minimal get/set/delete/
// iterate surface. It carries no knowledge of paths, elements, or proofs —
// those live one layer up in pkg/treestore.
type Adapter struct {
	db dbm.DB
}

// New creates an Adapter over the given underlying DB.
func New(db dbm.DB) *Adapter {
	return &Adapter{db: db}
}

// Get returns the raw bytes stored at key, or nil if absent.
func (a *Adapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.Get(key)
}

// Set durably stores value at key.
func (a *Adapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

// Delete removes key.
func (a *Adapter) Delete(key []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.DeleteSync(key)
}

// Has reports whether key is present.
func (a *Adapter) Has(key []byte) (bool, error) {
	if a.db == nil {
		return false, nil
	}
	return a.db.Has(key)
}

// Iterate calls fn for every key in [start, end) in ascending order,
// stopping early if fn returns false.
func (a *Adapter) Iterate(start, end []byte, fn func(key, value []byte) bool) error {
	if a.db == nil {
		return nil
	}
	it, err := a.db.Iterator(start, end)
	if err != nil {
		return err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

// NewMemDB returns an in-process, non-persistent DB suitable for tests and
// for a single-node demonstration host.
func NewMemDB() dbm.DB {
	return dbm.NewMemDB()
}

// NewGoLevelDB opens (or creates) a durable on-disk database under dir,
// named name. This is the persistence path a long-running drived process
// uses; NewMemDB is for tests and throwaway local runs only.
func NewGoLevelDB(name, dir string) (dbm.DB, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, fmt.Errorf("kvdb: open goleveldb at %s/%s: %w", dir, name, err)
	}
	return db, nil
}
