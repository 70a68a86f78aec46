// Package treestore presents the hierarchical, authenticated Merkle
// key-value store as a typed operation surface: a fixed root tree of
// named subtrees, each holding Elements addressable by (path, key), with
// batched atomic writes, proved and unproved path queries, and a
// cost-estimation mode that never touches state.
package treestore

// KV is the minimal byte-oriented backing store a Store needs. The
// kvdb package's Adapter satisfies this directly; tests use an in-memory
// implementation with the same shape.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	Iterate(start, end []byte, fn func(key, value []byte) bool) error
}

// CostVector is the unit of work a single low-level operation (or a whole
// batch) is measured in. Drive's cost model converts this into credits;
// the tree store itself only counts bytes and CPU units.
type CostVector struct {
	StorageBytesAdded    uint64
	StorageBytesReplaced uint64
	StorageBytesFreed    uint64
	CPUUnits             uint64
}

// Add accumulates other into v.
func (v *CostVector) Add(other CostVector) {
	v.StorageBytesAdded += other.StorageBytesAdded
	v.StorageBytesReplaced += other.StorageBytesReplaced
	v.StorageBytesFreed += other.StorageBytesFreed
	v.CPUUnits += other.CPUUnits
}

// LayerInfo is a worst-case description of one subtree used by estimate
// mode: how many elements it might hold and their average encoded size,
// without reading any actual state.
type LayerInfo struct {
	EstimatedElementCount uint64
	AverageElementSize    uint64
	IsSumTree             bool
}

// EstimatedLayerInfo maps an encoded path (see encodePath) to the
// LayerInfo an estimate-mode caller supplies for it. Paths with no entry
// fall back to a small built-in default so callers don't need to describe
// every intermediate subtree.
type EstimatedLayerInfo map[string]LayerInfo

// PutDefault registers layer info for path.
func (e EstimatedLayerInfo) PutDefault(path [][]byte, info LayerInfo) {
	e[encodePath(path)] = info
}

func (e EstimatedLayerInfo) lookup(path [][]byte) LayerInfo {
	if info, ok := e[encodePath(path)]; ok {
		return info
	}
	return LayerInfo{EstimatedElementCount: 1, AverageElementSize: 128}
}

// Store is the typed operation surface Drive's domain modules and action
// pipeline drive the tree through. A single Store instance owns the
// entire root tree; it has no notion of "transaction handle" separate
// from itself because the host serializes all writes onto one goroutine
// (see the package-level concurrency note on MemStore).
type Store interface {
	// Get returns the element at (path, key), or ErrNotFound.
	Get(path [][]byte, key []byte) (*Element, error)

	// HasRaw reports whether an element exists at (path, key) without
	// decoding it.
	HasRaw(path [][]byte, key []byte) (bool, error)

	// Insert writes element at (path, key), creating or replacing it.
	// path must already exist as a subtree (Tree or SumTree element
	// rooted under its own parent), except for the root path.
	Insert(path [][]byte, key []byte, element *Element) error

	// Delete removes the element at (path, key).
	Delete(path [][]byte, key []byte) error

	// DeleteUpTreeWhileEmpty removes (path, key) and then walks back up
	// removing ancestor subtrees left with no members, up to maxHeight
	// ancestors.
	DeleteUpTreeWhileEmpty(path [][]byte, key []byte, maxHeight int) error

	// ApplyBatch applies every Op in order as a single atomic unit: if
	// any Op fails, no Op in the batch is left applied.
	ApplyBatch(batch *Batch) error

	// Query executes an unproved PathQuery against committed state,
	// returning matched pairs and a count of entries skipped by Offset.
	Query(pq *PathQuery) (values []KeyElementPair, skipped int, err error)

	// QueryProved executes pq and returns an opaque proof encoding that
	// Verify can later check independently of this Store instance.
	QueryProved(pq *PathQuery) (proofBytes []byte, err error)

	// Verify checks proofBytes with no access to the Store, returning the
	// root hash the proof commits to and the elements it proves, or an
	// error if the proof is malformed or does not hash to its root. It
	// does not check that the proved elements are the ones pq selects.
	Verify(proofBytes []byte, pq *PathQuery) (rootHash []byte, pairs []KeyElementPair, err error)

	// EstimateCost computes a worst-case CostVector for applying batch,
	// using layerInfo instead of touching any actual state.
	EstimateCost(batch *Batch, layerInfo EstimatedLayerInfo) (CostVector, error)

	// RootHash returns the current root tree's hash.
	RootHash() []byte
}
