package treestore

import "bytes"

// OpKind identifies which low-level tree mutation an Op performs.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpDelete
	OpDeleteUpTreeWhileEmpty
)

// Op is one low-level tree mutation. A Batch is a flat, ordered list of
// these — not a tree of nested batches — so that apply order is exactly
// the order handlers appended to it.
type Op struct {
	Kind OpKind

	Path [][]byte
	Key  []byte

	// Insert only.
	Element *Element

	// DeleteUpTreeWhileEmpty only: how many empty ancestor subtrees may be
	// removed walking back up from Path before apply stops.
	MaxHeight int
}

// Batch accumulates Ops for a single atomic apply_batch call. It is built
// up by one or more domain-module handlers during a transition's action
// pipeline and applied once, in full, by the engine.
type Batch struct {
	ops []Op
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Insert appends an insert-or-replace op.
func (b *Batch) Insert(path [][]byte, key []byte, element *Element) {
	b.ops = append(b.ops, Op{Kind: OpInsert, Path: path, Key: key, Element: element})
}

// Delete appends a plain delete op.
func (b *Batch) Delete(path [][]byte, key []byte) {
	b.ops = append(b.ops, Op{Kind: OpDelete, Path: path, Key: key})
}

// DeleteUpTreeWhileEmpty appends a delete that also removes ancestor
// subtrees left empty by the delete, up to maxHeight levels.
func (b *Batch) DeleteUpTreeWhileEmpty(path [][]byte, key []byte, maxHeight int) {
	b.ops = append(b.ops, Op{Kind: OpDeleteUpTreeWhileEmpty, Path: path, Key: key, MaxHeight: maxHeight})
}

// Ops returns the accumulated operations in apply order.
func (b *Batch) Ops() []Op {
	return b.ops
}

// Len reports how many operations are queued.
func (b *Batch) Len() int {
	return len(b.ops)
}

// HasPendingInsert reports whether an insert at (path, key) is already
// queued earlier in the batch. Handlers use this to make
// insert-empty-tree-if-absent idempotent within a single batch without an
// extra store round-trip: check the batch first, only probe the store if
// the batch itself is silent on (path, key).
func (b *Batch) HasPendingInsert(path [][]byte, key []byte) bool {
	for _, op := range b.ops {
		if op.Kind == OpInsert && pathEqual(op.Path, path) && bytes.Equal(op.Key, key) {
			return true
		}
	}
	return false
}

func pathEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
