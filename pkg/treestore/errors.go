package treestore

import "errors"

// Sentinel errors returned by Store operations. Callers crossing the host
// boundary translate these into a *consensuserrors.Error with the
// appropriate category; internal callers branch on them directly.
var (
	// ErrNotFound is returned by Get when no element exists at (path, key).
	ErrNotFound = errors.New("treestore: element not found")

	// ErrSubtreeNotFound is returned when an operation addresses a path
	// whose intermediate subtree does not exist.
	ErrSubtreeNotFound = errors.New("treestore: subtree not found")

	// ErrWrongElementKind names an element that exists but is not the kind
	// the caller expected (e.g. an Item where a Tree was wanted). MemStore
	// does not check kinds on Get and never returns it.
	ErrWrongElementKind = errors.New("treestore: element is not the expected kind")

	// ErrNotASumTree names a sum-only operation addressing a subtree that
	// was not created as a sum-tree. MemStore has no sum-only operation
	// and never returns it.
	ErrNotASumTree = errors.New("treestore: subtree is not a sum-tree")

	// ErrBatchConflict names two operations in one batch addressing the
	// same (path, key). MemStore.ApplyBatch applies ops strictly in order,
	// later ones overriding earlier ones, and never returns it.
	ErrBatchConflict = errors.New("treestore: conflicting operations in the same batch")

	// ErrNoMatchingProofPath is returned by Verify when a proof entry
	// carries no level chain at all. Verify does not compare the proof
	// against the PathQuery's keys.
	ErrNoMatchingProofPath = errors.New("treestore: proof does not cover the requested query")

	// ErrIncorrectProof is returned by Verify when a proof's recomputed
	// root does not match the root it claims to commit to.
	ErrIncorrectProof = errors.New("treestore: proof does not match its claimed root")
)
