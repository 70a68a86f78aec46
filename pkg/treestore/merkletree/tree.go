// Package merkletree builds the binary authenticated tree each tree-store
// subtree uses internally to derive its root hash and inclusion proofs.
//
// Construction is standard bottom-up SHA256(left||right) pairing with the
// odd-node-duplicated convention. Proofs are emitted directly in the shape
// gitlab.com/accumulatenetwork/accumulate/pkg/database/merkle.Receipt
// expects (a start hash, an ordered list of sibling steps each tagged
// left/right, and an anchor), so a path query's combined proof can append
// one of these per subtree without a conversion step.
package merkletree

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrEmptyTree       = errors.New("merkletree: cannot build tree from empty leaves")
	ErrLeafNotFound    = errors.New("merkletree: leaf not found in tree")
	ErrInvalidLeafHash = errors.New("merkletree: leaf hash must be 32 bytes")
	ErrTreeNotBuilt    = errors.New("merkletree: tree not built")
)

// Step is one sibling hash encountered while walking from a leaf to the
// root, tagged with which side it sits on relative to the running hash.
type Step struct {
	Hash  []byte
	Right bool // true if Hash is combined as the right-hand operand
}

// Proof is an inclusion proof for a single leaf against a tree's root.
type Proof struct {
	LeafHash []byte
	Steps    []Step
	Root     []byte
}

// Tree is an in-memory binary Merkle tree over a fixed, ordered set of
// 32-byte leaf hashes. It is built once from a complete leaf set; a
// tree-store subtree rebuilds it whenever its item set changes.
type Tree struct {
	mu     sync.RWMutex
	leaves [][]byte
	levels [][][]byte
	root   []byte
	built  bool
}

// Build constructs a Tree from the given leaf hashes, each exactly 32
// bytes (a SHA256 digest).
func Build(leaves [][]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	for i, leaf := range leaves {
		if len(leaf) != 32 {
			return nil, fmt.Errorf("%w: leaf %d has %d bytes", ErrInvalidLeafHash, i, len(leaf))
		}
	}

	t := &Tree{
		leaves: make([][]byte, len(leaves)),
	}
	for i, leaf := range leaves {
		t.leaves[i] = append([]byte(nil), leaf...)
	}
	if err := t.build(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) build() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := make([][]byte, len(t.leaves))
	for i, leaf := range t.leaves {
		current[i] = append([]byte(nil), leaf...)
	}
	t.levels = [][][]byte{current}

	for len(current) > 1 {
		next := make([][]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, hashPair(current[i], current[i+1]))
			} else {
				next = append(next, hashPair(current[i], current[i]))
			}
		}
		t.levels = append(t.levels, next)
		current = next
	}

	t.root = current[0]
	t.built = true
	return nil
}

func hashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// Root returns the tree's root hash, or nil if the tree is empty.
func (t *Tree) Root() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.built {
		return nil
	}
	return append([]byte(nil), t.root...)
}

// LeafCount returns the number of leaves the tree was built from.
func (t *Tree) LeafCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// ProofAt generates an inclusion proof for the leaf at the given index.
func (t *Tree) ProofAt(leafIndex int) (*Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.built {
		return nil, ErrTreeNotBuilt
	}
	if leafIndex < 0 || leafIndex >= len(t.leaves) {
		return nil, fmt.Errorf("merkletree: leaf index %d out of range [0, %d)", leafIndex, len(t.leaves))
	}

	proof := &Proof{
		LeafHash: append([]byte(nil), t.leaves[leafIndex]...),
		Root:     append([]byte(nil), t.root...),
	}

	idx := leafIndex
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]

		var siblingIdx int
		var right bool
		if idx%2 == 0 {
			siblingIdx = idx + 1
			right = true
		} else {
			siblingIdx = idx - 1
			right = false
		}

		var sibling []byte
		if siblingIdx < len(nodes) {
			sibling = nodes[siblingIdx]
		} else {
			sibling = nodes[idx]
			right = true
		}

		proof.Steps = append(proof.Steps, Step{Hash: append([]byte(nil), sibling...), Right: right})
		idx /= 2
	}

	return proof, nil
}

// ProofForLeaf generates an inclusion proof for a leaf identified by hash.
func (t *Tree) ProofForLeaf(leafHash []byte) (*Proof, error) {
	if len(leafHash) != 32 {
		return nil, ErrInvalidLeafHash
	}

	t.mu.RLock()
	found := -1
	for i, leaf := range t.leaves {
		if bytes.Equal(leaf, leafHash) {
			found = i
			break
		}
	}
	t.mu.RUnlock()

	if found == -1 {
		return nil, ErrLeafNotFound
	}
	return t.ProofAt(found)
}

// Verify recomputes the root from leafHash and proof's steps and compares
// it against expectedRoot in constant time.
func Verify(leafHash []byte, proof *Proof, expectedRoot []byte) (bool, error) {
	if len(expectedRoot) != 32 {
		return false, fmt.Errorf("merkletree: expected root must be 32 bytes, got %d", len(expectedRoot))
	}
	var steps []Step
	if proof != nil {
		steps = proof.Steps
	}
	computed, err := ComputeRoot(leafHash, steps)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, expectedRoot) == 1, nil
}

// ComputeRoot walks leafHash up through steps and returns the resulting
// root, without comparing it against anything. Used when the caller needs
// to chain the result into a further check (e.g. against a claimed parent
// element) rather than a single yes/no verdict.
func ComputeRoot(leafHash []byte, steps []Step) ([]byte, error) {
	if len(leafHash) != 32 {
		return nil, ErrInvalidLeafHash
	}
	if len(steps) == 0 {
		return append([]byte(nil), leafHash...), nil
	}

	current := append([]byte(nil), leafHash...)
	for _, step := range steps {
		if len(step.Hash) != 32 {
			return nil, fmt.Errorf("merkletree: sibling hash must be 32 bytes, got %d", len(step.Hash))
		}
		if step.Right {
			current = hashPair(current, step.Hash)
		} else {
			current = hashPair(step.Hash, current)
		}
	}
	return current, nil
}

// HashData returns the SHA256 digest of data, suitable as a tree leaf.
func HashData(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// CombineHashes concatenates and hashes multiple digests, used to derive a
// subtree's leaf hash from an element's value and metadata.
func CombineHashes(hashes ...[]byte) []byte {
	h := sha256.New()
	for _, x := range hashes {
		h.Write(x)
	}
	return h.Sum(nil)
}
