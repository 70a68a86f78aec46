package proof

import (
	"bytes"
	"fmt"

	"github.com/driveplatform/drive/pkg/treestore"
)

// Source produces one named, self-contained proof blob against store, the
// shape every domain Prove function (identity.Prove, balance.Prove, ...)
// already has. A Bundle is just several Sources composed together.
type Source struct {
	Name  string
	Prove func(store treestore.Store) ([]byte, error)
}

// Build runs every source against store and assembles the results into one
// Bundle pinned to store's current root hash. Each source is queried
// independently - a PathQuery proves exactly one subtree - so Build is the
// seam where unrelated subtrees (an identity, its balance, a document) are
// stitched into a single artifact a caller can ship in one response.
func Build(store treestore.Store, bundleID string, sources []Source) (*Bundle, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("proof: build requires at least one source")
	}
	root := store.RootHash()
	b := New(bundleID, root)
	for _, s := range sources {
		data, err := s.Prove(store)
		if err != nil {
			return nil, fmt.Errorf("proof: source %q: %w", s.Name, err)
		}
		b.AddEntry(s.Name, data)
	}
	if err := b.Finalize(); err != nil {
		return nil, err
	}
	return b, nil
}

// VerifiedEntry is one entry's outcome after offline verification.
type VerifiedEntry struct {
	Name  string
	Pairs []treestore.KeyElementPair
}

// VerifyBundle checks every entry's proof independently with no access to a
// Store, confirms they all commit to the same root hash as b.RootHash and
// as each other, and returns the decoded pairs per entry. A bundle spanning
// entries taken at different roots (a stale one mixed with a fresh one)
// fails here rather than silently mixing snapshots.
func VerifyBundle(b *Bundle) ([]VerifiedEntry, []byte, error) {
	if len(b.Entries) == 0 {
		return nil, nil, fmt.Errorf("proof: bundle has no entries")
	}
	out := make([]VerifiedEntry, 0, len(b.Entries))
	for _, e := range b.Entries {
		root, pairs, err := treestore.VerifyProof(e.ProofData)
		if err != nil {
			return nil, nil, fmt.Errorf("proof: entry %q: %w", e.Name, err)
		}
		if !bytes.Equal(root, b.RootHash) {
			return nil, nil, fmt.Errorf("proof: entry %q commits to a different root than the bundle", e.Name)
		}
		out = append(out, VerifiedEntry{Name: e.Name, Pairs: pairs})
	}
	return out, b.RootHash, nil
}
