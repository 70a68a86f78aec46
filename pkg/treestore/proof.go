package treestore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/driveplatform/drive/pkg/treestore/merkletree"
)

// levelProof is one step of a proof chain: the (key, element) pair being
// proven within its own subtree, and the sibling path from that leaf up
// to that subtree's root.
type levelProof struct {
	Key     []byte     `json:"key"`
	Element *Element   `json:"element"`
	Steps   []stepJSON `json:"steps"`
}

type stepJSON struct {
	Hash  []byte `json:"hash"`
	Right bool   `json:"right"`
}

// proofEntry carries the full chain proving one matched (path, key,
// element), from its own subtree up through every ancestor to the root.
type proofEntry struct {
	Path    [][]byte     `json:"path"`
	Key     []byte       `json:"key"`
	Element *Element     `json:"element"`
	Levels  []levelProof `json:"levels"`
}

// proofEnvelope is the opaque proof encoding QueryProved produces and
// Verify consumes.
type proofEnvelope struct {
	RootHash []byte       `json:"root_hash"`
	Skipped  int          `json:"skipped"`
	Entries  []proofEntry `json:"entries"`
}

func toStepJSON(steps []merkletree.Step) []stepJSON {
	out := make([]stepJSON, len(steps))
	for i, s := range steps {
		out[i] = stepJSON{Hash: s.Hash, Right: s.Right}
	}
	return out
}

func fromStepJSON(steps []stepJSON) []merkletree.Step {
	out := make([]merkletree.Step, len(steps))
	for i, s := range steps {
		out[i] = merkletree.Step{Hash: s.Hash, Right: s.Right}
	}
	return out
}

// buildChain proves (path, key) by walking from its own subtree up to the
// root subtree, recording one levelProof per ancestor.
func (s *MemStore) buildChain(path [][]byte, key []byte) ([]levelProof, error) {
	var levels []levelProof

	curPath := path
	curKey := key
	for {
		st, ok := s.getSubtree(curPath)
		if !ok {
			return nil, ErrSubtreeNotFound
		}
		el, ok := st.items[string(curKey)]
		if !ok {
			return nil, ErrNotFound
		}

		st.rootHashAndSum() // ensures st.tree reflects current members
		if st.tree == nil {
			return nil, fmt.Errorf("treestore: subtree at depth %d has no tree", len(curPath))
		}

		proof, err := st.tree.ProofForLeaf(leafHash(curKey, el))
		if err != nil {
			return nil, fmt.Errorf("treestore: build proof: %w", err)
		}

		levels = append(levels, levelProof{
			Key:     append([]byte(nil), curKey...),
			Element: el,
			Steps:   toStepJSON(proof.Steps),
		})

		if len(curPath) == 0 {
			break
		}
		curKey = curPath[len(curPath)-1]
		curPath = curPath[:len(curPath)-1]
	}

	return levels, nil
}

// QueryProved implements Store.
func (s *MemStore) QueryProved(pq *PathQuery) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairs, skipped, err := s.queryLocked(pq)
	if err != nil {
		return nil, err
	}

	env := proofEnvelope{RootHash: s.rootHashLocked(), Skipped: skipped}
	for _, p := range pairs {
		levels, err := s.buildChain(p.Path, p.Key)
		if err != nil {
			return nil, err
		}
		env.Entries = append(env.Entries, proofEntry{
			Path:    p.Path,
			Key:     p.Key,
			Element: p.Element,
			Levels:  levels,
		})
	}

	return json.Marshal(&env)
}

func (s *MemStore) rootHashLocked() []byte {
	st, ok := s.getSubtree(nil)
	if !ok {
		return nil
	}
	root, _ := st.rootHashAndSum()
	return root
}

// Verify implements Store. It requires no access to the Store it was
// generated from: every fact it needs travels inside proofBytes. The
// PathQuery argument is not consulted; Verify is VerifyProof.
func (s *MemStore) Verify(proofBytes []byte, _ *PathQuery) ([]byte, []KeyElementPair, error) {
	return VerifyProof(proofBytes)
}

// VerifyProof checks a proof produced by QueryProved with no Store access
// at all, so a light client can call it directly.
func VerifyProof(proofBytes []byte) ([]byte, []KeyElementPair, error) {
	var env proofEnvelope
	if err := json.Unmarshal(proofBytes, &env); err != nil {
		return nil, nil, fmt.Errorf("treestore: decode proof: %w", err)
	}

	var pairs []KeyElementPair
	for _, entry := range env.Entries {
		if len(entry.Levels) == 0 {
			return nil, nil, ErrNoMatchingProofPath
		}
		// The returned (path, key, element) must be the one the chain proves.
		if len(entry.Levels) != len(entry.Path)+1 ||
			!bytes.Equal(leafHash(entry.Key, entry.Element), leafHash(entry.Levels[0].Key, entry.Levels[0].Element)) {
			return nil, nil, ErrIncorrectProof
		}
		for i := 1; i < len(entry.Levels); i++ {
			if !bytes.Equal(entry.Path[len(entry.Path)-i], entry.Levels[i].Key) {
				return nil, nil, ErrIncorrectProof
			}
		}

		var computed []byte
		for i, lvl := range entry.Levels {
			leaf := leafHash(lvl.Key, lvl.Element)
			root, err := merkletree.ComputeRoot(leaf, fromStepJSON(lvl.Steps))
			if err != nil {
				return nil, nil, fmt.Errorf("treestore: verify level %d: %w", i, err)
			}
			computed = root

			if i+1 < len(entry.Levels) {
				next := entry.Levels[i+1]
				if !bytes.Equal(next.Element.RootHash, computed) {
					return nil, nil, ErrIncorrectProof
				}
			}
		}

		if !bytes.Equal(computed, env.RootHash) {
			return nil, nil, ErrIncorrectProof
		}

		pairs = append(pairs, KeyElementPair{Path: entry.Path, Key: entry.Key, Element: entry.Element})
	}

	return env.RootHash, pairs, nil
}
