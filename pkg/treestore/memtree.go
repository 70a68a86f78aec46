package treestore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/driveplatform/drive/pkg/treestore/merkletree"
)

// subtree is the in-memory, authenticated view of one level of the tree:
// every item directly stored under a path, plus the Merkle tree built
// over those items' leaf hashes. It is rebuilt lazily whenever its
// members change and its root hash is next requested.
type subtree struct {
	path    [][]byte
	items   map[string]*Element
	keys    map[string][]byte // string(key) -> original key bytes, preserved for ordered iteration
	isSum   bool
	dirty   bool
	tree    *merkletree.Tree
	sortedK []string
}

func newSubtree(path [][]byte, isSum bool) *subtree {
	return &subtree{
		path:  path,
		items: make(map[string]*Element),
		keys:  make(map[string][]byte),
		isSum: isSum,
		dirty: true,
	}
}

func (s *subtree) put(key []byte, el *Element) {
	k := string(key)
	s.items[k] = el
	s.keys[k] = key
	s.dirty = true
}

func (s *subtree) remove(key []byte) {
	k := string(key)
	delete(s.items, k)
	delete(s.keys, k)
	s.dirty = true
}

func (s *subtree) sortedKeys() []string {
	if !s.dirty && s.sortedK != nil {
		return s.sortedK
	}
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.sortedK = keys
	return keys
}

func leafHash(key []byte, el *Element) []byte {
	enc, err := encodeElement(el)
	if err != nil {
		enc = nil
	}
	return merkletree.CombineHashes(merkletree.HashData(key), merkletree.HashData(enc))
}

func (s *subtree) rootHashAndSum() ([]byte, int64) {
	keys := s.sortedKeys()
	if len(keys) == 0 {
		s.tree = nil
		s.dirty = false
		return nil, 0
	}

	leaves := make([][]byte, len(keys))
	var sum int64
	for i, k := range keys {
		el := s.items[k]
		leaves[i] = leafHash(s.keys[k], el)
		switch el.Kind {
		case KindSumItem:
			sum += el.SumItemValue
		case KindSumTree:
			sum += el.Sum
		}
	}

	t, err := merkletree.Build(leaves)
	if err != nil {
		s.tree = nil
		s.dirty = false
		return nil, sum
	}
	s.tree = t
	s.dirty = false
	return t.Root(), sum
}

// MemStore is an in-process Store implementation: every subtree is held
// fully in memory, backed by KV for durability and restart recovery.
//
// CONCURRENCY: MemStore assumes single-writer access, driven from the
// host's block-commit thread only. Reads that do not need the very latest write may
// be called concurrently with each other but never concurrently with a
// write; callers needing that must add their own synchronization.
type MemStore struct {
	mu       sync.Mutex
	kv       KV
	subtrees map[string]*subtree
}

// NewMemStore creates a MemStore over kv. The root subtree (empty path)
// always exists.
func NewMemStore(kv KV) *MemStore {
	s := &MemStore{kv: kv, subtrees: make(map[string]*subtree)}
	s.subtrees[encodePath(nil)] = newSubtree(nil, false)
	s.loadAll()
	return s
}

// loadAll reconstructs in-memory subtrees from whatever is durably
// persisted in kv, for restart recovery. MemStore's raw keys are
// self-describing (path-prefixed), so a full scan is sufficient.
func (s *MemStore) loadAll() {
	_ = s.kv.Iterate(nil, nil, func(k, v []byte) bool {
		path, key, ok := splitRawKey(k)
		if !ok {
			return true
		}
		el, err := decodeElement(v)
		if err != nil {
			return true
		}
		st := s.subtreeFor(path, el.Kind == KindSumTree)
		st.put(key, el)
		if el.IsTreeKind() {
			s.ensureSubtree(childPath(path, key), el.Kind == KindSumTree)
		}
		return true
	})
}

func (s *MemStore) subtreeFor(path [][]byte, isSum bool) *subtree {
	return s.ensureSubtree(path, isSum)
}

func (s *MemStore) ensureSubtree(path [][]byte, isSum bool) *subtree {
	key := encodePath(path)
	st, ok := s.subtrees[key]
	if !ok {
		st = newSubtree(path, isSum)
		s.subtrees[key] = st
	}
	return st
}

func (s *MemStore) getSubtree(path [][]byte) (*subtree, bool) {
	st, ok := s.subtrees[encodePath(path)]
	return st, ok
}

func splitRawKey(raw []byte) (path [][]byte, key []byte, ok bool) {
	if len(raw) < 4 {
		return nil, nil, false
	}
	plen := int(uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3]))
	if len(raw) < 4+plen {
		return nil, nil, false
	}
	encoded := raw[4 : 4+plen]
	key = raw[4+plen:]
	path = decodePathSegments(encoded)
	return path, key, true
}

func decodePathSegments(encoded []byte) [][]byte {
	var path [][]byte
	for len(encoded) >= 4 {
		n := int(uint32(encoded[0])<<24 | uint32(encoded[1])<<16 | uint32(encoded[2])<<8 | uint32(encoded[3]))
		encoded = encoded[4:]
		if n > len(encoded) {
			break
		}
		path = append(path, append([]byte(nil), encoded[:n]...))
		encoded = encoded[n:]
	}
	return path
}

// Get implements Store.
func (s *MemStore) Get(path [][]byte, key []byte) (*Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(path, key)
}

func (s *MemStore) getLocked(path [][]byte, key []byte) (*Element, error) {
	st, ok := s.getSubtree(path)
	if !ok {
		return nil, ErrSubtreeNotFound
	}
	el, ok := st.items[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return el, nil
}

// MustGet is Get with the transport-error behavior preserved: a storage
// backend failure panics rather than propagating as an error. It exists
// only for the handful of call sites that historically relied on this
// (see pkg/drive's genesis-time accessor); new code should use Get.
func (s *MemStore) MustGet(path [][]byte, key []byte) *Element {
	el, err := s.Get(path, key)
	if err != nil && err != ErrNotFound {
		panic(fmt.Sprintf("treestore: unrecoverable store error: %v", err))
	}
	return el
}

// HasRaw implements Store.
func (s *MemStore) HasRaw(path [][]byte, key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.getSubtree(path)
	if !ok {
		return false, nil
	}
	_, ok = st.items[string(key)]
	return ok, nil
}

// Insert implements Store.
func (s *MemStore) Insert(path [][]byte, key []byte, element *Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(path, key, element)
}

func (s *MemStore) insertLocked(path [][]byte, key []byte, element *Element) error {
	if len(path) > 0 {
		if _, ok := s.getSubtree(path); !ok {
			return ErrSubtreeNotFound
		}
	}

	enc, err := encodeElement(element)
	if err != nil {
		return fmt.Errorf("treestore: encode element: %w", err)
	}
	if err := s.kv.Set(rawKey(path, key), enc); err != nil {
		return fmt.Errorf("treestore: persist element: %w", err)
	}

	st := s.subtreeFor(path, false)
	st.put(key, element)

	if element.IsTreeKind() {
		s.ensureSubtree(childPath(path, key), element.Kind == KindSumTree)
	}

	return s.propagateRoot(path)
}

// propagateRoot recomputes path's root hash (and sum, if it is a sum-tree)
// and writes the result into the Tree/SumTree element naming path in its
// parent, repeating up to the root so that every ancestor's root hash
// reflects the change.
func (s *MemStore) propagateRoot(path [][]byte) error {
	for {
		st, ok := s.getSubtree(path)
		if !ok {
			return nil
		}
		root, sum := st.rootHashAndSum()

		if len(path) == 0 {
			return nil
		}

		parentPath := path[:len(path)-1]
		selfKey := path[len(path)-1]

		parent, ok := s.getSubtree(parentPath)
		if !ok {
			return nil
		}
		selfEl, ok := parent.items[string(selfKey)]
		if !ok || !selfEl.IsTreeKind() {
			return nil
		}

		updated := *selfEl
		updated.RootHash = root
		if selfEl.Kind == KindSumTree {
			updated.Sum = sum
		}

		enc, err := encodeElement(&updated)
		if err != nil {
			return fmt.Errorf("treestore: encode element: %w", err)
		}
		if err := s.kv.Set(rawKey(parentPath, selfKey), enc); err != nil {
			return fmt.Errorf("treestore: persist element: %w", err)
		}
		parent.put(selfKey, &updated)

		path = parentPath
	}
}

// Delete implements Store.
func (s *MemStore) Delete(path [][]byte, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(path, key)
}

func (s *MemStore) deleteLocked(path [][]byte, key []byte) error {
	st, ok := s.getSubtree(path)
	if !ok {
		return ErrSubtreeNotFound
	}
	if _, ok := st.items[string(key)]; !ok {
		return ErrNotFound
	}
	if err := s.kv.Delete(rawKey(path, key)); err != nil {
		return fmt.Errorf("treestore: delete element: %w", err)
	}
	st.remove(key)
	delete(s.subtrees, encodePath(childPath(path, key)))
	return s.propagateRoot(path)
}

// DeleteUpTreeWhileEmpty implements Store.
func (s *MemStore) DeleteUpTreeWhileEmpty(path [][]byte, key []byte, maxHeight int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteUpTreeLocked(path, key, maxHeight)
}

func (s *MemStore) deleteUpTreeLocked(path [][]byte, key []byte, maxHeight int) error {
	if err := s.deleteLocked(path, key); err != nil {
		return err
	}

	curPath := path
	for h := 0; h < maxHeight && len(curPath) > 0; h++ {
		st, ok := s.getSubtree(curPath)
		if !ok || len(st.items) > 0 {
			break
		}
		parentPath := curPath[:len(curPath)-1]
		if err := s.deleteLocked(parentPath, curPath[len(curPath)-1]); err != nil {
			break
		}
		curPath = parentPath
	}
	return nil
}

// ApplyBatch implements Store. It is atomic: operations are applied in
// order, and any failure rolls back every change the batch made.
func (s *MemStore) ApplyBatch(batch *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	for _, op := range batch.Ops() {
		switch op.Kind {
		case OpInsert:
			prev, hadPrev := s.getSubtree(op.Path)
			var prevEl *Element
			if hadPrev {
				prevEl = prev.items[string(op.Key)]
			}
			if err := s.insertLocked(op.Path, op.Key, op.Element); err != nil {
				rollback()
				return err
			}
			path, key := op.Path, op.Key
			undo = append(undo, func() {
				if prevEl != nil {
					_ = s.insertLocked(path, key, prevEl)
				} else {
					_ = s.deleteLocked(path, key)
				}
			})
		case OpDelete:
			prevEl, err := s.getLocked(op.Path, op.Key)
			if err != nil {
				rollback()
				return err
			}
			if err := s.deleteLocked(op.Path, op.Key); err != nil {
				rollback()
				return err
			}
			path, key := op.Path, op.Key
			undo = append(undo, func() {
				_ = s.insertLocked(path, key, prevEl)
			})
		case OpDeleteUpTreeWhileEmpty:
			if err := s.deleteUpTreeLocked(op.Path, op.Key, op.MaxHeight); err != nil {
				rollback()
				return err
			}
			// Deliberately not undoable: by the time this op type is used,
			// the pruned ancestors carried no other state to restore.
		default:
			rollback()
			return fmt.Errorf("treestore: unknown op kind %d", op.Kind)
		}
	}

	return nil
}

// RootHash implements Store.
func (s *MemStore) RootHash() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.getSubtree(nil)
	if !ok {
		return nil
	}
	root, _ := st.rootHashAndSum()
	return root
}
