package treestore

import (
	"bytes"
	"sort"
)

// Query implements Store.
func (s *MemStore) Query(pq *PathQuery) ([]KeyElementPair, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(pq)
}

func (s *MemStore) queryLocked(pq *PathQuery) ([]KeyElementPair, int, error) {
	st, ok := s.getSubtree(pq.Path)
	if !ok {
		return nil, 0, ErrSubtreeNotFound
	}

	matched := matchKeys(st, pq.Query.QueryItems)
	if pq.Query.OrderAscending {
		sort.Strings(matched)
	} else {
		sort.Sort(sort.Reverse(sort.StringSlice(matched)))
	}

	skipped := 0
	if pq.Query.Offset != nil {
		off := int(*pq.Query.Offset)
		if off > len(matched) {
			off = len(matched)
		}
		skipped = off
		matched = matched[off:]
	}
	if pq.Query.Limit != nil && int(*pq.Query.Limit) < len(matched) {
		matched = matched[:*pq.Query.Limit]
	}

	var out []KeyElementPair
	for _, k := range matched {
		el := st.items[k]
		keyBytes := st.keys[k]
		out = append(out, KeyElementPair{Path: pq.Path, Key: keyBytes, Element: el})

		for _, cs := range pq.ConditionalSubqueries {
			if cs.Key != nil && !bytes.Equal(cs.Key, keyBytes) {
				continue
			}
			if cs.Query == nil {
				continue
			}
			nested, _, err := s.queryLocked(cs.Query)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, nested...)
		}
	}

	return out, skipped, nil
}

func matchKeys(st *subtree, items []QueryItem) []string {
	if len(items) == 0 {
		return append([]string(nil), st.sortedKeys()...)
	}

	seen := make(map[string]bool)
	var out []string
	for _, qi := range items {
		switch qi.Kind {
		case QueryItemKey:
			k := string(qi.Key)
			if _, ok := st.items[k]; ok && !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		case QueryItemRange:
			for _, k := range st.sortedKeys() {
				kb := st.keys[k]
				if qi.Start != nil {
					cmp := bytes.Compare(kb, qi.Start)
					if qi.StartExclusive && cmp <= 0 {
						continue
					}
					if !qi.StartExclusive && cmp < 0 {
						continue
					}
				}
				if !qi.Unbounded && qi.End != nil {
					cmp := bytes.Compare(kb, qi.End)
					if qi.EndExclusive && cmp >= 0 {
						continue
					}
					if !qi.EndExclusive && cmp > 0 {
						continue
					}
				}
				if !seen[k] {
					seen[k] = true
					out = append(out, k)
				}
			}
		}
	}
	return out
}
