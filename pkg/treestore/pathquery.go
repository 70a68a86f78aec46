package treestore

// QueryItemKind distinguishes an exact-key match from a range scan within
// a single subtree level of a PathQuery.
type QueryItemKind uint8

const (
	QueryItemKey QueryItemKind = iota
	QueryItemRange
)

// QueryItem selects either one key or a contiguous key range at one level
// of a subtree. Range bounds are independently inclusive/exclusive; a nil
// End with Unbounded set means "to the end of the subtree".
type QueryItem struct {
	Kind QueryItemKind

	Key []byte // QueryItemKey

	Start          []byte // QueryItemRange
	StartExclusive bool
	End            []byte
	EndExclusive   bool
	Unbounded      bool
}

// ExactKey builds a QueryItem matching exactly one key.
func ExactKey(key []byte) QueryItem {
	return QueryItem{Kind: QueryItemKey, Key: key}
}

// KeyRange builds a half-open [start, end) range query item.
func KeyRange(start, end []byte) QueryItem {
	return QueryItem{Kind: QueryItemRange, Start: start, End: end, EndExclusive: true}
}

// KeyRangeFrom builds a query item covering every key ≥ start.
func KeyRangeFrom(start []byte) QueryItem {
	return QueryItem{Kind: QueryItemRange, Start: start, Unbounded: true}
}

// SizedQuery bounds a set of QueryItems with an optional limit/offset and
// traversal order, mirroring what a single PathQuery level asks for.
type SizedQuery struct {
	QueryItems     []QueryItem
	Limit          *uint32
	Offset         *uint32
	OrderAscending bool
}

// ConditionalSubquery descends further into the tree under a matched key,
// used to express queries like "for each matching index entry, also fetch
// the document it references" in a single path query.
type ConditionalSubquery struct {
	Key   []byte
	Query *PathQuery
}

// PathQuery names a subtree by Path and describes which of its members
// (and, recursively, their members) to return. It is the single structure
// both the unproved query path and the proof-generating path consume.
type PathQuery struct {
	Path                  [][]byte
	Query                 SizedQuery
	ConditionalSubqueries []ConditionalSubquery
}

// KeyElementPair is one matched (key, element) result of executing a
// PathQuery, tagged with the full path it was found at so that results
// from conditional subqueries remain distinguishable from the top level.
type KeyElementPair struct {
	Path    [][]byte
	Key     []byte
	Element *Element
}
