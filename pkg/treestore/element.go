package treestore

// Kind tags which variant of the Element union a given record holds.
type Kind uint8

const (
	KindItem Kind = iota
	KindReference
	KindTree
	KindSumTree
	KindSumItem
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "Item"
	case KindReference:
		return "Reference"
	case KindTree:
		return "Tree"
	case KindSumTree:
		return "SumTree"
	case KindSumItem:
		return "SumItem"
	default:
		return "Unknown"
	}
}

// EpochByteCount records how many bytes an element contributed to storage
// cost under a given epoch's price, so the exact amount can be refunded
// when those bytes are later replaced or freed.
type EpochByteCount struct {
	EpochIndex uint64 `json:"epoch_index"`
	Bytes      uint32 `json:"bytes"`
}

// StorageFlags is the element-attached cost bookkeeping tuple. It rides
// along with every stored element so the cost model can compute refunds
// without consulting anything outside the element itself.
type StorageFlags struct {
	EpochIndex            uint64           `json:"epoch_index"`
	OwnerID               []byte           `json:"owner_id,omitempty"`
	RefundEpochByteCounts []EpochByteCount `json:"refund_epoch_byte_counts,omitempty"`
}

// Element is the tagged union every (path, key) in the tree resolves to.
// Only the fields relevant to Kind are populated; Store implementations
// never rely on the others being zeroed, so callers must not read fields
// outside the active variant.
type Element struct {
	Kind Kind `json:"kind"`

	// Item
	ItemValue []byte `json:"item_value,omitempty"`

	// Reference
	ReferencePath [][]byte `json:"reference_path,omitempty"`

	// Tree / SumTree
	RootHash []byte `json:"root_hash,omitempty"`
	Sum      int64  `json:"sum,omitempty"` // SumTree only

	// SumItem
	SumItemValue int64 `json:"sum_item_value,omitempty"`

	Flags *StorageFlags `json:"flags,omitempty"`
}

// NewItem builds an Item element holding value.
func NewItem(value []byte, flags *StorageFlags) *Element {
	return &Element{Kind: KindItem, ItemValue: value, Flags: flags}
}

// NewReference builds a Reference element pointing at path.
func NewReference(path [][]byte, flags *StorageFlags) *Element {
	return &Element{Kind: KindReference, ReferencePath: path, Flags: flags}
}

// NewTree builds an empty normal subtree marker. Its RootHash is filled in
// by the store once the subtree has at least one member.
func NewTree(flags *StorageFlags) *Element {
	return &Element{Kind: KindTree, Flags: flags}
}

// NewSumTree builds an empty sum-tree marker.
func NewSumTree(flags *StorageFlags) *Element {
	return &Element{Kind: KindSumTree, Flags: flags}
}

// NewSumItem builds a SumItem element holding value, the numeric leaf kind
// a sum-tree aggregates over (e.g. a balance).
func NewSumItem(value int64, flags *StorageFlags) *Element {
	return &Element{Kind: KindSumItem, SumItemValue: value, Flags: flags}
}

// IsTreeKind reports whether the element is a Tree or SumTree, i.e. it
// names a subtree rather than a leaf value.
func (e *Element) IsTreeKind() bool {
	return e.Kind == KindTree || e.Kind == KindSumTree
}
