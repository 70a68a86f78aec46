package document

import (
	"fmt"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/contract"
)

type Operator string

const (
	OpEqual        Operator = "=="
	OpLessThan     Operator = "<"
	OpLessOrEqual  Operator = "<="
	OpGreaterThan  Operator = ">"
	OpGreaterEqual Operator = ">="
	OpIn           Operator = "in"
	OpStartsWith   Operator = "startsWith"
)

func (op Operator) isRangeLike() bool {
	switch op {
	case OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterEqual, OpIn, OpStartsWith:
		return true
	}
	return false
}

// WhereClause is one conjunct of a DocumentQuery's filter.
type WhereClause struct {
	Property string
	Op       Operator
	Value    interface{}
}

// OrderClause is one entry of a DocumentQuery's ORDER BY.
type OrderClause struct {
	Property  string
	Ascending bool
}

// Query mirrors DriveDocumentQuery (§4.5): contract/type plus filter,
// ordering, and paging.
type Query struct {
	ContractID      []byte
	DocumentType    string
	Where           []WhereClause
	OrderBy         []OrderClause
	Limit           uint32
	StartAt         []byte
	StartAtExcluded bool
	BlockTimeMs     uint64
}

type errMissingIndexedProperty string

func (e errMissingIndexedProperty) Error() string {
	return fmt.Sprintf("document: missing value for indexed property %q", string(e))
}

// SelectIndex picks the index on dt whose property prefix matches q's
// equality clauses, optionally followed by exactly one range/IN/
// startsWith clause on the very next property (the "last-used property"
// rule, §4.5). Ties on fewer unused trailing properties are broken by
// declaration order.
//
// The original's matcher does a backward scan and allows its one
// range/IN clause to land on the index's last OR second-to-last
// property depending on conditions this module's source material does
// not pin down. Rather than guess that rule, SelectIndex only accepts
// the range/IN clause on the property immediately following the
// equality prefix (the unambiguous case) and fails closed — returning
// drive.ErrNoMatchingIndex — for anything that would require guessing
// the backward-scan's exact behavior.
func SelectIndex(dt *contract.DocumentType, q Query) (*contract.Index, error) {
	type candidate struct {
		idx     *contract.Index
		unused  int
		declOrd int
	}
	var best *candidate

	for i := range dt.Indices {
		idx := &dt.Indices[i]
		used, ok := matchIndexPrefix(idx, q.Where)
		if !ok {
			continue
		}
		if !orderingCompatible(idx, used, q.OrderBy) {
			continue
		}
		unused := len(idx.Properties) - used
		if best == nil || unused < best.unused {
			best = &candidate{idx: idx, unused: unused, declOrd: i}
		}
	}
	if best == nil {
		return nil, drive.ErrNoMatchingIndex
	}
	return best.idx, nil
}

// matchIndexPrefix reports how many of idx's leading properties are
// consumed by where, and whether every clause in where was consumed
// (an unconsumed clause means this index cannot serve the query).
func matchIndexPrefix(idx *contract.Index, where []WhereClause) (used int, ok bool) {
	byProperty := make(map[string]WhereClause, len(where))
	for _, w := range where {
		byProperty[w.Property] = w
	}
	consumed := make(map[string]bool, len(where))

	for _, prop := range idx.Properties {
		clause, has := byProperty[prop.Name]
		if !has {
			break
		}
		consumed[prop.Name] = true
		used++
		if clause.Op.isRangeLike() {
			break
		}
		if clause.Op != OpEqual {
			return used, false
		}
	}

	if len(consumed) != len(where) {
		return used, false
	}
	return used, true
}

// orderingCompatible reports whether the index's properties starting
// right after the matched prefix can serve order. An empty order
// always matches.
func orderingCompatible(idx *contract.Index, used int, order []OrderClause) bool {
	if len(order) == 0 {
		return true
	}
	if used+len(order) > len(idx.Properties) {
		return false
	}
	for i, o := range order {
		if idx.Properties[used+i].Name != o.Property {
			return false
		}
		if idx.Properties[used+i].Ascending != o.Ascending {
			return false
		}
	}
	return true
}

// encodeIndexValue produces the byte encoding used as an index path
// segment for v. Supported scalar kinds are the ones document properties
// are defined over; ordering of the byte encoding must preserve the
// natural ordering of v's type for range queries to be correct.
func encodeIndexValue(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	case int64:
		return encodeOrderedInt64(t), nil
	case float64:
		return encodeOrderedInt64(int64(t)), nil
	case bool:
		if t {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	default:
		return nil, fmt.Errorf("document: unsupported indexed value type %T", v)
	}
}

// encodeOrderedInt64 flips the sign bit so two's-complement integers
// sort correctly as unsigned big-endian byte strings.
func encodeOrderedInt64(v int64) []byte {
	u := uint64(v) ^ (1 << 63)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> uint(56-8*i))
	}
	return b
}
