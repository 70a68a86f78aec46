package treestore

import (
	"encoding/binary"
	"encoding/json"
)

// encodePath produces a collision-free string identifying a subtree path,
// length-prefixing each segment so that e.g. [][]byte{{'a','b'},{'c'}} and
// [][]byte{{'a'},{'b','c'}} never collide.
func encodePath(path [][]byte) string {
	buf := make([]byte, 0, 4*len(path)+16)
	var lenBuf [4]byte
	for _, seg := range path {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(seg)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, seg...)
	}
	return string(buf)
}

// rawKey produces the backing-store key for one (path, key) pair.
func rawKey(path [][]byte, key []byte) []byte {
	p := encodePath(path)
	out := make([]byte, 0, len(p)+4+len(key))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
	out = append(out, lenBuf[:]...)
	out = append(out, p...)
	out = append(out, key...)
	return out
}

func encodeElement(e *Element) ([]byte, error) {
	return json.Marshal(e)
}

func decodeElement(data []byte) (*Element, error) {
	var e Element
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func childPath(path [][]byte, key []byte) [][]byte {
	out := make([][]byte, len(path)+1)
	copy(out, path)
	out[len(path)] = append([]byte(nil), key...)
	return out
}
