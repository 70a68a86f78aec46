package identity

import (
	"encoding/binary"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// nonceKey stores an identity's global nonce counter alongside its
// "record" entry, within the same already-ensured subtree — no extra
// bring-up needed.
var nonceKey = []byte("nonce")

func decodeNonce(el *treestore.Element) uint64 {
	if len(el.ItemValue) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(el.ItemValue)
}

func encodeNonce(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// FetchNonce returns id's current global nonce (I4's first axis), zero
// if never bumped.
func FetchNonce(store treestore.Store, id []byte) (uint64, error) {
	el, err := store.Get(pathschema.IdentityPath(id), nonceKey)
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return 0, nil
		}
		return 0, err
	}
	return decodeNonce(el), nil
}

// BumpNonce increments id's global nonce by one and returns the new
// value. The identity's own subtree must already exist (created by
// Insert); BumpNonce never brings an identity into existence.
func BumpNonce(ctx *drive.Context, id []byte, current uint64) uint64 {
	next := current + 1
	ctx.Insert(pathschema.IdentityPath(id), nonceKey, treestore.NewItem(encodeNonce(next), nil))
	return next
}

func ensureContractNonceSubtree(ctx *drive.Context, id []byte) error {
	path := pathschema.IdentityContractNoncePath(id)
	return ctx.EnsureSubtree(path[:len(path)-1], path[len(path)-1], treestore.NewTree(nil))
}

// FetchContractNonce returns id's nonce scoped to contractID (I4's
// second axis), zero if never bumped.
func FetchContractNonce(store treestore.Store, id, contractID []byte) (uint64, error) {
	el, err := store.Get(pathschema.IdentityContractNoncePath(id), contractID)
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return 0, nil
		}
		return 0, err
	}
	return decodeNonce(el), nil
}

// BumpContractNonce increments id's nonce scoped to contractID by one
// and returns the new value, bringing the per-contract nonce subtree
// into existence on first use.
func BumpContractNonce(ctx *drive.Context, id, contractID []byte, current uint64) (uint64, error) {
	if err := ensureContractNonceSubtree(ctx, id); err != nil {
		return 0, err
	}
	next := current + 1
	ctx.Insert(pathschema.IdentityContractNoncePath(id), contractID, treestore.NewItem(encodeNonce(next), nil))
	return next, nil
}
