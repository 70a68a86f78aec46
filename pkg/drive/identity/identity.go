// Package identity implements the Identities subtree (§3, §4.5): identity
// records and the dual-written key indices that let a dispatch site ask
// "which of this identity's keys satisfy (purpose, security level)"
// without scanning every key the identity owns.
package identity

import (
	"encoding/json"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

type Purpose byte

const (
	PurposeAuthentication Purpose = iota
	PurposeEncryption
	PurposeDecryption
	PurposeTransfer
	PurposeOwner
	PurposeVoting
	PurposeSystem
)

type SecurityLevel byte

const (
	SecurityLevelMaster SecurityLevel = iota
	SecurityLevelCritical
	SecurityLevelHigh
	SecurityLevelMedium
)

type KeyType byte

const (
	KeyTypeECDSASecp256k1 KeyType = iota
	KeyTypeBLS12381
	KeyTypeECDSAHash160
	KeyTypeBIP13ScriptHash
	KeyTypeEdDSA25519Hash160
)

// PublicKey is one entry in an identity's key map.
type PublicKey struct {
	ID             uint32        `json:"id"`
	Purpose        Purpose       `json:"purpose"`
	SecurityLevel  SecurityLevel `json:"security_level"`
	KeyType        KeyType       `json:"key_type"`
	ReadOnly       bool          `json:"read_only"`
	Data           []byte        `json:"data"`
	ContractBounds []byte        `json:"contract_bounds,omitempty"`
	DisabledAt     uint64        `json:"disabled_at,omitempty"`
}

func (k PublicKey) Disabled() bool { return k.DisabledAt != 0 }

// Identity is the decoded shape of an Identities subtree record.
type Identity struct {
	ID       []byte      `json:"id"`
	Revision uint64      `json:"revision"`
	Keys     []PublicKey `json:"keys"`
}

// Fetch reads identity id's record. Returns drive.ErrIdentityNotFound if
// absent.
func Fetch(store treestore.Store, id []byte) (*Identity, error) {
	el, err := store.Get(pathschema.IdentityPath(id), []byte("record"))
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return nil, drive.ErrIdentityNotFound
		}
		return nil, err
	}
	var ident Identity
	if err := json.Unmarshal(el.ItemValue, &ident); err != nil {
		return nil, err
	}
	return &ident, nil
}

// Prove builds a proved path query for identity id's record.
func Prove(store treestore.Store, id []byte) ([]byte, error) {
	pq := &treestore.PathQuery{
		Path: pathschema.IdentityPath(id),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.ExactKey([]byte("record"))},
			OrderAscending: true,
		},
	}
	return store.QueryProved(pq)
}

// Insert creates a new identity record plus its key-by-id entries and
// purpose/security-level reference entries, all within one batch.
func Insert(ctx *drive.Context, ident *Identity) error {
	if err := ctx.EnsureSubtree([][]byte{pathschema.RootIdentities}, ident.ID, treestore.NewTree(nil)); err != nil {
		return err
	}
	path := pathschema.IdentityPath(ident.ID)
	raw, err := json.Marshal(ident)
	if err != nil {
		return err
	}
	ctx.Insert(path, []byte("record"), treestore.NewItem(raw, nil))

	keysByID := pathschema.IdentityKeysByIDPath(ident.ID)
	if err := ctx.EnsureSubtree(path, keyKeysByIDLastSegment(ident.ID), treestore.NewTree(nil)); err != nil {
		return err
	}
	for _, key := range ident.Keys {
		if err := writeKey(ctx, ident.ID, keysByID, key); err != nil {
			return err
		}
	}
	return nil
}

func keyKeysByIDLastSegment(id []byte) []byte {
	p := pathschema.IdentityKeysByIDPath(id)
	return p[len(p)-1]
}

func writeKey(ctx *drive.Context, identityID []byte, keysByID [][]byte, key PublicKey) error {
	keyIDBytes := keyIDKey(key.ID)
	raw, err := json.Marshal(key)
	if err != nil {
		return err
	}
	ctx.Insert(keysByID, keyIDBytes, treestore.NewItem(raw, nil))

	queryPath := pathschema.IdentityQueryKeysForAuthenticationPath(identityID, byte(key.Purpose), byte(key.SecurityLevel))
	if err := ensureQueryPathSubtrees(ctx, identityID, key.Purpose, key.SecurityLevel); err != nil {
		return err
	}
	if key.Disabled() {
		return nil
	}
	ctx.Insert(queryPath, keyIDBytes, treestore.NewReference(append(append([][]byte{}, keysByID...), keyIDBytes), nil))
	return nil
}

func ensureQueryPathSubtrees(ctx *drive.Context, identityID []byte, purpose Purpose, level SecurityLevel) error {
	byPurpose := [][]byte{pathschema.RootIdentities, identityID}
	if err := ctx.EnsureSubtree(byPurpose, []byte{0x01}, treestore.NewTree(nil)); err != nil {
		return err
	}
	byPurposeSub := append(append([][]byte{}, byPurpose...), []byte{0x01})
	if err := ctx.EnsureSubtree(byPurposeSub, []byte{byte(purpose)}, treestore.NewTree(nil)); err != nil {
		return err
	}
	byLevelSub := append(append([][]byte{}, byPurposeSub...), []byte{byte(purpose)})
	return ctx.EnsureSubtree(byLevelSub, []byte{byte(level)}, treestore.NewTree(nil))
}

func keyIDKey(id uint32) []byte {
	return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
}

// DisableKey stamps disabledAtMs on keyID rather than deleting it, so
// signatures made before the key was disabled keep verifying against
// historical state. It removes the key's entry from the purpose/level
// reference subtree (so new signature checks stop accepting it) but
// leaves the record under keys-by-id intact.
func DisableKey(ctx *drive.Context, ident *Identity, keyID uint32, disabledAtMs uint64) error {
	var target *PublicKey
	for i := range ident.Keys {
		if ident.Keys[i].ID == keyID {
			target = &ident.Keys[i]
			break
		}
	}
	if target == nil {
		return drive.ErrIdentityNotFound
	}
	target.DisabledAt = disabledAtMs

	keysByID := pathschema.IdentityKeysByIDPath(ident.ID)
	raw, err := json.Marshal(*target)
	if err != nil {
		return err
	}
	ctx.Insert(keysByID, keyIDKey(keyID), treestore.NewItem(raw, nil))

	queryPath := pathschema.IdentityQueryKeysForAuthenticationPath(ident.ID, byte(target.Purpose), byte(target.SecurityLevel))
	ctx.Delete(queryPath, keyIDKey(keyID))

	path := pathschema.IdentityPath(ident.ID)
	identRaw, err := json.Marshal(ident)
	if err != nil {
		return err
	}
	ctx.Insert(path, []byte("record"), treestore.NewItem(identRaw, nil))
	return nil
}

// AddKeys appends newKeys to ident and writes their by-id and
// by-purpose/level entries.
func AddKeys(ctx *drive.Context, ident *Identity, newKeys []PublicKey) error {
	ident.Keys = append(ident.Keys, newKeys...)
	keysByID := pathschema.IdentityKeysByIDPath(ident.ID)
	for _, key := range newKeys {
		if err := writeKey(ctx, ident.ID, keysByID, key); err != nil {
			return err
		}
	}
	path := pathschema.IdentityPath(ident.ID)
	raw, err := json.Marshal(ident)
	if err != nil {
		return err
	}
	ctx.Insert(path, []byte("record"), treestore.NewItem(raw, nil))
	return nil
}

// BumpRevision increments ident's revision and persists the record. Used
// by IdentityUpdate actions independent of which fields changed.
func BumpRevision(ctx *drive.Context, ident *Identity) error {
	ident.Revision++
	path := pathschema.IdentityPath(ident.ID)
	raw, err := json.Marshal(ident)
	if err != nil {
		return err
	}
	ctx.Insert(path, []byte("record"), treestore.NewItem(raw, nil))
	return nil
}
