// Package token implements the Tokens subtree (§3, §4.5): per-identity
// balances as a sum-tree, freeze markers, a contract back-reference, and
// the millisecond-timed distribution queue pre-programmed/block-based/
// time-based schedules wait in before the engine dequeues and credits
// them.
package token

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// DeriveTokenID computes the deterministic 32-byte token id for the
// token declared at position within contractID: hash_double("dash_token"
// || contract_id || position_be_bytes), per §6.
func DeriveTokenID(contractID []byte, position uint32) []byte {
	buf := make([]byte, 0, len("dash_token")+len(contractID)+4)
	buf = append(buf, []byte("dash_token")...)
	buf = append(buf, contractID...)
	posBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(posBytes, position)
	buf = append(buf, posBytes...)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	return second[:]
}

// ContractInfo is the contract back-reference stored for a token.
type ContractInfo struct {
	ContractID   []byte `json:"contract_id"`
	Position     uint32 `json:"position"`
	MaxSupply    int64  `json:"max_supply,omitempty"` // 0 means unconfigured
	HasMaxSupply bool   `json:"has_max_supply"`

	// Paused blocks Mint/Burn/Transfer while an emergency action is in
	// effect, the minimal form of §3's "contract owner can pause a
	// token's economy" emergency-action concept.
	Paused bool `json:"paused,omitempty"`

	// DirectPurchasePriceCredits is the per-unit price a holder of
	// RootTokens config-update rights set for direct purchase; zero
	// means the token is not currently listed.
	DirectPurchasePriceCredits int64 `json:"direct_purchase_price_credits,omitempty"`
}

const contractInfoKey = "info"

// ensureSubtreeAt ensures the subtree path itself (not one of its
// members) exists, by splitting it into its parent and final segment.
func ensureSubtreeAt(ctx *drive.Context, path [][]byte, el *treestore.Element) error {
	return ctx.EnsureSubtree(path[:len(path)-1], path[len(path)-1], el)
}

// InsertContractInfo creates tokenID's whole subtree layout (balances
// sum-tree, frozen markers, distribution queue, contract-info record) and
// writes info. This is the one place a token comes into existence.
func InsertContractInfo(ctx *drive.Context, tokenID []byte, info *ContractInfo) error {
	if err := ctx.EnsureSubtree([][]byte{pathschema.RootTokens}, tokenID, treestore.NewTree(nil)); err != nil {
		return err
	}
	if err := ensureSubtreeAt(ctx, pathschema.TokenBalancesPath(tokenID), treestore.NewSumTree(nil)); err != nil {
		return err
	}
	if err := ensureSubtreeAt(ctx, pathschema.TokenFrozenPath(tokenID), treestore.NewTree(nil)); err != nil {
		return err
	}
	if err := ensureSubtreeAt(ctx, pathschema.TokenDistributionQueuePath(tokenID), treestore.NewTree(nil)); err != nil {
		return err
	}
	if err := ensureSubtreeAt(ctx, pathschema.TokenContractInfoPath(tokenID), treestore.NewTree(nil)); err != nil {
		return err
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	ctx.Insert(pathschema.TokenContractInfoPath(tokenID), []byte(contractInfoKey), treestore.NewItem(raw, nil))
	return nil
}

// FetchContractInfo reads tokenID's contract back-reference.
func FetchContractInfo(store treestore.Store, tokenID []byte) (*ContractInfo, error) {
	el, err := store.Get(pathschema.TokenContractInfoPath(tokenID), []byte(contractInfoKey))
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return nil, drive.ErrTokenNotFound
		}
		return nil, err
	}
	var info ContractInfo
	if err := json.Unmarshal(el.ItemValue, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Prove builds a proved path query for identityID's balance of tokenID.
func Prove(store treestore.Store, tokenID, identityID []byte) ([]byte, error) {
	pq := &treestore.PathQuery{
		Path: pathschema.TokenBalancesPath(tokenID),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.ExactKey(identityID)},
			OrderAscending: true,
		},
	}
	return store.QueryProved(pq)
}

// Balance returns identityID's balance of tokenID. A missing entry reads
// as zero.
func Balance(store treestore.Store, tokenID, identityID []byte) (int64, error) {
	el, err := store.Get(pathschema.TokenBalancesPath(tokenID), identityID)
	if err != nil {
		if err == treestore.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return el.SumItemValue, nil
}

func setBalance(ctx *drive.Context, tokenID, identityID []byte, amount int64) {
	ctx.Insert(pathschema.TokenBalancesPath(tokenID), identityID, treestore.NewSumItem(amount, nil))
}

// CirculatingSupply sums every identity balance entry for tokenID.
func CirculatingSupply(store treestore.Store, tokenID []byte) (int64, error) {
	pairs, _, err := store.Query(&treestore.PathQuery{
		Path: pathschema.TokenBalancesPath(tokenID),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.KeyRangeFrom(nil)},
			OrderAscending: true,
		},
	})
	if err != nil {
		return 0, err
	}
	var total int64
	for _, pair := range pairs {
		total += pair.Element.SumItemValue
	}
	return total, nil
}

// IsFrozen reports whether identityID's balance of tokenID is frozen.
func IsFrozen(store treestore.Store, tokenID, identityID []byte) (bool, error) {
	return store.HasRaw(pathschema.TokenFrozenPath(tokenID), identityID)
}

var frozenMarker = []byte("x")

// Freeze marks identityID's balance of tokenID as frozen. The frozen
// subtree itself was already created by InsertContractInfo.
func Freeze(ctx *drive.Context, tokenID, identityID []byte) {
	ctx.Insert(pathschema.TokenFrozenPath(tokenID), identityID, treestore.NewItem(frozenMarker, nil))
}

// Unfreeze removes identityID's frozen marker for tokenID.
func Unfreeze(ctx *drive.Context, tokenID, identityID []byte) {
	ctx.Delete(pathschema.TokenFrozenPath(tokenID), identityID)
}

// DestroyFrozenFunds zeroes out a frozen identity's balance, returning the
// destroyed amount. The caller is responsible for checking IsFrozen first.
func DestroyFrozenFunds(ctx *drive.Context, tokenID, identityID []byte, current int64) int64 {
	setBalance(ctx, tokenID, identityID, 0)
	return current
}

// Mint credits amount of tokenID to identityID, enforcing the configured
// max_supply cap (invariant I2) when info.HasMaxSupply is set.
func Mint(ctx *drive.Context, tokenID, identityID []byte, amount int64, current, circulating int64, info *ContractInfo) (int64, error) {
	if amount < 0 {
		return 0, drive.ErrNegativeSupply
	}
	if info != nil && info.HasMaxSupply {
		if circulating+amount > info.MaxSupply {
			return 0, drive.ErrMaxSupplyExceeded
		}
	}
	next := current + amount
	setBalance(ctx, tokenID, identityID, next)
	return next, nil
}

// Burn debits amount of tokenID from identityID, rejecting an
// over-withdrawal (invariant "balance ≥ 0").
func Burn(ctx *drive.Context, tokenID, identityID []byte, amount int64, current int64) (int64, error) {
	if amount > current {
		return 0, drive.ErrInsufficientBalance
	}
	next := current - amount
	setBalance(ctx, tokenID, identityID, next)
	return next, nil
}

func writeContractInfo(ctx *drive.Context, info *ContractInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	ctx.Insert(pathschema.TokenContractInfoPath(DeriveTokenID(info.ContractID, info.Position)), []byte(contractInfoKey), treestore.NewItem(raw, nil))
	return nil
}

// SetMaxSupply updates a token's configured supply cap (the §3 config
// update action's most common target). Passing hasMaxSupply false removes
// the cap entirely.
func SetMaxSupply(ctx *drive.Context, info *ContractInfo, maxSupply int64, hasMaxSupply bool) error {
	info.MaxSupply = maxSupply
	info.HasMaxSupply = hasMaxSupply
	return writeContractInfo(ctx, info)
}

// Pause and Resume implement the emergency-action concept: while paused,
// the action-construction layer refuses Mint/Burn/Transfer before they
// ever reach this package.
func Pause(ctx *drive.Context, info *ContractInfo) error {
	info.Paused = true
	return writeContractInfo(ctx, info)
}

func Resume(ctx *drive.Context, info *ContractInfo) error {
	info.Paused = false
	return writeContractInfo(ctx, info)
}

// SetDirectPurchasePrice lists (or delists, with priceCredits zero) a
// token for direct purchase from its own unissued supply.
func SetDirectPurchasePrice(ctx *drive.Context, info *ContractInfo, priceCredits int64) error {
	info.DirectPurchasePriceCredits = priceCredits
	return writeContractInfo(ctx, info)
}

// Purchase mints purchaseAmount of tokenID to buyer in exchange for
// credits, which the caller moves into the contract owner's balance in
// the same batch. It enforces the listed price and the max-supply cap the
// same way Mint does.
func Purchase(ctx *drive.Context, tokenID, buyer []byte, purchaseAmount int64, current, circulating int64, info *ContractInfo) (nextBalance int64, costCredits int64, err error) {
	if info.DirectPurchasePriceCredits <= 0 {
		return 0, 0, drive.ErrTokenNotFound
	}
	nextBalance, err = Mint(ctx, tokenID, buyer, purchaseAmount, current, circulating, info)
	if err != nil {
		return 0, 0, err
	}
	return nextBalance, purchaseAmount * info.DirectPurchasePriceCredits, nil
}

// Transfer moves amount of tokenID from sender to recipient. The caller
// must have already confirmed sender is not frozen (invariant 5): Transfer
// itself does not re-check, so frozen-state decisions stay in the caller's
// action-construction step where the StateError is raised.
func Transfer(ctx *drive.Context, tokenID, sender, recipient []byte, amount, senderBalance, recipientBalance int64) (senderNext, recipientNext int64, err error) {
	if amount > senderBalance {
		return 0, 0, drive.ErrInsufficientBalance
	}
	senderNext = senderBalance - amount
	recipientNext = recipientBalance + amount
	setBalance(ctx, tokenID, sender, senderNext)
	setBalance(ctx, tokenID, recipient, recipientNext)
	return senderNext, recipientNext, nil
}
