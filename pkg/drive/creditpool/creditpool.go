// Package creditpool implements the CreditPools subtree (§3, §4.5): one
// processing-fee accumulator per epoch, a single long-lived storage-fee
// pool shared across epochs, and the per-proposer block counts an epoch's
// processing pool is eventually split by. None of the four epoch-rollover
// steps is wired into a single entry point here — each is its own
// composable function, mirroring the rest of pkg/drive, with the
// multi-key read passes (which epoch is oldest-unpaid, which withdrawals
// have expired) left to a caller that queries the store before opening a
// batch.
package creditpool

import (
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/balance"
	"github.com/driveplatform/drive/pkg/drive/withdrawal"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

var (
	keyCredits = []byte("credits")
	keyBlocks  = []byte("blocks")
	keyTotal   = []byte("total")
	keyPaid    = []byte("paid")
)

func ensureSubtreeAt(ctx *drive.Context, path [][]byte, el *treestore.Element) error {
	return ctx.EnsureSubtree(path[:len(path)-1], path[len(path)-1], el)
}

func creditsPath(epochIndex uint64) [][]byte {
	return append(pathschema.EpochPoolPath(epochIndex), keyCredits)
}

func blocksPath(epochIndex uint64) [][]byte {
	return append(pathschema.EpochPoolPath(epochIndex), keyBlocks)
}

// ensureEpoch brings epochIndex's processing-fee pool into existence: the
// keyEpochPrefix grouping subtree under RootCreditPools (shared by every
// epoch), the epoch's own subtree, and its nested credits/blocks
// sum-trees.
func ensureEpoch(ctx *drive.Context, epochIndex uint64) error {
	epochPath := pathschema.EpochPoolPath(epochIndex)
	groupPath := epochPath[:len(epochPath)-1]
	if err := ctx.EnsureSubtree(groupPath[:len(groupPath)-1], groupPath[len(groupPath)-1], treestore.NewTree(nil)); err != nil {
		return err
	}
	if err := ensureSubtreeAt(ctx, epochPath, treestore.NewTree(nil)); err != nil {
		return err
	}
	if err := ensureSubtreeAt(ctx, creditsPath(epochIndex), treestore.NewSumTree(nil)); err != nil {
		return err
	}
	return ensureSubtreeAt(ctx, blocksPath(epochIndex), treestore.NewSumTree(nil))
}

// FetchProcessingPoolTotal returns epochIndex's accrued-but-unpaid
// processing-fee credits. A missing entry (epoch never accrued anything)
// reads as zero.
func FetchProcessingPoolTotal(store treestore.Store, epochIndex uint64) (int64, error) {
	el, err := store.Get(creditsPath(epochIndex), keyTotal)
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return 0, nil
		}
		return 0, err
	}
	return el.SumItemValue, nil
}

// IsPaid reports whether epochIndex's processing pool has already been
// distributed, so a rollover pass does not pay it out twice.
func IsPaid(store treestore.Store, epochIndex uint64) (bool, error) {
	return store.HasRaw(creditsPath(epochIndex), keyPaid)
}

// AccrueProcessingFees adds amount (typically a transition's
// processing_fee_credits, per §4.6's FeeResult) to epochIndex's
// processing pool and returns the new total.
func AccrueProcessingFees(ctx *drive.Context, epochIndex uint64, amount int64) (int64, error) {
	if err := ensureEpoch(ctx, epochIndex); err != nil {
		return 0, err
	}
	el, err := ctx.Get(creditsPath(epochIndex), keyTotal)
	var current int64
	switch {
	case err == nil:
		current = el.SumItemValue
	case err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound:
		current = 0
	default:
		return 0, err
	}
	next := current + amount
	ctx.Insert(creditsPath(epochIndex), keyTotal, treestore.NewSumItem(next, nil))
	return next, nil
}

// FetchBlockCounts returns every proposer's recorded block count for
// epochIndex, keyed by the raw proposer id bytes (as a string).
func FetchBlockCounts(store treestore.Store, epochIndex uint64) (map[string]int64, error) {
	pairs, _, err := store.Query(&treestore.PathQuery{
		Path: blocksPath(epochIndex),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.KeyRangeFrom(nil)},
			OrderAscending: true,
		},
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(pairs))
	for _, pair := range pairs {
		out[string(pair.Key)] = pair.Element.SumItemValue
	}
	return out, nil
}

// RecordProposedBlock increments proposerID's block count for epochIndex
// by one and returns the new count, called once per block as it is
// finalized (§4.5 step 3, "updates block counts").
func RecordProposedBlock(ctx *drive.Context, epochIndex uint64, proposerID []byte) (int64, error) {
	if err := ensureEpoch(ctx, epochIndex); err != nil {
		return 0, err
	}
	el, err := ctx.Get(blocksPath(epochIndex), proposerID)
	var current int64
	switch {
	case err == nil:
		current = el.SumItemValue
	case err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound:
		current = 0
	default:
		return 0, err
	}
	next := current + 1
	ctx.Insert(blocksPath(epochIndex), proposerID, treestore.NewSumItem(next, nil))
	return next, nil
}

func currentBalance(ctx *drive.Context, identityID []byte) (int64, error) {
	el, err := ctx.Get(pathschema.BalancePath(), pathschema.BalanceKey(identityID))
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return 0, nil
		}
		return 0, err
	}
	return el.SumItemValue, nil
}

// DistributeProcessingPool pays epochIndex's processing pool out to its
// proposers weighted by proposed-block counts (§4.5 step 1: "distributes
// the oldest unpaid epoch's processing pool to that epoch's proposers
// weighted by proposed-block counts"). total and blockCounts must come
// from FetchProcessingPoolTotal/FetchBlockCounts, read before this batch
// was opened. Integer division leaves a dust remainder uncredited to
// anyone; it stays recorded against the epoch rather than being handed to
// an arbitrary proposer. Calling this twice for the same epoch is a
// no-op the second time (IsPaid already true).
func DistributeProcessingPool(ctx *drive.Context, epochIndex uint64, total int64, blockCounts map[string]int64) (map[string]int64, error) {
	paid, err := ctx.HasRaw(creditsPath(epochIndex), keyPaid)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, nil
	}
	var totalBlocks int64
	for _, c := range blockCounts {
		totalBlocks += c
	}
	credited := make(map[string]int64, len(blockCounts))
	if totalBlocks > 0 && total > 0 {
		for proposerID, count := range blockCounts {
			share := total * count / totalBlocks
			if share == 0 {
				continue
			}
			current, err := currentBalance(ctx, []byte(proposerID))
			if err != nil {
				return nil, err
			}
			if _, err := balance.ApplyDelta(ctx, current, []byte(proposerID), share); err != nil {
				return nil, err
			}
			credited[proposerID] = share
		}
	}
	ctx.Insert(creditsPath(epochIndex), keyPaid, treestore.NewItem([]byte{1}, nil))
	return credited, nil
}

// FetchStorageFeePool returns the single long-lived storage-fee pool's
// current balance.
func FetchStorageFeePool(store treestore.Store) (int64, error) {
	el, err := store.Get(pathschema.StorageFeePoolPath(), keyTotal)
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return 0, nil
		}
		return 0, err
	}
	return el.SumItemValue, nil
}

func ensureStorageFeePool(ctx *drive.Context) error {
	return ensureSubtreeAt(ctx, pathschema.StorageFeePoolPath(), treestore.NewSumTree(nil))
}

// AccrueStorageFees adds amount (a transition's storage_fee_credits) to
// the shared storage-fee pool and returns its new total.
func AccrueStorageFees(ctx *drive.Context, amount int64) (int64, error) {
	if err := ensureStorageFeePool(ctx); err != nil {
		return 0, err
	}
	current, err := func() (int64, error) {
		el, err := ctx.Get(pathschema.StorageFeePoolPath(), keyTotal)
		if err != nil {
			if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
				return 0, nil
			}
			return 0, err
		}
		return el.SumItemValue, nil
	}()
	if err != nil {
		return 0, err
	}
	next := current + amount
	ctx.Insert(pathschema.StorageFeePoolPath(), keyTotal, treestore.NewSumItem(next, nil))
	return next, nil
}

// TransferStorageShare moves a shareBps/10000 fraction of the storage-fee
// pool's current balance into epochIndex's processing pool (§4.5 step 2:
// "transfers a configured share of the storage pool into the current
// epoch"), returning the amount moved.
func TransferStorageShare(ctx *drive.Context, epochIndex uint64, shareBps uint32) (int64, error) {
	if err := ensureStorageFeePool(ctx); err != nil {
		return 0, err
	}
	el, err := ctx.Get(pathschema.StorageFeePoolPath(), keyTotal)
	var storageTotal int64
	switch {
	case err == nil:
		storageTotal = el.SumItemValue
	case err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound:
		storageTotal = 0
	default:
		return 0, err
	}
	amount := storageTotal * int64(shareBps) / 10000
	if amount == 0 {
		return 0, nil
	}
	ctx.Insert(pathschema.StorageFeePoolPath(), keyTotal, treestore.NewSumItem(storageTotal-amount, nil))
	if _, err := AccrueProcessingFees(ctx, epochIndex, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// ReapExpiredWithdrawalLocks expires every withdrawal in candidates (from
// withdrawal.PendingInStage(store, stage)) whose ExpiresAtMs has passed
// blockTimeMs, releasing the output script it reserved (§4.5 step 4:
// "reaps expired withdrawal outpoint locks").
func ReapExpiredWithdrawalLocks(ctx *drive.Context, candidates []*withdrawal.Withdrawal, from withdrawal.Status, blockTimeMs uint64) (int, error) {
	reaped := 0
	for _, w := range candidates {
		if w.ExpiresAtMs == 0 || w.ExpiresAtMs > blockTimeMs {
			continue
		}
		if err := withdrawal.Expire(ctx, w, from); err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}
