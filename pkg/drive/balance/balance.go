// Package balance implements the Balances subtree: a single sum-tree
// mapping identity id to its credit balance, plus the total-system-credits
// accounting invariant (I1) depends on.
package balance

import (
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// Fetch returns identityID's balance in credits. A missing entry reads as
// zero rather than an error: an identity with no stored balance element
// has never received credits.
func Fetch(store treestore.Store, identityID []byte) (int64, error) {
	el, err := store.Get(pathschema.BalancePath(), pathschema.BalanceKey(identityID))
	if err != nil {
		if err == treestore.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return el.SumItemValue, nil
}

// Prove builds a proved path query for identityID's balance entry.
func Prove(store treestore.Store, identityID []byte) ([]byte, error) {
	pq := &treestore.PathQuery{
		Path: pathschema.BalancePath(),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.ExactKey(pathschema.BalanceKey(identityID))},
			OrderAscending: true,
		},
	}
	return store.QueryProved(pq)
}

// Set writes identityID's balance to amount, creating the sum-item entry
// if absent.
func Set(ctx *drive.Context, identityID []byte, amount int64) error {
	ctx.Insert(pathschema.BalancePath(), pathschema.BalanceKey(identityID), treestore.NewSumItem(amount, nil))
	return nil
}

// ApplyDelta adds delta (which may be negative) to identityID's stored
// balance and returns the resulting balance. Balances never go negative
// in the sum-tree itself (a sum-tree's maintained total would otherwise
// undercount every ancestor it rolls up into); a delta that would drive
// the balance below zero stores zero instead, with no error and no debt
// recorded for the difference. Charge, not ApplyDelta, is
// what debits a fee that might exceed balance.
func ApplyDelta(ctx *drive.Context, current int64, identityID []byte, delta int64) (int64, error) {
	next := current + delta
	if next < 0 {
		next = 0
	}
	if err := Set(ctx, identityID, next); err != nil {
		return 0, err
	}
	return next, nil
}

// FetchDebt returns identityID's accrued negative-balance debt: credits a
// past fee charge was owed but the balance could not cover, clamped to
// zero there instead of going negative. A missing entry reads as zero.
func FetchDebt(store treestore.Store, identityID []byte) (int64, error) {
	el, err := store.Get(pathschema.NegativeBalanceDebtPath(), identityID)
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return 0, nil
		}
		return 0, err
	}
	return el.SumItemValue, nil
}

func ensureDebtSubtree(ctx *drive.Context) error {
	path := pathschema.NegativeBalanceDebtPath()
	return ctx.EnsureSubtree(path[:len(path)-1], path[len(path)-1], treestore.NewSumTree(nil))
}

// IncrementDebt adds amount to identityID's negative-balance debt and
// returns the new total.
func IncrementDebt(ctx *drive.Context, identityID []byte, current, amount int64) (int64, error) {
	if err := ensureDebtSubtree(ctx); err != nil {
		return 0, err
	}
	next := current + amount
	ctx.Insert(pathschema.NegativeBalanceDebtPath(), identityID, treestore.NewSumItem(next, nil))
	return next, nil
}

// TotalNegativeBalanceDebt sums every identity's accrued debt, the
// Σ negative_balances term invariant I1 subtracts from total system
// credits. Like TotalSystemCredits, this is an audit/test helper, not a
// hot-path read.
func TotalNegativeBalanceDebt(store treestore.Store) (int64, error) {
	pairs, _, err := store.Query(&treestore.PathQuery{
		Path: pathschema.NegativeBalanceDebtPath(),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.KeyRangeFrom(nil)},
			OrderAscending: true,
		},
	})
	if err != nil {
		if err == treestore.ErrSubtreeNotFound {
			return 0, nil
		}
		return 0, err
	}
	var total int64
	for _, pair := range pairs {
		total += pair.Element.SumItemValue
	}
	return total, nil
}

// Charge debits amount (a fee's desired cost) from identityID's balance,
// clamping the stored balance at zero and crediting the shortfall to its
// negative-balance debt instead of letting the balance itself go
// negative (§4.6 step 8, §8 I1). It returns the balance actually paid
// (<= amount) and the debt increment this call caused (0 when the
// balance fully covered amount).
func Charge(ctx *drive.Context, current int64, identityID []byte, amount int64) (paid, debtIncurred int64, err error) {
	if amount <= current {
		if _, err := ApplyDelta(ctx, current, identityID, -amount); err != nil {
			return 0, 0, err
		}
		return amount, 0, nil
	}

	if err := Set(ctx, identityID, 0); err != nil {
		return 0, 0, err
	}
	shortfall := amount - current
	var debt int64
	el, err := ctx.Get(pathschema.NegativeBalanceDebtPath(), identityID)
	switch {
	case err == nil:
		debt = el.SumItemValue
	case err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound:
		debt = 0
	default:
		return 0, 0, err
	}
	if _, err := IncrementDebt(ctx, identityID, debt, shortfall); err != nil {
		return 0, 0, err
	}
	return current, shortfall, nil
}

// TotalSystemCredits sums every balance entry in the sum-tree, used to
// check invariant I1 in tests and audits. It is not on Drive's hot path:
// production code reads the sum-tree's own maintained total instead of
// re-summing.
func TotalSystemCredits(store treestore.Store) (int64, error) {
	pairs, _, err := store.Query(&treestore.PathQuery{
		Path: pathschema.BalancePath(),
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
