package token_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/token"
	"github.com/driveplatform/drive/pkg/kvdb"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
	"github.com/driveplatform/drive/pkg/version"
)

func newEngine(t *testing.T) *drive.Engine {
	t.Helper()
	store := treestore.NewMemStore(kvdb.New(kvdb.NewMemDB()))
	require.NoError(t, store.Insert(nil, pathschema.RootTokens, treestore.NewTree(nil)))
	return drive.NewEngine(store, version.NewRegistry(version.New(1, nil)))
}

func TestDeriveTokenIDIsDeterministic(t *testing.T) {
	id1 := token.DeriveTokenID([]byte("contract-1"), 0)
	id2 := token.DeriveTokenID([]byte("contract-1"), 0)
	require.Equal(t, id1, id2)
	require.Len(t, id1, 32)

	id3 := token.DeriveTokenID([]byte("contract-1"), 1)
	require.NotEqual(t, id1, id3)
}

func TestMintRespectsMaxSupply(t *testing.T) {
	e := newEngine(t)
	tokenID := token.DeriveTokenID([]byte("contract-1"), 0)
	info := &token.ContractInfo{ContractID: []byte("contract-1"), MaxSupply: 1000, HasMaxSupply: true}

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return token.InsertContractInfo(ctx, tokenID, info)
	}))

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := token.Mint(ctx, tokenID, []byte("alice"), 1000, 0, 0, info)
		return err
	}))

	balance, err := token.Balance(e.Store(), tokenID, []byte("alice"))
	require.NoError(t, err)
	require.Equal(t, int64(1000), balance)

	err = e.Apply(func(ctx *drive.Context) error {
		_, err := token.Mint(ctx, tokenID, []byte("bob"), 1, 0, 1000, info)
		return err
	})
	require.ErrorIs(t, err, drive.ErrMaxSupplyExceeded)
}

func TestFreezeBlocksNothingDirectlyButIsFlaggedForCallers(t *testing.T) {
	e := newEngine(t)
	tokenID := token.DeriveTokenID([]byte("contract-1"), 0)
	info := &token.ContractInfo{ContractID: []byte("contract-1")}

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return token.InsertContractInfo(ctx, tokenID, info)
	}))

	frozen, err := token.IsFrozen(e.Store(), tokenID, []byte("alice"))
	require.NoError(t, err)
	require.False(t, frozen)

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		token.Freeze(ctx, tokenID, []byte("alice"))
		return nil
	}))

	frozen, err = token.IsFrozen(e.Store(), tokenID, []byte("alice"))
	require.NoError(t, err)
	require.True(t, frozen)

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		token.Unfreeze(ctx, tokenID, []byte("alice"))
		return nil
	}))
	frozen, err = token.IsFrozen(e.Store(), tokenID, []byte("alice"))
	require.NoError(t, err)
	require.False(t, frozen)
}

func TestTransferRejectsOverdraft(t *testing.T) {
	e := newEngine(t)
	tokenID := token.DeriveTokenID([]byte("contract-1"), 0)
	info := &token.ContractInfo{ContractID: []byte("contract-1")}

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if err := token.InsertContractInfo(ctx, tokenID, info); err != nil {
			return err
		}
		_, err := token.Mint(ctx, tokenID, []byte("alice"), 1000, 0, 0, info)
		return err
	}))

	err := e.Apply(func(ctx *drive.Context) error {
		_, _, err := token.Transfer(ctx, tokenID, []byte("alice"), []byte("bob"), 2000, 1000, 0)
		return err
	})
	require.ErrorIs(t, err, drive.ErrInsufficientBalance)
}

func TestDistributionQueueDequeuesOnlyDueEntries(t *testing.T) {
	e := newEngine(t)
	tokenID := token.DeriveTokenID([]byte("contract-1"), 0)
	info := &token.ContractInfo{ContractID: []byte("contract-1")}

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if err := token.InsertContractInfo(ctx, tokenID, info); err != nil {
			return err
		}
		if err := token.Enqueue(ctx, tokenID, &token.DistributionEntry{TimestampMs: 100, RecipientID: []byte("alice"), Amount: 10}); err != nil {
			return err
		}
		return token.Enqueue(ctx, tokenID, &token.DistributionEntry{TimestampMs: 200, RecipientID: []byte("bob"), Amount: 20})
	}))

	due, err := token.DueEntries(e.Store(), tokenID, 150)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, []byte("alice"), due[0].RecipientID)

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		for _, entry := range due {
			token.Dequeue(ctx, tokenID, entry)
		}
		return nil
	}))

	due, err = token.DueEntries(e.Store(), tokenID, 1000)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, []byte("bob"), due[0].RecipientID)
}
