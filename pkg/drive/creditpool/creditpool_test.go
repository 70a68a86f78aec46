package creditpool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/balance"
	"github.com/driveplatform/drive/pkg/drive/creditpool"
	"github.com/driveplatform/drive/pkg/drive/withdrawal"
	"github.com/driveplatform/drive/pkg/kvdb"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
	"github.com/driveplatform/drive/pkg/version"
)

func newEngine(t *testing.T) *drive.Engine {
	t.Helper()
	store := treestore.NewMemStore(kvdb.New(kvdb.NewMemDB()))
	require.NoError(t, store.Insert(nil, pathschema.RootCreditPools, treestore.NewTree(nil)))
	require.NoError(t, store.Insert(nil, pathschema.RootBalances, treestore.NewSumTree(nil)))
	require.NoError(t, store.Insert(nil, pathschema.RootWithdrawalTransactions, treestore.NewTree(nil)))
	for _, path := range [][][]byte{
		pathschema.WithdrawalQueuedPath(),
		pathschema.WithdrawalPooledPath(),
	} {
		parent, key := path[:len(path)-1], path[len(path)-1]
		require.NoError(t, store.Insert(parent, key, treestore.NewTree(nil)))
	}
	return drive.NewEngine(store, version.NewRegistry(version.New(1, nil)))
}

func TestAccrueProcessingFeesAccumulates(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := creditpool.AccrueProcessingFees(ctx, 3, 100)
		return err
	}))
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := creditpool.AccrueProcessingFees(ctx, 3, 50)
		return err
	}))

	total, err := creditpool.FetchProcessingPoolTotal(e.Store(), 3)
	require.NoError(t, err)
	require.Equal(t, int64(150), total)
}

func TestRecordProposedBlockIncrementsCount(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if _, err := creditpool.RecordProposedBlock(ctx, 3, []byte("proposer-a")); err != nil {
			return err
		}
		if _, err := creditpool.RecordProposedBlock(ctx, 3, []byte("proposer-a")); err != nil {
			return err
		}
		_, err := creditpool.RecordProposedBlock(ctx, 3, []byte("proposer-b"))
		return err
	}))

	counts, err := creditpool.FetchBlockCounts(e.Store(), 3)
	require.NoError(t, err)
	require.Equal(t, int64(2), counts["proposer-a"])
	require.Equal(t, int64(1), counts["proposer-b"])
}

func TestDistributeProcessingPoolWeightsByBlockCount(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if _, err := creditpool.AccrueProcessingFees(ctx, 3, 300); err != nil {
			return err
		}
		if _, err := creditpool.RecordProposedBlock(ctx, 3, []byte("proposer-a")); err != nil {
			return err
		}
		if _, err := creditpool.RecordProposedBlock(ctx, 3, []byte("proposer-a")); err != nil {
			return err
		}
		_, err := creditpool.RecordProposedBlock(ctx, 3, []byte("proposer-b"))
		return err
	}))

	total, err := creditpool.FetchProcessingPoolTotal(e.Store(), 3)
	require.NoError(t, err)
	counts, err := creditpool.FetchBlockCounts(e.Store(), 3)
	require.NoError(t, err)

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := creditpool.DistributeProcessingPool(ctx, 3, total, counts)
		return err
	}))

	balA, err := balance.Fetch(e.Store(), []byte("proposer-a"))
	require.NoError(t, err)
	balB, err := balance.Fetch(e.Store(), []byte("proposer-b"))
	require.NoError(t, err)
	require.Equal(t, int64(200), balA)
	require.Equal(t, int64(100), balB)

	paid, err := creditpool.IsPaid(e.Store(), 3)
	require.NoError(t, err)
	require.True(t, paid)
}

func TestDistributeProcessingPoolIsNoopWhenAlreadyPaid(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if _, err := creditpool.AccrueProcessingFees(ctx, 1, 100); err != nil {
			return err
		}
		_, err := creditpool.RecordProposedBlock(ctx, 1, []byte("proposer-a"))
		return err
	}))
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := creditpool.DistributeProcessingPool(ctx, 1, 100, map[string]int64{"proposer-a": 1})
		return err
	}))
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		credited, err := creditpool.DistributeProcessingPool(ctx, 1, 100, map[string]int64{"proposer-a": 1})
		require.Nil(t, credited)
		return err
	}))

	balA, err := balance.Fetch(e.Store(), []byte("proposer-a"))
	require.NoError(t, err)
	require.Equal(t, int64(100), balA)
}

func TestTransferStorageShareMovesFractionIntoEpochPool(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := creditpool.AccrueStorageFees(ctx, 1000)
		return err
	}))
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		moved, err := creditpool.TransferStorageShare(ctx, 5, 1000) // 10%
		require.NoError(t, err)
		require.Equal(t, int64(100), moved)
		return nil
	}))

	storageTotal, err := creditpool.FetchStorageFeePool(e.Store())
	require.NoError(t, err)
	require.Equal(t, int64(900), storageTotal)

	epochTotal, err := creditpool.FetchProcessingPoolTotal(e.Store(), 5)
	require.NoError(t, err)
	require.Equal(t, int64(100), epochTotal)
}

func TestReapExpiredWithdrawalLocksExpiresOnlyDue(t *testing.T) {
	e := newEngine(t)
	due := &withdrawal.Withdrawal{ID: []byte("w-1"), Amount: 10, ExpiresAtMs: 1000}
	notDue := &withdrawal.Withdrawal{ID: []byte("w-2"), Amount: 10, ExpiresAtMs: 5000}
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if err := withdrawal.Queue(ctx, due); err != nil {
			return err
		}
		return withdrawal.Queue(ctx, notDue)
	}))

	pending, err := withdrawal.PendingInStage(e.Store(), withdrawal.StatusQueued)
	require.NoError(t, err)

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		reaped, err := creditpool.ReapExpiredWithdrawalLocks(ctx, pending, withdrawal.StatusQueued, 2000)
		require.NoError(t, err)
		require.Equal(t, 1, reaped)
		return nil
	}))

	stillQueued, err := withdrawal.PendingInStage(e.Store(), withdrawal.StatusQueued)
	require.NoError(t, err)
	require.Len(t, stillQueued, 1)
	require.Equal(t, []byte("w-2"), stillQueued[0].ID)

	expired, err := withdrawal.Fetch(e.Store(), []byte("w-1"))
	require.NoError(t, err)
	require.Equal(t, withdrawal.StatusExpired, expired.Status)
}
