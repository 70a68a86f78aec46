package withdrawal_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/withdrawal"
	"github.com/driveplatform/drive/pkg/kvdb"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
	"github.com/driveplatform/drive/pkg/version"
)

func newEngine(t *testing.T) *drive.Engine {
	t.Helper()
	store := treestore.NewMemStore(kvdb.New(kvdb.NewMemDB()))
	require.NoError(t, store.Insert(nil, pathschema.RootWithdrawalTransactions, treestore.NewTree(nil)))
	for _, path := range [][][]byte{
		pathschema.WithdrawalQueuedPath(),
		pathschema.WithdrawalPooledPath(),
		pathschema.WithdrawalBroadcastedPath(),
		pathschema.WithdrawalExpiredPath(),
	} {
		parent, key := path[:len(path)-1], path[len(path)-1]
		require.NoError(t, store.Insert(parent, key, treestore.NewTree(nil)))
	}
	return drive.NewEngine(store, version.NewRegistry(version.New(1, nil)))
}

func TestQueueThenFetch(t *testing.T) {
	e := newEngine(t)
	w := &withdrawal.Withdrawal{ID: []byte("w-1"), OwnerID: []byte("owner-1"), Amount: 10}
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return withdrawal.Queue(ctx, w)
	}))

	got, err := withdrawal.Fetch(e.Store(), w.ID)
	require.NoError(t, err)
	require.Equal(t, withdrawal.StatusQueued, got.Status)
}

func TestPoolMovesQueuedToPooledAndStampsTxID(t *testing.T) {
	e := newEngine(t)
	w1 := &withdrawal.Withdrawal{ID: []byte("w-1"), Amount: 10}
	w2 := &withdrawal.Withdrawal{ID: []byte("w-2"), Amount: 10}
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if err := withdrawal.Queue(ctx, w1); err != nil {
			return err
		}
		return withdrawal.Queue(ctx, w2)
	}))

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return withdrawal.Pool(ctx, []*withdrawal.Withdrawal{w1, w2}, []byte("tx-1"))
	}))

	pending, err := withdrawal.PendingInStage(e.Store(), withdrawal.StatusQueued)
	require.NoError(t, err)
	require.Empty(t, pending)

	pooled, err := withdrawal.PendingInStage(e.Store(), withdrawal.StatusPooled)
	require.NoError(t, err)
	require.Len(t, pooled, 2)
	for _, w := range pooled {
		require.Equal(t, []byte("tx-1"), w.TransactionID)
		require.Equal(t, withdrawal.StatusPooled, w.Status)
	}
}

func TestBroadcastRejectsFailedVerification(t *testing.T) {
	e := newEngine(t)
	w := &withdrawal.Withdrawal{ID: []byte("w-1"), Amount: 10}
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if err := withdrawal.Queue(ctx, w); err != nil {
			return err
		}
		return withdrawal.Pool(ctx, []*withdrawal.Withdrawal{w}, []byte("tx-1"))
	}))

	rejecting := func(w *withdrawal.Withdrawal, sig []byte) (bool, error) { return false, nil }
	err := e.Apply(func(ctx *drive.Context) error {
		return withdrawal.Broadcast(ctx, w, []byte("sig"), rejecting)
	})
	require.ErrorIs(t, err, withdrawal.ErrSignatureInvalid)
}

func TestBroadcastThenCompleteRemovesRecord(t *testing.T) {
	e := newEngine(t)
	w := &withdrawal.Withdrawal{ID: []byte("w-1"), Amount: 10}
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if err := withdrawal.Queue(ctx, w); err != nil {
			return err
		}
		return withdrawal.Pool(ctx, []*withdrawal.Withdrawal{w}, []byte("tx-1"))
	}))

	accepting := func(w *withdrawal.Withdrawal, sig []byte) (bool, error) { return true, nil }
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return withdrawal.Broadcast(ctx, w, []byte("sig"), accepting)
	}))

	got, err := withdrawal.Fetch(e.Store(), w.ID)
	require.NoError(t, err)
	require.Equal(t, withdrawal.StatusBroadcasted, got.Status)

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		withdrawal.Complete(ctx, got)
		return nil
	}))

	_, err = withdrawal.Fetch(e.Store(), w.ID)
	require.ErrorIs(t, err, drive.ErrDocumentNotFound)
}

func TestExpireMovesFromQueuedToExpired(t *testing.T) {
	e := newEngine(t)
	w := &withdrawal.Withdrawal{ID: []byte("w-1"), Amount: 10}
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return withdrawal.Queue(ctx, w)
	}))

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return withdrawal.Expire(ctx, w, withdrawal.StatusQueued)
	}))

	got, err := withdrawal.Fetch(e.Store(), w.ID)
	require.NoError(t, err)
	require.Equal(t, withdrawal.StatusExpired, got.Status)
}
