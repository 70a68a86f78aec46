package drive_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/kvdb"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
	"github.com/driveplatform/drive/pkg/version"
)

func newEngine(t *testing.T) *drive.Engine {
	t.Helper()
	store := treestore.NewMemStore(kvdb.New(kvdb.NewMemDB()))
	require.NoError(t, store.Insert(nil, pathschema.RootIdentities, treestore.NewTree(nil)))
	registry := version.NewRegistry(version.New(1, nil))
	return drive.NewEngine(store, registry)
}

func TestApplyInsertsThroughBatch(t *testing.T) {
	e := newEngine(t)

	err := e.Apply(func(ctx *drive.Context) error {
		ctx.Insert([][]byte{pathschema.RootIdentities}, []byte("id-1"), treestore.NewItem([]byte("payload"), nil))
		return nil
	})
	require.NoError(t, err)

	el, err := e.Store().Get([][]byte{pathschema.RootIdentities}, []byte("id-1"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), el.ItemValue)
}

func TestEstimateNeverTouchesState(t *testing.T) {
	e := newEngine(t)

	cv, err := e.Estimate(func(ctx *drive.Context) error {
		require.Equal(t, drive.ModeEstimate, ctx.Mode())
		ctx.Insert([][]byte{pathschema.RootIdentities}, []byte("id-2"), treestore.NewItem([]byte("x"), nil))
		return nil
	}, nil)
	require.NoError(t, err)
	require.Greater(t, cv.StorageBytesAdded, uint64(0))

	_, err = e.Store().Get([][]byte{pathschema.RootIdentities}, []byte("id-2"))
	require.ErrorIs(t, err, treestore.ErrNotFound)
}

func TestEstimateRejectsReads(t *testing.T) {
	e := newEngine(t)

	_, err := e.Estimate(func(ctx *drive.Context) error {
		_, err := ctx.Get([][]byte{pathschema.RootIdentities}, []byte("id-1"))
		return err
	}, nil)
	require.ErrorIs(t, err, drive.ErrEstimateModeNoRead)
}

func TestEnsureSubtreeIsIdempotentWithinBatch(t *testing.T) {
	e := newEngine(t)

	err := e.Apply(func(ctx *drive.Context) error {
		path := [][]byte{pathschema.RootIdentities}
		if err := ctx.EnsureSubtree(path, []byte("sub"), treestore.NewTree(nil)); err != nil {
			return err
		}
		return ctx.EnsureSubtree(path, []byte("sub"), treestore.NewTree(nil))
	})
	require.NoError(t, err)
}

func TestGenesisTimeRoundTrip(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Store().Insert(nil, pathschema.RootSpentAssetLockTransactions, treestore.NewTree(nil)))

	_, ok := e.GetGenesisTime()
	require.False(t, ok)

	require.NoError(t, e.SetGenesisTime(1_700_000_000_000))
	got, ok := e.GetGenesisTime()
	require.True(t, ok)
	require.Equal(t, uint64(1_700_000_000_000), got)
}

func TestCacheBlockOverlayMergesOnCommit(t *testing.T) {
	c := drive.NewCache()
	info := &drive.ContractFetchInfo{ContractID: []byte("c1"), ConfigFlags: 1}

	c.PutContractSpeculative(info)
	_, ok := c.GetContract([]byte("c1"))
	require.True(t, ok)

	c.CommitBlock()
	got, ok := c.GetContract([]byte("c1"))
	require.True(t, ok)
	require.Equal(t, uint32(1), got.ConfigFlags)
}

func TestCacheBlockOverlayDropsOnRollback(t *testing.T) {
	c := drive.NewCache()
	c.PutContractSpeculative(&drive.ContractFetchInfo{ContractID: []byte("c2")})
	c.RollbackBlock()

	_, ok := c.GetContract([]byte("c2"))
	require.False(t, ok)
}
