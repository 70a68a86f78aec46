package versionvote_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/versionvote"
	"github.com/driveplatform/drive/pkg/kvdb"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
	"github.com/driveplatform/drive/pkg/version"
)

func newEngine(t *testing.T) *drive.Engine {
	t.Helper()
	store := treestore.NewMemStore(kvdb.New(kvdb.NewMemDB()))
	require.NoError(t, store.Insert(nil, pathschema.RootMisc, treestore.NewTree(nil)))
	return drive.NewEngine(store, version.NewRegistry(version.New(1, nil)))
}

func TestRecordVoteTalliesPerVersion(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := versionvote.RecordVote(ctx, 7, 2)
		return err
	}))
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := versionvote.RecordVote(ctx, 7, 2)
		return err
	}))
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := versionvote.RecordVote(ctx, 7, 1)
		return err
	}))

	tallies, err := versionvote.FetchTallies(e.Store(), 7)
	require.NoError(t, err)
	require.Equal(t, map[uint32]int64{2: 2, 1: 1}, tallies)
}

func TestFetchTalliesForUntouchedEpochIsEmpty(t *testing.T) {
	e := newEngine(t)
	tallies, err := versionvote.FetchTallies(e.Store(), 99)
	require.NoError(t, err)
	require.Empty(t, tallies)
}

func TestRecordVoteKeepsEpochsIndependent(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := versionvote.RecordVote(ctx, 1, 2)
		return err
	}))
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		_, err := versionvote.RecordVote(ctx, 2, 2)
		return err
	}))

	epoch1, err := versionvote.FetchTallies(e.Store(), 1)
	require.NoError(t, err)
	require.Equal(t, map[uint32]int64{2: 1}, epoch1)

	epoch2, err := versionvote.FetchTallies(e.Store(), 2)
	require.NoError(t, err)
	require.Equal(t, map[uint32]int64{2: 1}, epoch2)
}
