package treestore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/kvdb"
	"github.com/driveplatform/drive/pkg/treestore"
)

func newStore(t *testing.T) *treestore.MemStore {
	t.Helper()
	return treestore.NewMemStore(kvdb.New(kvdb.NewMemDB()))
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	s := newStore(t)

	id := []byte{0x01}
	err := s.Insert([][]byte{}, []byte("Identities"), treestore.NewTree(nil))
	require.NoError(t, err)

	err = s.Insert([][]byte{[]byte("Identities")}, id, treestore.NewItem([]byte("identity-record"), nil))
	require.NoError(t, err)

	el, err := s.Get([][]byte{[]byte("Identities")}, id)
	require.NoError(t, err)
	require.Equal(t, treestore.KindItem, el.Kind)
	require.Equal(t, []byte("identity-record"), el.ItemValue)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Insert(nil, []byte("Identities"), treestore.NewTree(nil)))

	_, err := s.Get([][]byte{[]byte("Identities")}, []byte{0xFF})
	require.ErrorIs(t, err, treestore.ErrNotFound)
}

func TestInsertIntoMissingSubtreeFails(t *testing.T) {
	s := newStore(t)
	err := s.Insert([][]byte{[]byte("Identities")}, []byte{0x01}, treestore.NewItem([]byte("x"), nil))
	require.ErrorIs(t, err, treestore.ErrSubtreeNotFound)
}

func TestRootHashChangesOnMutation(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Insert(nil, []byte("Identities"), treestore.NewTree(nil)))

	before := s.RootHash()

	require.NoError(t, s.Insert([][]byte{[]byte("Identities")}, []byte{0x01}, treestore.NewItem([]byte("a"), nil)))
	after := s.RootHash()

	require.NotEqual(t, before, after)
}

func TestSumTreeTracksSum(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Insert(nil, []byte("Balances"), treestore.NewSumTree(nil)))

	balancesPath := [][]byte{[]byte("Balances")}
	require.NoError(t, s.Insert(balancesPath, []byte{0x01}, treestore.NewSumItem(100, nil)))
	require.NoError(t, s.Insert(balancesPath, []byte{0x02}, treestore.NewSumItem(50, nil)))

	el, err := s.Get(nil, []byte("Balances"))
	require.NoError(t, err)
	require.Equal(t, int64(150), el.Sum)
}

func TestDeleteRemovesElement(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Insert(nil, []byte("Identities"), treestore.NewTree(nil)))
	path := [][]byte{[]byte("Identities")}
	require.NoError(t, s.Insert(path, []byte{0x01}, treestore.NewItem([]byte("a"), nil)))

	require.NoError(t, s.Delete(path, []byte{0x01}))

	_, err := s.Get(path, []byte{0x01})
	require.ErrorIs(t, err, treestore.ErrNotFound)
}

func TestApplyBatchRollsBackOnFailure(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Insert(nil, []byte("Identities"), treestore.NewTree(nil)))
	path := [][]byte{[]byte("Identities")}

	before := s.RootHash()

	batch := treestore.NewBatch()
	batch.Insert(path, []byte{0x01}, treestore.NewItem([]byte("a"), nil))
	// Targets a subtree that doesn't exist — must fail and roll back the
	// first op too.
	batch.Insert([][]byte{[]byte("NoSuchSubtree")}, []byte{0x02}, treestore.NewItem([]byte("b"), nil))

	err := s.ApplyBatch(batch)
	require.Error(t, err)

	_, err = s.Get(path, []byte{0x01})
	require.ErrorIs(t, err, treestore.ErrNotFound)
	require.Equal(t, before, s.RootHash())
}

func TestQueryRangeAndLimit(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Insert(nil, []byte("Identities"), treestore.NewTree(nil)))
	path := [][]byte{[]byte("Identities")}

	for i := byte(1); i <= 5; i++ {
		require.NoError(t, s.Insert(path, []byte{i}, treestore.NewItem([]byte{i}, nil)))
	}

	limit := uint32(2)
	pairs, skipped, err := s.Query(&treestore.PathQuery{
		Path: path,
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.KeyRangeFrom([]byte{0x02})},
			Limit:          &limit,
			OrderAscending: true,
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, skipped)
	require.Len(t, pairs, 2)
	require.Equal(t, []byte{0x02}, pairs[0].Key)
	require.Equal(t, []byte{0x03}, pairs[1].Key)
}

func TestQueryProvedRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Insert(nil, []byte("Identities"), treestore.NewTree(nil)))
	path := [][]byte{[]byte("Identities")}
	require.NoError(t, s.Insert(path, []byte{0x01}, treestore.NewItem([]byte("alice"), nil)))
	require.NoError(t, s.Insert(path, []byte{0x02}, treestore.NewItem([]byte("bob"), nil)))

	pq := &treestore.PathQuery{
		Path:  path,
		Query: treestore.SizedQuery{QueryItems: []treestore.QueryItem{treestore.ExactKey([]byte{0x01})}},
	}

	proof, err := s.QueryProved(pq)
	require.NoError(t, err)

	root, pairs, err := treestore.VerifyProof(proof)
	require.NoError(t, err)
	require.Equal(t, s.RootHash(), root)
	require.Len(t, pairs, 1)
	require.Equal(t, []byte("alice"), pairs[0].Element.ItemValue)
}

func TestQueryProvedRejectsTamperedProof(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Insert(nil, []byte("Identities"), treestore.NewTree(nil)))
	path := [][]byte{[]byte("Identities")}
	require.NoError(t, s.Insert(path, []byte{0x01}, treestore.NewItem([]byte("alice"), nil)))

	pq := &treestore.PathQuery{
		Path:  path,
		Query: treestore.SizedQuery{QueryItems: []treestore.QueryItem{treestore.ExactKey([]byte{0x01})}},
	}
	proof, err := s.QueryProved(pq)
	require.NoError(t, err)

	corrupted := append([]byte(nil), proof...)
	mid := len(corrupted) / 2
	corrupted[mid] ^= 0xFF

	_, _, err = treestore.VerifyProof(corrupted)
	require.Error(t, err)
}

func TestEstimateCostNeverTouchesState(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Insert(nil, []byte("Identities"), treestore.NewTree(nil)))
	path := [][]byte{[]byte("Identities")}

	batch := treestore.NewBatch()
	batch.Insert(path, []byte{0x01}, treestore.NewItem([]byte("alice"), nil))

	before := s.RootHash()
	cost, err := s.EstimateCost(batch, treestore.EstimatedLayerInfo{})
	require.NoError(t, err)
	require.Greater(t, cost.StorageBytesAdded, uint64(0))
	require.Equal(t, before, s.RootHash())

	_, err = s.Get(path, []byte{0x01})
	require.ErrorIs(t, err, treestore.ErrNotFound)
}

func TestBatchHasPendingInsertIsIdempotentWithinBatch(t *testing.T) {
	batch := treestore.NewBatch()
	path := [][]byte{[]byte("Documents")}
	require.False(t, batch.HasPendingInsert(path, []byte{0x01}))
	batch.Insert(path, []byte{0x01}, treestore.NewTree(nil))
	require.True(t, batch.HasPendingInsert(path, []byte{0x01}))
}
