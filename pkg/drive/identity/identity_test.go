package identity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/identity"
	"github.com/driveplatform/drive/pkg/kvdb"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
	"github.com/driveplatform/drive/pkg/version"
)

func newEngine(t *testing.T) *drive.Engine {
	t.Helper()
	store := treestore.NewMemStore(kvdb.New(kvdb.NewMemDB()))
	require.NoError(t, store.Insert(nil, pathschema.RootIdentities, treestore.NewTree(nil)))
	return drive.NewEngine(store, version.NewRegistry(version.New(1, nil)))
}

func testIdentity() *identity.Identity {
	return &identity.Identity{
		ID:       []byte("11111111111111111111111111111111"),
		Revision: 0,
		Keys: []identity.PublicKey{
			{ID: 0, Purpose: identity.PurposeAuthentication, SecurityLevel: identity.SecurityLevelMaster, KeyType: identity.KeyTypeECDSASecp256k1, Data: []byte("pubkey")},
		},
	}
}

func TestInsertThenFetchRoundTrips(t *testing.T) {
	e := newEngine(t)
	ident := testIdentity()

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return identity.Insert(ctx, ident)
	}))

	got, err := identity.Fetch(e.Store(), ident.ID)
	require.NoError(t, err)
	require.Equal(t, ident.ID, got.ID)
	require.Len(t, got.Keys, 1)
}

func TestFetchMissingReturnsNotFound(t *testing.T) {
	e := newEngine(t)
	_, err := identity.Fetch(e.Store(), []byte("nope"))
	require.ErrorIs(t, err, drive.ErrIdentityNotFound)
}

func TestDisableKeyStampsDisabledAtAndRemovesReference(t *testing.T) {
	e := newEngine(t)
	ident := testIdentity()
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return identity.Insert(ctx, ident)
	}))

	got, err := identity.Fetch(e.Store(), ident.ID)
	require.NoError(t, err)

	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return identity.DisableKey(ctx, got, 0, 1_700_000_000_000)
	}))

	after, err := identity.Fetch(e.Store(), ident.ID)
	require.NoError(t, err)
	require.True(t, after.Keys[0].Disabled())

	queryPath := pathschema.IdentityQueryKeysForAuthenticationPath(ident.ID, byte(identity.PurposeAuthentication), byte(identity.SecurityLevelMaster))
	has, err := e.Store().HasRaw(queryPath, []byte{0, 0, 0, 0})
	require.NoError(t, err)
	require.False(t, has)
}

func TestProveIdentityRoundTrips(t *testing.T) {
	e := newEngine(t)
	ident := testIdentity()
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		return identity.Insert(ctx, ident)
	}))

	proofBytes, err := identity.Prove(e.Store(), ident.ID)
	require.NoError(t, err)

	root, pairs, err := treestore.VerifyProof(proofBytes)
	require.NoError(t, err)
	require.Equal(t, e.Store().RootHash(), root)
	require.Len(t, pairs, 1)
}
