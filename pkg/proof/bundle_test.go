package proof_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/proof"
)

func TestBundleFinalizeSortsEntriesAndStampsIntegrity(t *testing.T) {
	b := proof.New("bundle-1", []byte("root"))
	b.AddEntry("balance:z", []byte("blob-z"))
	b.AddEntry("balance:a", []byte("blob-a"))
	require.NoError(t, b.Finalize())

	require.Equal(t, "balance:a", b.Entries[0].Name)
	require.Equal(t, "balance:z", b.Entries[1].Name)

	ok, err := b.VerifyIntegrity()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBundleVerifyIntegrityCatchesTampering(t *testing.T) {
	b := proof.New("bundle-1", []byte("root"))
	b.AddEntry("balance:a", []byte("blob-a"))
	require.NoError(t, b.Finalize())

	b.Entries[0].ProofData = []byte("tampered")

	ok, err := b.VerifyIntegrity()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBundleValidateFlagsMissingFields(t *testing.T) {
	b := &proof.Bundle{}
	problems := b.Validate()
	require.NotEmpty(t, problems)

	b2 := proof.New("bundle-1", []byte("root"))
	b2.AddEntry("a", []byte("x"))
	b2.AddEntry("a", []byte("y"))
	require.Contains(t, b2.Validate(), `duplicate entry name "a"`)
}

func TestBundleCompressDecompressRoundTrip(t *testing.T) {
	b := proof.New("bundle-1", []byte("root"))
	b.AddEntry("identity:abc", []byte("proof-bytes"))
	require.NoError(t, b.Finalize())

	compressed, err := proof.Compress(b)
	require.NoError(t, err)

	got, err := proof.Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, b.BundleID, got.BundleID)
	require.Equal(t, b.RootHash, got.RootHash)
	require.Equal(t, b.Entries, got.Entries)
	require.Equal(t, b.ArtifactHash, got.ArtifactHash)
}
