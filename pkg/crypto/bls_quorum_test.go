package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/crypto"
	"github.com/driveplatform/drive/pkg/crypto/bls"
	"github.com/driveplatform/drive/pkg/drive/withdrawal"
)

func testWithdrawal() *withdrawal.Withdrawal {
	return &withdrawal.Withdrawal{
		ID:            []byte("withdrawal-1"),
		TransactionID: []byte("tx-1"),
		OutputScript:  []byte("output-script"),
	}
}

func TestMasternodeQuorumVerifierAcceptsAggregateSignature(t *testing.T) {
	priv1, pub1, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	priv2, pub2, err := bls.GenerateKeyPair()
	require.NoError(t, err)

	w := testWithdrawal()
	message := bls.ComputeMessageHash(bls.DomainQuorumAttestation, w.ID, w.TransactionID, w.OutputScript)
	sig1 := priv1.Sign(message[:])
	sig2 := priv2.Sign(message[:])
	aggSig, err := bls.AggregateSignatures([]*bls.Signature{sig1, sig2})
	require.NoError(t, err)

	verify := crypto.MasternodeQuorumVerifier([][]byte{pub1.Bytes(), pub2.Bytes()})
	ok, err := verify(w, aggSig.Bytes())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMasternodeQuorumVerifierRejectsMissingSigner(t *testing.T) {
	priv1, pub1, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	_, pub2, err := bls.GenerateKeyPair()
	require.NoError(t, err)

	w := testWithdrawal()
	message := bls.ComputeMessageHash(bls.DomainQuorumAttestation, w.ID, w.TransactionID, w.OutputScript)
	sig1 := priv1.Sign(message[:])

	verify := crypto.MasternodeQuorumVerifier([][]byte{pub1.Bytes(), pub2.Bytes()})
	ok, err := verify(w, sig1.Bytes())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMasternodeQuorumVerifierRejectsWithNoConfiguredKeys(t *testing.T) {
	verify := crypto.MasternodeQuorumVerifier(nil)
	_, err := verify(testWithdrawal(), []byte("sig"))
	require.Error(t, err)
}
