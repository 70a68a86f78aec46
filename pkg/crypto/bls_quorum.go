package crypto

import (
	"fmt"

	"github.com/driveplatform/drive/pkg/crypto/bls"
	"github.com/driveplatform/drive/pkg/drive/withdrawal"
)

// MasternodeQuorumVerifier builds a withdrawal.SignatureVerifier backed by a
// BLS aggregate-signature check against quorumPublicKeys. §9's open question
// on withdrawal signature verification resolves to "masternode quorum, BLS
// aggregate": the signature a broadcast carries is expected to be one
// BLS12-381 point produced by aggregating every quorum member's individual
// signature over the same withdrawal attestation, verified here against the
// aggregate of their public keys rather than checking each member
// individually. Every configured key is checked into its G2 subgroup before
// use, not just decoded, to close off rogue-key forgeries; a key that fails
// that check is dropped rather than rejecting construction outright, so one
// bad entry in a quorum's configured key set does not take down the whole
// verifier.
func MasternodeQuorumVerifier(quorumPublicKeys [][]byte) withdrawal.SignatureVerifier {
	pubKeys := make([]*bls.PublicKey, 0, len(quorumPublicKeys))
	for _, raw := range quorumPublicKeys {
		if err := bls.ValidateBLSPublicKeySubgroup(raw); err != nil {
			continue
		}
		pk, err := bls.PublicKeyFromBytes(raw)
		if err != nil {
			continue
		}
		pubKeys = append(pubKeys, pk)
	}
	return func(w *withdrawal.Withdrawal, signature []byte) (bool, error) {
		if len(pubKeys) == 0 {
			return false, fmt.Errorf("crypto: no valid quorum public keys configured")
		}
		if err := bls.ValidateBLSSignatureSubgroup(signature); err != nil {
			return false, fmt.Errorf("crypto: invalid quorum signature: %w", err)
		}
		sig, err := bls.SignatureFromBytes(signature)
		if err != nil {
			return false, fmt.Errorf("crypto: decode quorum signature: %w", err)
		}
		message := bls.ComputeMessageHash(bls.DomainQuorumAttestation, w.ID, w.TransactionID, w.OutputScript)
		return bls.VerifyAggregateSignature(sig, pubKeys, message[:]), nil
	}
}
