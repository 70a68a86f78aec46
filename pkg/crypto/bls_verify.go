package crypto

import (
	"fmt"

	"github.com/driveplatform/drive/pkg/crypto/bls"
)

// VerifyBLS12381 checks a BLS12-381 signature against a compressed G2
// public key.
func VerifyBLS12381(pubKey, message, signature []byte) (bool, error) {
	pk, err := bls.PublicKeyFromBytes(pubKey)
	if err != nil {
		return false, fmt.Errorf("crypto: decode BLS public key: %w", err)
	}
	sig, err := bls.SignatureFromBytes(signature)
	if err != nil {
		return false, fmt.Errorf("crypto: decode BLS signature: %w", err)
	}
	return pk.Verify(sig, message), nil
}
