// Package crypto supplies the concrete signature checks
// pkg/action.SignatureVerifier is an injection point for: ECDSA over
// secp256k1 (ethereum/go-ethereum/crypto) and BLS12-381 (the adapted
// pkg/crypto/bls package, gnark-crypto underneath). Which one runs is
// chosen by the signing key's declared identity.KeyType, never guessed
// from the signature's shape.
package crypto

import (
	"fmt"

	"github.com/driveplatform/drive/pkg/drive/identity"
)

// Verify dispatches to the checker matching key.KeyType. Key types with no
// signature scheme of their own (hash160/script-hash forms, which identify
// a key rather than sign with it) are rejected outright - action.Pipeline
// only ever calls Verify for a key purpose/security check that already
// passed, so reaching an unsignable key type here is itself a rejection.
func Verify(key identity.PublicKey, message, signature []byte) (bool, error) {
	switch key.KeyType {
	case identity.KeyTypeECDSASecp256k1:
		return VerifySecp256k1(key.Data, message, signature)
	case identity.KeyTypeBLS12381:
		return VerifyBLS12381(key.Data, message, signature)
	default:
		return false, fmt.Errorf("crypto: key type %d has no signature scheme", key.KeyType)
	}
}
