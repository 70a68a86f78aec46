package crypto

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// VerifySecp256k1 checks an R||S (64-byte) or R||S||V (65-byte) signature
// against an uncompressed or compressed secp256k1 public key, using the
// same go-ethereum/crypto.Keccak256/VerifySignature pair as for on-chain
// transaction hashing.
func VerifySecp256k1(pubKey, message, signature []byte) (bool, error) {
	if len(signature) != 64 && len(signature) != 65 {
		return false, fmt.Errorf("crypto: secp256k1 signature must be 64 or 65 bytes, got %d", len(signature))
	}
	hash := ethcrypto.Keccak256(message)
	return ethcrypto.VerifySignature(pubKey, hash, signature[:64]), nil
}
