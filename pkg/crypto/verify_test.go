package crypto_test

import (
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/crypto"
	"github.com/driveplatform/drive/pkg/crypto/bls"
	"github.com/driveplatform/drive/pkg/drive/identity"
)

func TestVerifySecp256k1AcceptsValidSignature(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	message := []byte("top-up-message")
	hash := ethcrypto.Keccak256(message)
	sig, err := ethcrypto.Sign(hash, priv)
	require.NoError(t, err)

	ok, err := crypto.VerifySecp256k1(ethcrypto.FromECDSAPub(&priv.PublicKey), message, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifySecp256k1RejectsTamperedMessage(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	hash := ethcrypto.Keccak256([]byte("original"))
	sig, err := ethcrypto.Sign(hash, priv)
	require.NoError(t, err)

	ok, err := crypto.VerifySecp256k1(ethcrypto.FromECDSAPub(&priv.PublicKey), []byte("tampered"), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifySecp256k1RejectsWrongSignatureLength(t *testing.T) {
	_, err := crypto.VerifySecp256k1([]byte("pub"), []byte("msg"), []byte("short"))
	require.Error(t, err)
}

func TestVerifyBLS12381AcceptsValidSignature(t *testing.T) {
	priv, pub, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	message := []byte("masternode-vote-message")
	sig := priv.Sign(message)

	ok, err := crypto.VerifyBLS12381(pub.Bytes(), message, sig.Bytes())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyBLS12381RejectsWrongKey(t *testing.T) {
	priv, _, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	_, otherPub, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	message := []byte("masternode-vote-message")
	sig := priv.Sign(message)

	ok, err := crypto.VerifyBLS12381(otherPub.Bytes(), message, sig.Bytes())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyDispatchesByKeyType(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	message := []byte("dispatch-message")
	hash := ethcrypto.Keccak256(message)
	sig, err := ethcrypto.Sign(hash, priv)
	require.NoError(t, err)

	key := identity.PublicKey{KeyType: identity.KeyTypeECDSASecp256k1, Data: ethcrypto.FromECDSAPub(&priv.PublicKey)}
	ok, err := crypto.Verify(key, message, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyRejectsUnsignableKeyType(t *testing.T) {
	key := identity.PublicKey{KeyType: identity.KeyTypeECDSAHash160, Data: []byte("hash")}
	_, err := crypto.Verify(key, []byte("msg"), []byte("sig"))
	require.Error(t, err)
}
