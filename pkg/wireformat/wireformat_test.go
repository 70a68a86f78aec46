package wireformat_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/balance"
	"github.com/driveplatform/drive/pkg/drive/identity"
	"github.com/driveplatform/drive/pkg/kvdb"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
	"github.com/driveplatform/drive/pkg/version"
	"github.com/driveplatform/drive/pkg/wireformat"
)

func newEngine(t *testing.T) *drive.Engine {
	t.Helper()
	store := treestore.NewMemStore(kvdb.New(kvdb.NewMemDB()))
	require.NoError(t, store.Insert(nil, pathschema.RootIdentities, treestore.NewTree(nil)))
	require.NoError(t, store.Insert(nil, pathschema.RootBalances, treestore.NewSumTree(nil)))
	vr := version.NewRegistry(version.New(1, map[string]uint16{}))
	return drive.NewEngine(store, vr)
}

func setupIdentity(t *testing.T, e *drive.Engine, id []byte, startingBalance int64) {
	t.Helper()
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if err := identity.Insert(ctx, &identity.Identity{ID: id}); err != nil {
			return err
		}
		return balance.Set(ctx, id, startingBalance)
	}))
}

func envelope(t *testing.T, variant string, payload interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	buf, err := json.Marshal(map[string]json.RawMessage{
		"variant": json.RawMessage(`"` + variant + `"`),
		"payload": raw,
	})
	require.NoError(t, err)
	return buf
}

func TestDecodeRejectsUnknownVariant(t *testing.T) {
	_, err := wireformat.Decode([]byte(`{"variant":"bogus","payload":{}}`))
	require.Error(t, err)
}

func TestDecodeRejectsMalformedEnvelope(t *testing.T) {
	_, err := wireformat.Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestDecodeTopUpRoundTripsAndConstructs(t *testing.T) {
	e := newEngine(t)
	signer := []byte("signer-identity-aaaaaaaaaaaaaaaaaa")
	setupIdentity(t, e, signer, 100)

	raw := envelope(t, "identity_top_up", map[string]interface{}{
		"signer_id": base64.StdEncoding.EncodeToString(signer),
		"nonce":     1,
		"amount":    500,
		"key_id":    7,
		"signature": base64.StdEncoding.EncodeToString([]byte("sig")),
	})

	tr, err := wireformat.Decode(raw)
	require.NoError(t, err)
	require.NoError(t, tr.Validate())
	require.Equal(t, signer, tr.SignerID())
	require.Equal(t, uint64(1), tr.Nonce())

	act, err := tr.Construct(e.Store())
	require.NoError(t, err)
	require.NoError(t, e.Apply(act.Apply))

	bal, err := balance.Fetch(e.Store(), signer)
	require.NoError(t, err)
	require.Equal(t, int64(600), bal)
}

func TestDecodeTopUpRejectsNonPositiveAmount(t *testing.T) {
	raw := envelope(t, "identity_top_up", map[string]interface{}{
		"signer_id": base64.StdEncoding.EncodeToString([]byte("signer")),
		"nonce":     1,
		"amount":    0,
		"key_id":    7,
		"signature": base64.StdEncoding.EncodeToString([]byte("sig")),
	})
	tr, err := wireformat.Decode(raw)
	require.NoError(t, err)
	require.Error(t, tr.Validate())
}

func TestDecodeCreditTransferConstructsMovesBalance(t *testing.T) {
	e := newEngine(t)
	sender := []byte("sender-identity-aaaaaaaaaaaaaaaaaa")
	recipient := []byte("recipient-identity-aaaaaaaaaaaaaaa")
	setupIdentity(t, e, sender, 1000)
	setupIdentity(t, e, recipient, 0)

	raw := envelope(t, "identity_credit_transfer", map[string]interface{}{
		"signer_id":    base64.StdEncoding.EncodeToString(sender),
		"recipient_id": base64.StdEncoding.EncodeToString(recipient),
		"nonce":        1,
		"amount":       250,
		"key_id":       7,
		"signature":    base64.StdEncoding.EncodeToString([]byte("sig")),
	})

	tr, err := wireformat.Decode(raw)
	require.NoError(t, err)
	require.NoError(t, tr.Validate())

	act, err := tr.Construct(e.Store())
	require.NoError(t, err)
	require.NoError(t, e.Apply(act.Apply))

	senderBal, err := balance.Fetch(e.Store(), sender)
	require.NoError(t, err)
	require.Equal(t, int64(750), senderBal)

	recipientBal, err := balance.Fetch(e.Store(), recipient)
	require.NoError(t, err)
	require.Equal(t, int64(250), recipientBal)
}

func TestSigningMessageIsStableForSameFields(t *testing.T) {
	raw := envelope(t, "identity_top_up", map[string]interface{}{
		"signer_id": base64.StdEncoding.EncodeToString([]byte("signer")),
		"nonce":     1,
		"amount":    500,
		"key_id":    7,
		"signature": base64.StdEncoding.EncodeToString([]byte("sig")),
	})
	tr, err := wireformat.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, tr.SigningMessage(), tr.SigningMessage())
}
