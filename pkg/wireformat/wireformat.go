// Package wireformat is the host-owned concrete implementation pkg/action
// says belongs one layer up: a JSON envelope format for the two state
// transitions a minimal driving host needs to exercise the pipeline end to
// end (topping up an identity's balance, and moving credits between two
// identities), plus the Decode function pkg/host.Decoder is shaped for.
//
// pkg/action.Pipeline documents that no pack dependency offers a binary
// codec to ground a bincode-style format on; JSON is the one encoding every
// example repo in the pack already reaches for at its own wire boundary,
// so that is what this package grounds its envelope on instead.
package wireformat

import (
	"encoding/json"
	"fmt"

	"github.com/driveplatform/drive/pkg/action"
	"github.com/driveplatform/drive/pkg/drive/balance"
	"github.com/driveplatform/drive/pkg/drive/identity"
	"github.com/driveplatform/drive/pkg/treestore"
)

// envelope is the outer shape every encoded transition shares: a variant
// tag plus a variant-specific payload, deferred as raw JSON until the tag
// picks which struct to unmarshal it into.
type envelope struct {
	Variant string          `json:"variant"`
	Payload json.RawMessage `json:"payload"`
}

// Decode implements host.Decoder: it rejects an unrecognized variant tag
// before any transition reaches the pipeline, matching the "already
// rejected an unrecognized first byte" boundary pkg/action assumes.
func Decode(raw []byte) (action.StateTransition, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("wireformat: decode envelope: %w", err)
	}

	switch env.Variant {
	case "identity_top_up":
		var t topUp
		if err := json.Unmarshal(env.Payload, &t); err != nil {
			return nil, fmt.Errorf("wireformat: decode identity_top_up payload: %w", err)
		}
		return &t, nil
	case "identity_credit_transfer":
		var t creditTransfer
		if err := json.Unmarshal(env.Payload, &t); err != nil {
			return nil, fmt.Errorf("wireformat: decode identity_credit_transfer payload: %w", err)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("wireformat: unrecognized variant %q", env.Variant)
	}
}

// topUp moves credits from a second asset-lock transaction into an
// already-registered identity's balance.
type topUp struct {
	Signer   []byte `json:"signer_id"`
	NonceVal uint64 `json:"nonce"`
	Amount   int64  `json:"amount"`
	KeyID    uint32 `json:"key_id"`
	SigBytes []byte `json:"signature"`
}

func (t *topUp) Variant() action.Variant              { return action.VariantIdentityTopUp }
func (t *topUp) Version() uint16                      { return 1 }
func (t *topUp) SignerID() []byte                     { return t.Signer }
func (t *topUp) ContractNonceScope() []byte           { return nil }
func (t *topUp) Nonce() uint64                        { return t.NonceVal }
func (t *topUp) RequiredKeyPurpose() identity.Purpose { return identity.PurposeTransfer }
func (t *topUp) RequiredSecurityLevel() identity.SecurityLevel {
	return identity.SecurityLevelCritical
}
func (t *topUp) SignaturePublicKeyID() uint32 { return t.KeyID }
func (t *topUp) Signature() []byte            { return t.SigBytes }

func (t *topUp) Validate() error {
	if len(t.Signer) == 0 {
		return fmt.Errorf("wireformat: identity_top_up requires a signer id")
	}
	if t.Amount <= 0 {
		return fmt.Errorf("wireformat: identity_top_up amount must be positive")
	}
	return nil
}

func (t *topUp) SigningMessage() []byte {
	buf, _ := json.Marshal(struct {
		SignerID []byte `json:"signer_id"`
		Nonce    uint64 `json:"nonce"`
		Amount   int64  `json:"amount"`
	}{t.Signer, t.NonceVal, t.Amount})
	return buf
}

func (t *topUp) Construct(store treestore.Store) (action.Action, error) {
	current, err := balance.Fetch(store, t.Signer)
	if err != nil {
		return nil, err
	}
	return action.NewIdentityTopUpAction(t.Signer, current, t.Amount), nil
}

// creditTransfer moves credits from one already-registered identity to
// another.
type creditTransfer struct {
	Signer    []byte `json:"signer_id"`
	Recipient []byte `json:"recipient_id"`
	NonceVal  uint64 `json:"nonce"`
	Amount    int64  `json:"amount"`
	KeyID     uint32 `json:"key_id"`
	SigBytes  []byte `json:"signature"`
}

func (t *creditTransfer) Variant() action.Variant    { return action.VariantIdentityCreditTransfer }
func (t *creditTransfer) Version() uint16            { return 1 }
func (t *creditTransfer) SignerID() []byte           { return t.Signer }
func (t *creditTransfer) ContractNonceScope() []byte { return nil }
func (t *creditTransfer) Nonce() uint64              { return t.NonceVal }
func (t *creditTransfer) RequiredKeyPurpose() identity.Purpose {
	return identity.PurposeTransfer
}
func (t *creditTransfer) RequiredSecurityLevel() identity.SecurityLevel {
	return identity.SecurityLevelCritical
}
func (t *creditTransfer) SignaturePublicKeyID() uint32 { return t.KeyID }
func (t *creditTransfer) Signature() []byte            { return t.SigBytes }

func (t *creditTransfer) Validate() error {
	if len(t.Signer) == 0 || len(t.Recipient) == 0 {
		return fmt.Errorf("wireformat: identity_credit_transfer requires signer and recipient ids")
	}
	if t.Amount <= 0 {
		return fmt.Errorf("wireformat: identity_credit_transfer amount must be positive")
	}
	return nil
}

func (t *creditTransfer) SigningMessage() []byte {
	buf, _ := json.Marshal(struct {
		SignerID    []byte `json:"signer_id"`
		RecipientID []byte `json:"recipient_id"`
		Nonce       uint64 `json:"nonce"`
		Amount      int64  `json:"amount"`
	}{t.Signer, t.Recipient, t.NonceVal, t.Amount})
	return buf
}

func (t *creditTransfer) Construct(store treestore.Store) (action.Action, error) {
	senderBalance, err := balance.Fetch(store, t.Signer)
	if err != nil {
		return nil, err
	}
	recipientBalance, err := balance.Fetch(store, t.Recipient)
	if err != nil {
		return nil, err
	}
	return action.NewIdentityCreditTransferAction(t.Signer, t.Recipient, senderBalance, recipientBalance, t.Amount), nil
}
