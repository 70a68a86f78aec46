// Package action implements the action transformer & state-transition
// pipeline (§4.6): turning a decoded, already version-checked state
// transition into the high-level Drive ops a domain module exposes, then
// driving the batch engine through estimate and apply passes to produce
// and charge a FeeResult.
//
// Wire decoding (§6.2's bincode-style versioned byte format) is out of
// scope here: no pack dependency offers a binary codec to ground one on,
// so Pipeline.Execute takes an already-decoded StateTransition value —
// the host owns turning bytes into one of the concrete variant types
// below and is expected to have already rejected an unrecognized first
// byte before calling in.
package action

import (
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/identity"
	"github.com/driveplatform/drive/pkg/treestore"
)

// Variant is the closed set of state-transition kinds §4.6 names.
type Variant int

const (
	VariantDataContractCreate Variant = iota
	VariantDataContractUpdate
	VariantBatch
	VariantIdentityCreate
	VariantIdentityTopUp
	VariantIdentityUpdate
	VariantIdentityCreditTransfer
	VariantIdentityCreditWithdrawal
	VariantMasternodeVote
)

// Action is what a StateTransition's Construct step produces: the fully
// resolved operation, ready to emit tree-store ops in either estimate or
// apply mode. Constructing one may read state (via a plain treestore.Store,
// before any batch opens); Apply itself only ever writes through ctx.
type Action interface {
	Apply(ctx *drive.Context) error
}

// ActionFunc adapts a plain function to the Action interface, the way
// drive.HandlerFunc adapts a handler to Engine.Apply/Estimate.
type ActionFunc func(ctx *drive.Context) error

func (f ActionFunc) Apply(ctx *drive.Context) error { return f(ctx) }

// Sequence runs several actions in the order given, as a single Action —
// used to fold a nonce bump together with the transition's real effect
// into one batch.
func Sequence(actions ...Action) Action {
	return ActionFunc(func(ctx *drive.Context) error {
		for _, a := range actions {
			if a == nil {
				continue
			}
			if err := a.Apply(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// StateTransition is the common shape every decoded variant implements,
// carrying exactly what the pipeline needs to drive it through §4.6's
// eight steps without switching on Variant itself.
type StateTransition interface {
	Variant() Variant
	Version() uint16

	// Validate performs signature-independent structural checks (step 2):
	// schema, size bounds, lexical constraints.
	Validate() error

	// SignerID is the identity whose nonce, balance, and key this
	// transition is authorized against.
	SignerID() []byte

	// ContractNonceScope returns the contract id this transition's nonce
	// is scoped to (I4's second axis), or nil to use the signer's global
	// nonce (first axis).
	ContractNonceScope() []byte

	// Nonce is the value the transition claims for its nonce axis.
	Nonce() uint64

	// RequiredKeyPurpose/RequiredSecurityLevel describe what kind of key
	// must sign this transition (step 4).
	RequiredKeyPurpose() identity.Purpose
	RequiredSecurityLevel() identity.SecurityLevel

	// SignaturePublicKeyID names which of the signer's keys produced
	// Signature, and SigningMessage is exactly what was signed (step 5).
	SignaturePublicKeyID() uint32
	Signature() []byte
	SigningMessage() []byte

	// Construct resolves whatever minimum state (contracts, documents,
	// token configs, group actions) this transition needs and produces
	// the Action to apply, or a typed StateError (step 6). store is a
	// read-only snapshot taken before any batch for this transition has
	// opened.
	Construct(store treestore.Store) (Action, error)
}
