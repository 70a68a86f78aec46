package action

import (
	"fmt"

	"github.com/driveplatform/drive/pkg/cost"
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/balance"
	"github.com/driveplatform/drive/pkg/drive/identity"
	"github.com/driveplatform/drive/pkg/treestore"
)

// SignatureVerifier checks a signature against a resolved public key, the
// injection point step 5 needs: the concrete ECDSA/BLS check lives in
// pkg/crypto, never hardcoded here.
type SignatureVerifier func(key identity.PublicKey, message, signature []byte) (bool, error)

// Result is what a successful Execute produces: the fee actually charged
// and the feature version the transition ran under.
type Result struct {
	Fee            cost.FeeResult
	FeatureVersion uint16
}

// Pipeline drives a decoded StateTransition through the eight-step flow:
// version gate, structural validation, nonce check, key/purpose check,
// signature verification, construction, cost estimation, and apply.
//
// Steps 4 ("a stateless upper-bound cost estimate must cover the fee
// before constructing anything") and 7 ("the real cost of what was
// constructed") are folded into one estimate computed from the
// already-constructed Action: building a second, cruder stateless cost
// model just to front-run step 6 would duplicate every domain module's
// cost-relevant fields with no way to keep the two in sync, and Estimate
// mode still never reads state either way.
type Pipeline struct {
	engine   *drive.Engine
	pricing  cost.Pricing
	verify   SignatureVerifier
	layerInfo treestore.EstimatedLayerInfo
}

// NewPipeline wires an engine, a pricing table, and a signature verifier
// into a Pipeline ready to execute transitions.
func NewPipeline(engine *drive.Engine, pricing cost.Pricing, verify SignatureVerifier) *Pipeline {
	return &Pipeline{engine: engine, pricing: pricing, verify: verify}
}

func featureMethodFor(v Variant) string {
	return fmt.Sprintf("action.execute.%d", int(v))
}

func findKey(ident *identity.Identity, keyID uint32) (*identity.PublicKey, bool) {
	for i := range ident.Keys {
		if ident.Keys[i].ID == keyID {
			return &ident.Keys[i], true
		}
	}
	return nil, false
}

// Execute runs t through every step and, on success, applies its effect
// plus the nonce bump and fee debit atomically.
func (p *Pipeline) Execute(t StateTransition) (Result, error) {
	// Step 1: version gate.
	feature, err := p.engine.Versions().Current().Feature(featureMethodFor(t.Variant()))
	if err != nil {
		return Result{}, basicError(err)
	}
	if feature != t.Version() {
		return Result{}, basicError(ErrUnsupportedVersion)
	}

	// Step 2: structural validation.
	if err := t.Validate(); err != nil {
		return Result{}, basicError(err)
	}

	store := p.engine.Store()

	// Step 3: nonce check.
	signerID := t.SignerID()
	scope := t.ContractNonceScope()
	storedNonce, err := fetchNonceForScope(store, signerID, scope)
	if err != nil {
		return Result{}, stateError(err)
	}
	switch {
	case t.Nonce() <= storedNonce:
		return Result{}, stateError(ErrNonceStale)
	case t.Nonce() > storedNonce+1:
		return Result{}, stateError(ErrNonceTooFarAhead)
	}

	// Step 4 (key/purpose half): resolve the signer's identity and key.
	signer, err := identity.Fetch(store, signerID)
	if err != nil {
		return Result{}, stateError(err)
	}
	key, ok := findKey(signer, t.SignaturePublicKeyID())
	if !ok {
		return Result{}, signatureError(ErrKeyNotFound)
	}
	if key.Disabled() {
		return Result{}, signatureError(ErrKeyDisabled)
	}
	if key.Purpose != t.RequiredKeyPurpose() || key.SecurityLevel > t.RequiredSecurityLevel() {
		return Result{}, signatureError(ErrKeyPurposeMismatch)
	}

	// Step 5: signature verification.
	ok, err = p.verify(*key, t.SigningMessage(), t.Signature())
	if err != nil {
		return Result{}, signatureError(err)
	}
	if !ok {
		return Result{}, signatureError(ErrSignatureInvalid)
	}

	// Step 6: construct the effect.
	effect, err := t.Construct(store)
	if err != nil {
		return Result{}, stateError(err)
	}

	signerBalance, err := balance.Fetch(store, signerID)
	if err != nil {
		return Result{}, stateError(err)
	}

	nonceBump := bumpNonceForScope(signerID, scope, storedNonce)
	full := Sequence(nonceBump, effect)

	// Step 7 (folded with step 4's fee half): estimate full's cost.
	cv, err := p.engine.Estimate(full.Apply, p.layerInfo)
	if err != nil {
		return Result{}, feeError(err)
	}
	fee := p.pricing.Charges(cv)
	required := fee.Required()
	desired := fee.Desired()
	if required > signerBalance {
		return Result{}, feeError(ErrInsufficientForFee)
	}

	// Step 8: apply the effect, the nonce bump, and the fee debit in one
	// atomic batch. desired may exceed signerBalance even though required
	// does not; debitBalanceAction clamps the balance to zero and tracks
	// the shortfall as debt rather than rejecting here.
	debit := debitBalanceAction{identityID: signerID, current: signerBalance, amount: desired}
	applied := Sequence(nonceBump, effect, &debit)
	if err := p.engine.Apply(applied.Apply); err != nil {
		return Result{}, stateError(err)
	}

	return Result{Fee: fee, FeatureVersion: feature}, nil
}

// debitBalanceAction subtracts amount from identityID's balance, used to
// charge the fee within the same batch as the transition's effect.
type debitBalanceAction struct {
	identityID []byte
	current    int64
	amount     int64
}

func (a *debitBalanceAction) Apply(ctx *drive.Context) error {
	_, _, err := balance.Charge(ctx, a.current, a.identityID, a.amount)
	return err
}
