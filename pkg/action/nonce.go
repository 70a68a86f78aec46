package action

import (
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/identity"
	"github.com/driveplatform/drive/pkg/treestore"
)

// bumpIdentityNonceAction advances a signer's global nonce axis.
type bumpIdentityNonceAction struct {
	identityID []byte
	current    uint64
}

func (a *bumpIdentityNonceAction) Apply(ctx *drive.Context) error {
	identity.BumpNonce(ctx, a.identityID, a.current)
	return nil
}

// NewBumpIdentityNonceAction returns the Action that advances identityID's
// global nonce past current.
func NewBumpIdentityNonceAction(identityID []byte, current uint64) Action {
	return &bumpIdentityNonceAction{identityID: identityID, current: current}
}

// bumpIdentityContractNonceAction advances a signer's per-contract nonce
// axis.
type bumpIdentityContractNonceAction struct {
	identityID []byte
	contractID []byte
	current    uint64
}

func (a *bumpIdentityContractNonceAction) Apply(ctx *drive.Context) error {
	_, err := identity.BumpContractNonce(ctx, a.identityID, a.contractID, a.current)
	return err
}

// NewBumpIdentityContractNonceAction returns the Action that advances
// identityID's nonce scoped to contractID past current.
func NewBumpIdentityContractNonceAction(identityID, contractID []byte, current uint64) Action {
	return &bumpIdentityContractNonceAction{identityID: identityID, contractID: contractID, current: current}
}

// bumpNonceForScope picks the right axis based on scope, mirroring
// StateTransition.ContractNonceScope's nil-means-global convention.
func bumpNonceForScope(identityID, scope []byte, current uint64) Action {
	if scope == nil {
		return NewBumpIdentityNonceAction(identityID, current)
	}
	return NewBumpIdentityContractNonceAction(identityID, scope, current)
}

// fetchNonceForScope reads the stored nonce for whichever axis scope
// selects, the read-side counterpart to bumpNonceForScope.
func fetchNonceForScope(store treestore.Store, identityID, scope []byte) (uint64, error) {
	if scope == nil {
		return identity.FetchNonce(store, identityID)
	}
	return identity.FetchContractNonce(store, identityID, scope)
}
