package action

import (
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/balance"
	"github.com/driveplatform/drive/pkg/drive/identity"
)

// identityCreateAction inserts a new identity record plus its initial
// balance, funded from a verified asset-lock transaction the host resolved
// before calling Construct.
type identityCreateAction struct {
	ident        *identity.Identity
	fundedAmount int64
}

func (a *identityCreateAction) Apply(ctx *drive.Context) error {
	if err := identity.Insert(ctx, a.ident); err != nil {
		return err
	}
	return balance.Set(ctx, a.ident.ID, a.fundedAmount)
}

// NewIdentityCreateAction returns the Action that creates ident and credits
// it with fundedAmount, the credit value locked by the asset-lock
// transaction that funds this identity's birth.
func NewIdentityCreateAction(ident *identity.Identity, fundedAmount int64) Action {
	return &identityCreateAction{ident: ident, fundedAmount: fundedAmount}
}

// identityTopUpAction adds credits to an existing identity's balance from
// a second asset-lock transaction.
type identityTopUpAction struct {
	identityID     []byte
	currentBalance int64
	amount         int64
}

func (a *identityTopUpAction) Apply(ctx *drive.Context) error {
	_, err := balance.ApplyDelta(ctx, a.currentBalance, a.identityID, a.amount)
	return err
}

// NewIdentityTopUpAction returns the Action that credits identityID with
// amount, given its balance was currentBalance when the transition was
// constructed.
func NewIdentityTopUpAction(identityID []byte, currentBalance, amount int64) Action {
	return &identityTopUpAction{identityID: identityID, currentBalance: currentBalance, amount: amount}
}

// identityUpdateAction adds and/or disables keys on an existing identity,
// bumping its revision exactly once regardless of how many keys changed.
type identityUpdateAction struct {
	ident       *identity.Identity
	addKeys     []identity.PublicKey
	disableIDs  []uint32
	disabledAtMs uint64
}

func (a *identityUpdateAction) Apply(ctx *drive.Context) error {
	if len(a.addKeys) > 0 {
		if err := identity.AddKeys(ctx, a.ident, a.addKeys); err != nil {
			return err
		}
	}
	for _, keyID := range a.disableIDs {
		if err := identity.DisableKey(ctx, a.ident, keyID, a.disabledAtMs); err != nil {
			return err
		}
	}
	return identity.BumpRevision(ctx, a.ident)
}

// NewIdentityUpdateAction returns the Action that applies addKeys and
// disableIDs to ident, in that order, then bumps its revision.
func NewIdentityUpdateAction(ident *identity.Identity, addKeys []identity.PublicKey, disableIDs []uint32, disabledAtMs uint64) Action {
	return &identityUpdateAction{ident: ident, addKeys: addKeys, disableIDs: disableIDs, disabledAtMs: disabledAtMs}
}

// identityCreditTransferAction moves credits between two identities'
// balances within the same batch.
type identityCreditTransferAction struct {
	senderID, recipientID         []byte
	senderBalance, recipientBalance int64
	amount                        int64
}

func (a *identityCreditTransferAction) Apply(ctx *drive.Context) error {
	if a.amount > a.senderBalance {
		return drive.ErrInsufficientBalance
	}
	if _, err := balance.ApplyDelta(ctx, a.senderBalance, a.senderID, -a.amount); err != nil {
		return err
	}
	_, err := balance.ApplyDelta(ctx, a.recipientBalance, a.recipientID, a.amount)
	return err
}

// NewIdentityCreditTransferAction returns the Action that moves amount
// credits from senderID to recipientID, given their balances at
// construction time.
func NewIdentityCreditTransferAction(senderID, recipientID []byte, senderBalance, recipientBalance, amount int64) Action {
	return &identityCreditTransferAction{
		senderID: senderID, recipientID: recipientID,
		senderBalance: senderBalance, recipientBalance: recipientBalance,
		amount: amount,
	}
}

// identityCreditWithdrawalAction debits an identity's balance and queues a
// withdrawal record for the credit-pool/withdrawal pipeline to pick up;
// the withdrawal record itself is built by the caller (Construct) since
// it needs the withdrawal package's Queue, not a new dependency here.
type identityCreditWithdrawalAction struct {
	identityID     []byte
	currentBalance int64
	amount         int64
	queue          Action
}

func (a *identityCreditWithdrawalAction) Apply(ctx *drive.Context) error {
	if a.amount > a.currentBalance {
		return drive.ErrInsufficientBalance
	}
	if _, err := balance.ApplyDelta(ctx, a.currentBalance, a.identityID, -a.amount); err != nil {
		return err
	}
	if a.queue == nil {
		return nil
	}
	return a.queue.Apply(ctx)
}

// NewIdentityCreditWithdrawalAction returns the Action that debits amount
// from identityID's balance and then runs queue (typically an Action
// wrapping withdrawal.Queue) to record the pending withdrawal.
func NewIdentityCreditWithdrawalAction(identityID []byte, currentBalance, amount int64, queue Action) Action {
	return &identityCreditWithdrawalAction{identityID: identityID, currentBalance: currentBalance, amount: amount, queue: queue}
}
