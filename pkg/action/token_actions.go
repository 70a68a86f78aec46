package action

import (
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/token"
)

// tokenMintAction credits newly issued tokens to an identity.
type tokenMintAction struct {
	tokenID, recipient         []byte
	amount                     int64
	current, circulating       int64
	info                       *token.ContractInfo
}

func (a *tokenMintAction) Apply(ctx *drive.Context) error {
	_, err := token.Mint(ctx, a.tokenID, a.recipient, a.amount, a.current, a.circulating, a.info)
	return err
}

// NewTokenMintAction returns the Action that mints amount of tokenID to
// recipient, given the recipient's current balance and the token's
// current circulating supply and contract info at construction time.
func NewTokenMintAction(tokenID, recipient []byte, amount, current, circulating int64, info *token.ContractInfo) Action {
	return &tokenMintAction{tokenID: tokenID, recipient: recipient, amount: amount, current: current, circulating: circulating, info: info}
}

// tokenBurnAction destroys tokens from an identity's balance.
type tokenBurnAction struct {
	tokenID, owner []byte
	amount, current int64
}

func (a *tokenBurnAction) Apply(ctx *drive.Context) error {
	_, err := token.Burn(ctx, a.tokenID, a.owner, a.amount, a.current)
	return err
}

// NewTokenBurnAction returns the Action that burns amount of tokenID from
// owner, given owner's current balance at construction time.
func NewTokenBurnAction(tokenID, owner []byte, amount, current int64) Action {
	return &tokenBurnAction{tokenID: tokenID, owner: owner, amount: amount, current: current}
}

// tokenTransferAction moves tokens between two identities, rejecting a
// frozen sender before it ever reaches token.Transfer.
type tokenTransferAction struct {
	tokenID, sender, recipient       []byte
	amount, senderBalance, recipientBalance int64
	senderFrozen                     bool
}

func (a *tokenTransferAction) Apply(ctx *drive.Context) error {
	if a.senderFrozen {
		return drive.ErrFrozen
	}
	_, _, err := token.Transfer(ctx, a.tokenID, a.sender, a.recipient, a.amount, a.senderBalance, a.recipientBalance)
	return err
}

// NewTokenTransferAction returns the Action that moves amount of tokenID
// from sender to recipient, given their balances and sender's frozen
// state at construction time.
func NewTokenTransferAction(tokenID, sender, recipient []byte, amount, senderBalance, recipientBalance int64, senderFrozen bool) Action {
	return &tokenTransferAction{
		tokenID: tokenID, sender: sender, recipient: recipient,
		amount: amount, senderBalance: senderBalance, recipientBalance: recipientBalance,
		senderFrozen: senderFrozen,
	}
}

// tokenFreezeAction and tokenUnfreezeAction toggle a single identity's
// frozen marker for one token.
type tokenFreezeAction struct {
	tokenID, identityID []byte
	freeze              bool
}

func (a *tokenFreezeAction) Apply(ctx *drive.Context) error {
	if a.freeze {
		token.Freeze(ctx, a.tokenID, a.identityID)
	} else {
		token.Unfreeze(ctx, a.tokenID, a.identityID)
	}
	return nil
}

// NewTokenFreezeAction and NewTokenUnfreezeAction return the Action that
// sets or clears identityID's frozen marker for tokenID.
func NewTokenFreezeAction(tokenID, identityID []byte) Action {
	return &tokenFreezeAction{tokenID: tokenID, identityID: identityID, freeze: true}
}

func NewTokenUnfreezeAction(tokenID, identityID []byte) Action {
	return &tokenFreezeAction{tokenID: tokenID, identityID: identityID, freeze: false}
}

// tokenDestroyFrozenFundsAction zeroes a frozen identity's balance.
type tokenDestroyFrozenFundsAction struct {
	tokenID, identityID []byte
	current             int64
	frozen              bool
}

func (a *tokenDestroyFrozenFundsAction) Apply(ctx *drive.Context) error {
	if !a.frozen {
		return drive.ErrFrozen
	}
	token.DestroyFrozenFunds(ctx, a.tokenID, a.identityID, a.current)
	return nil
}

// NewTokenDestroyFrozenFundsAction returns the Action that destroys
// identityID's entire frozen balance of tokenID.
func NewTokenDestroyFrozenFundsAction(tokenID, identityID []byte, current int64, frozen bool) Action {
	return &tokenDestroyFrozenFundsAction{tokenID: tokenID, identityID: identityID, current: current, frozen: frozen}
}

// tokenConfigUpdateAction covers the max-supply, pause/resume, and
// direct-purchase-price config update sub-variants with one Action shape,
// since each just rewrites ContractInfo.
type tokenConfigUpdateAction struct {
	info                  *token.ContractInfo
	setMaxSupply          bool
	maxSupply             int64
	hasMaxSupply          bool
	setPaused             bool
	paused                bool
	setDirectPurchasePrice bool
	directPurchasePrice   int64
}

func (a *tokenConfigUpdateAction) Apply(ctx *drive.Context) error {
	if a.setMaxSupply {
		if err := token.SetMaxSupply(ctx, a.info, a.maxSupply, a.hasMaxSupply); err != nil {
			return err
		}
	}
	if a.setPaused {
		if a.paused {
			if err := token.Pause(ctx, a.info); err != nil {
				return err
			}
		} else {
			if err := token.Resume(ctx, a.info); err != nil {
				return err
			}
		}
	}
	if a.setDirectPurchasePrice {
		if err := token.SetDirectPurchasePrice(ctx, a.info, a.directPurchasePrice); err != nil {
			return err
		}
	}
	return nil
}

// NewTokenSetMaxSupplyAction, NewTokenEmergencyAction, and
// NewTokenSetPriceForDirectPurchaseAction build the three config-update
// sub-variants §3 names, each producing a tokenConfigUpdateAction that
// touches only the field it names.
func NewTokenSetMaxSupplyAction(info *token.ContractInfo, maxSupply int64, hasMaxSupply bool) Action {
	return &tokenConfigUpdateAction{info: info, setMaxSupply: true, maxSupply: maxSupply, hasMaxSupply: hasMaxSupply}
}

func NewTokenEmergencyAction(info *token.ContractInfo, paused bool) Action {
	return &tokenConfigUpdateAction{info: info, setPaused: true, paused: paused}
}

func NewTokenSetPriceForDirectPurchaseAction(info *token.ContractInfo, priceCredits int64) Action {
	return &tokenConfigUpdateAction{info: info, setDirectPurchasePrice: true, directPurchasePrice: priceCredits}
}

// tokenDirectPurchaseAction mints freshly issued tokens to a buyer and
// moves the sale proceeds from the buyer's credit balance to the
// contract owner's.
type tokenDirectPurchaseAction struct {
	tokenID, buyer, owner []byte
	purchaseAmount        int64
	buyerBalance          int64
	tokenCurrent, circulating int64
	info                  *token.ContractInfo
	ownerBalance          int64
}

func (a *tokenDirectPurchaseAction) Apply(ctx *drive.Context) error {
	_, cost, err := token.Purchase(ctx, a.tokenID, a.buyer, a.purchaseAmount, a.tokenCurrent, a.circulating, a.info)
	if err != nil {
		return err
	}
	if cost > a.buyerBalance {
		return drive.ErrInsufficientBalance
	}
	if err := applyBalanceDelta(ctx, a.buyer, a.buyerBalance, -cost); err != nil {
		return err
	}
	return applyBalanceDelta(ctx, a.owner, a.ownerBalance, cost)
}

// NewTokenDirectPurchaseAction returns the Action that buys purchaseAmount
// of tokenID for buyer at info's listed price, paid to owner.
func NewTokenDirectPurchaseAction(tokenID, buyer, owner []byte, purchaseAmount, buyerBalance, tokenCurrent, circulating int64, info *token.ContractInfo, ownerBalance int64) Action {
	return &tokenDirectPurchaseAction{
		tokenID: tokenID, buyer: buyer, owner: owner, purchaseAmount: purchaseAmount,
		buyerBalance: buyerBalance, tokenCurrent: tokenCurrent, circulating: circulating,
		info: info, ownerBalance: ownerBalance,
	}
}

// tokenClaimAction credits a due pre-programmed distribution entry to its
// recipient's token balance and removes it from the queue — §3's "claim"
// sub-variant. The entry's tokens were never actually issued while
// queued, so claiming mints them now, subject to the same max-supply cap
// every other mint respects.
type tokenClaimAction struct {
	tokenID              []byte
	entry                *token.DistributionEntry
	recipientCurrent     int64
	circulating          int64
	info                 *token.ContractInfo
}

func (a *tokenClaimAction) Apply(ctx *drive.Context) error {
	if _, err := token.Mint(ctx, a.tokenID, a.entry.RecipientID, a.entry.Amount, a.recipientCurrent, a.circulating, a.info); err != nil {
		return err
	}
	token.Dequeue(ctx, a.tokenID, a.entry)
	return nil
}

// NewTokenClaimAction returns the Action that mints entry's amount to its
// recipient's tokenID balance and removes entry from the queue, given the
// recipient's current tokenID balance, tokenID's circulating supply, and
// its contract info at construction time.
func NewTokenClaimAction(tokenID []byte, entry *token.DistributionEntry, recipientCurrent, circulating int64, info *token.ContractInfo) Action {
	return &tokenClaimAction{tokenID: tokenID, entry: entry, recipientCurrent: recipientCurrent, circulating: circulating, info: info}
}

// tokenOrderCancelAction cancels a still-pending distribution entry
// before it becomes due, §3's "order cancel" sub-variant — a queued
// entry simply never gets dequeued-and-credited.
type tokenOrderCancelAction struct {
	tokenID []byte
	entry   *token.DistributionEntry
}

func (a *tokenOrderCancelAction) Apply(ctx *drive.Context) error {
	token.Dequeue(ctx, a.tokenID, a.entry)
	return nil
}

// NewTokenOrderCancelAction returns the Action that removes entry from
// tokenID's distribution queue without crediting it.
func NewTokenOrderCancelAction(tokenID []byte, entry *token.DistributionEntry) Action {
	return &tokenOrderCancelAction{tokenID: tokenID, entry: entry}
}
