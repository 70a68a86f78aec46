package action

import (
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/contract"
	"github.com/driveplatform/drive/pkg/drive/document"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// balanceViaContext reads an identity's balance through ctx.Get rather
// than the engine's raw store, so this stays estimate-mode safe: in
// estimate mode it reads nothing and reports a zero balance.
func balanceViaContext(ctx *drive.Context, identityID []byte) (int64, error) {
	if ctx.Mode() == drive.ModeEstimate {
		return 0, nil
	}
	el, err := ctx.Get(pathschema.BalancePath(), pathschema.BalanceKey(identityID))
	if err != nil {
		if err == treestore.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return el.SumItemValue, nil
}

func applyBalanceDelta(ctx *drive.Context, identityID []byte, current, delta int64) error {
	ctx.Insert(pathschema.BalancePath(), pathschema.BalanceKey(identityID), treestore.NewSumItem(current+delta, nil))
	return nil
}

// documentCreateAction places a new document under its type's primary-key
// subtree plus every declared index entry.
type documentCreateAction struct {
	dt  *contract.DocumentType
	doc *document.Document
}

func (a *documentCreateAction) Apply(ctx *drive.Context) error {
	return document.Insert(ctx, a.dt, a.doc)
}

// NewDocumentCreateAction returns the Action that creates doc under dt.
func NewDocumentCreateAction(dt *contract.DocumentType, doc *document.Document) Action {
	return &documentCreateAction{dt: dt, doc: doc}
}

// documentReplaceAction overwrites an existing document, requiring a
// strictly increasing revision.
type documentReplaceAction struct {
	dt           *contract.DocumentType
	prior, next  *document.Document
	updatedAtMs  uint64
}

func (a *documentReplaceAction) Apply(ctx *drive.Context) error {
	return document.Replace(ctx, a.dt, a.prior, a.next, a.updatedAtMs)
}

// NewDocumentReplaceAction returns the Action that replaces prior with
// next, stamped at updatedAtMs.
func NewDocumentReplaceAction(dt *contract.DocumentType, prior, next *document.Document, updatedAtMs uint64) Action {
	return &documentReplaceAction{dt: dt, prior: prior, next: next, updatedAtMs: updatedAtMs}
}

// documentDeleteAction removes a document and every index entry it
// appears in.
type documentDeleteAction struct {
	dt  *contract.DocumentType
	doc *document.Document
}

func (a *documentDeleteAction) Apply(ctx *drive.Context) error {
	return document.Delete(ctx, a.dt, a.doc)
}

// NewDocumentDeleteAction returns the Action that deletes doc.
func NewDocumentDeleteAction(dt *contract.DocumentType, doc *document.Document) Action {
	return &documentDeleteAction{dt: dt, doc: doc}
}

// documentTransferAction changes ownership of a transferable document,
// optionally also moving its price in credits from the buyer to the
// seller when this represents a marketplace purchase rather than a plain
// transfer (priceCredits is zero for a plain transfer).
type documentTransferAction struct {
	dt                     *contract.DocumentType
	prior                  *document.Document
	newOwnerID             []byte
	transferredAtMs        uint64
	priceCredits           int64
	buyerID                []byte
	buyerBalance           int64
}

func (a *documentTransferAction) Apply(ctx *drive.Context) error {
	if !a.prior.Transferable {
		return drive.ErrDocumentNotTransferable
	}
	if a.priceCredits > 0 {
		if a.priceCredits > a.buyerBalance {
			return drive.ErrInsufficientBalance
		}
		sellerBalance, err := balanceViaContext(ctx, a.prior.OwnerID)
		if err != nil {
			return err
		}
		if err := applyBalanceDelta(ctx, a.buyerID, a.buyerBalance, -a.priceCredits); err != nil {
			return err
		}
		if err := applyBalanceDelta(ctx, a.prior.OwnerID, sellerBalance, a.priceCredits); err != nil {
			return err
		}
	}
	return document.Transfer(ctx, a.dt, a.prior, a.newOwnerID, a.transferredAtMs)
}

// NewDocumentTransferAction returns the Action that moves prior to
// newOwnerID at transferredAtMs. When priceCredits is nonzero this also
// moves that many credits from buyerID (whose balance was buyerBalance at
// construction time) to prior's current owner.
func NewDocumentTransferAction(dt *contract.DocumentType, prior *document.Document, newOwnerID []byte, transferredAtMs uint64, priceCredits int64, buyerID []byte, buyerBalance int64) Action {
	return &documentTransferAction{
		dt: dt, prior: prior, newOwnerID: newOwnerID, transferredAtMs: transferredAtMs,
		priceCredits: priceCredits, buyerID: buyerID, buyerBalance: buyerBalance,
	}
}

// documentUpdatePriceAction sets the asking price on a document already
// listed for direct purchase.
type documentUpdatePriceAction struct {
	dt           *contract.DocumentType
	doc          *document.Document
	priceCredits int64
	updatedAtMs  uint64
}

func (a *documentUpdatePriceAction) Apply(ctx *drive.Context) error {
	next := *a.doc
	next.PriceCredits = a.priceCredits
	next.Revision = a.doc.Revision + 1
	return document.Replace(ctx, a.dt, a.doc, &next, a.updatedAtMs)
}

// NewDocumentUpdatePriceAction returns the Action that sets doc's asking
// price to priceCredits.
func NewDocumentUpdatePriceAction(dt *contract.DocumentType, doc *document.Document, priceCredits int64, updatedAtMs uint64) Action {
	return &documentUpdatePriceAction{dt: dt, doc: doc, priceCredits: priceCredits, updatedAtMs: updatedAtMs}
}
