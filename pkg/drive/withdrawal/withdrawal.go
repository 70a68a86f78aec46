// Package withdrawal implements the WithdrawalTransactions subtree (§3,
// §4.5, §8 scenario 5): document-shaped withdrawal records that move
// through a fixed lifecycle — QUEUED, POOLED, BROADCASTED, COMPLETE,
// EXPIRED — one subtree per stage except COMPLETE, so a status transition
// is a delete from the old stage's subtree plus an insert into the new one
// within the same batch (completion only deletes the broadcasted record).
package withdrawal

import (
	"encoding/json"
	"errors"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// Status is a withdrawal's position in its lifecycle. COMPLETE has no
// dedicated subtree (§3 names only queued/pooled/broadcasted/expired as
// stored stages): completing a withdrawal removes it from the
// broadcasted subtree entirely rather than moving it anywhere else.
type Status byte

const (
	StatusQueued Status = iota
	StatusPooled
	StatusBroadcasted
	StatusComplete
	StatusExpired
)

// PoolingPolicy selects how queued withdrawals are grouped into a single
// transaction once pooling kicks in.
type PoolingPolicy byte

const (
	PoolingPolicyDefault PoolingPolicy = iota
	PoolingPolicyPerIdentity
)

// Withdrawal is the decoded shape of one withdrawal record.
type Withdrawal struct {
	ID            []byte        `json:"id"`
	OwnerID       []byte        `json:"owner_id"`
	Amount        int64         `json:"amount"`
	FeeRate       uint32        `json:"fee_rate"`
	OutputScript  []byte        `json:"output_script"`
	PoolingPolicy PoolingPolicy `json:"pooling_policy"`
	Status        Status        `json:"status"`
	TransactionID []byte        `json:"transaction_id,omitempty"`
	QueuedAtMs    uint64        `json:"queued_at_ms"`
	ExpiresAtMs   uint64        `json:"expires_at_ms,omitempty"`
}

func pathFor(status Status) ([][]byte, bool) {
	switch status {
	case StatusQueued:
		return pathschema.WithdrawalQueuedPath(), true
	case StatusPooled:
		return pathschema.WithdrawalPooledPath(), true
	case StatusBroadcasted:
		return pathschema.WithdrawalBroadcastedPath(), true
	case StatusExpired:
		return pathschema.WithdrawalExpiredPath(), true
	default:
		return nil, false
	}
}

// Fetch looks for id across every stage subtree that stores a record
// (queued, pooled, broadcasted, expired), returning the first match.
// A completed withdrawal has already been removed from every subtree and
// always reads as drive.ErrDocumentNotFound.
func Fetch(store treestore.Store, id []byte) (*Withdrawal, error) {
	for _, status := range []Status{StatusQueued, StatusPooled, StatusBroadcasted, StatusExpired} {
		path, _ := pathFor(status)
		el, err := store.Get(path, id)
		if err == nil {
			var w Withdrawal
			if err := json.Unmarshal(el.ItemValue, &w); err != nil {
				return nil, err
			}
			return &w, nil
		}
		if err != treestore.ErrNotFound {
			return nil, err
		}
	}
	return nil, drive.ErrDocumentNotFound
}

func writeAt(ctx *drive.Context, status Status, w *Withdrawal) error {
	path, ok := pathFor(status)
	if !ok {
		return nil
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	ctx.Insert(path, w.ID, treestore.NewItem(raw, nil))
	return nil
}

func removeFrom(ctx *drive.Context, status Status, id []byte) {
	path, ok := pathFor(status)
	if !ok {
		return
	}
	ctx.Delete(path, id)
}

// Queue places a new withdrawal in the QUEUED stage.
func Queue(ctx *drive.Context, w *Withdrawal) error {
	w.Status = StatusQueued
	return writeAt(ctx, StatusQueued, w)
}

// Pool groups queued withdrawals into one transaction per pooling
// policy, moving each from QUEUED to POOLED and stamping txID. Debiting
// the system-credits pool for their combined amount is the caller's
// responsibility (§8 scenario 5: "system-credits pool debited by 20"),
// composed alongside this at the action-pipeline level.
func Pool(ctx *drive.Context, withdrawals []*Withdrawal, txID []byte) error {
	for _, w := range withdrawals {
		removeFrom(ctx, StatusQueued, w.ID)
		w.Status = StatusPooled
		w.TransactionID = txID
		if err := writeAt(ctx, StatusPooled, w); err != nil {
			return err
		}
	}
	return nil
}

// SignatureVerifier validates a withdrawal transaction's quorum
// signature before broadcast. The quorum public key set and signing
// scheme are parameters this package does not own — per §9's open
// question on withdrawal signature verification, the real check must
// come from the external host interface, never hardcoded here.
type SignatureVerifier func(w *Withdrawal, signature []byte) (bool, error)

// ErrSignatureInvalid is returned by Broadcast when verify rejects the
// supplied signature.
var ErrSignatureInvalid = errors.New("withdrawal: quorum signature verification failed")

// Broadcast moves w from POOLED to BROADCASTED after verify accepts
// signature.
func Broadcast(ctx *drive.Context, w *Withdrawal, signature []byte, verify SignatureVerifier) error {
	ok, err := verify(w, signature)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSignatureInvalid
	}
	removeFrom(ctx, StatusPooled, w.ID)
	w.Status = StatusBroadcasted
	return writeAt(ctx, StatusBroadcasted, w)
}

// Complete removes w from the broadcasted subtree once its transaction
// has confirmed, the terminal success state.
func Complete(ctx *drive.Context, w *Withdrawal) {
	removeFrom(ctx, StatusBroadcasted, w.ID)
}

// Expire moves w from its current stage to EXPIRED. from must be the
// stage w was last written to.
func Expire(ctx *drive.Context, w *Withdrawal, from Status) error {
	removeFrom(ctx, from, w.ID)
	w.Status = StatusExpired
	return writeAt(ctx, StatusExpired, w)
}

// PendingInStage lists every withdrawal currently stored at status, for
// the block-time-driven dequeue/pool/expire sweeps.
func PendingInStage(store treestore.Store, status Status) ([]*Withdrawal, error) {
	path, ok := pathFor(status)
	if !ok {
		return nil, nil
	}
	pairs, _, err := store.Query(&treestore.PathQuery{
		Path: path,
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.KeyRangeFrom(nil)},
			OrderAscending: true,
		},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Withdrawal, 0, len(pairs))
	for _, pair := range pairs {
		var w Withdrawal
		if err := json.Unmarshal(pair.Element.ItemValue, &w); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, nil
}
