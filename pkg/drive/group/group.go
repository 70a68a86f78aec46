// Package group implements the Groups subtree (§3): a per-contract
// registry of pending multi-party actions, each collecting signer
// approvals up to a configured threshold before the token/contract
// change it describes is allowed to execute.
package group

import (
	"encoding/json"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// Action is one pending multi-signer operation. Payload is the opaque
// serialized token/contract change this action will execute once
// Approvals reaches Threshold; this package never interprets it.
type Action struct {
	ID         []byte          `json:"id"`
	ContractID []byte          `json:"contract_id"`
	Threshold  uint32          `json:"threshold"`
	Members    [][]byte        `json:"members"`
	Approvals  map[string]bool `json:"approvals"`
	Payload    []byte          `json:"payload,omitempty"`
	Executed   bool            `json:"executed"`
}

// Fetch reads actionID's current state within contractID's registry.
func Fetch(store treestore.Store, contractID, actionID []byte) (*Action, error) {
	el, err := store.Get(pathschema.GroupActionPath(contractID), actionID)
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return nil, drive.ErrGroupActionNotFound
		}
		return nil, err
	}
	var a Action
	if err := json.Unmarshal(el.ItemValue, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Prove builds a proved path query for actionID's current state.
func Prove(store treestore.Store, contractID, actionID []byte) ([]byte, error) {
	pq := &treestore.PathQuery{
		Path: pathschema.GroupActionPath(contractID),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.ExactKey(actionID)},
			OrderAscending: true,
		},
	}
	return store.QueryProved(pq)
}

// PendingInContract lists every action registered against contractID,
// executed or not.
func PendingInContract(store treestore.Store, contractID []byte) ([]*Action, error) {
	pairs, _, err := store.Query(&treestore.PathQuery{
		Path: pathschema.GroupActionPath(contractID),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.KeyRangeFrom(nil)},
			OrderAscending: true,
		},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Action, 0, len(pairs))
	for _, pair := range pairs {
		var a Action
		if err := json.Unmarshal(pair.Element.ItemValue, &a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, nil
}

func writeRecord(ctx *drive.Context, a *Action) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	ctx.Insert(pathschema.GroupActionPath(a.ContractID), a.ID, treestore.NewItem(raw, nil))
	return nil
}

// Open registers a new pending action against a contract, ensuring the
// contract's registry subtree exists first.
func Open(ctx *drive.Context, a *Action) error {
	if a.Approvals == nil {
		a.Approvals = make(map[string]bool)
	}
	if err := ctx.EnsureSubtree([][]byte{pathschema.RootGroups}, a.ContractID, treestore.NewTree(nil)); err != nil {
		return err
	}
	return writeRecord(ctx, a)
}

// UpdateParams changes a's members, threshold, or payload before any
// approval has been recorded against it. Once even one member has
// approved, the terms they approved are locked: changing the threshold,
// membership, or payload out from under a standing approval would let an
// action execute something nobody actually agreed to.
func UpdateParams(ctx *drive.Context, a *Action, members [][]byte, threshold uint32, payload []byte) error {
	if ApprovalCount(a) > 0 {
		return drive.ErrGroupActionParamsLocked
	}
	a.Members = members
	a.Threshold = threshold
	a.Payload = payload
	return writeRecord(ctx, a)
}

// ApprovalCount returns how many distinct members have approved a.
func ApprovalCount(a *Action) int {
	count := 0
	for _, approved := range a.Approvals {
		if approved {
			count++
		}
	}
	return count
}

// Approve records signerID's approval of a and reports whether that
// pushed it to (or past) its threshold. Approving twice from the same
// signer is idempotent.
func Approve(ctx *drive.Context, a *Action, signerID []byte) (thresholdMet bool, err error) {
	if a.Approvals == nil {
		a.Approvals = make(map[string]bool)
	}
	a.Approvals[string(signerID)] = true
	if err := writeRecord(ctx, a); err != nil {
		return false, err
	}
	return uint32(ApprovalCount(a)) >= a.Threshold, nil
}

// Execute marks a as executed once its threshold has been met. The
// caller is responsible for actually applying the token/contract change
// Payload describes, composed alongside this call at the action-pipeline
// level — mirroring withdrawal.Pool's division of responsibility.
func Execute(ctx *drive.Context, a *Action) error {
	if a.Executed {
		return nil
	}
	if uint32(ApprovalCount(a)) < a.Threshold {
		return drive.ErrGroupThresholdNotMet
	}
	a.Executed = true
	return writeRecord(ctx, a)
}
