// Package contract implements the DataContracts subtree: contract
// records, optional version history, and the document-type/index schema
// a document module needs to place and query documents.
package contract

import (
	"encoding/binary"
	"encoding/json"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// IndexProperty is one ordered (property, ascending) pair within an
// Index definition.
type IndexProperty struct {
	Name      string `json:"name"`
	Ascending bool   `json:"ascending"`
}

// Index is one named index declared on a DocumentType.
type Index struct {
	Name       string          `json:"name"`
	Properties []IndexProperty `json:"properties"`
	Unique     bool            `json:"unique"`
	Contested  bool            `json:"contested"`
}

// DocumentType is one entry in a contract's schema.
type DocumentType struct {
	Name         string  `json:"name"`
	Indices      []Index `json:"indices"`
	Transferable bool    `json:"transferable"`
}

// Contract is the decoded shape of a DataContracts record.
type Contract struct {
	ID            []byte         `json:"id"`
	OwnerID       []byte         `json:"owner_id"`
	Version       uint32         `json:"version"`
	DocumentTypes []DocumentType `json:"document_types"`
	KeepsHistory  bool           `json:"keeps_history"`
	Mutable       bool           `json:"mutable"`
}

// FindDocumentType looks up a document type by name.
func (c *Contract) FindDocumentType(name string) (*DocumentType, bool) {
	for i := range c.DocumentTypes {
		if c.DocumentTypes[i].Name == name {
			return &c.DocumentTypes[i], true
		}
	}
	return nil, false
}

const recordKey = "record"

// Fetch reads contract id's current record.
func Fetch(store treestore.Store, id []byte) (*Contract, error) {
	el, err := store.Get(pathschema.DataContractPath(id), []byte(recordKey))
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return nil, drive.ErrContractNotFound
		}
		return nil, err
	}
	var c Contract
	if err := json.Unmarshal(el.ItemValue, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Prove builds a proved path query for contract id's current record.
func Prove(store treestore.Store, id []byte) ([]byte, error) {
	pq := &treestore.PathQuery{
		Path: pathschema.DataContractPath(id),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.ExactKey([]byte(recordKey))},
			OrderAscending: true,
		},
	}
	return store.QueryProved(pq)
}

// Insert creates a new contract record at version 1, rejecting with
// drive.ErrContractAlreadyExists if id is already in use.
func Insert(ctx *drive.Context, c *Contract) error {
	exists, err := ctx.HasRaw(pathschema.DataContractPath(c.ID), []byte(recordKey))
	if err != nil {
		return err
	}
	if exists {
		return drive.ErrContractAlreadyExists
	}
	c.Version = 1
	if err := ctx.EnsureSubtree([][]byte{pathschema.RootDataContracts}, c.ID, treestore.NewTree(nil)); err != nil {
		return err
	}
	return writeRecord(ctx, c)
}

func writeRecord(ctx *drive.Context, c *Contract) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ctx.Insert(pathschema.DataContractPath(c.ID), []byte(recordKey), treestore.NewItem(raw, nil))
	return nil
}

// Update replaces c's record with next, bumping version (monotone, per
// invariant 7) and, when c.KeepsHistory is set, archiving the prior
// record under the history subtree keyed by updateTimeMs so it remains
// queryable in ascending-timestamp order (invariant I8).
func Update(ctx *drive.Context, prior, next *Contract, updateTimeMs uint64) error {
	next.Version = prior.Version + 1
	if prior.KeepsHistory {
		histPath := pathschema.DataContractHistoryPath(prior.ID)
		if err := ctx.EnsureSubtree(pathschema.DataContractPath(prior.ID), histPath[len(histPath)-1], treestore.NewTree(nil)); err != nil {
			return err
		}
		priorRaw, err := json.Marshal(prior)
		if err != nil {
			return err
		}
		ctx.Insert(histPath, encodeTimestamp(updateTimeMs), treestore.NewItem(priorRaw, nil))
	}
	return writeRecord(ctx, next)
}

// History returns every archived version of contract id in ascending
// timestamp order, oldest first (invariant I8). Only meaningful when the
// contract has keeps_history set.
func History(store treestore.Store, id []byte) ([]treestore.KeyElementPair, error) {
	pairs, _, err := store.Query(&treestore.PathQuery{
		Path: pathschema.DataContractHistoryPath(id),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.KeyRangeFrom(nil)},
			OrderAscending: true,
		},
	})
	return pairs, err
}

func encodeTimestamp(ms uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, ms)
	return b
}
