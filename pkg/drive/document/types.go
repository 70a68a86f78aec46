// Package document implements the Documents subtree (§3, §4.5): document
// records keyed by id under a contract/type's primary-key subtree, the
// secondary-index entries kept in lockstep with every mutation, and the
// query planner that picks an index for a DocumentQuery.
package document

import "github.com/driveplatform/drive/pkg/drive/contract"

// Document is the decoded shape of a Documents record.
type Document struct {
	ID              []byte                 `json:"id"`
	OwnerID         []byte                 `json:"owner_id"`
	ContractID      []byte                 `json:"contract_id"`
	DocumentType    string                 `json:"document_type"`
	Revision        uint64                 `json:"revision"`
	CreatedAtMs     uint64                 `json:"created_at_ms,omitempty"`
	UpdatedAtMs     uint64                 `json:"updated_at_ms,omitempty"`
	TransferredAtMs uint64                 `json:"transferred_at_ms,omitempty"`
	Properties      map[string]interface{} `json:"properties"`
	Transferable    bool                   `json:"transferable,omitempty"`
	PriceCredits    int64                  `json:"price_credits,omitempty"`
}

// indexKeyValues resolves an index's ordered property list against a
// document's properties, in the order the index declares them.
func indexKeyValues(doc *Document, idx *contract.Index) ([][]byte, error) {
	values := make([][]byte, 0, len(idx.Properties))
	for _, p := range idx.Properties {
		v, ok := doc.Properties[p.Name]
		if !ok {
			return nil, errMissingIndexedProperty(p.Name)
		}
		b, err := encodeIndexValue(v)
		if err != nil {
			return nil, err
		}
		values = append(values, b)
	}
	return values, nil
}
