package document

import (
	"encoding/json"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/contract"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// Fetch reads one document by id from its type's primary-key subtree.
func Fetch(store treestore.Store, contractID []byte, documentType string, id []byte) (*Document, error) {
	path := pathschema.ContractDocumentsPrimaryKeyPath(contractID, documentType)
	el, err := store.Get(path, id)
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return nil, drive.ErrDocumentNotFound
		}
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(el.ItemValue, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Prove builds a proved path query for one document by id.
func Prove(store treestore.Store, contractID []byte, documentType string, id []byte) ([]byte, error) {
	pq := &treestore.PathQuery{
		Path: pathschema.ContractDocumentsPrimaryKeyPath(contractID, documentType),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.ExactKey(id)},
			OrderAscending: true,
		},
	}
	return store.QueryProved(pq)
}

// Insert places doc under its type's primary-key subtree and writes one
// entry per declared index, rejecting the insert if a unique index
// already has an entry for doc's key values.
func Insert(ctx *drive.Context, dt *contract.DocumentType, doc *Document) error {
	if doc.Revision == 0 {
		doc.Revision = 1
	}
	primaryPath := pathschema.ContractDocumentsPrimaryKeyPath(doc.ContractID, doc.DocumentType)
	if err := ensurePrimarySubtree(ctx, doc); err != nil {
		return err
	}

	for i := range dt.Indices {
		idx := &dt.Indices[i]
		if idx.Unique {
			exists, err := indexEntryExists(ctx, doc, idx)
			if err != nil {
				return err
			}
			if exists {
				if idx.Contested {
					return drive.ErrContestedResourceLocked
				}
				return drive.ErrDocumentAlreadyExists
			}
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	ctx.Insert(primaryPath, doc.ID, treestore.NewItem(raw, nil))

	for i := range dt.Indices {
		if err := writeIndexEntry(ctx, doc, &dt.Indices[i]); err != nil {
			return err
		}
	}
	return nil
}

func ensurePrimarySubtree(ctx *drive.Context, doc *Document) error {
	path := pathschema.ContractDocumentsPrimaryKeyPath(doc.ContractID, doc.DocumentType)
	parent := path[:len(path)-1]
	return ctx.EnsureSubtree(parent, path[len(path)-1], treestore.NewTree(nil))
}

// Replace overwrites an existing document, requiring next.Revision to
// strictly exceed prior.Revision (invariant 3) and rewriting every index
// entry that changed.
func Replace(ctx *drive.Context, dt *contract.DocumentType, prior, next *Document, updatedAtMs uint64) error {
	if next.Revision <= prior.Revision {
		return drive.ErrDocumentRevisionMismatch
	}
	next.UpdatedAtMs = updatedAtMs

	for i := range dt.Indices {
		idx := &dt.Indices[i]
		if indexKeysEqual(prior, next, idx) {
			continue
		}
		if err := removeIndexEntry(ctx, prior, idx); err != nil {
			return err
		}
		if idx.Unique {
			exists, err := indexEntryExists(ctx, next, idx)
			if err != nil {
				return err
			}
			if exists {
				if idx.Contested {
					return drive.ErrContestedResourceLocked
				}
				return drive.ErrDocumentAlreadyExists
			}
		}
		if err := writeIndexEntry(ctx, next, idx); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	primaryPath := pathschema.ContractDocumentsPrimaryKeyPath(next.ContractID, next.DocumentType)
	ctx.Insert(primaryPath, next.ID, treestore.NewItem(raw, nil))
	return nil
}

// Transfer changes ownership and stamps transferredAtMs, bumping
// revision the same way Replace does.
func Transfer(ctx *drive.Context, dt *contract.DocumentType, prior *Document, newOwner []byte, transferredAtMs uint64) error {
	next := *prior
	next.OwnerID = newOwner
	next.Revision = prior.Revision + 1
	next.TransferredAtMs = transferredAtMs
	return Replace(ctx, dt, prior, &next, transferredAtMs)
}

// Delete removes doc from its primary-key subtree and every index entry
// it appears in.
func Delete(ctx *drive.Context, dt *contract.DocumentType, doc *Document) error {
	for i := range dt.Indices {
		if err := removeIndexEntry(ctx, doc, &dt.Indices[i]); err != nil {
			return err
		}
	}
	primaryPath := pathschema.ContractDocumentsPrimaryKeyPath(doc.ContractID, doc.DocumentType)
	ctx.Delete(primaryPath, doc.ID)
	return nil
}

func indexKeysEqual(a, b *Document, idx *contract.Index) bool {
	av, aerr := indexKeyValues(a, idx)
	bv, berr := indexKeyValues(b, idx)
	if aerr != nil || berr != nil || len(av) != len(bv) {
		return false
	}
	for i := range av {
		if string(av[i]) != string(bv[i]) {
			return false
		}
	}
	return true
}

const uniqueTerminalKey = "0"

// indexPath builds the nested subtree path for an index's key values,
// ensuring every intermediate level exists, and returns the terminal
// path plus the key documents are keyed by at that terminal: a fixed
// "0" key for unique indices (one slot for the single matching
// document), or the document's own id for non-unique indices (so many
// documents can collide on the same key prefix).
func indexPath(ctx *drive.Context, doc *Document, idx *contract.Index) ([][]byte, []byte, error) {
	values, err := indexKeyValues(doc, idx)
	if err != nil {
		return nil, nil, err
	}
	path := pathschema.ContractDocumentsIndexPath(doc.ContractID, doc.DocumentType, idx.Name)
	for _, v := range values {
		if err := ctx.EnsureSubtree(path, v, treestore.NewTree(nil)); err != nil {
			return nil, nil, err
		}
		path = append(append([][]byte{}, path...), v)
	}
	if idx.Unique {
		return path, []byte(uniqueTerminalKey), nil
	}
	if err := ctx.EnsureSubtree(path, []byte(uniqueTerminalKey), treestore.NewTree(nil)); err != nil {
		return nil, nil, err
	}
	path = append(append([][]byte{}, path...), []byte(uniqueTerminalKey))
	return path, doc.ID, nil
}

func writeIndexEntry(ctx *drive.Context, doc *Document, idx *contract.Index) error {
	path, key, err := indexPath(ctx, doc, idx)
	if err != nil {
		return err
	}
	primaryPath := pathschema.ContractDocumentsPrimaryKeyPath(doc.ContractID, doc.DocumentType)
	ctx.Insert(path, key, treestore.NewReference(append(append([][]byte{}, primaryPath...), doc.ID), nil))
	return nil
}

func removeIndexEntry(ctx *drive.Context, doc *Document, idx *contract.Index) error {
	values, err := indexKeyValues(doc, idx)
	if err != nil {
		return err
	}
	path := pathschema.ContractDocumentsIndexPath(doc.ContractID, doc.DocumentType, idx.Name)
	for _, v := range values {
		path = append(append([][]byte{}, path...), v)
	}
	key := []byte(uniqueTerminalKey)
	if !idx.Unique {
		path = append(append([][]byte{}, path...), []byte(uniqueTerminalKey))
		key = doc.ID
	}
	ctx.Delete(path, key)
	return nil
}

func indexEntryExists(ctx *drive.Context, doc *Document, idx *contract.Index) (bool, error) {
	values, err := indexKeyValues(doc, idx)
	if err != nil {
		return false, err
	}
	path := pathschema.ContractDocumentsIndexPath(doc.ContractID, doc.DocumentType, idx.Name)
	for _, v := range values {
		path = append(append([][]byte{}, path...), v)
	}
	return ctx.HasRaw(path, []byte(uniqueTerminalKey))
}

// Query runs q against dt's best-matching index (SelectIndex) and
// returns the matched documents fetched through their index references.
func Query(store treestore.Store, dt *contract.DocumentType, q Query) ([]*Document, error) {
	idx, err := SelectIndex(dt, q)
	if err != nil {
		return nil, err
	}

	path := pathschema.ContractDocumentsIndexPath(q.ContractID, q.DocumentType, idx.Name)
	for _, w := range q.Where {
		if w.Op != OpEqual {
			break
		}
		v, err := encodeIndexValue(w.Value)
		if err != nil {
			return nil, err
		}
		path = append(append([][]byte{}, path...), v)
	}

	pq := &treestore.PathQuery{
		Path: path,
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.KeyRangeFrom(nil)},
			Limit:          limitPtr(q.Limit),
			OrderAscending: true,
		},
	}
	pairs, _, err := store.Query(pq)
	if err != nil {
		return nil, err
	}

	var docs []*Document
	for _, pair := range pairs {
		if pair.Element.Kind != treestore.KindReference {
			continue
		}
		el, err := store.Get(pair.Element.ReferencePath[:len(pair.Element.ReferencePath)-1], pair.Element.ReferencePath[len(pair.Element.ReferencePath)-1])
		if err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal(el.ItemValue, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

func limitPtr(l uint32) *uint32 {
	if l == 0 {
		return nil
	}
	return &l
}
