package queryindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/driveplatform/drive/pkg/drive/document"
)

// Repository mirrors document rows into Postgres for query patterns the
// tree store's path-prefix indices cannot serve.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps db for document mirror access.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes or overwrites doc's mirrored row.
func (r *Repository) Upsert(ctx context.Context, doc *document.Document) error {
	props, err := json.Marshal(doc.Properties)
	if err != nil {
		return fmt.Errorf("queryindex: marshal properties: %w", err)
	}

	const q = `
		INSERT INTO document_mirror (
			contract_id, document_type, document_id, owner_id,
			revision, created_at_ms, updated_at_ms, properties
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (contract_id, document_type, document_id) DO UPDATE SET
			owner_id      = EXCLUDED.owner_id,
			revision      = EXCLUDED.revision,
			updated_at_ms = EXCLUDED.updated_at_ms,
			properties    = EXCLUDED.properties`

	_, err = r.db.ExecContext(ctx, q,
		doc.ContractID, doc.DocumentType, doc.ID, doc.OwnerID,
		doc.Revision, doc.CreatedAtMs, doc.UpdatedAtMs, props,
	)
	if err != nil {
		return fmt.Errorf("queryindex: upsert document: %w", err)
	}
	return nil
}

// Delete removes doc's mirrored row, if present.
func (r *Repository) Delete(ctx context.Context, contractID []byte, documentType string, documentID []byte) error {
	const q = `
		DELETE FROM document_mirror
		WHERE contract_id = $1 AND document_type = $2 AND document_id = $3`

	_, err := r.db.ExecContext(ctx, q, contractID, documentType, documentID)
	if err != nil {
		return fmt.Errorf("queryindex: delete document: %w", err)
	}
	return nil
}

// ByOwner returns every mirrored document of documentType owned by
// ownerID, newest revision first.
func (r *Repository) ByOwner(ctx context.Context, contractID []byte, documentType string, ownerID []byte, limit int) ([]*document.Document, error) {
	const q = `
		SELECT document_id, owner_id, revision, created_at_ms, updated_at_ms, properties
		FROM document_mirror
		WHERE contract_id = $1 AND document_type = $2 AND owner_id = $3
		ORDER BY revision DESC
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, q, contractID, documentType, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("queryindex: query by owner: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows, contractID, documentType)
}

// ByProperty returns every mirrored document of documentType whose
// properties JSON has propertyName equal to value (compared as JSON text),
// serving ad-hoc filters no declared tree-store index covers.
func (r *Repository) ByProperty(ctx context.Context, contractID []byte, documentType, propertyName, value string, limit int) ([]*document.Document, error) {
	const q = `
		SELECT document_id, owner_id, revision, created_at_ms, updated_at_ms, properties
		FROM document_mirror
		WHERE contract_id = $1 AND document_type = $2 AND properties ->> $3 = $4
		ORDER BY revision DESC
		LIMIT $5`

	rows, err := r.db.QueryContext(ctx, q, contractID, documentType, propertyName, value, limit)
	if err != nil {
		return nil, fmt.Errorf("queryindex: query by property: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows, contractID, documentType)
}

func scanDocuments(rows *sql.Rows, contractID []byte, documentType string) ([]*document.Document, error) {
	var docs []*document.Document
	for rows.Next() {
		var (
			doc   document.Document
			props []byte
		)
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.Revision, &doc.CreatedAtMs, &doc.UpdatedAtMs, &props); err != nil {
			return nil, fmt.Errorf("queryindex: scan document row: %w", err)
		}
		if err := json.Unmarshal(props, &doc.Properties); err != nil {
			return nil, fmt.Errorf("queryindex: unmarshal properties: %w", err)
		}
		doc.ContractID = contractID
		doc.DocumentType = documentType
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queryindex: row iteration: %w", err)
	}
	return docs, nil
}
