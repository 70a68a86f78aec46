package queryindex_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"

	"github.com/driveplatform/drive/pkg/drive/document"
	"github.com/driveplatform/drive/pkg/drive/document/queryindex"
)

// testDB is only populated when DRIVE_TEST_DOCUMENT_INDEX_DB names a
// reachable Postgres instance; otherwise every test here is skipped.
var testDB *sql.DB

func TestMain(m *testing.M) {
	connStr := os.Getenv("DRIVE_TEST_DOCUMENT_INDEX_DB")
	if connStr == "" {
		os.Exit(0)
	}
	var err error
	testDB, err = sql.Open("postgres", connStr)
	if err != nil {
		panic("queryindex: failed to open test database: " + err.Error())
	}
	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func TestUpsertThenByOwnerRoundTrips(t *testing.T) {
	if testDB == nil {
		t.Skip("DRIVE_TEST_DOCUMENT_INDEX_DB not configured")
	}
	ctx := context.Background()
	_, err := testDB.ExecContext(ctx, `DELETE FROM document_mirror WHERE contract_id = $1`, []byte("contract-1"))
	require.NoError(t, err)

	repo := queryindex.NewRepository(testDB)

	doc := &document.Document{
		ID:           []byte("doc-1"),
		OwnerID:      []byte("owner-1"),
		ContractID:   []byte("contract-1"),
		DocumentType: "note",
		Revision:     1,
		Properties:   map[string]interface{}{"title": "hello"},
	}
	require.NoError(t, repo.Upsert(ctx, doc))

	found, err := repo.ByOwner(ctx, doc.ContractID, doc.DocumentType, doc.OwnerID, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, doc.ID, found[0].ID)

	require.NoError(t, repo.Delete(ctx, doc.ContractID, doc.DocumentType, doc.ID))
	found, err = repo.ByOwner(ctx, doc.ContractID, doc.DocumentType, doc.OwnerID, 10)
	require.NoError(t, err)
	require.Empty(t, found)
}
