package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) Store {
	t.Helper()
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, InitTestDB("../../migrations"))
	t.Cleanup(func() { _ = Close() })
	return TestStore
}

func TestDocumentStoreIntegration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	// unique collection name keeps runs independent
	coll := "test-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = DB.Exec(`DELETE FROM documents WHERE collection = $1`, coll)
	})

	t.Run("upsert keeps enumeration order", func(t *testing.T) {
		require.NoError(t, store.UpsertDocument(ctx, coll, "b", []byte(`{"name":"first"}`)))
		require.NoError(t, store.UpsertDocument(ctx, coll, "a", []byte(`{"name":"second"}`)))
		require.NoError(t, store.UpsertDocument(ctx, coll, "b", []byte(`{"name":"first, edited"}`)))

		rows, err := store.ListDocuments(ctx, coll)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "b", rows[0].ID)
		assert.Equal(t, "a", rows[1].ID)
		assert.JSONEq(t, `{"name":"first, edited"}`, string(rows[0].Body))
	})

	t.Run("patch merges top level fields", func(t *testing.T) {
		require.NoError(t, store.PatchDocument(ctx, coll, "a", []byte(`{"status":"online"}`)))
		row, err := store.GetDocument(ctx, coll, "a")
		require.NoError(t, err)

		var body map[string]string
		require.NoError(t, json.Unmarshal(row.Body, &body))
		assert.Equal(t, "second", body["name"])
		assert.Equal(t, "online", body["status"])
	})

	t.Run("missing documents", func(t *testing.T) {
		_, err := store.GetDocument(ctx, coll, "nope")
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.ErrorIs(t, store.PatchDocument(ctx, coll, "nope", []byte(`{}`)), sql.ErrNoRows)
		assert.ErrorIs(t, store.DeleteDocument(ctx, coll, "nope"), sql.ErrNoRows)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteDocument(ctx, coll, "b"))
		rows, err := store.ListDocuments(ctx, coll)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "a", rows[0].ID)
	})
}
