package pgvector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/internal/log"
	"github.com/docsage/docsage/internal/testutil"
	"github.com/docsage/docsage/internal/vectorstore"
)

func setupStore(t *testing.T) (*Store, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	store, err := New(db.Pool, log.NewNop())
	if err != nil {
		cleanup()
		t.Fatalf("creating store: %v", err)
	}
	return store, cleanup
}

func vec768(fill []float32) []float32 {
	v := make([]float32, 768)
	copy(v, fill)
	return v
}

func seedDocument(t *testing.T, store *Store, id, owner string) {
	t.Helper()
	require.NoError(t, store.UpsertDocument(context.Background(), vectorstore.Document{
		ID:        id,
		Owner:     owner,
		Filename:  id + ".txt",
		FileType:  "txt",
		Hash:      "hash-" + id,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestStoreIntegration_UpsertAndQuery(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	seedDocument(t, store, "doc-a", "alice")
	seedDocument(t, store, "doc-b", "bob")

	require.NoError(t, store.UpsertChunks(ctx, []vectorstore.Chunk{
		{
			ID:         vectorstore.ChunkID("doc-a", 0),
			DocumentID: "doc-a",
			Text:       "alice chunk near",
			Embedding:  vec768([]float32{1, 0, 0}),
			Metadata:   map[string]string{"section": "intro"},
		},
		{
			ID:         vectorstore.ChunkID("doc-a", 1),
			DocumentID: "doc-a",
			Text:       "alice chunk far",
			Embedding:  vec768([]float32{0, 1, 0}),
		},
		{
			ID:         vectorstore.ChunkID("doc-b", 0),
			DocumentID: "doc-b",
			Text:       "bob chunk near",
			Embedding:  vec768([]float32{1, 0, 0}),
		},
	}))

	results, err := store.Query(ctx, vec768([]float32{1, 0, 0}), 10, "alice", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alice chunk near", results[0].Text)
	assert.Equal(t, "alice chunk far", results[1].Text)
	assert.Less(t, results[0].Distance, results[1].Distance)
	assert.Equal(t, "intro", results[0].Metadata["section"])

	filtered, err := store.Query(ctx, vec768([]float32{1, 0, 0}), 10, "alice",
		map[string]string{"section": "intro"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, vectorstore.ChunkID("doc-a", 0), filtered[0].ID)
}

func TestStoreIntegration_UpsertOverwrites(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	seedDocument(t, store, "doc", "alice")

	first := vectorstore.Chunk{
		ID:         vectorstore.ChunkID("doc", 0),
		DocumentID: "doc",
		Text:       "first",
		Embedding:  vec768([]float32{1, 0, 0}),
	}
	require.NoError(t, store.UpsertChunks(ctx, []vectorstore.Chunk{first}))

	first.Text = "second"
	require.NoError(t, store.UpsertChunks(ctx, []vectorstore.Chunk{first}))

	count, err := store.Count(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := store.Query(ctx, vec768([]float32{1, 0, 0}), 1, "alice", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second", results[0].Text)
}

func TestStoreIntegration_BatchErrorNamesFailedIDs(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	seedDocument(t, store, "doc", "alice")

	chunks := []vectorstore.Chunk{
		{
			ID:         vectorstore.ChunkID("doc", 0),
			DocumentID: "doc",
			Text:       "fine",
			Embedding:  vec768([]float32{1, 0, 0}),
		},
		{
			// Violates the foreign key on document_id.
			ID:         vectorstore.ChunkID("ghost", 0),
			DocumentID: "ghost",
			Text:       "orphan",
			Embedding:  vec768([]float32{0, 1, 0}),
		},
	}

	err := store.UpsertChunks(ctx, chunks)
	require.Error(t, err)

	var batchErr *vectorstore.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Contains(t, batchErr.FailedIDs, vectorstore.ChunkID("ghost", 0))
	assert.NotContains(t, batchErr.FailedIDs, vectorstore.ChunkID("doc", 0))
}

func TestStoreIntegration_DeleteByDocumentCascade(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	seedDocument(t, store, "doc", "alice")
	require.NoError(t, store.UpsertChunks(ctx, []vectorstore.Chunk{
		{ID: vectorstore.ChunkID("doc", 0), DocumentID: "doc", Text: "a", Embedding: vec768([]float32{1, 0, 0})},
		{ID: vectorstore.ChunkID("doc", 1), DocumentID: "doc", Text: "b", Embedding: vec768([]float32{0, 1, 0})},
	}))

	deleted, err := store.DeleteByDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Deleting the document row cascades to any remaining chunks.
	require.NoError(t, store.DeleteDocument(ctx, "doc"))
	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	err = store.DeleteDocument(ctx, "doc")
	assert.ErrorIs(t, err, vectorstore.ErrDocumentNotFound)
}

func TestStoreIntegration_DocumentIndex(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.UpsertDocument(ctx, vectorstore.Document{
		ID: "old", Owner: "alice", Filename: "old.md", FileType: "md",
		Hash: "h-old", CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, store.UpsertDocument(ctx, vectorstore.Document{
		ID: "new", Owner: "alice", Filename: "new.md", FileType: "md",
		Hash: "h-new", CreatedAt: now,
	}))

	docs, err := store.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "new", docs[0].ID)
	assert.Equal(t, "old", docs[1].ID)

	byHash, err := store.FindByHash(ctx, "alice", "h-old")
	require.NoError(t, err)
	assert.Equal(t, "old", byHash.ID)

	_, err = store.FindByHash(ctx, "bob", "h-old")
	assert.ErrorIs(t, err, vectorstore.ErrDocumentNotFound)

	_, err = store.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, vectorstore.ErrDocumentNotFound)
}
