// Package chromem implements the vector store on chromem-go, an
// embedded vector database persisted to local disk.
//
// chromem has no native multi-tenancy: a single global collection
// holds every chunk, and owner and document isolation rely entirely on
// metadata equality filters. Every query carries an owner filter and
// document deletion is a metadata-scoped bulk delete — id-pattern
// deletes are unreliable in a metadata-indexed store and are not used.
//
// chromem stores no queryable document registry either, so document
// records live in a JSON sidecar file next to the database directory.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/docsage/docsage/internal/vectorstore"
)

const (
	collectionName = "chunks"
	registryFile   = "documents.json"

	metaOwner    = "owner"
	metaDocument = "document_id"
)

// Store is a chromem-go backed vectorstore.Backend.
type Store struct {
	db         *chromemgo.DB
	collection *chromemgo.Collection
	dir        string
	logger     *slog.Logger

	// mu guards the registry file's read-modify-write cycle and the
	// count-around-delete window in DeleteByDocument.
	mu sync.Mutex
}

// New opens (or creates) the persistent database under dir.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := chromemgo.NewPersistentDB(filepath.Join(dir, "chromem"), false)
	if err != nil {
		return nil, fmt.Errorf("opening chromem database: %w", err)
	}

	// Embeddings are always supplied by the caller; the collection's
	// embedding func must never run.
	noEmbed := func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("embeddings are computed upstream")
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("opening chunk collection: %w", err)
	}

	return &Store{
		db:         db,
		collection: collection,
		dir:        dir,
		logger:     logger,
	}, nil
}

// UpsertChunks adds or overwrites chunks. On a batch failure each
// chunk is retried individually so the error can name exactly the ids
// that failed.
func (s *Store) UpsertChunks(ctx context.Context, chunks []vectorstore.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromemgo.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = toDocument(c)
	}

	if err := s.collection.AddDocuments(ctx, docs, 1); err == nil {
		return nil
	}

	var failed []string
	var lastErr error
	for _, doc := range docs {
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			failed = append(failed, doc.ID)
			lastErr = err
		}
	}
	if len(failed) > 0 {
		return &vectorstore.BatchError{FailedIDs: failed, Err: lastErr}
	}
	return nil
}

func toDocument(c vectorstore.Chunk) chromemgo.Document {
	metadata := make(map[string]string, len(c.Metadata)+2)
	for k, v := range c.Metadata {
		metadata[k] = v
	}
	metadata[metaOwner] = c.Owner
	metadata[metaDocument] = c.DocumentID

	return chromemgo.Document{
		ID:        c.ID,
		Content:   c.Text,
		Embedding: c.Embedding,
		Metadata:  metadata,
	}
}

// Query runs a nearest-neighbor search restricted to owner. chromem
// reports cosine similarity, converted here to distance = 1 - s so
// both backends speak the same metric.
func (s *Store) Query(ctx context.Context, embedding []float32, k int, owner string, filter map[string]string) ([]vectorstore.Result, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner scope is required")
	}

	// chromem rejects nResults above the collection size.
	total := s.collection.Count()
	if total == 0 {
		return nil, nil
	}
	n := k
	if n > total {
		n = total
	}

	where := map[string]string{metaOwner: owner}
	for key, value := range filter {
		where[key] = value
	}

	hits, err := s.collection.QueryEmbedding(ctx, embedding, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}

	results := make([]vectorstore.Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, vectorstore.Result{
			ID:       hit.ID,
			Text:     hit.Content,
			Metadata: hit.Metadata,
			Distance: 1 - hit.Similarity,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteByDocument removes all chunks whose metadata names documentID.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.collection.Count()
	err := s.collection.Delete(ctx, map[string]string{metaDocument: documentID}, nil)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks of document %q: %w", documentID, err)
	}
	return before - s.collection.Count(), nil
}

// DeleteByIDs removes specific chunks.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting %d chunk(s): %w", len(ids), err)
	}
	return nil
}

// Count returns the chunk count. chromem cannot count a metadata
// subset natively, so per-owner counts sum the chunk counts recorded
// in the document registry at upsert time.
func (s *Store) Count(ctx context.Context, owner string) (int, error) {
	if owner == "" {
		return s.collection.Count(), nil
	}

	docs, err := s.ListDocuments(ctx, owner)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, doc := range docs {
		total += doc.ChunkCount
	}
	return total, nil
}

// UpsertDocument records a document in the registry sidecar.
func (s *Store) UpsertDocument(_ context.Context, doc vectorstore.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	registry, err := s.readRegistry()
	if err != nil {
		return fmt.Errorf("reading document registry: %w", err)
	}
	registry[doc.ID] = doc
	return s.writeRegistry(registry)
}

// GetDocument fetches one registry record.
func (s *Store) GetDocument(_ context.Context, id string) (*vectorstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	registry, err := s.readRegistry()
	if err != nil {
		return nil, fmt.Errorf("reading document registry: %w", err)
	}
	doc, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", vectorstore.ErrDocumentNotFound, id)
	}
	return &doc, nil
}

// FindByHash locates an owner's document with the given content hash.
func (s *Store) FindByHash(_ context.Context, owner, hash string) (*vectorstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	registry, err := s.readRegistry()
	if err != nil {
		return nil, fmt.Errorf("reading document registry: %w", err)
	}
	for _, doc := range registry {
		if doc.Owner == owner && doc.Hash == hash {
			return &doc, nil
		}
	}
	return nil, fmt.Errorf("%w: owner %q hash %q", vectorstore.ErrDocumentNotFound, owner, hash)
}

// ListDocuments returns an owner's documents, newest first.
func (s *Store) ListDocuments(_ context.Context, owner string) ([]vectorstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	registry, err := s.readRegistry()
	if err != nil {
		return nil, fmt.Errorf("reading document registry: %w", err)
	}

	var docs []vectorstore.Document
	for _, doc := range registry {
		if doc.Owner == owner {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// DeleteDocument removes a registry record.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	registry, err := s.readRegistry()
	if err != nil {
		return fmt.Errorf("reading document registry: %w", err)
	}
	if _, ok := registry[id]; !ok {
		return fmt.Errorf("%w: %q", vectorstore.ErrDocumentNotFound, id)
	}
	delete(registry, id)
	return s.writeRegistry(registry)
}

func (s *Store) registryPath() string {
	return filepath.Join(s.dir, registryFile)
}

func (s *Store) readRegistry() (map[string]vectorstore.Document, error) {
	data, err := os.ReadFile(s.registryPath())
	if errors.Is(err, os.ErrNotExist) {
		return map[string]vectorstore.Document{}, nil
	}
	if err != nil {
		return nil, err
	}

	registry := map[string]vectorstore.Document{}
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// writeRegistry rewrites the sidecar whole, via temp file and rename.
func (s *Store) writeRegistry(registry map[string]vectorstore.Document) error {
	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".registry-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.registryPath())
}
