// Package rag coordinates the retrieval pipeline: loading, chunking,
// embedding (cache-checked), vector storage, versioning and the
// query-time gate and ranker. System holds no persistent state of its
// own; everything durable lives in its collaborators.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/docsage/docsage/internal/chunker"
	"github.com/docsage/docsage/internal/embedcache"
	"github.com/docsage/docsage/internal/embedding"
	"github.com/docsage/docsage/internal/loader"
	"github.com/docsage/docsage/internal/prompt"
	"github.com/docsage/docsage/internal/retrieval"
	"github.com/docsage/docsage/internal/storage"
	"github.com/docsage/docsage/internal/version"
	"github.com/docsage/docsage/internal/vectorstore"
)

var (
	// ErrNotFound indicates the document (or version) does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInsufficientContext indicates the gate required document
	// context but nothing relevant survived ranking. Callers must
	// answer "not enough information" rather than fall back to an
	// ungrounded completion presented as grounded.
	ErrInsufficientContext = errors.New("insufficient context")

	// ErrRollbackCacheMismatch indicates the target version's
	// embeddings are no longer resolvable in the cache.
	ErrRollbackCacheMismatch = errors.New("rollback target not in cache")
)

// Version tags recorded on the ingestion paths.
const (
	tagInitial = "initial"
	tagUpdate  = "update"
)

// Deps holds the collaborators System is constructed with.
type Deps struct {
	Loader    *loader.Loader
	Splitter  *chunker.Splitter
	Cache     *embedcache.Cache
	Versions  *version.Manager
	Store     vectorstore.Backend
	Embedder  embedding.Embedder
	Files     *storage.Files
	Completer prompt.Completer

	// Gate defaults to retrieval.NeedsContext.
	Gate retrieval.Gate

	// Threshold is the similarity cutoff for ranking.
	Threshold float32

	// TopK is the result count used when a query passes k <= 0.
	TopK int

	Logger *slog.Logger
}

// System is the RAG orchestrator façade.
//
// System is safe for concurrent use across different documents.
// Concurrent ingestion of the same document is resolved by the
// deterministic chunk ids: duplicate upserts overwrite instead of
// duplicating.
type System struct {
	loader    *loader.Loader
	splitter  *chunker.Splitter
	cache     *embedcache.Cache
	versions  *version.Manager
	store     vectorstore.Backend
	embedder  embedding.Embedder
	files     *storage.Files
	completer prompt.Completer
	gate      retrieval.Gate
	threshold float32
	topK      int
	logger    *slog.Logger
}

// New creates a System. All collaborators except Gate and Logger are
// required.
func New(deps Deps) (*System, error) {
	switch {
	case deps.Loader == nil:
		return nil, fmt.Errorf("loader is required")
	case deps.Splitter == nil:
		return nil, fmt.Errorf("splitter is required")
	case deps.Cache == nil:
		return nil, fmt.Errorf("cache is required")
	case deps.Versions == nil:
		return nil, fmt.Errorf("version manager is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("vector store is required")
	case deps.Embedder == nil:
		return nil, fmt.Errorf("embedder is required")
	case deps.Files == nil:
		return nil, fmt.Errorf("file storage is required")
	case deps.Completer == nil:
		return nil, fmt.Errorf("completer is required")
	}

	gate := deps.Gate
	if gate == nil {
		gate = retrieval.NeedsContext
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := deps.TopK
	if topK <= 0 {
		topK = 5
	}

	return &System{
		loader:    deps.Loader,
		splitter:  deps.Splitter,
		cache:     deps.Cache,
		versions:  deps.Versions,
		store:     deps.Store,
		embedder:  deps.Embedder,
		files:     deps.Files,
		completer: deps.Completer,
		gate:      gate,
		threshold: deps.Threshold,
		topK:      topK,
		logger:    logger,
	}, nil
}

// AddRequest describes a document to ingest. Exactly one of Path or
// Content must be set; with Content, Filename supplies the extension.
type AddRequest struct {
	Path     string
	Content  []byte
	Filename string
	Owner    string
	Metadata map[string]string
}

// AddResult reports what AddDocument did.
type AddResult struct {
	DocumentID string
	VersionID  string
	// Reused is true when identical content already existed for this
	// owner and nothing was reprocessed.
	Reused bool
}

// AddDocument ingests a document: load, dedup by content hash, chunk,
// embed (or reuse cached embeddings), persist chunks and record the
// initial version.
func (s *System) AddDocument(ctx context.Context, req AddRequest) (*AddResult, error) {
	if req.Owner == "" {
		return nil, fmt.Errorf("owner is required")
	}

	var (
		loaded   *loader.Result
		raw      []byte
		filename string
		err      error
	)
	switch {
	case req.Path != "":
		filename = filepath.Base(req.Path)
		loaded, err = s.loader.Load(req.Path)
	case len(req.Content) > 0:
		if req.Filename == "" {
			return nil, fmt.Errorf("filename is required with inline content")
		}
		filename = req.Filename
		raw = req.Content
		loaded, err = s.loader.LoadBytes(req.Content, filepath.Ext(filename), filename)
	default:
		return nil, fmt.Errorf("either path or content is required")
	}
	if err != nil {
		return nil, err
	}

	cleaned := chunker.Clean(loaded.Content)
	hash := embedcache.HashContent(cleaned)

	// Identical content for the same owner is a no-op.
	if existing, findErr := s.store.FindByHash(ctx, req.Owner, hash); findErr == nil {
		versionID := ""
		if current, ok := s.versions.Current(existing.ID); ok {
			versionID = current.ID
		}
		s.logger.Debug("document content already indexed",
			"owner", req.Owner, "document_id", existing.ID)
		return &AddResult{DocumentID: existing.ID, VersionID: versionID, Reused: true}, nil
	} else if !errors.Is(findErr, vectorstore.ErrDocumentNotFound) {
		return nil, findErr
	}

	if raw == nil {
		raw = []byte(loaded.Content)
	}

	documentID := uuid.NewString()

	storagePath, err := s.files.Save(req.Owner, filename, raw)
	if err != nil {
		return nil, fmt.Errorf("storing original file: %w", err)
	}

	chunks, embeddings, err := s.chunkAndEmbed(ctx, documentID, cleaned, tagInitial)
	if err != nil {
		// No document record references the stored file yet.
		if delErr := s.files.Delete(storagePath); delErr != nil {
			s.logger.Warn("removing stored file after failed ingest",
				"path", storagePath, "error", delErr)
		}
		return nil, err
	}

	metadata := mergeMetadata(loaded.Metadata, req.Metadata)
	doc := vectorstore.Document{
		ID:          documentID,
		Owner:       req.Owner,
		Filename:    filename,
		FileType:    fileType(filename),
		FileSize:    int64(len(raw)),
		Hash:        hash,
		StoragePath: storagePath,
		Metadata:    metadata,
		ChunkCount:  len(chunks),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.UpsertDocument(ctx, doc); err != nil {
		if delErr := s.files.Delete(storagePath); delErr != nil {
			s.logger.Warn("removing stored file after failed ingest",
				"path", storagePath, "error", delErr)
		}
		return nil, err
	}

	if err := s.upsertChunks(ctx, documentID, req.Owner, filename, chunks, embeddings, metadata); err != nil {
		return nil, err
	}

	versionID, err := s.versions.Create(documentID, hash, []string{tagInitial}, hash)
	if err != nil {
		return nil, fmt.Errorf("recording version: %w", err)
	}

	s.logger.Info("document added",
		"owner", req.Owner, "document_id", documentID, "chunks", len(chunks))
	return &AddResult{DocumentID: documentID, VersionID: versionID}, nil
}

// UpdateDocument replaces a document's content. The update path never
// short-circuits through the cache: content is rechunked and
// re-embedded, prior chunks are deleted, and a new version is
// recorded.
func (s *System) UpdateDocument(ctx context.Context, documentID, newContent string, metadata map[string]string) (string, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if errors.Is(err, vectorstore.ErrDocumentNotFound) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, documentID)
	}
	if err != nil {
		return "", err
	}

	cleaned := chunker.Clean(newContent)
	hash := embedcache.HashContent(cleaned)

	chunks := s.splitter.Split(cleaned)
	var embeddings [][]float32
	if len(chunks) > 0 {
		embeddings, err = s.embedder.EmbedDocuments(ctx, chunks)
		if err != nil {
			return "", fmt.Errorf("embedding chunks: %w", err)
		}
		if err := s.cache.Store(documentID, cleaned, chunks, embeddings, tagUpdate); err != nil {
			return "", fmt.Errorf("caching embeddings: %w", err)
		}
	}

	if _, err := s.store.DeleteByDocument(ctx, documentID); err != nil {
		return "", err
	}

	merged := mergeMetadata(doc.Metadata, metadata)
	doc.Hash = hash
	doc.ChunkCount = len(chunks)
	doc.Metadata = merged
	if err := s.store.UpsertDocument(ctx, *doc); err != nil {
		return "", err
	}

	if err := s.upsertChunks(ctx, documentID, doc.Owner, doc.Filename, chunks, embeddings, merged); err != nil {
		return "", err
	}

	versionID, err := s.versions.Create(documentID, hash, []string{tagUpdate}, hash)
	if err != nil {
		return "", fmt.Errorf("recording version: %w", err)
	}

	s.logger.Info("document updated", "document_id", documentID, "chunks", len(chunks))
	return versionID, nil
}

// QueryResult is the answer to a question plus its supporting
// evidence.
type QueryResult struct {
	Answer  string
	Context string
	Chunks  []retrieval.RankedChunk
	// Grounded is true when the answer was generated from retrieved
	// document context.
	Grounded bool
}

// Query answers a question for an owner. The gate decides whether to
// retrieve; when it requires context but ranking leaves nothing,
// Query fails with ErrInsufficientContext instead of generating an
// answer that would masquerade as grounded.
func (s *System) Query(ctx context.Context, question, owner string, k int) (*QueryResult, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if k <= 0 {
		k = s.topK
	}

	if !s.gate(question) {
		answer, err := s.completer.Complete(ctx, prompt.Build("", question))
		if err != nil {
			return nil, fmt.Errorf("completing answer: %w", err)
		}
		return &QueryResult{Answer: answer}, nil
	}

	queryEmbedding, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.store.Query(ctx, queryEmbedding, k, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	texts := make([]string, len(hits))
	distances := make([]float32, len(hits))
	metadatas := make([]map[string]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Text
		distances[i] = hit.Distance
		metadatas[i] = hit.Metadata
	}

	ranked := retrieval.Rank(texts, distances, metadatas, s.threshold)
	if len(ranked.Chunks) == 0 {
		return nil, fmt.Errorf("%w: no relevant chunks for question", ErrInsufficientContext)
	}

	answer, err := s.completer.Complete(ctx, prompt.Build(ranked.Context, question))
	if err != nil {
		return nil, fmt.Errorf("completing answer: %w", err)
	}

	return &QueryResult{
		Answer:   answer,
		Context:  ranked.Context,
		Chunks:   ranked.Chunks,
		Grounded: true,
	}, nil
}

// DeleteDocument removes a document's chunks, stored file, cache
// entry and version history. Idempotent: deleting an absent document
// returns (false, nil).
func (s *System) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if errors.Is(err, vectorstore.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := s.store.DeleteByDocument(ctx, documentID); err != nil {
		return false, err
	}

	// Stored file removal is best-effort; a missing file is expected
	// after a prior partial delete.
	if err := s.files.Delete(doc.StoragePath); err != nil {
		s.logger.Warn("failed to delete stored file",
			"document_id", documentID, "path", doc.StoragePath, "error", err)
	}

	if err := s.cache.Invalidate(documentID); err != nil {
		return false, fmt.Errorf("invalidating cache: %w", err)
	}
	if err := s.versions.DeleteDocument(documentID); err != nil {
		return false, fmt.Errorf("deleting version history: %w", err)
	}

	if err := s.store.DeleteDocument(ctx, documentID); err != nil && !errors.Is(err, vectorstore.ErrDocumentNotFound) {
		return false, err
	}

	s.logger.Info("document deleted", "document_id", documentID)
	return true, nil
}

// DocumentInfo is one row of ListDocuments.
type DocumentInfo struct {
	ID         string
	Filename   string
	ChunkCount int
	UploadedAt time.Time
	FileSize   int64
	FileType   string
}

// ListDocuments returns an owner's documents, newest first. Chunk
// counts come from the stored records, nothing is recomputed.
func (s *System) ListDocuments(ctx context.Context, owner string) ([]DocumentInfo, error) {
	docs, err := s.store.ListDocuments(ctx, owner)
	if err != nil {
		return nil, err
	}

	infos := make([]DocumentInfo, 0, len(docs))
	for _, doc := range docs {
		infos = append(infos, DocumentInfo{
			ID:         doc.ID,
			Filename:   doc.Filename,
			ChunkCount: doc.ChunkCount,
			UploadedAt: doc.CreatedAt,
			FileSize:   doc.FileSize,
			FileType:   doc.FileType,
		})
	}
	return infos, nil
}

// Versions returns a document's version history.
func (s *System) Versions(documentID string) []version.Version {
	return s.versions.List(documentID)
}

// Rollback repoints a document's current version. It requires the
// target version's embeddings to still be resolvable in the cache;
// rollback never re-embeds.
func (s *System) Rollback(_ context.Context, documentID, versionID string) error {
	target, ok := s.versions.Get(documentID, versionID)
	if !ok {
		return fmt.Errorf("%w: version %q of document %q", ErrNotFound, versionID, documentID)
	}

	if !s.cache.Resolve(target.Hash) {
		return fmt.Errorf("%w: hash %s", ErrRollbackCacheMismatch, target.Hash)
	}

	if !s.versions.Rollback(documentID, versionID) {
		return fmt.Errorf("%w: version %q of document %q", ErrNotFound, versionID, documentID)
	}
	return nil
}

// chunkAndEmbed splits cleaned content and produces embeddings,
// consulting the cache first. Zero chunks is valid and means nothing
// to embed; the empty payload is still cached so the version recorded
// for this content stays resolvable for rollback.
func (s *System) chunkAndEmbed(ctx context.Context, documentID, cleaned, tag string) ([]string, [][]float32, error) {
	entry, err := s.cache.Lookup(documentID, cleaned)
	if err == nil {
		s.logger.Debug("embedding cache hit", "document_id", documentID, "chunks", entry.ChunkCount)
		return entry.Chunks, entry.Embeddings, nil
	}
	if !errors.Is(err, embedcache.ErrCacheMiss) {
		return nil, nil, err
	}

	chunks := s.splitter.Split(cleaned)
	var embeddings [][]float32
	if len(chunks) > 0 {
		embeddings, err = s.embedder.EmbedDocuments(ctx, chunks)
		if err != nil {
			return nil, nil, fmt.Errorf("embedding chunks: %w", err)
		}
	}
	if err := s.cache.Store(documentID, cleaned, chunks, embeddings, tag); err != nil {
		return nil, nil, fmt.Errorf("caching embeddings: %w", err)
	}
	return chunks, embeddings, nil
}

// upsertChunks builds the chunk records with their deterministic ids
// and dense metadata, then writes them to the vector store.
func (s *System) upsertChunks(ctx context.Context, documentID, owner, filename string, chunks []string, embeddings [][]float32, docMetadata map[string]string) error {
	if len(chunks) == 0 {
		return nil
	}

	records := make([]vectorstore.Chunk, len(chunks))
	for i, text := range chunks {
		metadata := make(map[string]string, len(docMetadata)+3)
		for k, v := range docMetadata {
			metadata[k] = v
		}
		metadata["chunk_index"] = strconv.Itoa(i)
		metadata["total_chunks"] = strconv.Itoa(len(chunks))
		metadata["source"] = filename

		records[i] = vectorstore.Chunk{
			ID:         vectorstore.ChunkID(documentID, i),
			DocumentID: documentID,
			Owner:      owner,
			Text:       text,
			Embedding:  embeddings[i],
			Metadata:   metadata,
		}
	}
	return s.store.UpsertChunks(ctx, records)
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func fileType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	return ext[1:]
}
