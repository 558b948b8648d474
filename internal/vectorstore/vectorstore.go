// Package vectorstore defines the storage abstraction for chunk
// vectors and document records, with two interchangeable backends:
// an embedded vector database (chromem) and PostgreSQL with the
// pgvector extension.
//
// The interfaces make the owner scope a mandatory query parameter.
// The two backends isolate tenants differently — metadata filters in
// chromem, a server-side join against the documents table in pgvector
// — so scoping cannot be an optional filter bolted on by callers.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDocumentNotFound indicates a document id or hash with no record.
var ErrDocumentNotFound = errors.New("document not found")

// Chunk is one embedded passage of a document as persisted by a store.
//
// Chunk IDs are deterministic — ChunkID(documentID, index) — so that a
// concurrent re-add of the same document overwrites rather than
// duplicates. This is the invariant that keeps the lock-free
// orchestrator safe.
type Chunk struct {
	ID         string
	DocumentID string
	Owner      string
	Text       string
	Embedding  []float32
	Metadata   map[string]string
}

// Result is a nearest-neighbor hit, ordered by ascending distance.
// Similarity is 1 - Distance for the cosine metric used by both
// backends.
type Result struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float32
}

// Document is the registry record for one uploaded document.
type Document struct {
	ID          string
	Owner       string
	Filename    string
	FileType    string
	FileSize    int64
	Hash        string
	StoragePath string
	Metadata    map[string]string
	ChunkCount  int
	CreatedAt   time.Time
}

// Store persists chunk vectors and answers nearest-neighbor queries.
type Store interface {
	// UpsertChunks inserts or overwrites chunks by id. A mid-batch
	// failure is reported as a *BatchError naming the failed ids.
	UpsertChunks(ctx context.Context, chunks []Chunk) error

	// Query returns up to k results for owner, ordered by ascending
	// distance. Results never cross the owner scope. filter adds
	// equality constraints on chunk metadata.
	Query(ctx context.Context, embedding []float32, k int, owner string, filter map[string]string) ([]Result, error)

	// DeleteByDocument removes all chunks of a document via a
	// metadata-scoped bulk delete and returns how many were removed.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// DeleteByIDs removes specific chunks.
	DeleteByIDs(ctx context.Context, ids []string) error

	// Count returns the chunk count for owner; empty owner counts all.
	Count(ctx context.Context, owner string) (int, error)
}

// DocumentIndex is the registry of document records that owns
// identity, dedup-by-hash and listing.
type DocumentIndex interface {
	// UpsertDocument records or replaces a document.
	UpsertDocument(ctx context.Context, doc Document) error

	// GetDocument fetches one record; ErrDocumentNotFound if absent.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// FindByHash locates an owner's document with the given content
	// hash; ErrDocumentNotFound if none exists.
	FindByHash(ctx context.Context, owner, hash string) (*Document, error)

	// ListDocuments returns all of an owner's documents, newest first.
	ListDocuments(ctx context.Context, owner string) ([]Document, error)

	// DeleteDocument removes a record. Deleting an absent record
	// reports ErrDocumentNotFound so callers can stay idempotent.
	DeleteDocument(ctx context.Context, id string) error
}

// Backend bundles the two capabilities a retrieval backend provides.
type Backend interface {
	Store
	DocumentIndex
}

// ChunkID returns the deterministic chunk id for a document ordinal.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// BatchError reports a partially failed chunk upsert.
type BatchError struct {
	FailedIDs []string
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("upsert failed for %d chunk(s) [%s]: %v",
		len(e.FailedIDs), strings.Join(e.FailedIDs, ", "), e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
