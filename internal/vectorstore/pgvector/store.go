// Package pgvector implements the vector store on PostgreSQL with the
// pgvector extension. Chunks and documents live in two tables; owner
// isolation happens server-side through a join against the documents
// table, so a query can never see another owner's chunks regardless of
// what the caller passes as a filter.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/docsage/docsage/internal/vectorstore"
)

const upsertChunkSQL = `INSERT INTO chunks (id, document_id, content, embedding, metadata)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		document_id = EXCLUDED.document_id,
		content = EXCLUDED.content,
		embedding = EXCLUDED.embedding,
		metadata = EXCLUDED.metadata`

// queryChunksSQL orders by cosine distance. The documents join is the
// tenancy boundary.
const queryChunksSQL = `SELECT c.id, c.content, c.metadata, c.embedding <=> $1 AS distance
	FROM chunks c
	JOIN documents d ON d.id = c.document_id
	WHERE d.owner = $2
	  AND ($3::jsonb IS NULL OR c.metadata @> $3)
	ORDER BY c.embedding <=> $1
	LIMIT $4`

const upsertDocumentSQL = `INSERT INTO documents (id, owner, filename, file_type, file_size, hash, storage_path, metadata, chunk_count, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		owner = EXCLUDED.owner,
		filename = EXCLUDED.filename,
		file_type = EXCLUDED.file_type,
		file_size = EXCLUDED.file_size,
		hash = EXCLUDED.hash,
		storage_path = EXCLUDED.storage_path,
		metadata = EXCLUDED.metadata,
		chunk_count = EXCLUDED.chunk_count`

const documentCols = `id, owner, filename, file_type, file_size, hash, storage_path, metadata, chunk_count, created_at`

// Store is a PostgreSQL backed vectorstore.Backend.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store on an existing connection pool. The pool's
// lifecycle belongs to the caller.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// UpsertChunks writes all chunks in one batch round trip. Statement
// failures are collected per chunk id so a partial batch failure names
// exactly what did not land.
func (s *Store) UpsertChunks(ctx context.Context, chunks []vectorstore.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for chunk %q: %w", c.ID, err)
		}
		vec := pgv.NewVector(c.Embedding)
		batch.Queue(upsertChunkSQL, c.ID, c.DocumentID, c.Text, vec, metadataJSON)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	var failed []string
	var lastErr error
	for _, c := range chunks {
		if _, err := results.Exec(); err != nil {
			failed = append(failed, c.ID)
			lastErr = err
		}
	}
	if len(failed) > 0 {
		return &vectorstore.BatchError{FailedIDs: failed, Err: lastErr}
	}
	return nil
}

// Query runs a cosine nearest-neighbor search scoped to owner.
func (s *Store) Query(ctx context.Context, embedding []float32, k int, owner string, filter map[string]string) ([]vectorstore.Result, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner scope is required")
	}

	var filterJSON []byte
	if len(filter) > 0 {
		var err error
		filterJSON, err = json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshaling filter: %w", err)
		}
	}

	vec := pgv.NewVector(embedding)
	rows, err := s.pool.Query(ctx, queryChunksSQL, vec, owner, filterJSON, k)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []vectorstore.Result
	for rows.Next() {
		var r vectorstore.Result
		var metadataJSON []byte
		var distance float64
		if err := rows.Scan(&r.ID, &r.Text, &metadataJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		r.Distance = float32(distance)
		r.Metadata = s.parseMetadata(r.ID, metadataJSON)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}
	return results, nil
}

// DeleteByDocument removes all of a document's chunks and reports how
// many rows went away.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks of document %q: %w", documentID, err)
	}
	deleted := tag.RowsAffected()
	if deleted > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	return int(deleted), nil
}

// DeleteByIDs removes specific chunks.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("deleting %d chunk(s): %w", len(ids), err)
	}
	return nil
}

// Count returns the chunk count, scoped to owner when non-empty.
func (s *Store) Count(ctx context.Context, owner string) (int, error) {
	var count int64
	var err error
	if owner == "" {
		err = s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT count(*) FROM chunks c JOIN documents d ON d.id = c.document_id WHERE d.owner = $1`,
			owner).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	if count > math.MaxInt {
		return 0, fmt.Errorf("chunk count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// UpsertDocument inserts or updates a document record.
func (s *Store) UpsertDocument(ctx context.Context, doc vectorstore.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for document %q: %w", doc.ID, err)
	}
	_, err = s.pool.Exec(ctx, upsertDocumentSQL,
		doc.ID, doc.Owner, doc.Filename, doc.FileType, doc.FileSize,
		doc.Hash, doc.StoragePath, metadataJSON, doc.ChunkCount, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}
	return nil
}

// GetDocument fetches one document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*vectorstore.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = $1`, id)
	return s.scanDocument(row, id)
}

// FindByHash locates an owner's document with the given content hash.
func (s *Store) FindByHash(ctx context.Context, owner, hash string) (*vectorstore.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE owner = $1 AND hash = $2 ORDER BY created_at DESC LIMIT 1`,
		owner, hash)
	return s.scanDocument(row, owner+"/"+hash)
}

// ListDocuments returns an owner's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, owner string) ([]vectorstore.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents WHERE owner = $1 ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []vectorstore.Document
	for rows.Next() {
		doc, err := s.scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading document rows: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document record. Chunks referencing it go
// with it through the foreign key cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", vectorstore.ErrDocumentNotFound, id)
	}
	return nil
}

func (s *Store) scanDocument(row pgx.Row, ref string) (*vectorstore.Document, error) {
	var doc vectorstore.Document
	var metadataJSON []byte
	err := row.Scan(&doc.ID, &doc.Owner, &doc.Filename, &doc.FileType, &doc.FileSize,
		&doc.Hash, &doc.StoragePath, &metadataJSON, &doc.ChunkCount, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrDocumentNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document row: %w", err)
	}
	doc.Metadata = s.parseMetadata(doc.ID, metadataJSON)
	return &doc, nil
}

func (s *Store) scanDocumentRow(rows pgx.Rows) (*vectorstore.Document, error) {
	var doc vectorstore.Document
	var metadataJSON []byte
	err := rows.Scan(&doc.ID, &doc.Owner, &doc.Filename, &doc.FileType, &doc.FileSize,
		&doc.Hash, &doc.StoragePath, &metadataJSON, &doc.ChunkCount, &doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning document row: %w", err)
	}
	doc.Metadata = s.parseMetadata(doc.ID, metadataJSON)
	return &doc, nil
}

// parseMetadata is forgiving: a corrupt metadata column degrades to an
// empty map with a warning instead of failing the whole read.
func (s *Store) parseMetadata(id string, data []byte) map[string]string {
	if len(data) == 0 {
		return map[string]string{}
	}
	var metadata map[string]string
	if err := json.Unmarshal(data, &metadata); err != nil {
		s.logger.Warn("failed to parse metadata", "id", id, "error", err)
		return map[string]string{}
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	return metadata
}
