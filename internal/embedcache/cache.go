// Package embedcache is a content-addressed store of chunk texts and
// their embeddings, keyed by (document id, content hash). It exists to
// avoid re-embedding unchanged documents: an entry is valid if and only
// if the hash of the current content matches the stored hash.
//
// Layout under the cache root:
//
//	index.json                 document id -> {hash, chunk count, ...}
//	by-hash/<hash>/chunks.json      chunk texts (parallel array)
//	by-hash/<hash>/embeddings.json  embeddings  (parallel array)
//
// Payloads are stored under the hash so identical content uploaded as
// different logical documents shares storage; Invalidate only removes
// a payload once no index entry references its hash.
//
// Failure semantics are asymmetric on purpose: read errors are
// reported as ErrCacheMiss (fail open, forcing recompute — corruption
// must never block the pipeline), while write errors propagate so the
// caller can decide between proceeding uncached and aborting.
package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrCacheMiss signals that no valid entry exists for the requested
// document and content. It is control flow, not a failure: the caller
// recomputes and stores.
var ErrCacheMiss = errors.New("embedding cache miss")

const (
	indexFile      = "index.json"
	hashDir        = "by-hash"
	chunksFile     = "chunks.json"
	embeddingsFile = "embeddings.json"
)

// Entry is a cache hit: the chunk texts and embeddings produced the
// last time this content was processed.
type Entry struct {
	Hash        string
	Chunks      []string
	Embeddings  [][]float32
	ChunkCount  int
	ProcessedAt time.Time
	VersionTag  string
}

// entryMeta is what the index stores per document id.
type entryMeta struct {
	Hash        string    `json:"hash"`
	ChunkCount  int       `json:"chunk_count"`
	ProcessedAt time.Time `json:"processed_at"`
	VersionTag  string    `json:"version_tag"`
}

// Cache is a disk-backed embedding cache.
//
// The index file is rewritten whole on every mutation; the mutex
// serializes those read-modify-write cycles across goroutines.
// Payload files need no lock since their names are content-addressed.
type Cache struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex // guards index.json read-modify-write
}

// New creates a Cache rooted at dir, creating it if needed.
func New(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(dir, hashDir), 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

// HashContent returns the hex SHA-256 digest of content. The digest
// detects change only; it has no security role here.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached entry for documentID if the stored hash
// matches the hash of content, and ErrCacheMiss otherwise. Read and
// decode failures are reported as misses.
func (c *Cache) Lookup(documentID, content string) (*Entry, error) {
	hash := HashContent(content)

	c.mu.Lock()
	index, err := c.readIndex()
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn("cache index unreadable, treating as miss", "error", err)
		return nil, ErrCacheMiss
	}

	meta, ok := index[documentID]
	if !ok || meta.Hash != hash {
		return nil, ErrCacheMiss
	}

	chunks, embeddings, err := c.readPayload(hash)
	if err != nil {
		c.logger.Warn("cache payload unreadable, treating as miss",
			"document_id", documentID, "hash", hash, "error", err)
		return nil, ErrCacheMiss
	}
	if len(chunks) != len(embeddings) {
		c.logger.Warn("cache payload arrays diverge, treating as miss",
			"document_id", documentID, "chunks", len(chunks), "embeddings", len(embeddings))
		return nil, ErrCacheMiss
	}

	return &Entry{
		Hash:        hash,
		Chunks:      chunks,
		Embeddings:  embeddings,
		ChunkCount:  meta.ChunkCount,
		ProcessedAt: meta.ProcessedAt,
		VersionTag:  meta.VersionTag,
	}, nil
}

// Store persists chunks and embeddings under the content hash and
// updates the document's index entry. The data is flushed to disk
// before Store returns; write failures propagate.
func (c *Cache) Store(documentID, content string, chunks []string, embeddings [][]float32, versionTag string) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks (%d) and embeddings (%d) must be parallel arrays",
			len(chunks), len(embeddings))
	}

	hash := HashContent(content)
	if err := c.writePayload(hash, chunks, embeddings); err != nil {
		return fmt.Errorf("writing cache payload for %q: %w", documentID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := c.readIndex()
	if err != nil {
		// A corrupt index is rebuilt from scratch rather than blocking
		// writes; existing payloads remain addressable by hash.
		c.logger.Warn("cache index unreadable, rebuilding", "error", err)
		index = map[string]entryMeta{}
	}

	index[documentID] = entryMeta{
		Hash:        hash,
		ChunkCount:  len(chunks),
		ProcessedAt: time.Now().UTC(),
		VersionTag:  versionTag,
	}

	if err := c.writeIndex(index); err != nil {
		return fmt.Errorf("writing cache index for %q: %w", documentID, err)
	}

	c.logger.Debug("cached embeddings",
		"document_id", documentID, "hash", hash, "chunks", len(chunks))
	return nil
}

// Invalidate removes the index entry for documentID and deletes the
// payload if no other document references the same hash. Invalidating
// an absent entry is a no-op.
func (c *Cache) Invalidate(documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := c.readIndex()
	if err != nil {
		return nil // nothing to invalidate
	}

	meta, ok := index[documentID]
	if !ok {
		return nil
	}
	delete(index, documentID)

	shared := false
	for _, other := range index {
		if other.Hash == meta.Hash {
			shared = true
			break
		}
	}
	if !shared {
		if err := os.RemoveAll(c.payloadDir(meta.Hash)); err != nil {
			return fmt.Errorf("removing cache payload %q: %w", meta.Hash, err)
		}
	}

	if err := c.writeIndex(index); err != nil {
		return fmt.Errorf("writing cache index: %w", err)
	}

	c.logger.Debug("invalidated cache entry", "document_id", documentID, "hash", meta.Hash)
	return nil
}

// Resolve reports whether a payload for hash is still present. Used as
// the rollback precondition one layer up.
func (c *Cache) Resolve(hash string) bool {
	_, chunksErr := os.Stat(filepath.Join(c.payloadDir(hash), chunksFile))
	_, embedErr := os.Stat(filepath.Join(c.payloadDir(hash), embeddingsFile))
	return chunksErr == nil && embedErr == nil
}

func (c *Cache) payloadDir(hash string) string {
	return filepath.Join(c.dir, hashDir, hash)
}

func (c *Cache) readIndex() (map[string]entryMeta, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]entryMeta{}, nil
	}
	if err != nil {
		return nil, err
	}

	index := map[string]entryMeta{}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	return index, nil
}

// writeIndex rewrites the whole index file. Write-to-temp-then-rename
// keeps a crash from leaving a truncated index behind.
func (c *Cache) writeIndex(index map[string]entryMeta) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return writeFileSync(filepath.Join(c.dir, indexFile), data)
}

func (c *Cache) readPayload(hash string) ([]string, [][]float32, error) {
	dir := c.payloadDir(hash)

	chunksData, err := os.ReadFile(filepath.Join(dir, chunksFile))
	if err != nil {
		return nil, nil, err
	}
	var chunks []string
	if err := json.Unmarshal(chunksData, &chunks); err != nil {
		return nil, nil, err
	}

	embedData, err := os.ReadFile(filepath.Join(dir, embeddingsFile))
	if err != nil {
		return nil, nil, err
	}
	var embeddings [][]float32
	if err := json.Unmarshal(embedData, &embeddings); err != nil {
		return nil, nil, err
	}

	return chunks, embeddings, nil
}

func (c *Cache) writePayload(hash string, chunks []string, embeddings [][]float32) error {
	dir := c.payloadDir(hash)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	chunksData, err := json.Marshal(chunks)
	if err != nil {
		return err
	}
	embedData, err := json.Marshal(embeddings)
	if err != nil {
		return err
	}

	if err := writeFileSync(filepath.Join(dir, chunksFile), chunksData); err != nil {
		return err
	}
	if err := writeFileSync(filepath.Join(dir, embeddingsFile), embedData); err != nil {
		// Do not leave a half-written payload that a later Lookup
		// would have to classify; remove the whole directory.
		_ = os.RemoveAll(dir)
		return err
	}
	return nil
}

// writeFileSync writes data to a temp file in the target directory,
// fsyncs it, and renames it into place.
func writeFileSync(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
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
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
