// Package version keeps a per-document append-only version log.
//
// The log lives in a single JSON file under the data directory and is
// rewritten whole on every change, with writes serialized by an
// in-process mutex. That is deliberate simplicity with a known
// ceiling: one writing process, and rewrite cost grows with history
// size. Version records are bookkeeping only; they reference cached
// embeddings by content hash rather than owning any chunk data.
package version

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const logFile = "versions.json"

// Version is one entry in a document's history.
type Version struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	Tags      []string  `json:"tags,omitempty"`
	CacheRef  string    `json:"cache_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// history is the stored form of one document's log. Current always
// names an existing version id.
type history struct {
	Current  string    `json:"current"`
	Versions []Version `json:"versions"`
}

// Manager owns the version log file.
//
// Manager is safe for concurrent use by multiple goroutines.
type Manager struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewManager creates a Manager storing its log under dir.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating version directory: %w", err)
	}
	return &Manager{
		path:   filepath.Join(dir, logFile),
		logger: logger,
	}, nil
}

// Create appends a new version and moves the current pointer to it.
// Returns the new version's id.
func (m *Manager) Create(documentID, hash string, tags []string, cacheRef string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs, err := m.read()
	if err != nil {
		return "", err
	}

	v := Version{
		ID:        uuid.NewString(),
		Hash:      hash,
		Tags:      tags,
		CacheRef:  cacheRef,
		CreatedAt: time.Now().UTC(),
	}

	h := logs[documentID]
	h.Versions = append(h.Versions, v)
	h.Current = v.ID
	logs[documentID] = h

	if err := m.write(logs); err != nil {
		return "", err
	}
	m.logger.Debug("created version", "document_id", documentID, "version_id", v.ID, "tags", tags)
	return v.ID, nil
}

// Rollback repoints the current pointer at an earlier version. It
// moves no data. Returns false when the document or version does not
// exist.
func (m *Manager) Rollback(documentID, versionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs, err := m.read()
	if err != nil {
		m.logger.Warn("failed to read version log", "error", err)
		return false
	}

	h, ok := logs[documentID]
	if !ok || !contains(h.Versions, versionID) {
		return false
	}

	h.Current = versionID
	logs[documentID] = h
	if err := m.write(logs); err != nil {
		m.logger.Warn("failed to write version log", "error", err)
		return false
	}
	return true
}

// Delete removes a non-current version from the history. The current
// version cannot be deleted; rolling back first is the way to prune
// it.
func (m *Manager) Delete(documentID, versionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs, err := m.read()
	if err != nil {
		m.logger.Warn("failed to read version log", "error", err)
		return false
	}

	h, ok := logs[documentID]
	if !ok || h.Current == versionID {
		return false
	}

	kept := h.Versions[:0]
	found := false
	for _, v := range h.Versions {
		if v.ID == versionID {
			found = true
			continue
		}
		kept = append(kept, v)
	}
	if !found {
		return false
	}

	if len(kept) == 0 {
		delete(logs, documentID)
	} else {
		h.Versions = kept
		logs[documentID] = h
	}

	if err := m.write(logs); err != nil {
		m.logger.Warn("failed to write version log", "error", err)
		return false
	}
	return true
}

// DeleteDocument drops a document's entire history. Missing documents
// are a no-op.
func (m *Manager) DeleteDocument(documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs, err := m.read()
	if err != nil {
		return err
	}
	if _, ok := logs[documentID]; !ok {
		return nil
	}
	delete(logs, documentID)
	return m.write(logs)
}

// List returns a document's versions in creation order. A missing
// document yields nil.
func (m *Manager) List(documentID string) []Version {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs, err := m.read()
	if err != nil {
		m.logger.Warn("failed to read version log", "error", err)
		return nil
	}

	h, ok := logs[documentID]
	if !ok {
		return nil
	}
	out := make([]Version, len(h.Versions))
	copy(out, h.Versions)
	return out
}

// Current returns the version the current pointer references.
func (m *Manager) Current(documentID string) (*Version, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs, err := m.read()
	if err != nil {
		m.logger.Warn("failed to read version log", "error", err)
		return nil, false
	}

	h, ok := logs[documentID]
	if !ok {
		return nil, false
	}
	for _, v := range h.Versions {
		if v.ID == h.Current {
			out := v
			return &out, true
		}
	}
	return nil, false
}

// Get returns one version by id.
func (m *Manager) Get(documentID, versionID string) (*Version, bool) {
	for _, v := range m.List(documentID) {
		if v.ID == versionID {
			out := v
			return &out, true
		}
	}
	return nil, false
}

// read must be called with mu held.
func (m *Manager) read() (map[string]history, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]history{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading version log: %w", err)
	}

	logs := map[string]history{}
	if err := json.Unmarshal(data, &logs); err != nil {
		return nil, fmt.Errorf("parsing version log: %w", err)
	}
	return logs, nil
}

// write must be called with mu held. Temp file and rename keeps a
// crashed write from truncating the log.
func (m *Manager) write(logs map[string]history) error {
	data, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding version log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".versions-*")
	if err != nil {
		return fmt.Errorf("creating temp version log: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing version log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("syncing version log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing version log: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing version log: %w", err)
	}
	return nil
}

func contains(versions []Version, id string) bool {
	for _, v := range versions {
		if v.ID == id {
			return true
		}
	}
	return false
}
