// Package storage keeps the original uploaded files on local disk so
// a document's source bytes stay available after ingestion.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileInfo describes a stored file.
type FileInfo struct {
	Size    int64
	ModTime time.Time
}

// Files is a local blob store laid out as
// <dataDir>/files/<owner>/<uuid>_<filename>.
type Files struct {
	root string
}

// NewFiles creates the store rooted at dataDir.
func NewFiles(dataDir string) (*Files, error) {
	root := filepath.Join(dataDir, "files")
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating file storage directory: %w", err)
	}
	return &Files{root: root}, nil
}

// Save writes data under the owner's directory and returns the stored
// path. The stored name carries a random prefix so two uploads of the
// same filename never collide.
func (f *Files) Save(owner, filename string, data []byte) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("owner is required")
	}

	dir := filepath.Join(f.root, sanitize(owner))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating owner directory: %w", err)
	}

	name := uuid.NewString() + "_" + sanitize(filename)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("writing file %q: %w", filename, err)
	}
	return path, nil
}

// Delete removes a stored file. A missing file is a no-op.
func (f *Files) Delete(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting stored file: %w", err)
	}
	return nil
}

// Stat reports size and modification time of a stored file.
func (f *Files) Stat(path string) (*FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stating stored file: %w", err)
	}
	return &FileInfo{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// sanitize strips any path components so owner ids and filenames can
// never escape the storage root.
func sanitize(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "unnamed"
	}
	return name
}
