// Package snapshotio implements core.SnapshotStore against a single file
// on disk, the same write-temp-fsync-rename discipline the teacher's own
// persistence layer uses. It is the only file-backed snapshot writer:
// internal/graph provides the binary codec (Snapshot/Hydrate) and no
// file I/O of its own.
package snapshotio

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStore implements core.SnapshotStore by reading/writing a single path.
type FileStore struct {
	path string
}

// New builds a FileStore rooted at path. The containing directory must
// exist; it is not created here.
func New(path string) *FileStore {
	return &FileStore{path: path}
}

// Read returns the file's contents, or (nil, nil) if it has never been
// written.
func (f *FileStore) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshotio: read %s: %w", f.path, err)
	}
	return data, nil
}

// Write persists data atomically: write to a temp file beside path,
// fsync, then rename over path.
func (f *FileStore) Write(data []byte) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("snapshotio: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshotio: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshotio: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshotio: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("snapshotio: rename into place: %w", err)
	}
	return nil
}
