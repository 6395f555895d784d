package staging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// fileSystemStore keeps artifacts as owner-only files in a directory:
//
//	<staging_dir>/
//	  files/
//	    artifact-<n>
type fileSystemStore struct {
	filesDir string
}

// NewFileSystemStagingArea creates a new filesystem-based staging area.
// Artifacts left behind by a previous process are removed.
// maxSize is the maximum total size in bytes; must be positive.
func NewFileSystemStagingArea(stagingDir string, maxSize int64) (*Area, error) {
	filesDir := filepath.Join(stagingDir, "files")

	if err := os.MkdirAll(filesDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	store := &fileSystemStore{filesDir: filesDir}
	if err := store.purge(); err != nil {
		return nil, err
	}

	return newArea(store, maxSize), nil
}

func (f *fileSystemStore) Write(id string, r io.Reader) (int64, error) {
	file, err := os.OpenFile(filepath.Join(f.filesDir, id), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("creating artifact file: %w", err)
	}

	written, err := io.Copy(file, r)
	if err != nil {
		file.Close()
		return written, fmt.Errorf("writing artifact file: %w", err)
	}
	return written, file.Close()
}

func (f *fileSystemStore) Open(id string) (io.ReadSeekCloser, error) {
	file, err := os.Open(filepath.Join(f.filesDir, id))
	if err != nil {
		return nil, fmt.Errorf("opening artifact file: %w", err)
	}
	return file, nil
}

func (f *fileSystemStore) Remove(id string) error {
	err := os.Remove(filepath.Join(f.filesDir, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing artifact file: %w", err)
	}
	return nil
}

// purge removes stale artifacts.
func (f *fileSystemStore) purge() error {
	entries, err := os.ReadDir(f.filesDir)
	if err != nil {
		return fmt.Errorf("reading staging directory: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "artifact-") {
			continue
		}
		if err := f.Remove(e.Name()); err != nil {
			return err
		}
	}
	return nil
}
