// Package docstore keeps users, file records and the audit log as JSON
// documents (users.json, files.json, logs.json) in a single directory.
//
// Each collection is a JSON object keyed by username or identifier.
// Read-modify-write cycles are serialized by a mutex and every save replaces
// the file atomically, so a crash never leaves a half-written document.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Collection names.
const (
	CollectionUsers = "users"
	CollectionFiles = "files"
	CollectionLogs  = "logs"
)

// TimeLayout is the timestamp format used inside documents.
const TimeLayout = "2006-01-02 15:04:05"

// ErrCorruptDocument is returned when a collection file exists but is not a
// valid JSON object.
var ErrCorruptDocument = errors.New("corrupt document")

// DocumentStore is a directory of JSON collection files.
type DocumentStore struct {
	dir string
	mu  sync.Mutex
}

// NewDocumentStore opens (creating if needed) a document directory.
func NewDocumentStore(dir string) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating document directory: %w", err)
	}
	return &DocumentStore{dir: dir}, nil
}

// Load returns every document in a collection. A collection that has never
// been saved is empty.
func (s *DocumentStore) Load(collection string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load[json.RawMessage](s, collection)
}

// Save replaces a collection with docs.
func (s *DocumentStore) Save(collection string, docs map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return save(s, collection, docs)
}

func (s *DocumentStore) path(collection string) (string, error) {
	switch collection {
	case CollectionUsers, CollectionFiles, CollectionLogs:
		return filepath.Join(s.dir, collection+".json"), nil
	default:
		return "", fmt.Errorf("unknown collection %q", collection)
	}
}

// load decodes a collection. Callers must hold s.mu.
func load[T any](s *DocumentStore, collection string) (map[string]T, error) {
	path, err := s.path(collection)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]T{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	docs := map[string]T{}
	if len(data) == 0 {
		return docs, nil
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptDocument, path, err)
	}
	return docs, nil
}

// save encodes a collection and atomically replaces its file. Callers must hold s.mu.
func save[T any](s *DocumentStore, collection string, docs map[string]T) error {
	path, err := s.path(collection)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(docs, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", collection, err)
	}

	tmpFile, err := os.CreateTemp(s.dir, ".tmp-"+collection+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write %s: %w", collection, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
