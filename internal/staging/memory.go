package staging

import (
	"bytes"
	"fmt"
	"io"
)

// memoryStore keeps artifacts in memory. Useful for tests and for servers
// that should never write plaintext to disk.
type memoryStore struct {
	entries map[string][]byte
}

// NewMemoryStagingArea creates a new in-memory staging area.
// maxSize is the maximum total size in bytes; must be positive.
func NewMemoryStagingArea(maxSize int64) *Area {
	return newArea(&memoryStore{entries: make(map[string][]byte)}, maxSize)
}

func (m *memoryStore) Write(id string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return int64(len(data)), fmt.Errorf("reading artifact: %w", err)
	}
	m.entries[id] = data
	return int64(len(data)), nil
}

func (m *memoryStore) Open(id string) (io.ReadSeekCloser, error) {
	data, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("artifact not found: %s", id)
	}
	return nopCloser{bytes.NewReader(data)}, nil
}

func (m *memoryStore) Remove(id string) error {
	delete(m.entries, id)
	return nil
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }
