package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"lockbox/internal/lockbox"
)

// MemoryVault is an in-memory implementation of the Vault interface, useful
// for tests and throwaway servers. It is safe for concurrent use.
type MemoryVault struct {
	name  string
	blobs map[string][]byte
	mu    sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:  name,
		blobs: make(map[string][]byte),
	}
}

func (m *MemoryVault) Put(key string, r io.Reader, size int64) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[key] = data
	return nil
}

func (m *MemoryVault) Get(key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.blobs[key]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", lockbox.ErrBlobNotFound, key)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

func (m *MemoryVault) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, key)
	return nil
}

func (m *MemoryVault) Size(key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", lockbox.ErrBlobNotFound, key)
	}
	return int64(len(data)), nil
}

// Len returns the number of stored blobs.
func (m *MemoryVault) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

var _ lockbox.Vault = (*MemoryVault)(nil)
