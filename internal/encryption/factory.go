package encryption

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"lockbox/internal/config"
	"lockbox/internal/lockbox"
)

// ErrKeyCorrupt is returned when a key file exists but cannot be used.
// The server must not start in that state.
var ErrKeyCorrupt = errors.New("key file is corrupt or unreadable")

// KeyManager owns the deployment's single encryption key. It is created once
// at startup and hands the same cipher to every component that needs it.
type KeyManager struct {
	kind    string
	path    string
	created bool
	cipher  lockbox.Cipher
}

type keyKind struct {
	generate func() ([]byte, lockbox.Cipher, error)
	parse    func(data []byte) (lockbox.Cipher, error)
}

var keyKinds = map[string]keyKind{
	"age":       {generate: generateAgeKey, parse: parseAgeKey},
	"secretbox": {generate: generateSecretboxKey, parse: parseSecretboxKey},
}

// OpenKeyManager loads the key at cfg.KeyPath, generating and persisting a
// new one if no file exists yet.
func OpenKeyManager(cfg config.EncryptionConfig) (*KeyManager, error) {
	kindName := cfg.Type
	if kindName == "" {
		kindName = "age"
	}

	if kindName == "test" {
		return &KeyManager{kind: kindName, cipher: NewTestCipher()}, nil
	}

	kind, ok := keyKinds[kindName]
	if !ok {
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
	if cfg.KeyPath == "" {
		return nil, fmt.Errorf("encryption key_path is required for type %q", kindName)
	}

	m := &KeyManager{kind: kindName, path: cfg.KeyPath}

	data, err := os.ReadFile(cfg.KeyPath)
	switch {
	case err == nil:
		cipher, err := kind.parse(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrKeyCorrupt, cfg.KeyPath, err)
		}
		m.cipher = cipher
		return m, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s: %w", ErrKeyCorrupt, cfg.KeyPath, err)
	}

	encoded, cipher, err := kind.generate()
	if err != nil {
		return nil, err
	}
	if err := writeKeyFile(cfg.KeyPath, encoded); err != nil {
		return nil, err
	}

	m.cipher = cipher
	m.created = true
	return m, nil
}

// Cipher returns the cipher bound to the loaded key.
func (m *KeyManager) Cipher() lockbox.Cipher {
	return m.cipher
}

// Kind returns the key kind ("age", "secretbox" or "test").
func (m *KeyManager) Kind() string {
	return m.kind
}

// Path returns the key file location. It is empty for the test kind.
func (m *KeyManager) Path() string {
	return m.path
}

// Created reports whether the key was generated by this call to OpenKeyManager.
func (m *KeyManager) Created() bool {
	return m.created
}

// writeKeyFile creates the key file exclusively so two processes starting at
// once cannot both generate a key.
func writeKeyFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing key file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("syncing key file: %w", err)
	}
	return f.Close()
}
