package lockbox

import (
	"bytes"
	"errors"
	"fmt"
)

// EncryptedBlobStore encrypts plaintext on the way into a Vault and decrypts
// it on the way out. Whole buffers are processed at once, so file size is
// bounded by available memory.
type EncryptedBlobStore struct {
	vault  Vault
	cipher Cipher
}

// NewEncryptedBlobStore creates a blob store writing to vault with cipher.
func NewEncryptedBlobStore(vault Vault, cipher Cipher) *EncryptedBlobStore {
	return &EncryptedBlobStore{vault: vault, cipher: cipher}
}

// Store encrypts plaintext and writes the ciphertext under key, replacing
// any existing blob.
func (s *EncryptedBlobStore) Store(key string, plaintext []byte) error {
	var ciphertext bytes.Buffer
	if err := s.cipher.Encrypt(bytes.NewReader(plaintext), &ciphertext); err != nil {
		return fmt.Errorf("encrypting content: %w", err)
	}

	if err := s.vault.Put(key, &ciphertext, int64(ciphertext.Len())); err != nil {
		return fmt.Errorf("writing ciphertext: %w", err)
	}
	return nil
}

// Retrieve reads the ciphertext stored under key and returns the plaintext.
// A missing, truncated or foreign-key blob yields ErrDecryption.
func (s *EncryptedBlobStore) Retrieve(key string) ([]byte, error) {
	var ciphertext bytes.Buffer
	if err := s.vault.Get(key, &ciphertext); err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
		}
		return nil, fmt.Errorf("reading ciphertext: %w", err)
	}

	var plaintext bytes.Buffer
	if err := s.cipher.Decrypt(&ciphertext, &plaintext); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return plaintext.Bytes(), nil
}

// Erase removes the blob stored under key. Erasing a missing blob succeeds.
func (s *EncryptedBlobStore) Erase(key string) error {
	if err := s.vault.Delete(key); err != nil {
		return fmt.Errorf("erasing ciphertext: %w", err)
	}
	return nil
}
