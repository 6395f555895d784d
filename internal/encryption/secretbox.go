package encryption

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"

	"lockbox/internal/lockbox"
)

const (
	secretboxKeySize   = 32
	secretboxNonceSize = 24
)

var errSecretboxOpen = errors.New("secretbox: message authentication failed")

// SecretboxCipher implements lockbox.Cipher with NaCl secretbox
// (XSalsa20-Poly1305). Each blob is a random 24-byte nonce followed by the
// sealed box.
type SecretboxCipher struct {
	key [secretboxKeySize]byte
}

var _ lockbox.Cipher = (*SecretboxCipher)(nil)

// NewSecretboxCipher wraps a 32-byte key.
func NewSecretboxCipher(key [secretboxKeySize]byte) *SecretboxCipher {
	return &SecretboxCipher{key: key}
}

func (c *SecretboxCipher) Encrypt(r io.Reader, w io.Writer) error {
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading plaintext: %w", err)
	}

	var nonce [secretboxNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &c.key)
	if _, err := w.Write(sealed); err != nil {
		return fmt.Errorf("writing ciphertext: %w", err)
	}
	return nil
}

func (c *SecretboxCipher) Decrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading ciphertext: %w", err)
	}
	if len(data) < secretboxNonceSize+secretbox.Overhead {
		return fmt.Errorf("ciphertext too short: %d bytes", len(data))
	}

	var nonce [secretboxNonceSize]byte
	copy(nonce[:], data[:secretboxNonceSize])

	plaintext, ok := secretbox.Open(nil, data[secretboxNonceSize:], &nonce, &c.key)
	if !ok {
		return errSecretboxOpen
	}
	if _, err := w.Write(plaintext); err != nil {
		return fmt.Errorf("writing plaintext: %w", err)
	}
	return nil
}

func generateSecretboxKey() ([]byte, lockbox.Cipher, error) {
	var key [secretboxKeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, nil, fmt.Errorf("generating secretbox key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key[:]) + "\n"
	return []byte(encoded), NewSecretboxCipher(key), nil
}

func parseSecretboxKey(data []byte) (lockbox.Cipher, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding secretbox key: %w", err)
	}
	if len(raw) != secretboxKeySize {
		return nil, fmt.Errorf("secretbox key is %d bytes, want %d", len(raw), secretboxKeySize)
	}
	var key [secretboxKeySize]byte
	copy(key[:], raw)
	return NewSecretboxCipher(key), nil
}
