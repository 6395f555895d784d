package encryption

import (
	"fmt"
	"io"
	"strings"

	"filippo.io/age"

	"lockbox/internal/lockbox"
)

// AgeCipher implements lockbox.Cipher with a single age X25519 identity.
// Blobs are encrypted to the identity's own recipient, so the one secret key
// file is all the deployment needs.
type AgeCipher struct {
	identity *age.X25519Identity
}

var _ lockbox.Cipher = (*AgeCipher)(nil)

// NewAgeCipher wraps an existing identity.
func NewAgeCipher(identity *age.X25519Identity) *AgeCipher {
	return &AgeCipher{identity: identity}
}

// Encrypt reads plaintext from r and writes age ciphertext to w.
func (c *AgeCipher) Encrypt(r io.Reader, w io.Writer) error {
	encWriter, err := age.Encrypt(w, c.identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}

	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	return nil
}

// Decrypt reads age ciphertext from r and writes plaintext to w.
func (c *AgeCipher) Decrypt(r io.Reader, w io.Writer) error {
	decReader, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}

	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}

	return nil
}

func generateAgeKey() ([]byte, lockbox.Cipher, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, nil, fmt.Errorf("generating age identity: %w", err)
	}
	return []byte(identity.String() + "\n"), NewAgeCipher(identity), nil
}

func parseAgeKey(data []byte) (lockbox.Cipher, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}
	return NewAgeCipher(identity), nil
}
