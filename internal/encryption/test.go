package encryption

import (
	"bytes"
	"fmt"
	"io"

	"lockbox/internal/lockbox"
)

// testHeader is prepended by TestCipher so ciphertext never equals plaintext.
var testHeader = []byte("LBXENC\x00\x00")

// TestCipher is a deterministic, reversible cipher for tests. It performs no
// cryptography and needs no key file.
type TestCipher struct{}

var _ lockbox.Cipher = (*TestCipher)(nil)

// NewTestCipher creates a new TestCipher.
func NewTestCipher() *TestCipher {
	return &TestCipher{}
}

func (c *TestCipher) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (c *TestCipher) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
