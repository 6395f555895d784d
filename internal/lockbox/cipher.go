package lockbox

import "io"

// Cipher encrypts and decrypts whole blobs with the deployment key.
// Implementations are produced by the key manager and hold the key in memory
// for the process lifetime.
type Cipher interface {
	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Decrypt reads ciphertext from r and writes plaintext to w.
	// Returns an error if the ciphertext is truncated, corrupt, or was
	// produced under a different key.
	Decrypt(r io.Reader, w io.Writer) error
}
