package lockbox

import (
	"errors"
	"io"
)

// ErrBlobNotFound is returned by Vault implementations when no blob exists
// under the requested key.
var ErrBlobNotFound = errors.New("blob not found")

// Vault provides byte-level storage for ciphertext blobs.
// Keys are file identifiers; implementations must reject keys that could
// escape their storage root.
type Vault interface {
	// Put stores size bytes read from r under key, replacing any existing blob.
	// The write is atomic: readers see either the old or the new blob.
	Put(key string, r io.Reader, size int64) error

	// Get writes the blob stored under key to w.
	// Returns ErrBlobNotFound if there is none.
	Get(key string, w io.Writer) error

	// Delete removes the blob stored under key. Deleting a missing blob is not an error.
	Delete(key string) error

	// Size returns the stored size of the blob under key.
	// Returns ErrBlobNotFound if there is none.
	Size(key string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
