package staging

import "io"

// stagingStore abstracts where artifact bytes live. Concurrency is managed by
// the caller (Area.mu), so stores do not need to be safe for
// concurrent use.
type stagingStore interface {
	// Write copies r into a new entry named id and returns the bytes written.
	Write(id string, r io.Reader) (int64, error)

	// Open returns a seekable reader over the entry named id.
	Open(id string) (io.ReadSeekCloser, error)

	// Remove deletes the entry named id (best-effort, missing is fine).
	Remove(id string) error
}
