package lockbox

import (
	"io"
	"time"
)

// Artifact is a temporary plaintext copy of a file handed to the transport
// layer for download. It must be released once the response is complete.
type Artifact interface {
	io.ReadSeeker
	Name() string
	Size() int64
	ModTime() time.Time
	// Release deletes the artifact. It is safe to call more than once.
	Release() error
}

// StagingArea holds download artifacts. It enforces a maximum total size so
// concurrent downloads cannot exhaust the disk.
type StagingArea interface {
	// Stage copies size bytes from r into a new artifact named name.
	Stage(name string, r io.Reader, size int64, modTime time.Time) (Artifact, error)

	// Size returns the total size of live artifacts in bytes.
	Size() int64
}
