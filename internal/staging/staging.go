package staging

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"lockbox/internal/lockbox"
)

// ErrStagingFull is returned when staging an artifact would exceed the
// configured maximum size.
var ErrStagingFull = errors.New("staging area full")

// Area implements lockbox.StagingArea using a pluggable stagingStore
// for the storage mechanics. Size accounting lives here.
type Area struct {
	store   stagingStore
	maxSize int64
	used    int64
	nextID  uint64
	mu      sync.Mutex
}

var _ lockbox.StagingArea = (*Area)(nil)

func newArea(store stagingStore, maxSize int64) *Area {
	return &Area{store: store, maxSize: maxSize}
}

// Stage reserves space for size bytes, copies r into the store and returns
// an artifact reading from it.
func (s *Area) Stage(name string, r io.Reader, size int64, modTime time.Time) (lockbox.Artifact, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid artifact size %d", size)
	}

	s.mu.Lock()
	if s.used+size > s.maxSize {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: would exceed max size of %d bytes", ErrStagingFull, s.maxSize)
	}
	s.used += size
	s.nextID++
	id := "artifact-" + strconv.FormatUint(s.nextID, 10)
	s.mu.Unlock()

	fail := func(err error) (lockbox.Artifact, error) {
		s.mu.Lock()
		s.store.Remove(id)
		s.used -= size
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	written, err := s.store.Write(id, io.LimitReader(r, size+1))
	s.mu.Unlock()
	if err != nil {
		return fail(fmt.Errorf("storing artifact: %w", err))
	}
	if written != size {
		return fail(fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written))
	}

	s.mu.Lock()
	rc, err := s.store.Open(id)
	s.mu.Unlock()
	if err != nil {
		return fail(fmt.Errorf("opening artifact: %w", err))
	}

	return &artifact{
		ReadSeekCloser: rc,
		area:           s,
		id:             id,
		name:           name,
		size:           size,
		modTime:        modTime,
	}, nil
}

// Size returns the total size of live artifacts in bytes.
func (s *Area) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *Area) release(id string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used -= size
	return s.store.Remove(id)
}

// artifact is a staged plaintext copy. Release closes and deletes it.
type artifact struct {
	io.ReadSeekCloser
	area    *Area
	id      string
	name    string
	size    int64
	modTime time.Time
	once    sync.Once
	err     error
}

var _ lockbox.Artifact = (*artifact)(nil)

func (a *artifact) Name() string       { return a.name }
func (a *artifact) Size() int64        { return a.size }
func (a *artifact) ModTime() time.Time { return a.modTime }

func (a *artifact) Release() error {
	a.once.Do(func() {
		closeErr := a.ReadSeekCloser.Close()
		removeErr := a.area.release(a.id, a.size)
		a.err = errors.Join(closeErr, removeErr)
	})
	return a.err
}
