package testutil

import (
	"golang.org/x/crypto/bcrypt"

	"lockbox/internal/database"
	"lockbox/internal/encryption"
	"lockbox/internal/lockbox"
	"lockbox/internal/screen"
	"lockbox/internal/staging"
	"lockbox/internal/vault"
)

// T is the subset of testing.TB the helpers need. Both *testing.T and
// GinkgoT() satisfy it.
type T interface {
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
}

// Env is a fully wired FileService over in-memory backends, with handles on
// each collaborator so tests can inspect or sabotage them.
type Env struct {
	Service *lockbox.FileService
	Store   lockbox.Store
	Vault   *vault.MemoryVault
	Blobs   *lockbox.EncryptedBlobStore
	Staging *staging.Area
	Clock   *StubClock
	IDs     *StubIDGenerator
}

// NewTestStore creates a migrated in-memory SQLite store that is closed
// when the test completes.
func NewTestStore(t T) *database.SQLStore {
	t.Helper()

	store, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

// NewTestCipher returns the deterministic header cipher.
func NewTestCipher() lockbox.Cipher {
	return encryption.NewTestCipher()
}

// NewTestEnv wires a FileService over a fresh in-memory store.
func NewTestEnv(t T) *Env {
	t.Helper()
	return NewTestEnvWithStore(t, NewTestStore(t))
}

// NewTestEnvWithStore wires a FileService over the given store.
func NewTestEnvWithStore(t T, store lockbox.Store) *Env {
	t.Helper()

	v := NewTestVault()
	blobs := lockbox.NewEncryptedBlobStore(v, NewTestCipher())
	area := staging.NewMemoryStagingArea(staging.DefaultMaxSize)
	clock := FixedClock()
	ids := NewStubIDGenerator()

	svc := lockbox.NewFileService(store, blobs, screen.New(nil, nil), area, lockbox.NewNopLogger(), clock, ids).
		WithPasswordCost(bcrypt.MinCost)

	return &Env{
		Service: svc,
		Store:   store,
		Vault:   v,
		Blobs:   blobs,
		Staging: area,
		Clock:   clock,
		IDs:     ids,
	}
}

// MustRegister creates accounts whose password equals their username.
func (e *Env) MustRegister(t T, usernames ...string) {
	t.Helper()
	for _, name := range usernames {
		if err := e.Service.Register(name, name); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}
}
