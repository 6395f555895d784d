package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"lockbox/internal/config"
	"lockbox/internal/testutil"
)

func configFor(kind, addr string) config.SessionsConfig {
	return config.SessionsConfig{Type: kind, RedisAddr: addr}
}

// TestRedisRevocationStore runs against a real server when
// LOCKBOX_TEST_REDIS_ADDR is set.
func TestRedisRevocationStore(t *testing.T) {
	addr := os.Getenv("LOCKBOX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LOCKBOX_TEST_REDIS_ADDR not set")
	}

	clock := testutil.NewStubClock(time.Now())
	store, err := NewRevocationStoreFromConfig(configFor("redis", addr), clock)
	if err != nil {
		t.Fatalf("NewRevocationStoreFromConfig() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	id := uuid.NewString()

	revoked, err := store.IsRevoked(ctx, id)
	if err != nil {
		t.Fatalf("IsRevoked() error = %v", err)
	}
	if revoked {
		t.Fatal("fresh id reported revoked")
	}

	if err := store.Revoke(ctx, id, clock.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	revoked, err = store.IsRevoked(ctx, id)
	if err != nil {
		t.Fatalf("IsRevoked() error = %v", err)
	}
	if !revoked {
		t.Error("revoked id not reported revoked")
	}

	if err := store.Revoke(ctx, uuid.NewString(), clock.Now().Add(-time.Minute)); err != nil {
		t.Errorf("Revoke() of already-expired token error = %v", err)
	}
}
