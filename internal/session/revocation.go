package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"lockbox/internal/config"
	"lockbox/internal/lockbox"
)

// RevocationStore remembers logged-out token IDs until the tokens expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Close() error
}

// NewRevocationStoreFromConfig creates a RevocationStore based on the sessions config type.
func NewRevocationStoreFromConfig(cfg config.SessionsConfig, clock lockbox.Clock) (RevocationStore, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryRevocationStore(clock), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis sessions require redis_addr to be set")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisRevocationStore(client, clock), nil
	default:
		return nil, fmt.Errorf("unknown sessions type: %s", cfg.Type)
	}
}

// MemoryRevocationStore keeps revoked token IDs in process memory. Revocations
// are lost on restart. It is safe for concurrent use.
type MemoryRevocationStore struct {
	clock   lockbox.Clock
	revoked map[string]time.Time
	mu      sync.Mutex
}

var _ RevocationStore = (*MemoryRevocationStore)(nil)

func NewMemoryRevocationStore(clock lockbox.Clock) *MemoryRevocationStore {
	return &MemoryRevocationStore{
		clock:   clock,
		revoked: make(map[string]time.Time),
	}
}

func (s *MemoryRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[tokenID] = until
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.revoked[tokenID]
	return ok && until.After(s.clock.Now()), nil
}

// Len returns the number of remembered revocations.
func (s *MemoryRevocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.revoked)
}

func (s *MemoryRevocationStore) Close() error {
	return nil
}

// RedisRevocationStore shares revocations between server instances. Each
// revoked ID is a key that Redis expires together with the token.
type RedisRevocationStore struct {
	client *redis.Client
	clock  lockbox.Clock
	prefix string
}

var _ RevocationStore = (*RedisRevocationStore)(nil)

func NewRedisRevocationStore(client *redis.Client, clock lockbox.Clock) *RedisRevocationStore {
	return &RedisRevocationStore{
		client: client,
		clock:  clock,
		prefix: "lockbox:revoked:",
	}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.prefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("storing revocation: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) Close() error {
	return s.client.Close()
}
