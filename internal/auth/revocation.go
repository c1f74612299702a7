package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:"

// RevocationRegistry records token ids that must no longer be honored.
// Entries expire once the underlying token could not be accepted anyway.
// Implementations must be safe for concurrent use. RevokeOnce is an atomic
// insert-if-absent: it reports whether this call revoked the jti, so racing
// callers cannot both claim a single-use token.
type RevocationRegistry interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	RevokeOnce(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return r.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}

func (r *RedisRegistry) RevokeOnce(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return r.client.SetNX(ctx, revokedKeyPrefix+jti, "1", ttl).Result()
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.client.Get(ctx, revokedKeyPrefix+jti).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryRegistry is the single-process fallback used when no redis address
// is configured, and in tests. Expired entries are purged lazily.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]time.Time)}
}

func (r *MemoryRegistry) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked(now)
	r.entries[jti] = now.Add(ttl)
	return nil
}

func (r *MemoryRegistry) RevokeOnce(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked(now)
	if expiry, ok := r.entries[jti]; ok && now.Before(expiry) {
		return false, nil
	}
	r.entries[jti] = now.Add(ttl)
	return true, nil
}

func (r *MemoryRegistry) IsRevoked(_ context.Context, jti string) (bool, error) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	expiry, ok := r.entries[jti]
	if !ok {
		return false, nil
	}
	if now.After(expiry) {
		delete(r.entries, jti)
		return false, nil
	}
	return true, nil
}

func (r *MemoryRegistry) purgeLocked(now time.Time) {
	for jti, expiry := range r.entries {
		if now.After(expiry) {
			delete(r.entries, jti)
		}
	}
}
