package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	revoked, err := reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, reg.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	// Revoking again must not fail.
	require.NoError(t, reg.Revoke(ctx, "jti-1", time.Minute))
}

func TestMemoryRegistryExpiry(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	require.NoError(t, reg.Revoke(ctx, "jti-1", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	revoked, err := reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked, "entry should expire")

	// The expired entry is also dropped by the next Revoke's purge.
	require.NoError(t, reg.Revoke(ctx, "jti-2", time.Minute))
	reg.mu.Lock()
	_, stillThere := reg.entries["jti-1"]
	reg.mu.Unlock()
	require.False(t, stillThere)
}

func TestMemoryRegistryConcurrentRevoke(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.Revoke(ctx, "shared-jti", time.Minute)
			_, _ = reg.IsRevoked(ctx, "shared-jti")
		}()
	}
	wg.Wait()

	revoked, err := reg.IsRevoked(ctx, "shared-jti")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestMemoryRegistryRevokeOnce(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	first, err := reg.RevokeOnce(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	require.True(t, first)

	first, err = reg.RevokeOnce(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	require.False(t, first, "second revocation of the same jti must report false")

	revoked, err := reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestMemoryRegistryRevokeOnceAfterExpiry(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	first, err := reg.RevokeOnce(ctx, "jti-1", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, first)
	time.Sleep(30 * time.Millisecond)

	// Once the entry has lapsed the jti can be claimed again.
	first, err = reg.RevokeOnce(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	require.True(t, first)
}

func TestMemoryRegistryRevokeOnceConcurrent(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	var wg sync.WaitGroup
	var wins int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := reg.RevokeOnce(ctx, "shared-jti", time.Minute)
			if err == nil && first {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins, "exactly one caller may claim the jti")
}

func TestRedisRegistry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	reg := NewRedisRegistry(client)

	revoked, err := reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, reg.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	// Expiry is delegated to redis.
	mr.FastForward(2 * time.Minute)
	revoked, err = reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRedisRegistryRevokeOnce(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	reg := NewRedisRegistry(client)

	first, err := reg.RevokeOnce(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	require.True(t, first)

	first, err = reg.RevokeOnce(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	require.False(t, first, "second revocation of the same jti must report false")

	mr.FastForward(2 * time.Minute)
	first, err = reg.RevokeOnce(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	require.True(t, first, "jti is claimable again once the key expired")
}

func TestRedisRegistryZeroTTLFloor(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	reg := NewRedisRegistry(client)

	require.NoError(t, reg.Revoke(ctx, "jti-1", 0))
	revoked, err := reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked, "zero ttl must still record the revocation")
}
