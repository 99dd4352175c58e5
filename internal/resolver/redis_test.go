package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *RedisCache {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start redis container")
	t.Cleanup(func() { testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb, err := NewRedisClient(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return NewRedisCache(rdb, zerolog.Nop())
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache := setupRedis(t)
	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Millisecond)
	snap := &Snapshot{
		TitleCode: "wot.eu",
		Scope:     ScopeMain,
		Catalogs:  []catalog.Catalog{activeCatalog(1, "wot.eu", catalog.TypeMain, 3, at)},
		ExpiresAt: time.Now().Add(time.Minute),
	}
	snap.ETag = ComputeETag(snap.Catalogs)

	key := titleKey("wot.eu", ScopeMain)
	cache.Set(ctx, key, snap, time.Minute)

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, snap.ETag, got.ETag)
	require.Len(t, got.Catalogs, 1)
	assert.Equal(t, catalog.TypeMain, got.Catalogs[0].Type)
	assert.Equal(t, int64(1), got.Catalogs[0].TitleID)
	assert.Equal(t, snap.ETag, ComputeETag(got.Catalogs))

	cache.Set(ctx, allKey(catalog.TypeMain), snap, time.Minute)
	cache.Invalidate(ctx, "wot.eu")
	_, ok = cache.Get(ctx, key)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, allKey(catalog.TypeMain))
	assert.False(t, ok)
}

func TestRedisCacheDropsExpired(t *testing.T) {
	cache := setupRedis(t)
	ctx := context.Background()

	snap := &Snapshot{Scope: ScopeMain, ExpiresAt: time.Now().Add(-time.Second)}
	cache.Set(ctx, "all:MAIN", snap, time.Minute)
	_, ok := cache.Get(ctx, "all:MAIN")
	assert.False(t, ok)
}
