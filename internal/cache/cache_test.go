package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты кэша поднимают redis:7-alpine через testcontainers-go.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/cache -v -count=1

func startRedis(t *testing.T) RefreshCache {
	t.Helper()

	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")

	rc, err := NewRedisCache(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), "test:rt:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	return rc
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not-a-url", "")
	require.Error(t, err)
}

func TestRedisCache_SetGetMarkRevoked(t *testing.T) {
	rc := startRedis(t)
	ctx := context.Background()

	id := uuid.New()
	entry := &RefreshEntry{
		UserID:    uuid.New(),
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}

	_, ok, err := rc.Get(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, rc.(*redisCache).set(ctx, id, entry))

	got, ok, err := rc.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.UserID, got.UserID)
	require.False(t, got.Revoked)
	require.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, rc.MarkRevoked(ctx, id, entry))

	got, ok, err = rc.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Revoked)
	require.False(t, entry.Revoked, "entry passed by caller must not be mutated")

	require.NoError(t, rc.Ping(ctx))
}

func TestRedisCache_SkipsExpiredEntries(t *testing.T) {
	rc := startRedis(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, rc.MarkRevoked(ctx, id, &RefreshEntry{
		UserID:    uuid.New(),
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, ok, err := rc.Get(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}
