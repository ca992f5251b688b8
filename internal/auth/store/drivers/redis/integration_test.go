package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/store"
	"github.com/aussiebroadwan/tavern/internal/auth/store/drivers/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestAgainstRealRedis runs the driver against a redis container. It needs a
// Docker daemon and is skipped in -short mode.
func TestAgainstRealRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	s := redis.NewStore(&goredis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(ctx))

	require.NoError(t, s.Set(ctx, "verification:activation:123456", []byte(`{"user_id":"u1"}`), time.Second))

	got, err := s.Get(ctx, "verification:activation:123456")
	require.NoError(t, err)
	require.JSONEq(t, `{"user_id":"u1"}`, string(got))

	require.Eventually(t, func() bool {
		_, err := s.Get(ctx, "verification:activation:123456")
		return err == store.ErrNotFound
	}, 5*time.Second, 100*time.Millisecond)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	_, err = s.GetDelete(ctx, "k")
	require.NoError(t, err)
	_, err = s.GetDelete(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)
}
