package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/tavern/internal/auth/store"
	"github.com/aussiebroadwan/tavern/internal/auth/store/drivers/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	s := redis.NewStore(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`), time.Minute))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(got))
	require.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Deleting a missing key is fine.
	require.NoError(t, s.Delete(ctx, "k"))
}

func TestSetRejectsNonPositiveTTL(t *testing.T) {
	s, mr := newStore(t)

	require.ErrorIs(t, s.Set(context.Background(), "k", []byte("v"), 0), redis.ErrInvalidTTL)
	require.False(t, mr.Exists("k"))
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Second))
	mr.FastForward(11 * time.Second)

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetDeleteIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := s.GetDelete(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(got))

	_, err = s.GetDelete(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)
}
