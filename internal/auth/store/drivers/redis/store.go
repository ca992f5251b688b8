// Package redis implements store.Ephemeral on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/store"
	goredis "github.com/redis/go-redis/v9"
)

// ErrInvalidTTL is returned by Set for a non-positive ttl. Keys without an
// expiry would live forever.
var ErrInvalidTTL = errors.New("redis: ttl must be positive")

type Store struct {
	client *goredis.Client
}

var _ store.Ephemeral = (*Store)(nil)

// NewStore dials lazily; call Ping to check the connection.
func NewStore(opts *goredis.Options) *Store {
	return &Store{client: goredis.NewClient(opts)}
}

// NewStoreFromClient wraps an existing client. Close closes it.
func NewStoreFromClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

// Set writes value and its expiry in one MULTI/EXEC so the key is never
// visible without a TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, value, 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	return val, mapNil(err)
}

func (s *Store) GetDelete(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.GetDel(ctx, key).Bytes()
	return val, mapNil(err)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.client.Close() }

func mapNil(err error) error {
	if errors.Is(err, goredis.Nil) {
		return store.ErrNotFound
	}
	return err
}
