package overlay

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps the blob under a single Redis key.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore uses Key unless key is given.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = Key
	}
	return &RedisStore{rdb: rdb, key: key}
}

// OpenRedisStore parses a redis:// URL and connects lazily.
func OpenRedisStore(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opt), ""), nil
}

func (s *RedisStore) Get(ctx context.Context) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return b, nil
}

func (s *RedisStore) Set(ctx context.Context, value []byte) error {
	if err := s.rdb.Set(ctx, s.key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}

// Close releases the client connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
