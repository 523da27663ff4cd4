package overlay

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps the blob in process memory. Useful for tests and for
// throwaway sessions.
type MemoryStore struct {
	c   *cache.Cache
	key string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: cache.New(cache.NoExpiration, 0), key: Key}
}

func (s *MemoryStore) Get(ctx context.Context) ([]byte, error) {
	v, ok := s.c.Get(s.key)
	if !ok {
		return nil, ErrNotFound
	}
	b := v.([]byte)
	return append([]byte{}, b...), nil
}

func (s *MemoryStore) Set(ctx context.Context, value []byte) error {
	s.c.Set(s.key, append([]byte{}, value...), cache.NoExpiration)
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context) error {
	s.c.Delete(s.key)
	return nil
}
