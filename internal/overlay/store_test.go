package overlay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, []byte(`{"a":1}`)))
	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	require.NoError(t, s.Set(ctx, []byte{}))
	got, err = s.Get(ctx)
	require.NoError(t, err, "empty value is distinct from absent")
	assert.Empty(t, got)

	require.NoError(t, s.Remove(ctx))
	_, err = s.Get(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Remove(ctx), "removing twice is fine")
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "overlay.json")
	exerciseStore(t, NewFileStore(path))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, buf))
	buf[0] = 'x'
	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CRAFTBOM_REDIS_ADDR")
	if addr == "" {
		t.Skip("CRAFTBOM_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	s := NewRedisStore(rdb, Key+"_test")
	require.NoError(t, s.Remove(context.Background()))
	exerciseStore(t, s)
}

func TestOpenRedisStoreBadURL(t *testing.T) {
	_, err := OpenRedisStore("http://nope")
	assert.Error(t, err)
}
