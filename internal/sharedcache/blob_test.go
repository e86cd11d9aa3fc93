package sharedcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-verify/internal/storage"
	"github.com/class-verify/pkg/compression"
)

func newLocalBlobCache(t *testing.T, codecName string) *BlobCache {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	codec, err := compression.NewByName(codecName)
	require.NoError(t, err)

	cache := NewBlobCache(store, codec)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestBlobCacheRoundTrip(t *testing.T) {
	for _, codecName := range []string{"zstd", "gzip", "none"} {
		t.Run(codecName, func(t *testing.T) {
			cache := newLocalBlobCache(t, codecName)
			ctx := context.Background()

			blob := []byte("\x01\x00\x00\x00\x00\x00\x00\x00snippet-data")

			data, found, err := cache.Find(ctx, "com/example/Child")
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, data)

			require.NoError(t, cache.Store(ctx, "com/example/Child", blob))

			data, found, err = cache.Find(ctx, "com/example/Child")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, blob, data)
		})
	}
}

func TestBlobCacheDuplicateKey(t *testing.T) {
	cache := newLocalBlobCache(t, "none")
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "k", []byte{1}))
	err := cache.Store(ctx, "k", []byte{2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyExists)
}

func TestBlobCacheKeyNesting(t *testing.T) {
	// A class and one of its inner packages must not collide as object keys
	cache := newLocalBlobCache(t, "none")
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "com/example/Outer", []byte{1}))
	require.NoError(t, cache.Store(ctx, "com/example/Outer/Inner", []byte{2}))

	data, found, err := cache.Find(ctx, "com/example/Outer")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte{1}, data)
}
