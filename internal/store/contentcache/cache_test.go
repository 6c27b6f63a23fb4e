package contentcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	cache, err := OpenInMemory()
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Get(1, "sha1", "a.ts")
	require.ErrorIs(t, err, ErrNotCached)

	require.NoError(t, cache.Put(1, "sha1", "a.ts", []byte("content")))
	got, err := cache.Get(1, "sha1", "a.ts")
	require.NoError(t, err)
	require.Equal(t, []byte("content"), got)

	// Keys are scoped by commit.
	_, err = cache.Get(1, "sha2", "a.ts")
	require.ErrorIs(t, err, ErrNotCached)
}

func TestCachePutIsIdempotent(t *testing.T) {
	cache, err := OpenInMemory()
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Put(1, "sha1", "a.ts", []byte("content")))
	require.NoError(t, cache.Put(1, "sha1", "a.ts", []byte("content")))
	got, err := cache.Get(1, "sha1", "a.ts")
	require.NoError(t, err)
	require.Equal(t, []byte("content"), got)
}
