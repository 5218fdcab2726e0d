package acme

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCacheCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	cache, err := NewCache(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cache.Dir())

	_, err = NewCache("")
	assert.Error(t, err)
}

func TestCacheAccountRoundtrip(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	_, ok, err := cache.ReadAccount()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.WriteAccount([]byte(`{"id":"x"}`)))

	raw, ok, err := cache.ReadAccount()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"x"}`, string(raw))
}

func TestCacheOrderRoundtrip(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	_, ok, err := cache.ReadOrder("example-com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.WriteOrder("example-com", []byte(`{"account":"a"}`)))

	raw, ok, err := cache.ReadOrder("example-com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"account":"a"}`, string(raw))

	// other certificate tokens stay independent
	_, ok, err = cache.ReadOrder("other-com")
	require.NoError(t, err)
	assert.False(t, ok)
}
