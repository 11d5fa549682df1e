package postcode

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "E147DG", NormalizeKey("E14 7DG"))
	assert.Equal(t, "E147DG", NormalizeKey(" e14 7dg "))
}

func TestLoadCacheMissingFile(t *testing.T) {
	c, err := LoadCache(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	_, ok := c.Get("E14 7DG")
	assert.False(t, ok)
}

func TestCachePutGetFlushRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := LoadCache(path)
	require.NoError(t, err)

	c.Put("E14 7DG", Result{Latitude: 51.5, Longitude: -0.01, Found: true})
	c.Put("ZZ99 9ZZ", Result{Found: false})

	require.NoError(t, c.Flush())

	reloaded, err := LoadCache(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())

	found, ok := reloaded.Get("e14 7dg")
	require.True(t, ok)
	assert.True(t, found.Found)
	assert.InDelta(t, 51.5, found.Latitude, 0.0001)

	negative, ok := reloaded.Get("ZZ999ZZ")
	require.True(t, ok)
	assert.False(t, negative.Found)
}
