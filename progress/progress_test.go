package progress

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	tok := Open(filepath.Join(t.TempDir(), "missing.txt"))
	got, err := tok.Load()
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	tok := Open(filepath.Join(t.TempDir(), "nested", "progress.txt"))
	require.NoError(t, tok.Save("65f1c2a9e4b0f1a2b3c4d5e6"))

	got, err := tok.Load()
	require.NoError(t, err)
	assert.Equal(t, "65f1c2a9e4b0f1a2b3c4d5e6", got)
}

func TestSaveOverwritesPreviousValue(t *testing.T) {
	tok := Open(filepath.Join(t.TempDir(), "progress.txt"))
	require.NoError(t, tok.Save("uid-1"))
	require.NoError(t, tok.Save("uid-2"))

	got, err := tok.Load()
	require.NoError(t, err)
	assert.Equal(t, "uid-2", got)
}
