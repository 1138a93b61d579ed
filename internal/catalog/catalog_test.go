package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".artifacts", "catalog.json")
	s := NewStore(path)

	c := Catalog{
		"guide.md:0": {Title: "guide.md", ChunkIx: 0, Text: "héllo <b>world</b>"},
		"guide.md:1": {Title: "guide.md", ChunkIx: 1, Text: "again"},
	}
	require.NoError(t, s.Write(c))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "héllo <b>world</b>")
	assert.Contains(t, string(raw), `"chunk_ix": 1`)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, c, got)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".catalog-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStore_LoadNotFound(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewStore(path).Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_LoadNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))

	c, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Empty(t, c)
}

func TestStore_Merge(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "catalog.json"))

	require.NoError(t, s.Merge(Catalog{
		"a.md:0": {Title: "a.md", ChunkIx: 0, Text: "old"},
		"a.md:1": {Title: "a.md", ChunkIx: 1, Text: "tail"},
	}))
	require.NoError(t, s.Merge(Catalog{
		"a.md:0": {Title: "a.md", ChunkIx: 0, Text: "new"},
	}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", got["a.md:0"].Text)
	assert.Equal(t, "tail", got["a.md:1"].Text)
}
