package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity")
	p := NewProvider(path)
	tok := p.GetOrCreate()
	require.NotEmpty(t, tok)
	assert.Equal(t, tok, p.GetOrCreate())

	// A fresh provider against the same file sees the same token.
	assert.Equal(t, tok, NewProvider(path).GetOrCreate())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), tok)
}

func TestGetOrCreateFreshAfterClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity")
	first := NewProvider(path).GetOrCreate()
	require.NoError(t, os.Remove(path))
	second := NewProvider(path).GetOrCreate()
	assert.NotEqual(t, first, second)
}

func TestGetOrCreateEphemeralFallback(t *testing.T) {
	dir := t.TempDir()
	// Persisting under a file (not a dir) cannot succeed; the provider must
	// still hand out a stable in-memory token.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	p := NewProvider(filepath.Join(blocker, "identity"))
	tok := p.GetOrCreate()
	require.NotEmpty(t, tok)
	assert.Equal(t, tok, p.GetOrCreate())
}
