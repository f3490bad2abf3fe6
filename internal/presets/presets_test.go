package presets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeedsExampleOnEmptyDir(t *testing.T) {
	dir := t.TempDir()
	reg, err := Load(dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "example.json"))
	require.NoError(t, err)
	assert.Contains(t, reg.List(), "example.json")
}

func TestGetReturnsFalseOnMissing(t *testing.T) {
	dir := t.TempDir()
	reg, err := Load(dir)
	require.NoError(t, err)

	_, ok := reg.Get("nonexistent.json")
	assert.False(t, ok)
}

func TestListExcludesHidden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible.json"), []byte(`{"name":"v","role":"r","knowledges":[]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hidden.json"), []byte(`{"name":"h","role":"r","knowledges":[],"hidden":true}`), 0o644))

	reg, err := Load(dir)
	require.NoError(t, err)

	names := reg.List()
	assert.Contains(t, names, "visible.json")
	assert.NotContains(t, names, "hidden.json")

	p, ok := reg.Get("hidden.json")
	require.True(t, ok)
	assert.True(t, p.Hidden)
}
