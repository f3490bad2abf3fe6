package imagecache

import (
	"testing"

	"github.com/joebot/nekobot/internal/vlm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRoundTrip(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := c.LoadRaw("abc123")
	assert.False(t, ok)

	require.NoError(t, c.StoreRaw("abc123", []byte{1, 2, 3}))
	data, ok := c.LoadRaw("abc123")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestDescriptionRoundTrip(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)
	img := []byte("pretend-image-bytes")

	_, ok := c.LoadDescription(img)
	assert.False(t, ok)

	desc := vlm.Description{Text: "a cat", Emotion: "joy"}
	require.NoError(t, c.StoreDescription(img, desc))

	got, ok := c.LoadDescription(img)
	require.True(t, ok)
	assert.Equal(t, desc, got)
}

func TestEmptyFileIDNeverHits(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)
	_, ok := c.LoadRaw("")
	assert.False(t, ok)
}
