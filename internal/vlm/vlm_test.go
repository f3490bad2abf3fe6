package vlm

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribePlainImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"a cat sitting on a windowsill"}}]}`))
	}))
	defer srv.Close()

	d := NewHTTPDescriber("key", srv.URL, "")
	desc, err := d.Describe(t.Context(), []byte{0x01, 0x02}, false)
	require.NoError(t, err)
	assert.Equal(t, "a cat sitting on a windowsill", desc.Text)
	assert.Empty(t, desc.Emotion)
}

func TestDescribeStickerParsesEmotion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"description\":\"a surprised dog\",\"emotion\":\"surprise\"}"}}]}`))
	}))
	defer srv.Close()

	d := NewHTTPDescriber("key", srv.URL, "")
	desc, err := d.Describe(t.Context(), []byte{0x01}, true)
	require.NoError(t, err)
	assert.Equal(t, "a surprised dog", desc.Text)
	assert.Equal(t, "surprise", desc.Emotion)
}
