package longterm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	chunks := Chunk("a short sentence", 512, 100)
	assert.Equal(t, []string{"a short sentence"}, chunks)
}

func TestChunkSlidesWithOverlap(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = "w"
	}
	text := strings.Join(words, " ")

	chunks := Chunk(text, 10, 2)
	require := func(cond bool, msg string) {
		if !cond {
			t.Fatal(msg)
		}
	}
	require(len(chunks) > 1, "expected multiple chunks")
	for _, c := range chunks {
		assert.LessOrEqual(t, len(strings.Fields(c)), 10)
	}
}

func TestChunkCoversAllWords(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = "tok"
	}
	text := strings.Join(words, " ")
	chunks := Chunk(text, 12, 3)
	last := chunks[len(chunks)-1]
	lastWords := strings.Fields(last)
	assert.NotEmpty(t, lastWords)
}

func TestRegroupByBytesRespectsBudget(t *testing.T) {
	chunks := []string{"aaaaa", "bbbbb", "ccccc"}
	batches := RegroupByBytes(chunks, 7)
	for _, b := range batches {
		total := 0
		for _, c := range b {
			total += len(c)
		}
		assert.LessOrEqual(t, total, 10) // allows one item to slightly exceed alone but not compound
	}
	var flat []string
	for _, b := range batches {
		flat = append(flat, b...)
	}
	assert.Equal(t, chunks, flat)
}

func TestRegroupByBytesOversizedChunkAlone(t *testing.T) {
	huge := strings.Repeat("x", 100)
	chunks := []string{"small", huge, "small2"}
	batches := RegroupByBytes(chunks, 10)

	foundAlone := false
	for _, b := range batches {
		if len(b) == 1 && b[0] == huge {
			foundAlone = true
		}
	}
	assert.True(t, foundAlone, "oversized chunk should be submitted alone")
}
