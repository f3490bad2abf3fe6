package longterm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	batches [][]string
	results map[string][]string
	calls   int
}

func (f *fakeIndex) AddBatch(ctx context.Context, texts []string) error {
	f.batches = append(f.batches, texts)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	f.calls++
	if hits, ok := f.results[query]; ok {
		if len(hits) > k {
			return hits[:k], nil
		}
		return hits, nil
	}
	return nil, nil
}

func (f *fakeIndex) Close() error { return nil }

// fakeEmbedder maps a whole text to a 1-dimensional vector based on a
// fixed lookup so tests can control cosine similarity deterministically.
type fakeEmbedder struct {
	vectors map[string]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = []float32{v}
			continue
		}
		out[i] = []float32{1}
	}
	return out, nil
}

func TestIndexChunksAndBatchesPending(t *testing.T) {
	idx := &fakeIndex{}
	s := NewStore("unused", idx, &fakeEmbedder{})
	s.AddTexts([]string{"hello world", strings.Repeat("word ", 20000)})

	require.NoError(t, s.Index(context.Background()))
	assert.NotEmpty(t, idx.batches)

	var total int
	for _, b := range idx.batches {
		total += len(b)
	}
	assert.GreaterOrEqual(t, total, 2)
}

func TestIndexNoOpOnEmptyPending(t *testing.T) {
	idx := &fakeIndex{}
	s := NewStore("unused", idx, &fakeEmbedder{})
	require.NoError(t, s.Index(context.Background()))
	assert.Nil(t, idx.batches)
}

func TestRetrieveFreshOnFirstCall(t *testing.T) {
	idx := &fakeIndex{results: map[string][]string{
		"what happened": {"doc-a", "doc-b"},
	}}
	s := NewStore("unused", idx, &fakeEmbedder{})

	docs, err := s.Retrieve(context.Background(), []string{"what happened"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a", "doc-b"}, docs)
	assert.Equal(t, 1, idx.calls)
}

func TestRetrieveReusesCacheWhenSimilarityHolds(t *testing.T) {
	idx := &fakeIndex{results: map[string][]string{
		"q1": {"doc-a"},
	}}
	// All vectors identical -> similarity stays 1.0 across calls, well
	// above driftFactor * baseline, so the second call must not re-query.
	s := NewStore("unused", idx, &fakeEmbedder{})

	_, err := s.Retrieve(context.Background(), []string{"q1"}, 5)
	require.NoError(t, err)
	require.Equal(t, 1, idx.calls)

	docs, err := s.Retrieve(context.Background(), []string{"q1"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a"}, docs)
	assert.Equal(t, 1, idx.calls, "cached result should be reused, not re-queried")
}

func TestRetrieveRefreshesOnDrift(t *testing.T) {
	idx := &fakeIndex{results: map[string][]string{
		"q1": {"doc-a"},
		"q2": {"doc-b"},
	}}
	embedder := &fakeEmbedder{vectors: map[string]float32{
		"q1":    1,
		"doc-a": 1,
		// q2 is embedded far from doc-a, forcing the drift check to fail.
		"q2": -1,
	}}
	s := NewStore("unused", idx, embedder)

	_, err := s.Retrieve(context.Background(), []string{"q1"}, 5)
	require.NoError(t, err)
	require.Equal(t, 1, idx.calls)

	docs, err := s.Retrieve(context.Background(), []string{"q2"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-b"}, docs)
	assert.Equal(t, 2, idx.calls, "drifted similarity should force a fresh retrieve")
}

func TestRetrieveDedupesAcrossQueries(t *testing.T) {
	idx := &fakeIndex{results: map[string][]string{
		"q1": {"doc-a", "doc-b"},
		"q2": {"doc-b", "doc-c"},
	}}
	s := NewStore("unused", idx, &fakeEmbedder{})

	docs, err := s.Retrieve(context.Background(), []string{"q1", "q2"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a", "doc-b", "doc-c"}, docs)
}
