// Package longterm implements the associative long-term memory store:
// chunking text to the embedding model's token limits, batching it into
// an underlying full-text index, and gating re-retrieval behind a
// cosine-similarity drift check against a cached baseline so a steady
// conversation doesn't re-query the index on every turn. Indexing is
// grounded on intelligencedev-manifold's rag/ingest vector pipeline; the
// bleve.Index choice follows the full-text engine imported across the
// example pack.
package longterm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joebot/nekobot/internal/embedding"
)

// driftFactor is the fraction of the cached baseline similarity below
// which the gate forces a fresh retrieval.
const driftFactor = 0.8

// Store is one group's long-term memory: a pending-write buffer, the
// on-disk index it flushes into, and the retrieval gate's cached state.
type Store struct {
	mu       sync.Mutex
	path     string
	index    Index
	embedder embedding.Provider

	pending []string

	lastDocs    []string
	lastQueries []string
	baselineSim float64
}

// NewStore creates a long-term store backed by idx, opened at path, using
// embedder for the retrieval gate's similarity checks.
func NewStore(path string, idx Index, embedder embedding.Provider) *Store {
	return &Store{path: path, index: idx, embedder: embedder}
}

// AddTexts stages texts for indexing on the next Index call. It does not
// touch the index itself — callers batch several AddTexts calls before
// flushing so indexing stays off the hot reply path.
func (s *Store) AddTexts(texts []string) {
	if len(texts) == 0 {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, texts...)
	s.mu.Unlock()
}

// Index flushes the pending buffer: every staged text is chunked to the
// add-time token limit, the resulting chunks are regrouped into
// byte-budgeted batches, and each batch is submitted to the index.
func (s *Store) Index(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	var chunks []string
	for _, text := range pending {
		chunks = append(chunks, ChunkForAdd(text)...)
	}

	for _, batch := range RegroupByBytes(chunks, maxBatchBytes) {
		if err := s.index.AddBatch(ctx, batch); err != nil {
			return fmt.Errorf("index batch: %w", err)
		}
	}
	return nil
}

// Retrieve answers queries with the top k matches per query, deduplicated.
// It first checks whether the cached result set from the last fresh
// retrieval is still a good match for the new queries: if the
// mean-embedding cosine similarity between queries and the cached
// documents hasn't drifted below driftFactor times the cached baseline,
// the cached set is returned unchanged. Otherwise it re-queries the
// index and the new result becomes the new baseline.
func (s *Store) Retrieve(ctx context.Context, queries []string, k int) ([]string, error) {
	s.mu.Lock()
	prevDocs := append([]string(nil), s.lastDocs...)
	baseline := s.baselineSim
	s.mu.Unlock()

	if len(prevDocs) == 0 || baseline == 0 {
		return s.freshRetrieve(ctx, queries, k)
	}

	qMean := s.embedMean(ctx, queries)
	docMean := s.embedMean(ctx, prevDocs)
	current := embedding.CosineSimilarity(qMean, docMean)

	if current < driftFactor*baseline {
		return s.freshRetrieve(ctx, queries, k)
	}
	return prevDocs, nil
}

func (s *Store) freshRetrieve(ctx context.Context, queries []string, k int) ([]string, error) {
	seen := make(map[string]bool)
	var docs []string
	for _, q := range queries {
		hits, err := s.index.Search(ctx, q, k)
		if err != nil {
			slog.Error("long-term search failed", "query", q, "err", err)
			continue
		}
		for _, h := range hits {
			if seen[h] {
				continue
			}
			seen[h] = true
			docs = append(docs, h)
		}
	}

	qMean := s.embedMean(ctx, queries)
	docMean := s.embedMean(ctx, docs)
	baseline := embedding.CosineSimilarity(qMean, docMean)

	s.mu.Lock()
	s.lastDocs = docs
	s.lastQueries = append([]string(nil), queries...)
	s.baselineSim = baseline
	s.mu.Unlock()

	return docs, nil
}

func (s *Store) embedMean(ctx context.Context, texts []string) []float32 {
	if len(texts) == 0 {
		return nil
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil
	}
	return embedding.MeanVector(vecs)
}

// Clear wipes the index from disk and resets the retrieval gate.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		slog.Warn("closing long-term index before clear", "err", err)
	}
	fresh, err := removeAndReopen(s.path)
	if err != nil {
		return err
	}
	s.index = fresh
	s.pending = nil
	s.lastDocs = nil
	s.lastQueries = nil
	s.baselineSim = 0
	return nil
}

// Close releases the underlying index's file handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
