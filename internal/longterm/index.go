package longterm

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
)

// Index is the minimal associative-memory contract long-term memory
// needs from a full-text search engine: batched writes and a top-k
// lexical lookup.
type Index interface {
	AddBatch(ctx context.Context, texts []string) error
	Search(ctx context.Context, query string, k int) ([]string, error)
	Close() error
}

type indexedDoc struct {
	Text string `json:"text"`
}

// BleveIndex is an Index backed by a bleve full-text index opened on
// disk, one per group's long-term store.
type BleveIndex struct {
	idx bleve.Index
}

// OpenBleveIndex opens the index at path, creating it with a default
// mapping if it doesn't already exist.
func OpenBleveIndex(path string) (*BleveIndex, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &BleveIndex{idx: idx}, nil
	}
	mapping := bleve.NewIndexMapping()
	idx, err = bleve.New(path, mapping)
	if err != nil {
		return nil, fmt.Errorf("create bleve index at %s: %w", path, err)
	}
	return &BleveIndex{idx: idx}, nil
}

// AddBatch indexes texts as individually addressable documents under
// fresh random IDs.
func (b *BleveIndex) AddBatch(ctx context.Context, texts []string) error {
	batch := b.idx.NewBatch()
	for _, t := range texts {
		if err := batch.Index(uuid.NewString(), indexedDoc{Text: t}); err != nil {
			return fmt.Errorf("batch index: %w", err)
		}
	}
	return b.idx.Batch(batch)
}

// Search runs a lexical match query and returns the stored text of the
// top k hits, best match first.
func (b *BleveIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{"text"}
	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if v, ok := hit.Fields["text"].(string); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (b *BleveIndex) Close() error {
	return b.idx.Close()
}

// removeAndReopen closes the underlying index, deletes it from disk, and
// returns a fresh empty index at the same path.
func removeAndReopen(path string) (*BleveIndex, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove index dir: %w", err)
	}
	return OpenBleveIndex(path)
}

// NullIndex is a no-op Index used when opening the on-disk index fails:
// every add is silently dropped and every search returns nothing, which
// the retrieval gate reads the same way it reads a total embedding
// failure — "no similarity information, always refresh" — rather than
// crashing a Session that otherwise has a reachable LLM and embedder.
type NullIndex struct{}

func (NullIndex) AddBatch(ctx context.Context, texts []string) error { return nil }
func (NullIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	return nil, nil
}
func (NullIndex) Close() error { return nil }
