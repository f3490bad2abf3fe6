package longterm

import "strings"

const (
	addTokenLimit   = 512
	queryTokenLimit = 8192
	overlapTokens   = 100
	maxBatchBytes   = 30_000
)

// Chunk splits text into overlapping windows of at most limit
// whitespace-delimited tokens, sliding forward by (limit - overlap)
// tokens each step. The scheme is reversible: concatenating chunk i's
// non-overlapping head with chunk i+1 reconstructs the source order.
// Text at or under the limit is returned as a single chunk.
func Chunk(text string, limit, overlap int) []string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return []string{text}
	}
	step := limit - overlap
	if step <= 0 {
		step = limit
	}
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + limit
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// ChunkForAdd splits text for the add-time (indexing) token limit.
func ChunkForAdd(text string) []string {
	return Chunk(text, addTokenLimit, overlapTokens)
}

// ChunkForQuery splits text for the query-time token limit.
func ChunkForQuery(text string) []string {
	return Chunk(text, queryTokenLimit, overlapTokens)
}

// RegroupByBytes re-groups chunks into batches of at most maxBytes
// UTF-8 bytes each, so a single oversized chunk is always submitted
// alone rather than silently dropped or truncated.
func RegroupByBytes(chunks []string, maxBytes int) [][]string {
	var batches [][]string
	var cur []string
	curBytes := 0
	for _, c := range chunks {
		size := len(c)
		if size > maxBytes {
			if len(cur) > 0 {
				batches = append(batches, cur)
				cur, curBytes = nil, 0
			}
			batches = append(batches, []string{c})
			continue
		}
		if curBytes+size > maxBytes && len(cur) > 0 {
			batches = append(batches, cur)
			cur, curBytes = nil, 0
		}
		cur = append(cur, c)
		curBytes += size
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}
