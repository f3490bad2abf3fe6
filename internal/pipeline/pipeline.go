// Package pipeline implements the three-stage cognitive loop — retrieve,
// feedback, reply — that a per-group background worker runs against one
// batch of messages at a time. The strict-JSON LLM contract and
// fail-the-whole-stage validation discipline are grounded on the
// upstream agent's tagged-variant tool-call parsing in
// internal/llm/openai.go, generalized from tool-call JSON to the
// feedback/reply payload shapes this core needs.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/llm"
	"github.com/joebot/nekobot/internal/session"
	"github.com/joebot/nekobot/internal/shortterm"
)

// retrieveK is the number of distinct snippets requested per query in
// the retrieve stage.
const retrieveK = 3

// Pipeline runs the retrieve/feedback/reply sequence against a Session.
// It holds no per-group state of its own — everything mutable lives on
// the Session passed to Run.
type Pipeline struct {
	provider llm.Provider
	model    string
}

// New creates a Pipeline that issues feedback and reply completions
// against provider using model (empty uses the provider's default).
func New(provider llm.Provider, model string) *Pipeline {
	return &Pipeline{provider: provider, model: model}
}

// Run executes one pipeline pass over batch and returns the reply
// strings to send, in the order the LLM produced them. The caller must
// already hold sess's lock for the full call — Run mutates sess
// in-place via ApplyFeedback. A feedback-stage failure drops the batch
// (no state mutated) and returns a nil, nil result: this is the expected
// "logged and skipped" outcome, not an error the worker need act on
// beyond moving to the next batch.
func (p *Pipeline) Run(ctx context.Context, sess *session.Session, batch []bus.Message) ([]string, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	memHistory := p.retrieve(ctx, sess, batch)

	result, err := p.feedback(ctx, sess, batch, memHistory)
	if err != nil {
		slog.Error("feedback stage failed, dropping batch", "session", sess.ID(), "err", err)
		return nil, nil
	}
	sess.ApplyFeedback(time.Now(), batch, result)

	if sess.ChattingState() == session.Idle {
		return nil, nil
	}

	replies, err := p.reply(ctx, sess, batch, memHistory)
	if err != nil {
		slog.Error("reply stage failed", "session", sess.ID(), "err", err)
		return nil, nil
	}
	return replies, nil
}

func (p *Pipeline) retrieve(ctx context.Context, sess *session.Session, batch []bus.Message) []string {
	queries := buildQueries(sess, batch)
	if len(queries) == 0 {
		return nil
	}
	docs, err := sess.LongTerm().Retrieve(ctx, queries, retrieveK)
	if err != nil {
		slog.Error("retrieve stage failed", "session", sess.ID(), "err", err)
		return nil
	}
	return docs
}

func buildQueries(sess *session.Session, batch []bus.Message) []string {
	var queries []string

	window := sess.ShortTerm().Access()
	if formatted := shortterm.FormatForPrompt(window.Messages); formatted != "" {
		queries = append(queries, formatted)
	}
	if window.Compressed != "" {
		queries = append(queries, window.Compressed)
	}
	for _, msg := range batch {
		if msg.Content != "" {
			queries = append(queries, msg.Content)
		}
	}
	if summary := sess.ChatSummary(); summary != "" {
		queries = append(queries, summary)
	}
	return queries
}

func (p *Pipeline) call(ctx context.Context, prompt string) (string, error) {
	resp, err := p.provider.Chat(ctx, llm.ChatRequest{
		Messages:    []map[string]any{{"role": "user", "content": prompt}},
		Model:       p.model,
		Temperature: 0.5,
	})
	if err != nil {
		return "", fmt.Errorf("llm call: %w", err)
	}
	return llm.NormalizeJSON(resp.Content), nil
}

func unmarshalStrict(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}
