package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/llm"
	"github.com/joebot/nekobot/internal/longterm"
	"github.com/joebot/nekobot/internal/session"
	"github.com/joebot/nekobot/internal/shortterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct{}

func (fakeIndex) AddBatch(ctx context.Context, texts []string) error { return nil }
func (fakeIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	return nil, nil
}
func (fakeIndex) Close() error { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

// scriptedProvider returns one response per call, in order.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (s *scriptedProvider) DefaultModel() string { return "test-model" }
func (s *scriptedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if s.calls >= len(s.responses) {
		return &llm.ChatResponse{Content: "{}"}, nil
	}
	r := s.responses[s.calls]
	s.calls++
	return &llm.ChatResponse{Content: r}, nil
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	sm := shortterm.New(func(ctx context.Context, msgs []bus.Message) (string, error) { return "", nil })
	lt := longterm.NewStore("unused", fakeIndex{}, fakeEmbedder{})
	return session.New("g1", sm, lt, t.TempDir())
}

func TestRunCommitsFeedbackAndSkipsReplyWhenIdle(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"new_emotion":{"valence":0.1,"arousal":0.1,"dominance":0.0},"emotion_tends":[{"valence":0.1,"arousal":0,"dominance":0}],"summary":"alice said hi","analyze_result":[],"willing":{"0":1,"1":0,"2":0}}`,
	}}
	p := New(provider, "")
	sess := newTestSession(t)
	batch := []bus.Message{{Time: time.Now(), UserName: "alice", Content: "hi"}}

	sess.Lock()
	replies, err := p.Run(context.Background(), sess, batch)
	sess.Unlock()

	require.NoError(t, err)
	assert.Empty(t, replies)
	assert.Equal(t, "alice said hi", sess.ChatSummary())
	assert.Equal(t, session.Idle, sess.ChattingState())
}

func TestRunProducesRepliesWhenActive(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"new_emotion":{"valence":0.1,"arousal":0.1,"dominance":0.0},"emotion_tends":[{"valence":0.1,"arousal":0,"dominance":0}],"summary":"chat is lively","analyze_result":[],"willing":{"0":0,"1":0,"2":1}}`,
		`{"reply":["hey!"]}`,
	}}
	p := New(provider, "")
	sess := newTestSession(t)
	batch := []bus.Message{{Time: time.Now(), UserName: "alice", Content: "hi everyone"}}

	sess.Lock()
	replies, err := p.Run(context.Background(), sess, batch)
	sess.Unlock()

	require.NoError(t, err)
	assert.Equal(t, []string{"hey!"}, replies)
	assert.Equal(t, session.Active, sess.ChattingState())
}

func TestRunDropsBatchOnMalformedFeedback(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"new_emotion":{"valence":0.1,"arousal":0.1,"dominance":0.0},"analyze_result":[],"willing":{"0":1,"1":0,"2":0}}`, // missing summary, emotion_tends
	}}
	p := New(provider, "")
	sess := newTestSession(t)
	batch := []bus.Message{{Time: time.Now(), UserName: "alice", Content: "hi"}}

	sess.Lock()
	replies, err := p.Run(context.Background(), sess, batch)
	sess.Unlock()

	require.NoError(t, err)
	assert.Empty(t, replies)
	assert.Empty(t, sess.ChatSummary())
	assert.Equal(t, session.Idle, sess.ChattingState())
}
