package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/emotion"
	"github.com/joebot/nekobot/internal/longterm"
	"github.com/joebot/nekobot/internal/shortterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistAndRestoreRoundTrips(t *testing.T) {
	dir := t.TempDir()

	sm := shortterm.New(func(ctx context.Context, msgs []bus.Message) (string, error) { return "", nil })
	lt := longterm.NewStore("unused", &fakeIndex{}, fakeEmbedder{})
	s := New("g42", sm, lt, dir)

	s.Lock()
	s.SetRole("custom-name", "custom role text")
	s.globalEmotion = emotion.Vector{Valence: 0.4, Arousal: 0.2, Dominance: -0.1}
	s.chatSummary = "a lively chat about cats"
	s.chattingState = Bubble
	s.bubbleWillingSum = 0.42
	s.profiles.Ensure("alice").Push(time.Now(), emotion.Vector{Valence: 0.5})
	s.shortTerm.Update(context.Background(), []bus.Message{{Time: time.Now(), UserName: "alice", Content: "hi"}})
	require.NoError(t, s.Persist())
	s.Unlock()

	restored := New("g42", shortterm.New(func(ctx context.Context, msgs []bus.Message) (string, error) { return "", nil }), longterm.NewStore("unused", &fakeIndex{}, fakeEmbedder{}), dir)

	assert.Equal(t, "custom-name", restored.Name())
	assert.Equal(t, "custom role text", restored.Role())
	assert.Equal(t, 0.4, restored.GlobalEmotion().Valence)
	assert.Equal(t, "a lively chat about cats", restored.ChatSummary())
	assert.Equal(t, Bubble, restored.ChattingState())
	assert.InDelta(t, 0.42, restored.BubbleWillingSum(), 1e-9)
	assert.NotNil(t, restored.Profiles().Get("alice"))

	msgs, _ := restored.ShortTerm().Snapshot()
	assert.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestRestoreMissingSnapshotKeepsDefaults(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, defaultName, s.Name())
}

func TestRestoreCorruptSnapshotFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session_g9.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	sm := shortterm.New(func(ctx context.Context, msgs []bus.Message) (string, error) { return "", nil })
	lt := longterm.NewStore("unused", &fakeIndex{}, fakeEmbedder{})
	s := New("g9", sm, lt, dir)

	assert.Equal(t, defaultName, s.Name())
}
