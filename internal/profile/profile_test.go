package profile

import (
	"testing"
	"time"

	"github.com/joebot/nekobot/internal/emotion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushCreatesAndAggregates(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	p := New("alice")
	p.Push(now, emotion.Vector{Valence: 0.8})
	p.Push(now.Add(-4*time.Hour), emotion.Vector{Valence: -0.6})

	p.Recompute(now)
	want := emotion.Aggregate([]emotion.Vector{
		emotion.Decay(emotion.Vector{Valence: 0.8}, 0),
		emotion.Decay(emotion.Vector{Valence: -0.6}, 4),
	})
	assert.InDelta(t, want.Valence, p.Emotion.Valence, 1e-6)
}

func TestMergeOldCollapsesJournal(t *testing.T) {
	now := time.Now()
	p := New("bob")
	p.Push(now.Add(-10*time.Hour), emotion.Vector{Valence: 0.5})
	p.Push(now.Add(-8*time.Hour), emotion.Vector{Valence: -0.2})
	p.Push(now, emotion.Vector{Valence: 0.1})

	require.Len(t, p.Interactions, 2) // one fresh + one merged
	// The fresh one should be newest-first.
	assert.WithinDuration(t, now, p.Interactions[0].At, time.Second)
}

func TestJournalEnsureAndClear(t *testing.T) {
	j := NewJournal()
	assert.Nil(t, j.Get("carol"))
	p := j.Ensure("carol")
	require.NotNil(t, p)
	assert.Same(t, p, j.Ensure("carol"))
	assert.Equal(t, 1, j.Len())
	j.Clear()
	assert.Equal(t, 0, j.Len())
}
