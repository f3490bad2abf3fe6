package emotion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecayValenceMonotonicity(t *testing.T) {
	// Positive valence must be non-increasing in h and tend to 0.
	prev := DecayValence(0.8, 0)
	for h := 1.0; h <= 50; h++ {
		cur := DecayValence(0.8, h)
		require.LessOrEqual(t, cur, prev)
		prev = cur
	}
	assert.InDelta(t, 0, DecayValence(0.8, 200), 1e-6)

	// Negative valence must be non-decreasing in h.
	prev = DecayValence(-0.6, 0)
	for h := 1.0; h <= 50; h++ {
		cur := DecayValence(-0.6, h)
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	assert.InDelta(t, 0, DecayValence(-0.6, 400), 1e-6)

	assert.Equal(t, 0.0, DecayValence(0, 10))
}

func TestDecayArousalMonotoneTowardBaseline(t *testing.T) {
	for _, a := range []float64{0, 0.3, 0.5, 1} {
		prev := a
		for h := 1.0; h <= 40; h++ {
			cur := DecayArousal(a, h)
			if a > 0.3 {
				require.LessOrEqual(t, cur, prev)
			} else if a < 0.3 {
				require.GreaterOrEqual(t, cur, prev)
			}
			prev = cur
		}
		assert.InDelta(t, 0.3, DecayArousal(a, 500), 1e-6)
	}
}

func TestDecayDominanceMonotoneTowardBaseline(t *testing.T) {
	for _, d := range []float64{-1, 0, 0.5, 1} {
		prev := d
		for h := 1.0; h <= 40; h++ {
			cur := DecayDominance(d, h)
			if d > 0.5 {
				require.LessOrEqual(t, cur, prev)
			} else if d < 0.5 {
				require.GreaterOrEqual(t, cur, prev)
			}
			prev = cur
		}
		assert.InDelta(t, 0.5, DecayDominance(d, 2000), 1e-6)
	}
}

func TestAggregateMaxMinRule(t *testing.T) {
	// Two impressions for the same user: +0.8 one hour ago, -0.6 five
	// hours ago. Expected valence = max(0, +0.8*e^-0.15) + min(0, -0.6*e^-0.25).
	decayed := []Vector{
		{Valence: DecayValence(0.8, 1)},
		{Valence: DecayValence(-0.6, 5)},
	}
	got := Aggregate(decayed)
	want := math.Max(0, 0.8*math.Exp(-0.15)) + math.Min(0, -0.6*math.Exp(-0.25))
	assert.InDelta(t, want, got.Valence, 1e-6)
}

func TestClampAndInRange(t *testing.T) {
	v := Vector{Valence: 2, Arousal: -1, Dominance: -5}
	assert.False(t, v.InRange())
	c := v.Clamp()
	assert.True(t, c.InRange())
	assert.Equal(t, Vector{Valence: 1, Arousal: 0, Dominance: -1}, c)
}
