// Package emotion implements the VAD (valence/arousal/dominance) mood
// model and its time-decay functions: a pure numeric model with no
// dependency on the rest of the cognitive pipeline.
package emotion

import "math"

// Vector is a point in valence/arousal/dominance space. Valence and
// dominance range over [-1,1]; arousal ranges over [0,1].
type Vector struct {
	Valence   float64 `json:"valence"`
	Arousal   float64 `json:"arousal"`
	Dominance float64 `json:"dominance"`
}

// Clamp restricts each axis to its valid range. LLM output that fails
// this range is rejected by the caller rather than silently clamped —
// Clamp exists for code paths (decay, aggregation) that are only ever
// fed values already known to be in range, as a final guard against
// float drift.
func (v Vector) Clamp() Vector {
	return Vector{
		Valence:   clamp(v.Valence, -1, 1),
		Arousal:   clamp(v.Arousal, 0, 1),
		Dominance: clamp(v.Dominance, -1, 1),
	}
}

// InRange reports whether v satisfies the Session's global_emotion
// invariant.
func (v Vector) InRange() bool {
	return v.Valence >= -1 && v.Valence <= 1 &&
		v.Arousal >= 0 && v.Arousal <= 1 &&
		v.Dominance >= -1 && v.Dominance <= 1
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// DecayValence fades a valence value over h elapsed hours. Positive
// moods fade fast (rate 0.15/h); negative moods linger (rate 0.05/h);
// zero is a fixed point.
func DecayValence(v, h float64) float64 {
	switch {
	case v > 0:
		return v * math.Exp(-0.15*h)
	case v < 0:
		return v * math.Exp(-0.05*h)
	default:
		return 0
	}
}

// DecayArousal relaxes arousal toward a neutral baseline of 0.3.
func DecayArousal(a, h float64) float64 {
	decay := math.Exp(-0.2 * h)
	return a*decay + 0.3*(1-decay)
}

// DecayDominance relaxes dominance toward a neutral baseline of 0.5.
func DecayDominance(d, h float64) float64 {
	decay := math.Exp(-0.03 * h)
	return d*decay + 0.5*(1-decay)
}

// Decay applies all three axis decay functions to v for h elapsed
// hours, treating Dominance's neutral point (0.5) and Valence's (0) per
// their own functions.
func Decay(v Vector, h float64) Vector {
	return Vector{
		Valence:   DecayValence(v.Valence, h),
		Arousal:   DecayArousal(v.Arousal, h),
		Dominance: DecayDominance(v.Dominance, h),
	}
}

// Aggregate folds a set of decayed deltas into a single tendency vector
// using the "strongest lingering positive and negative both contribute"
// rule: for each axis, keep the running max of positive decayed values
// and the running min of negative decayed values, then sum the two.
// Averaging would wash out a single strong impression amid many mild
// ones, which is not how the upstream behavior is specified.
func Aggregate(decayed []Vector) Vector {
	var maxV, minV, maxA, minA, maxD, minD float64
	for _, d := range decayed {
		maxV = math.Max(maxV, math.Max(0, d.Valence))
		minV = math.Min(minV, math.Min(0, d.Valence))
		maxA = math.Max(maxA, math.Max(0, d.Arousal))
		minA = math.Min(minA, math.Min(0, d.Arousal))
		maxD = math.Max(maxD, math.Max(0, d.Dominance))
		minD = math.Min(minD, math.Min(0, d.Dominance))
	}
	return Vector{
		Valence:   maxV + minV,
		Arousal:   maxA + minA,
		Dominance: maxD + minD,
	}
}
