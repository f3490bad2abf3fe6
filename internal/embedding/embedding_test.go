package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	a := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-6)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-6)
}

func TestCosineSimilarityFallbackVectors(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0.0}, []float32{0.0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, []float32{1}))
}

func TestMeanVector(t *testing.T) {
	mean := MeanVector([][]float32{{1, 1}, {3, 3}})
	assert.Equal(t, []float32{2, 2}, mean)
	assert.Nil(t, MeanVector(nil))
}
