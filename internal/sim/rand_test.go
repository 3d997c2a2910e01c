package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandDeterministic(t *testing.T) {
	a := NewRand(42)
	b := NewRand(42)
	for i := 0; i < 1000; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}
}

func TestRandReset(t *testing.T) {
	r := NewRand(7)
	first := make([]float64, 10)
	for i := range first {
		first[i] = r.Float64()
	}
	r.Reset(7)
	for i := range first {
		assert.Equal(t, first[i], r.Float64())
	}
}

func TestRandRanges(t *testing.T) {
	r := NewRand(1)
	for i := 0; i < 1000; i++ {
		u := r.Float64()
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 1.0)

		v := r.Uniform(2, 5)
		assert.GreaterOrEqual(t, v, 2.0)
		assert.Less(t, v, 5.0)
	}
}

func TestNormConsumesTwoDraws(t *testing.T) {
	a := NewRand(99)
	b := NewRand(99)

	a.Norm()
	b.Float64()
	b.Float64()

	// after one Norm vs two uniforms the streams must line up again
	require.Equal(t, b.Float64(), a.Float64())
}

func TestNormRoughlyStandard(t *testing.T) {
	r := NewRand(2024)
	n := 20000
	sum, sumSq := 0.0, 0.0
	for i := 0; i < n; i++ {
		x := r.Norm()
		sum += x
		sumSq += x * x
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, 1, variance, 0.1)
}
