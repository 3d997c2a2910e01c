package sim

import (
	"math"
	"math/rand"
)

// Rand is the single randomness source for a feed's stochastic models.
// Given the same seed and the same call sequence it produces the same
// output sequence. Not safe for concurrent use; each feed owns one.
type Rand struct {
	seed int64
	rng  *rand.Rand
}

// NewRand builds a deterministic source from seed.
func NewRand(seed int64) *Rand {
	return &Rand{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed the source was last initialized with.
func (r *Rand) Seed() int64 { return r.seed }

// Float64 returns a uniform value in [0, 1).
func (r *Rand) Float64() float64 { return r.rng.Float64() }

// Uniform returns a uniform value in [lo, hi).
func (r *Rand) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*r.rng.Float64()
}

// Intn returns a uniform int in [0, n). n must be > 0.
func (r *Rand) Intn(n int) int { return r.rng.Intn(n) }

// Norm returns a standard normal sample via Box-Muller, consuming exactly
// two uniform draws per call so the draw sequence stays reproducible.
func (r *Rand) Norm() float64 {
	u1 := r.rng.Float64()
	u2 := r.rng.Float64()
	if u1 < 1e-12 {
		u1 = 1e-12
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Reset reinitializes the sequence from seed.
func (r *Rand) Reset(seed int64) {
	r.seed = seed
	r.rng = rand.New(rand.NewSource(seed))
}
