package engine

import (
	"math"
	"math/rand/v2"
)

// Rand is the engine's deterministic random source. A seed fully determines
// the sequence. Fork derives independent sub-streams so unrelated code paths
// never share a counter.
type Rand struct {
	seed uint64
	salt uint64
	r    *rand.Rand
}

// NewRand returns a source seeded by a 32-bit seed.
func NewRand(seed uint32) *Rand {
	return newRand(uint64(seed), 0)
}

func newRand(seed, salt uint64) *Rand {
	return &Rand{seed: seed, salt: salt, r: rand.New(rand.NewPCG(seed, salt))}
}

// ForDay returns the sub-stream used to step day `day` of a run seeded with
// `seed`. Stepping day d is reproducible without replaying days 0..d-1.
func ForDay(seed uint32, day int) *Rand {
	return newRand(uint64(seed), dayStreamSalt^uint64(int64(day)))
}

const dayStreamSalt = 0x9E3779B97F4A7C15

// Fork derives an independent stream from this source's seed and a salt.
// It does not advance the parent.
func (g *Rand) Fork(salt uint64) *Rand {
	return newRand(g.seed^(salt*0xBF58476D1CE4E5B9), g.salt+salt+1)
}

// Float64 returns a float in [0,1).
func (g *Rand) Float64() float64 { return g.r.Float64() }

// Intn returns an int in [0,n). n must be > 0.
func (g *Rand) Intn(n int) int { return g.r.IntN(n) }

// Chance reports true with probability p.
func (g *Rand) Chance(p float64) bool { return g.Float64() < p }

// Normal draws a standard normal variate via Box-Muller from two uniform draws.
func (g *Rand) Normal() float64 {
	u, v := 0.0, 0.0
	for u == 0 {
		u = g.Float64()
	}
	for v == 0 {
		v = g.Float64()
	}
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}

// Pick returns a uniformly chosen element. xs must be non-empty.
func Pick[T any](g *Rand, xs []T) T {
	return xs[g.Intn(len(xs))]
}
