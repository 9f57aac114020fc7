// Package stats holds the random variate generators used by the route bandit.
package stats

import (
	"math"
	"math/rand"
	"sync"
)

// Source yields uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

// NewSource returns a seeded Source safe for concurrent use.
func NewSource(seed int64) Source {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// Sampler draws from Normal, Gamma and Beta distributions on top of a Source.
type Sampler struct {
	src Source
}

func NewSampler(src Source) *Sampler {
	return &Sampler{src: src}
}

// uniform returns a draw in (0, 1); zero would break the logarithms below.
func (s *Sampler) uniform() float64 {
	for {
		if u := s.src.Float64(); u > 0 {
			return u
		}
	}
}

// Normal draws a standard normal variate with the Box-Muller transform.
func (s *Sampler) Normal() float64 {
	u1 := s.uniform()
	u2 := s.uniform()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Gamma draws from Gamma(shape, 1) using Marsaglia-Tsang.
// Shapes below one are boosted: Gamma(a) = Gamma(a+1) * U^(1/a).
func (s *Sampler) Gamma(shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		return s.Gamma(shape+1) * math.Pow(s.uniform(), 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		var x, v float64
		for v <= 0 {
			x = s.Normal()
			v = 1 + c*x
		}
		v = v * v * v
		u := s.uniform()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Beta draws from Beta(alpha, beta) as X/(X+Y) with X~Gamma(alpha), Y~Gamma(beta).
func (s *Sampler) Beta(alpha, beta float64) float64 {
	x := s.Gamma(alpha)
	y := s.Gamma(beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}
