// Package rng provides the shared random source for the simulation's
// stochastic rollers (fortune, misfortune, awakening, births). A single
// seeded source keeps runs reproducible under the same seed.
package rng

import (
	"math/rand"
	"sync"
)

// Source wraps a seeded math/rand source behind a mutex so the parallel
// phases can roll without racing.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a source from a seed.
func New(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// Float returns a float64 in [0, 1).
func (s *Source) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Intn returns an int in [0, n). n must be > 0.
func (s *Source) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Between returns an int in [lo, hi] inclusive. lo must be <= hi.
func (s *Source) Between(lo, hi int) int {
	if lo >= hi {
		return lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Intn(hi-lo+1)
}

// Chance rolls a Bernoulli with probability p.
func (s *Source) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.Float() < p
}

// WeightedIndex picks an index proportionally to weights. Non-positive
// weights are treated as zero. Returns -1 when nothing is pickable.
func (s *Source) WeightedIndex(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	roll := s.Float() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		roll -= w
		if roll < 0 {
			return i
		}
	}
	return len(weights) - 1
}

// Shuffle permutes the slice in place.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(n, swap)
}
