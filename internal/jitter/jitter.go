// Package jitter computes per-step typing delays.
//
// Synthetic keystrokes emitted at a perfectly fixed period are easy for
// hosts to flag and occasionally get coalesced by USB stacks. Each delay
// is the requested base plus a symmetric random offset of at most half the
// base, and never drops below MinDelay.
package jitter

import (
	"math/rand/v2"
	"sync"
	"time"
)

// MinDelay is the floor applied to every computed delay.
const MinDelay = time.Millisecond

// Parameters controls delay computation.
type Parameters struct {
	// Enabled turns on random jitter; when false delays are exactly base
	// (still floored at MinDelay).
	Enabled bool `json:"enabled"`

	// Ratio is the maximum jitter as a fraction of the base delay. Values
	// above 0.5 are clamped.
	Ratio float64 `json:"ratio"`

	// Seed makes the sequence reproducible. Zero picks a random seed.
	Seed uint64 `json:"seed"`
}

// DefaultParameters returns sensible defaults.
func DefaultParameters() Parameters {
	return Parameters{
		Enabled: true,
		Ratio:   0.5,
	}
}

// Model produces jittered delays. It is safe for concurrent use.
type Model struct {
	mu     sync.Mutex
	params Parameters
	rng    *rand.Rand
}

// New creates a Model.
func New(p Parameters) *Model {
	if p.Ratio < 0 {
		p.Ratio = 0
	}
	if p.Ratio > 0.5 {
		p.Ratio = 0.5
	}
	seed := p.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Model{
		params: p,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Fixed returns a Model that never jitters.
func Fixed() *Model {
	return New(Parameters{})
}

// Delay returns base adjusted by a random offset in [-ratio*base, +ratio*base].
func (m *Model) Delay(base time.Duration) time.Duration {
	d := base
	if m != nil && m.params.Enabled && m.params.Ratio > 0 && base > 0 {
		span := int64(float64(base) * m.params.Ratio)
		if span > 0 {
			m.mu.Lock()
			off := m.rng.Int64N(2*span+1) - span
			m.mu.Unlock()
			d = base + time.Duration(off)
		}
	}
	if d < MinDelay {
		d = MinDelay
	}
	return d
}

// Parameters returns the model's configuration.
func (m *Model) Parameters() Parameters {
	return m.params
}
