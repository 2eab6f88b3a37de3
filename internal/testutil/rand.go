package testutil

import "math/rand/v2"

// Seed is the default seed for reproducible random selection in tests.
const Seed uint64 = 0x5e7

// NewRand returns a PCG-backed generator seeded from seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
