package sensor

import (
	"math/rand/v2"
	"time"
)

// seedMixer decorrelates the two PCG words derived from one seed.
const seedMixer = 0x9e3779b97f4a7c15

// NewSource returns a PCG-backed source. A zero seed uses the wall clock.
// The returned source is not safe for concurrent use; give each Simulator its own.
func NewSource(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // Simulation seed, not a secret.
	}

	return rand.New(rand.NewPCG(seed, seed^seedMixer)) //nolint:gosec // Simulation only.
}

// Sources derives n independent sources from one seed.
func Sources(seed uint64, n int) []*rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // Simulation seed, not a secret.
	}

	sources := make([]*rand.Rand, n)
	for i := range sources {
		sources[i] = NewSource(seed + uint64(i)*seedMixer) //nolint:gosec // i is small and non-negative.
	}

	return sources
}
