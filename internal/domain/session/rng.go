package session

// RNG is the deterministic generator driving word spawns. It is an
// xorshift64* kept deliberately self-contained: the sequence is part of
// the verification contract and must never drift between builds, which
// rules out math/rand (its algorithm is not pinned across Go releases).
type RNG struct {
	state uint64
}

// seedFallback replaces a zero seed, which would lock xorshift at zero.
const seedFallback = 0x9E3779B97F4A7C15

// NewRNG returns a generator seeded with seed.
func NewRNG(seed uint64) *RNG {
	if seed == 0 {
		seed = seedFallback
	}
	return &RNG{state: seed}
}

// Next returns the next 64-bit value in the sequence.
func (r *RNG) Next() uint64 {
	x := r.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	r.state = x
	return x * 0x2545F4914F6CDD1D
}

// Intn returns a value in [0, n). n must be positive.
func (r *RNG) Intn(n int) int {
	return int(r.Next() % uint64(n))
}
