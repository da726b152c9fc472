// Package dice provides the randomness abstraction used by turn resolution.
//
// Every random decision in the engine (damage ranges, route chances, hazard
// spawns, mobile hazard drift) draws from a single Source so that a recorded
// seed plus order log replays a match exactly.
package dice

// Source is the randomness provider for the engine.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// chanceResolution is the granularity of Chance rolls.
const chanceResolution = 1_000_000

// Range returns a uniformly random integer in [lo, hi], inclusive of both bounds.
// Swapped bounds are normalised.
//
// Postcondition: lo <= result <= hi (after normalisation).
func Range(src Source, lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo == hi {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}

// Chance reports true with probability p.
// p <= 0 never consumes randomness and returns false; p >= 1 returns true likewise.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return src.Intn(chanceResolution) < int(p*chanceResolution)
}

// Pick returns a random index in [0, n), or -1 when n <= 0.
func Pick(src Source, n int) int {
	if n <= 0 {
		return -1
	}
	return src.Intn(n)
}
