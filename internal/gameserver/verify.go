package gameserver

import (
	"fmt"

	"github.com/cory-johannsen/enclaves/internal/game/turn"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Verify replays a journaled match on a fresh engine built from seed and
// compares each resulting snapshot with its recorded digest.
//
// Precondition: len(digests) == len(log).
// Postcondition: Returns the turn number of the first mismatch, or 0 when
// every turn reproduces.
func Verify(factory Factory, seed uint64, initial *world.Snapshot, log []turn.Input, digests []string) (int, error) {
	if len(digests) != len(log) {
		return 0, fmt.Errorf("verify: %d inputs but %d digests", len(log), len(digests))
	}
	eng, err := factory(seed)
	if err != nil {
		return 0, fmt.Errorf("building replay engine: %w", err)
	}
	defer eng.Close()

	results := turn.Replay(eng.Orchestrator, initial, log)
	if len(results) < len(log) {
		return initial.Turn + len(results), fmt.Errorf("verify: game ended after %d of %d turns", len(results), len(log))
	}
	for i, res := range results {
		got, err := turn.Digest(res.Snapshot)
		if err != nil {
			return 0, err
		}
		if got != digests[i] {
			return initial.Turn + i, nil
		}
	}
	return 0, nil
}
