package turn

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Digest returns the hex blake2b-256 digest of s's canonical JSON encoding.
// Two snapshots with equal digests are equal board states; the static map
// is excluded.
//
// Postcondition: Returns a 64-character hex string or a non-nil error.
func Digest(s *world.Snapshot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot for digest: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Replay re-resolves a recorded input log from initial and returns every
// turn's result. o must be freshly built with the seed of the recorded
// match; the replay is then identical to the original run.
//
// Precondition: initial must not be nil.
// Postcondition: len(results) <= len(log); replay stops early if the game ends.
func Replay(o *Orchestrator, initial *world.Snapshot, log []Input) []Result {
	results := make([]Result, 0, len(log))
	snap := initial
	for _, in := range log {
		if snap.GameOver {
			break
		}
		res := o.Resolve(snap, in)
		results = append(results, res)
		snap = res.Snapshot
	}
	return results
}
