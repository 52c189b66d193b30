package draw

import (
	"math/rand/v2"

	"fairdraw/internal/entry"
)

// selectWinners picks up to count distinct identities from the weighted pool
// without replacement. Each round one entry is drawn with probability
// proportional to its weight, then removed, so a heavy entry cannot win
// twice. The rng is seeded by the caller so the pick is reproducible.
func selectWinners(pool []entry.WeightedEntry, count int, rng *rand.Rand) []string {
	remaining := make([]entry.WeightedEntry, len(pool))
	copy(remaining, pool)

	if count > len(remaining) {
		count = len(remaining)
	}

	winners := make([]string, 0, count)
	for len(winners) < count {
		total := 0
		for _, e := range remaining {
			total += e.Weight
		}
		if total <= 0 {
			break
		}

		pick := rng.IntN(total)
		idx := 0
		for i, e := range remaining {
			pick -= e.Weight
			if pick < 0 {
				idx = i
				break
			}
		}

		winners = append(winners, remaining[idx].IdentityID)
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return winners
}
