package panning

import "sort"

// Hash computes the Jenkins one-at-a-time hash of s.
//
// This hash was chosen because it is a well-known, trivially portable
// non-cryptographic string hash: independent clients implementing it over the
// same roster converge on the same ordering without exchanging any state.
func Hash(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h += uint32(s[i])
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}

// Position returns the stereo panning value in [-1, 1] for the participant at
// the given index within a hash-sorted roster of the given total size.
//
// A single participant is centered. For larger rosters the leftmost
// participant sits at -(total-1)/(total+1) and the rest are spaced evenly up
// to the mirrored right edge, so the sum of all positions is always zero.
func Position(index, total int) float64 {
	if total <= 1 {
		return 0
	}
	position := -float64(total-1) / float64(total+1)
	delta := -2 * position / float64(total-1)
	return position + delta*float64(index)
}

// Order returns the user identifiers sorted by ascending Hash value.
//
// Ties (identical hashes for distinct identifiers) fall back to lexicographic
// order so the result stays deterministic.
func Order(ids []string) []string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		hi, hj := Hash(sorted[i]), Hash(sorted[j])
		if hi != hj {
			return hi < hj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

// Allocate computes the panning value for every identifier in ids.
//
// The returned map is keyed by identifier. Allocation is independent of the
// order of ids; only roster membership matters.
func Allocate(ids []string) map[string]float64 {
	sorted := Order(ids)
	out := make(map[string]float64, len(sorted))
	for i, id := range sorted {
		out[id] = Position(i, len(sorted))
	}
	return out
}
