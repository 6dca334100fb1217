// Package editdist computes Levenshtein edit distances between short
// nucleotide sequences such as cell barcodes and UMIs.  Distances are
// symmetric and count insertions, deletions, and substitutions, each
// with unit cost.
package editdist

const inf = 1 << 30

// Distance returns the Levenshtein distance between a and b.
func Distance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d := prev[j-1] + cost
			if v := prev[j] + 1; v < d {
				d = v
			}
			if v := curr[j-1] + 1; v < d {
				d = v
			}
			curr[j] = d
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// DistanceWithin returns the Levenshtein distance between a and b if it
// is at most max, along with true.  If the distance exceeds max it
// returns 0 and false.  The computation is banded: cells more than max
// off the diagonal are never filled in, so a call costs
// O(min(len(a), len(b)) * max) rather than O(len(a) * len(b)).
func DistanceWithin(a, b string, max int) (int, bool) {
	if max < 0 {
		return 0, false
	}
	if d := len(a) - len(b); d > max || -d > max {
		return 0, false
	}
	if a == b {
		return 0, true
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		if j <= max {
			prev[j] = j
		} else {
			prev[j] = inf
		}
	}
	for i := 1; i <= len(a); i++ {
		lo := i - max
		if lo < 1 {
			lo = 1
		}
		hi := i + max
		if hi > len(b) {
			hi = len(b)
		}
		best := inf
		if i <= max {
			curr[0] = i
			best = i
		} else {
			curr[0] = inf
		}
		if lo > 1 {
			curr[lo-1] = inf
		}
		for j := lo; j <= hi; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d := prev[j-1] + cost
			if v := prev[j] + 1; v < d {
				d = v
			}
			if v := curr[j-1] + 1; v < d {
				d = v
			}
			curr[j] = d
			if d < best {
				best = d
			}
		}
		if hi < len(b) {
			curr[hi+1] = inf
		}
		// Every cell in the band exceeds max, so the final distance
		// must as well.
		if best > max {
			return 0, false
		}
		prev, curr = curr, prev
	}
	if d := prev[len(b)]; d <= max {
		return d, true
	}
	return 0, false
}
