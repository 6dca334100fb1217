package extract

// Alignment scoring for the adapter probe.  The probe is short, so a
// simple linear gap penalty is sufficient.
const (
	matchScore    = 2
	mismatchScore = -1
	gapScore      = -2
)

// ProbeMatch is the best local alignment of the adapter probe against
// one read-end window.
type ProbeMatch struct {
	// Score is the Smith-Waterman alignment score.
	Score int
	// End is the window offset just past the last aligned base; the
	// barcode window begins here.
	End int
}

// alignProbe computes the best local alignment of probe against
// window.  Ties on score prefer the smallest end offset, keeping the
// result deterministic.
func alignProbe(probe, window string) ProbeMatch {
	if len(probe) == 0 || len(window) == 0 {
		return ProbeMatch{}
	}
	prev := make([]int, len(window)+1)
	curr := make([]int, len(window)+1)
	best := ProbeMatch{}
	for i := 1; i <= len(probe); i++ {
		curr[0] = 0
		for j := 1; j <= len(window); j++ {
			s := mismatchScore
			if probe[i-1] == window[j-1] {
				s = matchScore
			}
			v := prev[j-1] + s
			if g := prev[j] + gapScore; g > v {
				v = g
			}
			if g := curr[j-1] + gapScore; g > v {
				v = g
			}
			if v < 0 {
				v = 0
			}
			curr[j] = v
			if v > best.Score {
				best = ProbeMatch{Score: v, End: j}
			}
		}
		prev, curr = curr, prev
	}
	return best
}
