package whitelist

import (
	"github.com/grailbio/singlecell/editdist"
)

// Corrector maps uncorrected barcodes onto whitelist entries by
// bounded edit-distance search.  A Corrector holds only immutable
// state and is safe for concurrent use.
type Corrector struct {
	wl     *Whitelist
	maxED  int
	minGap int
	// cap bounds every distance computation: entries farther than
	// maxED+minGap from the candidate can never change the outcome.
	cap int
}

// NewCorrector returns a Corrector enforcing the given maximum edit
// distance and minimum best/second-best gap.
func NewCorrector(wl *Whitelist, maxED, minGap int) *Corrector {
	return &Corrector{wl: wl, maxED: maxED, minGap: minGap, cap: maxED + minGap}
}

// Correct resolves bc to a whitelist entry.  It returns the corrected
// barcode, the edit distance to it, and whether the correction was
// accepted.  The candidate is accepted iff the nearest entry is within
// the maximum edit distance and strictly closer than the second
// nearest by at least the minimum gap; equidistant nearest entries are
// always ambiguous.  A barcode that is itself a whitelist entry
// corrects to itself at distance 0, which makes correction idempotent.
func (c *Corrector) Correct(bc string, stats *CorrectionStats) (string, int, bool) {
	stats.Total++
	if c.wl.Contains(bc) {
		stats.Accepted++
		stats.Exact++
		stats.edHist(0)
		return bc, 0, true
	}
	const none = 1 << 30
	best, second := none, none
	bestIdx := -1
	for i, entry := range c.wl.entries {
		d, ok := editdist.DistanceWithin(bc, entry, c.cap)
		if !ok {
			continue
		}
		switch {
		case d < best:
			best, second = d, best
			bestIdx = i
		case d < second:
			second = d
		}
	}
	if bestIdx < 0 || best > c.maxED {
		stats.Rejected++
		return "", 0, false
	}
	if second != none && second-best < c.minGap {
		stats.Rejected++
		return "", 0, false
	}
	if second == best {
		// Tie: two entries equally close.
		stats.Rejected++
		return "", 0, false
	}
	stats.Accepted++
	stats.edHist(best)
	return c.wl.entries[bestIdx], best, true
}

// CorrectionStats aggregates per-sample correction counters.
type CorrectionStats struct {
	// Total counts every correction attempt; Accepted and Rejected
	// partition it.
	Total    int
	Accepted int
	Rejected int
	// Exact counts candidates that were already whitelist entries.
	Exact int
	// EDHist[d] counts accepted corrections at edit distance d.
	// Distances beyond the last bucket accumulate there.
	EDHist [8]int
}

func (s *CorrectionStats) edHist(d int) {
	if d >= len(s.EDHist) {
		d = len(s.EDHist) - 1
	}
	s.EDHist[d]++
}

// Merge adds the field values of the two stats and returns the result.
func (s CorrectionStats) Merge(o CorrectionStats) CorrectionStats {
	s.Total += o.Total
	s.Accepted += o.Accepted
	s.Rejected += o.Rejected
	s.Exact += o.Exact
	for i, n := range o.EDHist {
		s.EDHist[i] += n
	}
	return s
}

// AcceptedRate returns the fraction of attempts that were accepted.
func (s CorrectionStats) AcceptedRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Total)
}
