package whitelist

import (
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/log"
	"gonum.org/v1/gonum/stat"
)

// KneeMethod selects the knee-point heuristic used to split true cell
// barcodes from background noise on the rank/frequency curve.
type KneeMethod int

const (
	// KneeQuantile applies the BLAZE rule: the read-count threshold is
	// the 95th percentile of the top expected-cells counts, divided by
	// 20.  This is the production default.
	KneeQuantile KneeMethod = iota
	// KneeDistance picks the rank with maximum distance from the line
	// joining the first and last points of the count curve.
	KneeDistance
)

// KneeOpts configures whitelist selection.  CellCount and
// ReadCountThreshold are explicit overrides; when either is set the
// knee method is not consulted.
type KneeOpts struct {
	Method        KneeMethod
	ExpectedCells int
	// CellCount > 0 takes the top N ranked barcodes outright.
	CellCount int
	// ReadCountThreshold > 0 takes every barcode with at least that
	// many reads.
	ReadCountThreshold int
}

// SelectCells chooses the whitelist entries from the rank-ordered
// tally.  The returned slice preserves rank order.
func SelectCells(ranked []BarcodeCount, opts KneeOpts) ([]BarcodeCount, error) {
	if len(ranked) == 0 {
		return nil, fmt.Errorf("whitelist: no barcodes observed")
	}
	if opts.CellCount > 0 && opts.ReadCountThreshold > 0 {
		return nil, fmt.Errorf("whitelist: cell count and read count threshold are mutually exclusive")
	}
	switch {
	case opts.CellCount > 0:
		n := opts.CellCount
		if n > len(ranked) {
			n = len(ranked)
		}
		log.Printf("whitelist: taking top %d cells by read count", n)
		return ranked[:n], nil
	case opts.ReadCountThreshold > 0:
		return aboveThreshold(ranked, float64(opts.ReadCountThreshold)), nil
	case opts.Method == KneeDistance:
		idx := kneeDistance(ranked)
		log.Printf("whitelist: distance knee at rank %d", idx+1)
		return ranked[:idx+1], nil
	default:
		if opts.ExpectedCells <= 0 {
			return nil, fmt.Errorf("whitelist: quantile knee requires an expected cell count")
		}
		thr := kneeQuantile(ranked, opts.ExpectedCells)
		log.Printf("whitelist: quantile knee read-count threshold %.1f", thr)
		return aboveThreshold(ranked, thr), nil
	}
}

func aboveThreshold(ranked []BarcodeCount, thr float64) []BarcodeCount {
	// ranked is in descending count order, so the cut is a prefix.
	i := sort.Search(len(ranked), func(i int) bool {
		return float64(ranked[i].Count) < thr
	})
	return ranked[:i]
}

// kneeQuantile returns the read-count threshold from the top
// expected-cells counts: quantile(0.95)/20.
func kneeQuantile(ranked []BarcodeCount, expectedCells int) float64 {
	n := expectedCells
	if n > len(ranked) {
		n = len(ranked)
	}
	top := make([]float64, n)
	for i := 0; i < n; i++ {
		// stat.Quantile wants ascending order.
		top[n-1-i] = float64(ranked[i].Count)
	}
	return stat.Quantile(0.95, stat.Empirical, top, nil) / 20
}

// kneeDistance returns the rank index farthest from the straight line
// between the first and last points of the count curve.
func kneeDistance(ranked []BarcodeCount) int {
	n := len(ranked)
	if n < 3 {
		return n - 1
	}
	x0, y0 := 0.0, float64(ranked[0].Count)
	dx, dy := float64(n-1), float64(ranked[n-1].Count)-y0
	norm := math.Hypot(dx, dy)
	bestIdx, bestDist := 0, -1.0
	for i := 0; i < n; i++ {
		px, py := float64(i)-x0, float64(ranked[i].Count)-y0
		dist := math.Abs(px*dy-py*dx) / norm
		if dist > bestDist {
			bestIdx, bestDist = i, dist
		}
	}
	return bestIdx
}
