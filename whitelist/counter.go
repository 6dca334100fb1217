// Package whitelist builds per-sample cell barcode whitelists from
// observed barcode frequencies and corrects uncorrected barcodes
// against them.
package whitelist

import "sort"

// BarcodeCount is one barcode with its observed read support.
type BarcodeCount struct {
	Barcode string
	Count   int
}

// Counter tallies high-quality uncorrected barcodes observed during
// extraction.  It is not threadsafe; workers keep their own Counter
// and merge at the aggregation boundary.
type Counter struct {
	counts map[string]int
	total  int
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add records one observation of bc.
func (c *Counter) Add(bc string) {
	c.counts[bc]++
	c.total++
}

// Merge folds other into c.
func (c *Counter) Merge(other *Counter) {
	for bc, n := range other.counts {
		c.counts[bc] += n
	}
	c.total += other.total
}

// Distinct returns the number of distinct barcodes observed.
func (c *Counter) Distinct() int { return len(c.counts) }

// Total returns the number of observations.
func (c *Counter) Total() int { return c.total }

// Sorted returns the tally in descending count order.  Ties break
// lexicographically so the rank ordering is deterministic.
func (c *Counter) Sorted() []BarcodeCount {
	out := make([]BarcodeCount, 0, len(c.counts))
	for bc, n := range c.counts {
		out = append(out, BarcodeCount{Barcode: bc, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Barcode < out[j].Barcode
	})
	return out
}
