package kit

import "fmt"

// Config collects the tunable parameters of a barcode/UMI resolution
// run.  All values are validated up front; processing never starts
// with an out-of-range configuration.
type Config struct {
	// AdapterSuffixLen is the length of the adapter suffix used as the
	// alignment probe against read ends.
	AdapterSuffixLen int
	// MinProbeScore is the minimum local-alignment score for a probe
	// match to be accepted.
	MinProbeScore int
	// MinBarcodeQual is the minimum per-base quality (Phred) required of
	// every barcode base for a candidate to count as high-quality.
	// Low-quality candidates are still corrected, but are excluded from
	// whitelist construction.
	MinBarcodeQual int
	// MaxBarcodeED is the maximum edit distance between an uncorrected
	// barcode and its nearest whitelist entry for correction to succeed.
	MaxBarcodeED int
	// MinBarcodeEDGap is the minimum difference between the edit
	// distances to the nearest and second-nearest whitelist entries.
	// A smaller gap is an ambiguous match and the read is rejected.
	MinBarcodeEDGap int
	// ExpectedCells is a rough prior on the number of cells in the
	// sample, used to bound the whitelist knee search.
	ExpectedCells int
	// UMIClusterED is the maximum edit distance between two UMIs for
	// them to be connected during deduplication clustering.
	UMIClusterED int
	// GenomicWindow is the window size (bp) used to synthesize a bin
	// identifier for reads aligned outside any annotated gene.
	GenomicWindow int
	// MaxGroupReads caps the number of reads clustered per
	// (barcode, bin) group; reads beyond the cap are reported as
	// subsampled.
	MaxGroupReads int
	// ExtractWorkers and ClusterWorkers bound the per-stage
	// parallelism.  Zero selects runtime.NumCPU.
	ExtractWorkers int
	ClusterWorkers int
}

// DefaultConfig mirrors the defaults of the production pipeline.
var DefaultConfig = Config{
	AdapterSuffixLen: 10,
	MinProbeScore:    14,
	MinBarcodeQual:   15,
	MaxBarcodeED:     2,
	MinBarcodeEDGap:  2,
	ExpectedCells:    500,
	UMIClusterED:     2,
	GenomicWindow:    1000,
	MaxGroupReads:    20000,
}

// Validate reports the first out-of-range parameter, if any.
func (c Config) Validate() error {
	switch {
	case c.AdapterSuffixLen <= 0:
		return fmt.Errorf("kit: adapter suffix length must be positive, got %d", c.AdapterSuffixLen)
	case c.MinProbeScore <= 0:
		return fmt.Errorf("kit: min probe score must be positive, got %d", c.MinProbeScore)
	case c.MinBarcodeQual < 0:
		return fmt.Errorf("kit: min barcode quality must be non-negative, got %d", c.MinBarcodeQual)
	case c.MaxBarcodeED < 0:
		return fmt.Errorf("kit: max barcode edit distance must be non-negative, got %d", c.MaxBarcodeED)
	case c.MinBarcodeEDGap < 0:
		return fmt.Errorf("kit: min barcode edit-distance gap must be non-negative, got %d", c.MinBarcodeEDGap)
	case c.ExpectedCells <= 0:
		return fmt.Errorf("kit: expected cell count must be positive, got %d", c.ExpectedCells)
	case c.UMIClusterED < 0:
		return fmt.Errorf("kit: UMI cluster edit distance must be non-negative, got %d", c.UMIClusterED)
	case c.GenomicWindow <= 0:
		return fmt.Errorf("kit: genomic window must be positive, got %d", c.GenomicWindow)
	case c.MaxGroupReads <= 0:
		return fmt.Errorf("kit: max reads per group must be positive, got %d", c.MaxGroupReads)
	case c.ExtractWorkers < 0:
		return fmt.Errorf("kit: extract worker count must be non-negative, got %d", c.ExtractWorkers)
	case c.ClusterWorkers < 0:
		return fmt.Errorf("kit: cluster worker count must be non-negative, got %d", c.ClusterWorkers)
	}
	return nil
}
