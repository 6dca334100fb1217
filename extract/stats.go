package extract

// Stats aggregates per-sample extraction counters.  Workers each keep
// their own Stats and the results are merged at the aggregation
// boundary, so no counter is ever shared between goroutines.
type Stats struct {
	// TotalReads counts every scanned read, including unstranded ones.
	TotalReads int
	// TotalBases is the summed read length, for mean length reporting.
	TotalBases int64
	// FullLengthFwd and FullLengthRev count reads with a single
	// acceptable probe match on the respective end.
	FullLengthFwd int
	FullLengthRev int
	// Unstranded counts reads with no acceptable probe match, or an
	// ambiguous match on both ends.
	Unstranded int
	// ShortProbeWindow counts stranded reads with too few bases after
	// the probe to hold a barcode and UMI.
	ShortProbeWindow int
	// Candidates counts emitted barcode candidates; HighQuality and
	// LowQuality partition them by the barcode quality gate.
	Candidates  int
	HighQuality int
	LowQuality  int
	// MalformedRecords counts FASTQ records skipped during ingestion.
	MalformedRecords int
}

// Merge adds the field values of the two Stats and returns the result.
func (s Stats) Merge(o Stats) Stats {
	s.TotalReads += o.TotalReads
	s.TotalBases += o.TotalBases
	s.FullLengthFwd += o.FullLengthFwd
	s.FullLengthRev += o.FullLengthRev
	s.Unstranded += o.Unstranded
	s.ShortProbeWindow += o.ShortProbeWindow
	s.Candidates += o.Candidates
	s.HighQuality += o.HighQuality
	s.LowQuality += o.LowQuality
	s.MalformedRecords += o.MalformedRecords
	return s
}

// MeanReadLength returns the mean read length in bases, or 0 for an
// empty sample.
func (s Stats) MeanReadLength() float64 {
	if s.TotalReads == 0 {
		return 0
	}
	return float64(s.TotalBases) / float64(s.TotalReads)
}
