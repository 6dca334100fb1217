// Package extract scans raw nanopore reads for the adapter-flanked
// probe region and pulls out candidate cell barcodes and UMIs with
// their per-base qualities.
package extract

import (
	"github.com/grailbio/singlecell/encoding/fastq"
	"github.com/grailbio/singlecell/kit"
)

// Strand classifies a read by where the adapter probe was found.
type Strand int

const (
	// Unstranded reads have no acceptable probe match on either end, or
	// an ambiguous match on both.
	Unstranded Strand = iota
	// Forward reads carry the probe at the 5' end in sequencing
	// orientation.
	Forward
	// Reverse reads carry the probe at the 3' end; barcode and UMI are
	// extracted from the reverse complement.
	Reverse
)

func (s Strand) String() string {
	switch s {
	case Forward:
		return "+"
	case Reverse:
		return "-"
	}
	return "*"
}

// qualOffset is the Phred+33 encoding offset of FASTQ quality strings.
const qualOffset = 33

// probeSlack is how far into a read end the probe search extends past
// the probe length.  Adapters sit at the very end of a full-length
// read; the slack absorbs leading junk bases.
const probeSlack = 100

// A Candidate is an uncorrected barcode and UMI extracted from one
// read.  Sequences are reported in forward (barcode) orientation
// regardless of the read strand.
type Candidate struct {
	ReadID      string
	Barcode     string
	BarcodeQual string
	UMI         string
	UMIQual     string
	// HighQuality is set iff every barcode base meets the configured
	// minimum quality.  Only high-quality candidates feed whitelist
	// construction.
	HighQuality bool
	Strand      Strand
}

// Extractor locates the adapter probe in reads of one kit geometry.
// It is stateless and safe for concurrent use.
type Extractor struct {
	probe      string
	barcodeLen int
	umiLen     int
	minScore   int
	minQual    byte
	window     int
}

// New returns an Extractor for the given kit and configuration.  The
// configuration must already be validated.
func New(k kit.Kit, cfg kit.Config) *Extractor {
	probe := k.Probe(cfg.AdapterSuffixLen)
	return &Extractor{
		probe:      probe,
		barcodeLen: k.BarcodeLen,
		umiLen:     k.UMILen,
		minScore:   cfg.MinProbeScore,
		minQual:    byte(cfg.MinBarcodeQual),
		window:     len(probe) + probeSlack,
	}
}

// Extract aligns the probe against both ends of the read and, when a
// single end wins, extracts the fixed-width barcode+UMI window
// immediately downstream of the probe.  It returns the strand
// classification and, when ok, the candidate.  Reads with no
// acceptable match, an ambiguous match, or too few bases after the
// probe yield no candidate.
func (e *Extractor) Extract(r *fastq.Read, stats *Stats) (Candidate, Strand, bool) {
	stats.TotalReads++
	stats.TotalBases += int64(r.Len())

	fwdWin := r.Seq
	if len(fwdWin) > e.window {
		fwdWin = fwdWin[:e.window]
	}
	rcSeq := ReverseComplement(r.Seq)
	revWin := rcSeq
	if len(revWin) > e.window {
		revWin = revWin[:e.window]
	}
	fwd := alignProbe(e.probe, fwdWin)
	rev := alignProbe(e.probe, revWin)

	var (
		strand Strand
		match  ProbeMatch
		seq    string
		qual   string
	)
	switch {
	case fwd.Score >= e.minScore && fwd.Score > rev.Score:
		strand, match, seq, qual = Forward, fwd, r.Seq, r.Qual
		stats.FullLengthFwd++
	case rev.Score >= e.minScore && rev.Score > fwd.Score:
		strand, match, seq, qual = Reverse, rev, rcSeq, reverse(r.Qual)
		stats.FullLengthRev++
	default:
		// No match, or equally good matches on both ends.
		stats.Unstranded++
		return Candidate{}, Unstranded, false
	}

	start := match.End
	end := start + e.barcodeLen + e.umiLen
	if end > len(seq) {
		stats.ShortProbeWindow++
		return Candidate{}, strand, false
	}
	c := Candidate{
		ReadID:      r.ID,
		Barcode:     seq[start : start+e.barcodeLen],
		BarcodeQual: qual[start : start+e.barcodeLen],
		UMI:         seq[start+e.barcodeLen : end],
		UMIQual:     qual[start+e.barcodeLen : end],
		Strand:      strand,
	}
	c.HighQuality = minBaseQual(c.BarcodeQual) >= e.minQual
	stats.Candidates++
	if c.HighQuality {
		stats.HighQuality++
	} else {
		stats.LowQuality++
	}
	return c, strand, true
}

// minBaseQual returns the lowest Phred quality in qual.
func minBaseQual(qual string) byte {
	if len(qual) == 0 {
		return 0
	}
	min := qual[0]
	for i := 1; i < len(qual); i++ {
		if qual[i] < min {
			min = qual[i]
		}
	}
	if min < qualOffset {
		return 0
	}
	return min - qualOffset
}
