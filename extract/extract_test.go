package extract

import (
	"strings"
	"testing"

	"github.com/grailbio/singlecell/encoding/fastq"
	"github.com/grailbio/singlecell/kit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBarcode = "AAAACCCCGGGGTTTC"
	testUMI     = "ACGTACGTACGT"
)

func testExtractor(t *testing.T) *Extractor {
	k, err := kit.Lookup("3prime", "v3")
	require.NoError(t, err)
	return New(k, kit.DefaultConfig)
}

// fullLengthSeq builds a forward full-length read: probe, barcode,
// UMI, poly(T), cDNA.
func fullLengthSeq() string {
	return "CTTCCGATCT" + testBarcode + testUMI + strings.Repeat("T", 20) + "GATTACAGATTACA"
}

func qualFor(seq string, q byte) string {
	return strings.Repeat(string(q), len(seq))
}

func TestExtractForward(t *testing.T) {
	e := testExtractor(t)
	seq := fullLengthSeq()
	read := &fastq.Read{ID: "r1", Seq: seq, Qual: qualFor(seq, 'I')}

	var stats Stats
	c, strand, ok := e.Extract(read, &stats)
	assert.True(t, ok)
	assert.Equal(t, Forward, strand)
	assert.Equal(t, "r1", c.ReadID)
	assert.Equal(t, testBarcode, c.Barcode)
	assert.Equal(t, testUMI, c.UMI)
	assert.Equal(t, len(testBarcode), len(c.BarcodeQual))
	assert.Equal(t, len(testUMI), len(c.UMIQual))
	assert.True(t, c.HighQuality)
	assert.Equal(t, 1, stats.FullLengthFwd)
	assert.Equal(t, 0, stats.Unstranded)
	assert.Equal(t, 1, stats.HighQuality)
}

func TestExtractReverse(t *testing.T) {
	e := testExtractor(t)
	seq := ReverseComplement(fullLengthSeq())
	read := &fastq.Read{ID: "r2", Seq: seq, Qual: qualFor(seq, 'I')}

	var stats Stats
	c, strand, ok := e.Extract(read, &stats)
	assert.True(t, ok)
	assert.Equal(t, Reverse, strand)
	assert.Equal(t, testBarcode, c.Barcode)
	assert.Equal(t, testUMI, c.UMI)
	assert.Equal(t, 1, stats.FullLengthRev)
}

func TestExtractUnstranded(t *testing.T) {
	e := testExtractor(t)
	seq := strings.Repeat("A", 200)
	read := &fastq.Read{ID: "r3", Seq: seq, Qual: qualFor(seq, 'I')}

	var stats Stats
	_, strand, ok := e.Extract(read, &stats)
	assert.False(t, ok)
	assert.Equal(t, Unstranded, strand)
	assert.Equal(t, 1, stats.Unstranded)
	assert.Equal(t, 0, stats.Candidates)
}

func TestExtractAmbiguousBothEnds(t *testing.T) {
	e := testExtractor(t)
	// Perfect probe hits at both ends score identically, so the strand
	// cannot be determined.
	seq := "CTTCCGATCT" + strings.Repeat("G", 120) + ReverseComplement("CTTCCGATCT")
	read := &fastq.Read{ID: "r4", Seq: seq, Qual: qualFor(seq, 'I')}

	var stats Stats
	_, strand, ok := e.Extract(read, &stats)
	assert.False(t, ok)
	assert.Equal(t, Unstranded, strand)
	assert.Equal(t, 1, stats.Unstranded)
}

func TestExtractLowQuality(t *testing.T) {
	e := testExtractor(t)
	seq := fullLengthSeq()
	// One barcode base below the quality gate.
	qual := []byte(qualFor(seq, 'I'))
	qual[len("CTTCCGATCT")+3] = '#' // Phred 2
	read := &fastq.Read{ID: "r5", Seq: seq, Qual: string(qual)}

	var stats Stats
	c, _, ok := e.Extract(read, &stats)
	assert.True(t, ok)
	assert.False(t, c.HighQuality)
	assert.Equal(t, 1, stats.LowQuality)
	assert.Equal(t, 0, stats.HighQuality)
}

func TestExtractShortWindow(t *testing.T) {
	e := testExtractor(t)
	// Probe matches but the read ends before a full barcode+UMI window.
	seq := "CTTCCGATCT" + testBarcode[:8]
	read := &fastq.Read{ID: "r6", Seq: seq, Qual: qualFor(seq, 'I')}

	var stats Stats
	_, strand, ok := e.Extract(read, &stats)
	assert.False(t, ok)
	assert.Equal(t, Forward, strand)
	assert.Equal(t, 1, stats.ShortProbeWindow)
}

// Barcode width always equals the kit's configured width.
func TestExtractFixedWidth(t *testing.T) {
	for _, spec := range []string{"3prime:v2", "3prime:v3", "5prime:v1", "multiome:v1"} {
		k, err := kit.Parse(spec)
		require.NoError(t, err)
		e := New(k, kit.DefaultConfig)
		seq := "CTTCCGATCT" + testBarcode + testUMI + strings.Repeat("T", 30)
		read := &fastq.Read{ID: "r", Seq: seq, Qual: qualFor(seq, 'I')}
		var stats Stats
		c, _, ok := e.Extract(read, &stats)
		require.True(t, ok, "kit %s", spec)
		assert.Equal(t, k.BarcodeLen, len(c.Barcode), "kit %s", spec)
		assert.Equal(t, k.UMILen, len(c.UMI), "kit %s", spec)
	}
}

func TestStatsMerge(t *testing.T) {
	a := Stats{TotalReads: 2, TotalBases: 100, FullLengthFwd: 1, Unstranded: 1}
	b := Stats{TotalReads: 3, TotalBases: 200, FullLengthRev: 2, Candidates: 2, MalformedRecords: 1}
	m := a.Merge(b)
	assert.Equal(t, 5, m.TotalReads)
	assert.Equal(t, int64(300), m.TotalBases)
	assert.Equal(t, 1, m.FullLengthFwd)
	assert.Equal(t, 2, m.FullLengthRev)
	assert.Equal(t, 1, m.Unstranded)
	assert.Equal(t, 1, m.MalformedRecords)
	assert.Equal(t, 60.0, m.MeanReadLength())
}
