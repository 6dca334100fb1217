package whitelist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// barcodeFor deterministically encodes i as a 16bp barcode.
func barcodeFor(i int) string {
	const bases = "ACGT"
	b := make([]byte, 16)
	for j := range b {
		b[len(b)-1-j] = bases[i%4]
		i /= 4
	}
	return string(b)
}

func TestCounterSorted(t *testing.T) {
	c := NewCounter()
	for i := 0; i < 3; i++ {
		c.Add("AAAA")
	}
	c.Add("CCCC")
	c.Add("GGGG")
	c.Add("CCCC")
	assert.Equal(t, 3, c.Distinct())
	assert.Equal(t, 6, c.Total())
	assert.Equal(t, []BarcodeCount{
		{"AAAA", 3}, {"CCCC", 2}, {"GGGG", 1},
	}, c.Sorted())
}

func TestCounterMerge(t *testing.T) {
	a, b := NewCounter(), NewCounter()
	a.Add("AAAA")
	b.Add("AAAA")
	b.Add("TTTT")
	a.Merge(b)
	assert.Equal(t, 3, a.Total())
	assert.Equal(t, []BarcodeCount{{"AAAA", 2}, {"TTTT", 1}}, a.Sorted())
}

// A distribution with a clear knee at rank ~500 must select a
// whitelist within 10% of 500 cells under the default quantile rule.
func TestKneeQuantile(t *testing.T) {
	c := NewCounter()
	for i := 0; i < 500; i++ {
		bc := barcodeFor(i)
		for n := 0; n < 1000-i; n++ {
			c.Add(bc)
		}
	}
	// Background noise: thousands of barcodes with a handful of reads.
	for i := 500; i < 4500; i++ {
		bc := barcodeFor(i)
		for n := 0; n < 1+i%5; n++ {
			c.Add(bc)
		}
	}
	cells, err := SelectCells(c.Sorted(), KneeOpts{Method: KneeQuantile, ExpectedCells: 500})
	require.NoError(t, err)
	assert.True(t, len(cells) >= 450 && len(cells) <= 550,
		"expected ~500 cells, got %d", len(cells))
}

func TestKneeDistance(t *testing.T) {
	var ranked []BarcodeCount
	for i := 0; i < 100; i++ {
		ranked = append(ranked, BarcodeCount{barcodeFor(i), 1000})
	}
	for i := 100; i < 1000; i++ {
		ranked = append(ranked, BarcodeCount{barcodeFor(i), 10})
	}
	cells, err := SelectCells(ranked, KneeOpts{Method: KneeDistance})
	require.NoError(t, err)
	assert.True(t, len(cells) >= 95 && len(cells) <= 110,
		"expected the elbow near rank 100, got %d", len(cells))
}

func TestKneeOverrides(t *testing.T) {
	var ranked []BarcodeCount
	for i := 0; i < 100; i++ {
		ranked = append(ranked, BarcodeCount{barcodeFor(i), 100 - i})
	}

	cells, err := SelectCells(ranked, KneeOpts{CellCount: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, len(cells))

	cells, err = SelectCells(ranked, KneeOpts{CellCount: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, len(cells))

	cells, err = SelectCells(ranked, KneeOpts{ReadCountThreshold: 91})
	require.NoError(t, err)
	assert.Equal(t, 10, len(cells))

	_, err = SelectCells(ranked, KneeOpts{CellCount: 10, ReadCountThreshold: 5})
	assert.Error(t, err)

	_, err = SelectCells(nil, KneeOpts{})
	assert.Error(t, err)
}

func TestWhitelistNew(t *testing.T) {
	w, err := New([]string{"acgt", "TTTT"})
	require.NoError(t, err)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 4, w.BarcodeLen())
	assert.True(t, w.Contains("ACGT"))
	assert.False(t, w.Contains("AAAA"))

	_, err = New(nil)
	assert.Error(t, err)
	_, err = New([]string{"ACGT", "ACG"})
	assert.Error(t, err)
	_, err = New([]string{"ACGT", "ACGT"})
	assert.Error(t, err)
	_, err = New([]string{"ACGN"})
	assert.Error(t, err)
}

func TestWhitelistLoadWrite(t *testing.T) {
	in := "# sample whitelist\nAAAA\nCCCC\n\nGGGG\n"
	w, err := Load(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA", "CCCC", "GGGG"}, w.Entries())

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf))
	assert.Equal(t, "AAAA\nCCCC\nGGGG\n", buf.String())
}

func TestCorrectorAccept(t *testing.T) {
	// Candidate at distance 1 from the best entry, distance 4 from the
	// second best: accepted with max_ed=2, min_ed_gap=2.
	w, err := New([]string{"AAAACCCCGGGGTTTA", "AAAACCCCGGGGAAAA"})
	require.NoError(t, err)
	c := NewCorrector(w, 2, 2)

	var stats CorrectionStats
	got, ed, ok := c.Correct("AAAACCCCGGGGTTTT", &stats)
	assert.True(t, ok)
	assert.Equal(t, "AAAACCCCGGGGTTTA", got)
	assert.Equal(t, 1, ed)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 1, stats.EDHist[1])
}

func TestCorrectorInsufficientGap(t *testing.T) {
	// Entries at distance 2 and 3: gap 1 < 2, rejected.
	w, err := New([]string{"AAAAAAAAAAAAAACC", "AAAAAAAAAAAAAGGG"})
	require.NoError(t, err)
	c := NewCorrector(w, 2, 2)

	var stats CorrectionStats
	_, _, ok := c.Correct("AAAAAAAAAAAAAAAA", &stats)
	assert.False(t, ok)
	assert.Equal(t, 1, stats.Rejected)
}

func TestCorrectorTie(t *testing.T) {
	// Two entries at equal distance are always ambiguous, even with a
	// zero gap requirement.
	w, err := New([]string{"AAAAAAAAAAAAAAAC", "AAAAAAAAAAAAAAAG"})
	require.NoError(t, err)
	c := NewCorrector(w, 2, 0)

	var stats CorrectionStats
	_, _, ok := c.Correct("AAAAAAAAAAAAAAAA", &stats)
	assert.False(t, ok)
}

func TestCorrectorTooFar(t *testing.T) {
	w, err := New([]string{"AAAAAAAAAAAAAAAA"})
	require.NoError(t, err)
	c := NewCorrector(w, 2, 2)

	var stats CorrectionStats
	_, _, ok := c.Correct("TTTTTTTTTTTTTTTT", &stats)
	assert.False(t, ok)
	assert.Equal(t, 1, stats.Rejected)
}

// A whitelist entry corrects to itself even when another entry is
// nearby, which makes re-correcting an already-corrected stream a
// no-op.
func TestCorrectorIdempotent(t *testing.T) {
	w, err := New([]string{"AAAAAAAAAAAAAAAC", "AAAAAAAAAAAAAAAG"})
	require.NoError(t, err)
	c := NewCorrector(w, 2, 2)

	var stats CorrectionStats
	for _, entry := range w.Entries() {
		got, ed, ok := c.Correct(entry, &stats)
		assert.True(t, ok)
		assert.Equal(t, entry, got)
		assert.Equal(t, 0, ed)
	}
	assert.Equal(t, 2, stats.Exact)
}

func TestCorrectorDeterministic(t *testing.T) {
	w, err := New([]string{"AAAACCCCGGGGTTTA", "AAAACCCCGGGGAAAA", "TTTTGGGGCCCCAAAA"})
	require.NoError(t, err)
	c := NewCorrector(w, 2, 1)

	var first string
	var firstOK bool
	for i := 0; i < 10; i++ {
		var stats CorrectionStats
		got, _, ok := c.Correct("AAAACCCCGGGGTTTT", &stats)
		if i == 0 {
			first, firstOK = got, ok
			continue
		}
		assert.Equal(t, first, got)
		assert.Equal(t, firstOK, ok)
	}
}

func TestCorrectionStatsMerge(t *testing.T) {
	a := CorrectionStats{Total: 4, Accepted: 3, Rejected: 1, Exact: 2}
	a.EDHist[1] = 1
	b := CorrectionStats{Total: 2, Accepted: 1, Rejected: 1}
	b.EDHist[1] = 1
	m := a.Merge(b)
	assert.Equal(t, 6, m.Total)
	assert.Equal(t, 4, m.Accepted)
	assert.Equal(t, 2, m.EDHist[1])
	assert.InDelta(t, 4.0/6.0, m.AcceptedRate(), 1e-9)
}
