package fastq_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/singlecell/encoding/fastq"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, in string) ([]fastq.Read, *fastq.Scanner) {
	sc := fastq.NewScanner(strings.NewReader(in))
	var (
		reads []fastq.Read
		r     fastq.Read
	)
	for sc.Scan(&r) {
		reads = append(reads, r)
	}
	return reads, sc
}

func TestScanner(t *testing.T) {
	in := "@read1 runid=xyz\nACGT\n+\nIIII\n@read2\nGGCC\n+\n!!!!\n"
	reads, sc := scanAll(t, in)
	assert.NoError(t, sc.Err())
	assert.Equal(t, 0, sc.Malformed())
	assert.Equal(t, []fastq.Read{
		{ID: "read1", Seq: "ACGT", Qual: "IIII"},
		{ID: "read2", Seq: "GGCC", Qual: "!!!!"},
	}, reads)
}

func TestScannerSkipsLengthMismatch(t *testing.T) {
	in := "@read1\nACGT\n+\nIII\n@read2\nGGCC\n+\nJJJJ\n"
	reads, sc := scanAll(t, in)
	assert.NoError(t, sc.Err())
	assert.Equal(t, 1, sc.Malformed())
	assert.Equal(t, 1, len(reads))
	assert.Equal(t, "read2", reads[0].ID)
}

func TestScannerTruncated(t *testing.T) {
	in := "@read1\nACGT\n+\nIIII\n@read2\nGGCC\n"
	reads, sc := scanAll(t, in)
	assert.NoError(t, sc.Err())
	assert.Equal(t, 1, sc.Malformed())
	assert.Equal(t, 1, len(reads))
}

func TestScannerInvalid(t *testing.T) {
	_, sc := scanAll(t, "read1\nACGT\n+\nIIII\n")
	assert.Equal(t, fastq.ErrInvalid, sc.Err())

	_, sc = scanAll(t, "@read1\nACGT\nIIII\nACGT\n")
	assert.Equal(t, fastq.ErrInvalid, sc.Err())
}

// Production inputs arrive gzipped; the scanner must behave
// identically over a decompressing reader.
func TestScannerGzip(t *testing.T) {
	in := "@read1\nACGT\n+\nIIII\n@read2\nGGCC\n+\n!!!!\n"
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(in))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	sc := fastq.NewScanner(zr)
	var (
		reads []fastq.Read
		r     fastq.Read
	)
	for sc.Scan(&r) {
		reads = append(reads, r)
	}
	assert.NoError(t, sc.Err())
	assert.Equal(t, 2, len(reads))
	assert.Equal(t, "read2", reads[1].ID)
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := fastq.NewWriter(&buf)
	assert.NoError(t, w.Write(&fastq.Read{ID: "r", Seq: "ACGT", Qual: "IIII"}))
	assert.NoError(t, w.Flush())
	assert.Equal(t, "@r\nACGT\n+\nIIII\n", buf.String())

	reads, sc := scanAll(t, buf.String())
	assert.NoError(t, sc.Err())
	assert.Equal(t, 1, len(reads))
	assert.Equal(t, "r", reads[0].ID)
}
