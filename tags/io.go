package tags

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/tsv"
)

const header = "#read_id\tCR\tCY\tUR\tUY\tCB\tUB\tgene"

// Writer emits one TSV row per read tag set.  The column layout is
// fixed and matched by Reader.
type Writer struct {
	w *tsv.Writer
}

// NewWriter constructs a Writer and emits the header row.
func NewWriter(w io.Writer) (*Writer, error) {
	tw := tsv.NewWriter(w)
	tw.WriteString(header)
	if err := tw.EndLine(); err != nil {
		return nil, err
	}
	return &Writer{w: tw}, nil
}

// Write appends one tag row.  Empty fields are written as "-".
func (w *Writer) Write(t ReadTags) error {
	w.w.WriteString(t.ReadID)
	w.w.WriteString(orDash(t.UncorrectedBarcode))
	w.w.WriteString(orDash(t.BarcodeQual))
	w.w.WriteString(orDash(t.UncorrectedUMI))
	w.w.WriteString(orDash(t.UMIQual))
	w.w.WriteString(orDash(t.CorrectedBarcode))
	w.w.WriteString(orDash(t.CorrectedUMI))
	w.w.WriteString(orDash(t.Gene))
	return w.w.EndLine()
}

// Flush flushes buffered rows.
func (w *Writer) Flush() error { return w.w.Flush() }

// Reader scans rows written by Writer.
type Reader struct {
	b    *bufio.Scanner
	line int
}

// NewReader constructs a Reader over r.
func NewReader(r io.Reader) *Reader {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{b: b}
}

// Read returns the next tag row, or io.EOF.
func (r *Reader) Read() (ReadTags, error) {
	for r.b.Scan() {
		r.line++
		text := strings.TrimSpace(r.b.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) != 8 {
			return ReadTags{}, fmt.Errorf("tags: line %d: want 8 columns, got %d", r.line, len(cols))
		}
		return ReadTags{
			ReadID:             cols[0],
			UncorrectedBarcode: unDash(cols[1]),
			BarcodeQual:        unDash(cols[2]),
			UncorrectedUMI:     unDash(cols[3]),
			UMIQual:            unDash(cols[4]),
			CorrectedBarcode:   unDash(cols[5]),
			CorrectedUMI:       unDash(cols[6]),
			Gene:               unDash(cols[7]),
		}, nil
	}
	if err := r.b.Err(); err != nil {
		return ReadTags{}, err
	}
	return ReadTags{}, io.EOF
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func unDash(s string) string {
	if s == "-" {
		return ""
	}
	return s
}
