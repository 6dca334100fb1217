// Package fastq reads and writes FASTQ records for single-end
// nanopore read streams.
package fastq

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalid is returned when the stream structure is corrupt (a
	// record header not starting with '@', or line 3 not starting with
	// '+').  Structural corruption is not recoverable: record
	// boundaries can no longer be trusted.
	ErrInvalid = errors.New("invalid FASTQ file")
)

// maxLineBytes bounds a single FASTQ line.  Nanopore reads routinely
// exceed bufio's default 64KiB token limit.
const maxLineBytes = 64 * 1024 * 1024

// A Read is one FASTQ record.  ID is the record identifier with the
// leading '@' and any trailing comment stripped.
type Read struct {
	ID   string
	Seq  string
	Qual string
}

// Len returns the read length in bases.
func (r *Read) Len() int { return len(r.Seq) }

var errEOF = errors.New("eof")

// Scanner reads FASTQ records sequentially.  Records whose sequence
// and quality lines disagree in length, and a final record truncated
// by EOF, are skipped and counted rather than aborting the scan;
// structural corruption surfaces as ErrInvalid.  Scanners are not
// threadsafe.
type Scanner struct {
	b         *bufio.Scanner
	err       error
	malformed int
}

// NewScanner constructs a Scanner reading raw FASTQ data from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Scanner{b: b}
}

// Scan reads the next well-formed record into read, returning false
// when the stream is exhausted or an unrecoverable error occurred.
// After Scan returns false the caller should check Err.
func (s *Scanner) Scan(read *Read) bool {
	for {
		if s.err != nil {
			return false
		}
		if !s.b.Scan() {
			if s.err = s.b.Err(); s.err == nil {
				s.err = errEOF
			}
			return false
		}
		header := s.b.Text()
		if len(header) == 0 || header[0] != '@' {
			s.err = ErrInvalid
			return false
		}
		seq, ok := s.scanLine()
		if !ok {
			return false
		}
		plus, ok := s.scanLine()
		if !ok {
			return false
		}
		if len(plus) == 0 || plus[0] != '+' {
			s.err = ErrInvalid
			return false
		}
		qual, ok := s.scanLine()
		if !ok {
			return false
		}
		if len(seq) != len(qual) {
			// Record is internally inconsistent: count it and move on.
			s.malformed++
			continue
		}
		read.ID = parseID(header)
		read.Seq = seq
		read.Qual = qual
		return true
	}
}

// scanLine reads one line of the current record.  EOF mid-record means
// a truncated trailing record, which is counted, not fatal.
func (s *Scanner) scanLine() (string, bool) {
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.malformed++
			s.err = errEOF
		}
		return "", false
	}
	return s.b.Text(), true
}

// Err returns the scanning error, if any.  EOF is not an error.
func (s *Scanner) Err() error {
	if s.err == errEOF {
		return nil
	}
	return s.err
}

// Malformed returns the number of records skipped because they were
// internally inconsistent or truncated.
func (s *Scanner) Malformed() int { return s.malformed }

func parseID(header string) string {
	id := header[1:]
	if i := strings.IndexByte(id, ' '); i >= 0 {
		id = id[:i]
	}
	if i := strings.IndexByte(id, '\t'); i >= 0 {
		id = id[:i]
	}
	return id
}

// Writer writes FASTQ records.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter constructs a Writer emitting records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write emits the read as a 4-line FASTQ record.
func (w *Writer) Write(r *Read) error {
	w.writeln("@" + r.ID)
	w.writeln(r.Seq)
	w.writeln("+")
	w.writeln(r.Qual)
	return w.err
}

// Flush flushes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	if _, w.err = w.w.WriteString(line); w.err == nil {
		w.err = w.w.WriteByte('\n')
	}
}
