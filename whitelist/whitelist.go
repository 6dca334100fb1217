package whitelist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Whitelist is the ordered set of accepted cell barcodes for one
// sample.  It is immutable after construction and may be shared
// read-only across corrector workers without locking.
type Whitelist struct {
	entries []string
	index   map[string]int
	bcLen   int
}

// New builds a Whitelist from entries, preserving their order.
// Entries must be non-empty, equal length, over ACGT, and unique.
func New(entries []string) (*Whitelist, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("whitelist: empty whitelist")
	}
	w := &Whitelist{
		entries: make([]string, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
		bcLen:   len(entries[0]),
	}
	for _, e := range entries {
		e = strings.ToUpper(e)
		if len(e) != w.bcLen {
			return nil, fmt.Errorf("whitelist: barcode %s has length %d, others have length %d", e, len(e), w.bcLen)
		}
		for _, c := range e {
			switch c {
			case 'A', 'C', 'G', 'T':
			default:
				return nil, fmt.Errorf("whitelist: invalid base %c in barcode %s", c, e)
			}
		}
		if _, ok := w.index[e]; ok {
			return nil, fmt.Errorf("whitelist: duplicate barcode %s", e)
		}
		w.index[e] = len(w.entries)
		w.entries = append(w.entries, e)
	}
	return w, nil
}

// FromCounts builds a Whitelist from selected cells in rank order.
func FromCounts(cells []BarcodeCount) (*Whitelist, error) {
	entries := make([]string, len(cells))
	for i, c := range cells {
		entries[i] = c.Barcode
	}
	return New(entries)
}

// Load reads an externally supplied whitelist: one barcode per line,
// the same file format the knee selection writes.
func Load(r io.Reader) (*Whitelist, error) {
	scanner := bufio.NewScanner(r)
	var entries []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(entries)
}

// Write emits the whitelist, one barcode per line.
func (w *Whitelist) Write(out io.Writer) error {
	bw := bufio.NewWriter(out)
	for _, e := range w.entries {
		if _, err := bw.WriteString(e); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Len returns the number of whitelist entries.
func (w *Whitelist) Len() int { return len(w.entries) }

// BarcodeLen returns the common entry length.
func (w *Whitelist) BarcodeLen() int { return w.bcLen }

// Contains reports whether bc is a whitelist entry.
func (w *Whitelist) Contains(bc string) bool {
	_, ok := w.index[bc]
	return ok
}

// Entries returns the entries in rank order.  The caller must not
// mutate the returned slice.
func (w *Whitelist) Entries() []string { return w.entries }
