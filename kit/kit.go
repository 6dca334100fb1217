// Package kit describes the supported single-cell library kits and the
// run configuration for barcode and UMI resolution.
package kit

import (
	"fmt"
	"strings"
)

// Orientation describes where on a full-length read the barcoded
// adapter is expected.
type Orientation int

const (
	// ThreePrime kits place the cell barcode and UMI downstream of the
	// read1 adapter, with the poly(T) tract following the UMI.
	ThreePrime Orientation = iota
	// FivePrime kits place the barcode and UMI downstream of the read1
	// adapter, followed by a template-switch oligo.
	FivePrime
)

// Kit holds the sequence geometry of one kit/version combination: the
// read1 adapter flanking the probe region, and the widths of the cell
// barcode and UMI immediately downstream of it.
type Kit struct {
	Name        string
	Version     string
	Adapter     string
	BarcodeLen  int
	UMILen      int
	Orientation Orientation
}

// Probe returns the adapter suffix of length n used for probe
// alignment against read ends.  If n exceeds the adapter length the
// whole adapter is returned.
func (k Kit) Probe(n int) string {
	if n <= 0 || n >= len(k.Adapter) {
		return k.Adapter
	}
	return k.Adapter[len(k.Adapter)-n:]
}

func (k Kit) String() string { return k.Name + ":" + k.Version }

// read1Adapter is shared by all supported 10x kits.
const read1Adapter = "CTACACGACGCTCTTCCGATCT"

var kits = []Kit{
	{Name: "3prime", Version: "v2", Adapter: read1Adapter, BarcodeLen: 16, UMILen: 10, Orientation: ThreePrime},
	{Name: "3prime", Version: "v3", Adapter: read1Adapter, BarcodeLen: 16, UMILen: 12, Orientation: ThreePrime},
	{Name: "5prime", Version: "v1", Adapter: read1Adapter, BarcodeLen: 16, UMILen: 10, Orientation: FivePrime},
	{Name: "multiome", Version: "v1", Adapter: read1Adapter, BarcodeLen: 16, UMILen: 12, Orientation: ThreePrime},
}

// Lookup resolves a (kit name, kit version) pair against the table of
// supported combinations.  Unknown combinations are a configuration
// error.
func Lookup(name, version string) (Kit, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	version = strings.ToLower(strings.TrimSpace(version))
	for _, k := range kits {
		if k.Name == name && k.Version == version {
			return k, nil
		}
	}
	return Kit{}, fmt.Errorf("kit: unsupported kit/version combination %s:%s", name, version)
}

// Parse resolves a combined "name:version" kit specifier.
func Parse(spec string) (Kit, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return Kit{}, fmt.Errorf("kit: malformed kit specifier %q, want name:version", spec)
	}
	return Lookup(parts[0], parts[1])
}
