// Package tags carries the per-read barcode/UMI tag set between
// pipeline stages and attaches it to alignment records using the
// standard CB/CR/CY/UB/UR/UY (and GN) aux tags.
package tags

import (
	"github.com/grailbio/hts/sam"
)

var (
	cbTag = sam.Tag{'C', 'B'}
	crTag = sam.Tag{'C', 'R'}
	cyTag = sam.Tag{'C', 'Y'}
	ubTag = sam.Tag{'U', 'B'}
	urTag = sam.Tag{'U', 'R'}
	uyTag = sam.Tag{'U', 'Y'}
	gnTag = sam.Tag{'G', 'N'}
)

// ReadTags is the tag set for one read.  Corrected fields are empty
// until the corresponding correction stage has run.
type ReadTags struct {
	ReadID             string
	CorrectedBarcode   string // CB
	UncorrectedBarcode string // CR
	BarcodeQual        string // CY
	CorrectedUMI       string // UB
	UncorrectedUMI     string // UR
	UMIQual            string // UY
	Gene               string // GN
}

// Attach sets the tag set on rec, replacing any existing values.
// Empty fields are not written.
func Attach(rec *sam.Record, t ReadTags) error {
	for _, p := range []struct {
		tag sam.Tag
		val string
	}{
		{cbTag, t.CorrectedBarcode},
		{crTag, t.UncorrectedBarcode},
		{cyTag, t.BarcodeQual},
		{ubTag, t.CorrectedUMI},
		{urTag, t.UncorrectedUMI},
		{uyTag, t.UMIQual},
		{gnTag, t.Gene},
	} {
		if p.val == "" {
			continue
		}
		if err := setAux(rec, p.tag, p.val); err != nil {
			return err
		}
	}
	return nil
}

func setAux(rec *sam.Record, tag sam.Tag, val string) error {
	aux, err := sam.NewAux(tag, val)
	if err != nil {
		return err
	}
	for i, a := range rec.AuxFields {
		if a.Tag() == tag {
			rec.AuxFields[i] = aux
			return nil
		}
	}
	rec.AuxFields = append(rec.AuxFields, aux)
	return nil
}
