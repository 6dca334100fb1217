package extract

var complement = [256]byte{}

func init() {
	for i := range complement {
		complement[i] = 'N'
	}
	for _, p := range [][2]byte{
		{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}, {'N', 'N'},
		{'a', 'T'}, {'c', 'G'}, {'g', 'C'}, {'t', 'A'}, {'n', 'N'},
	} {
		complement[p[0]] = p[1]
	}
}

// ReverseComplement returns the reverse complement of seq.  Characters
// outside ACGTN complement to N.
func ReverseComplement(seq string) string {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		out[len(seq)-1-i] = complement[seq[i]]
	}
	return string(out)
}

// reverse returns s reversed.  Used to keep quality strings aligned
// with reverse-complemented sequences.
func reverse(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[len(s)-1-i] = s[i]
	}
	return string(out)
}
