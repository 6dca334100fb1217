package umicluster

import (
	"runtime"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Key identifies one unit of independent clustering work.
type Key struct {
	Barcode string
	Bin     string
}

// Read is one read assigned to a group.
type Read struct {
	ID  string
	UMI string
}

// Group accumulates the reads of one (barcode, bin) pair.
type Group struct {
	Key Key
	// Reads holds the reads kept for clustering, in arrival order.
	Reads []Read
	// Subsampled counts reads dropped because the group exceeded the
	// read ceiling.  They are reported, never silently discarded.
	Subsampled int

	counts map[string]int
}

// GroupSet partitions a tagged read stream into (barcode, bin) groups,
// enforcing the per-group read ceiling.
type GroupSet struct {
	ceiling int
	groups  map[Key]*Group
}

// NewGroupSet returns a GroupSet with the given per-group read
// ceiling.
func NewGroupSet(ceiling int) *GroupSet {
	return &GroupSet{ceiling: ceiling, groups: make(map[Key]*Group)}
}

// Add assigns one read to its group.  It returns false when the read
// was subsampled because the group is at its ceiling.
func (s *GroupSet) Add(key Key, readID, umi string) bool {
	g := s.groups[key]
	if g == nil {
		g = &Group{Key: key, counts: make(map[string]int)}
		s.groups[key] = g
	}
	if len(g.Reads) >= s.ceiling {
		if g.Subsampled == 0 {
			log.Printf("umicluster: group %s/%s hit read ceiling %d, subsampling",
				key.Barcode, key.Bin, s.ceiling)
		}
		g.Subsampled++
		return false
	}
	g.Reads = append(g.Reads, Read{ID: readID, UMI: umi})
	g.counts[umi]++
	return true
}

// Len returns the number of groups.
func (s *GroupSet) Len() int { return len(s.groups) }

// Groups returns the groups sorted by barcode, then bin.
func (s *GroupSet) Groups() []*Group {
	out := make([]*Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Barcode != out[j].Key.Barcode {
			return out[i].Key.Barcode < out[j].Key.Barcode
		}
		return out[i].Key.Bin < out[j].Key.Bin
	})
	return out
}

// Result is the deduplication outcome for one group.
type Result struct {
	Key Key
	// Molecules is the deduplicated molecule count: one per cluster.
	Molecules int
	// Reads is the number of reads clustered.
	Reads int
	// Subsampled is carried through from the group.
	Subsampled int
	// Assignments maps each observed UMI to its corrected
	// (representative) UMI.
	Assignments map[string]string
}

// Dedup clusters every group concurrently and returns per-group
// results in group order, so output is deterministic regardless of
// scheduling.  Parallelism 0 selects runtime.NumCPU.
func Dedup(groups []*Group, maxDist, parallelism int) ([]Result, error) {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(groups) {
		parallelism = len(groups)
	}
	results := make([]Result, len(groups))
	if len(groups) == 0 {
		return results, nil
	}
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(groups)) / parallelism
		endIdx := ((jobIdx + 1) * len(groups)) / parallelism
		for i := startIdx; i < endIdx; i++ {
			g := groups[i]
			clusters := Clusters(g.counts, maxDist)
			results[i] = Result{
				Key:         g.Key,
				Molecules:   len(clusters),
				Reads:       len(g.Reads),
				Subsampled:  g.Subsampled,
				Assignments: Assign(clusters),
			}
		}
		return nil
	})
	return results, err
}

// Stats aggregates deduplication counters across groups.
type Stats struct {
	Groups     int
	Reads      int
	Subsampled int
	Molecules  int
}

// Summarize folds per-group results into sample-level counters.
func Summarize(results []Result) Stats {
	var s Stats
	for _, r := range results {
		s.Groups++
		s.Reads += r.Reads
		s.Subsampled += r.Subsampled
		s.Molecules += r.Molecules
	}
	return s
}
