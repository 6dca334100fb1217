// Package umicluster collapses sequencing errors in UMI sequences by
// clustering the UMIs observed for one (corrected barcode, gene bin)
// group.  Each cluster counts as a single deduplicated molecule.
package umicluster

import (
	"sort"

	"github.com/grailbio/singlecell/editdist"
)

// Cluster is one group of UMIs collapsed into a single molecule.  The
// representative is the most-supported member.
type Cluster struct {
	Representative string
	// UMIs lists the member sequences, representative first.
	UMIs []string
	// Reads is the total read support across members.
	Reads int
}

// Clusters groups the UMIs of one (barcode, bin) group by directional
// adjacency: an edge runs from u1 to u2 when their edit distance is at
// most maxDist and count(u1) >= 2*count(u2)-1, so that an abundant UMI
// absorbs its low-count error neighbors but not vice versa.  Connected
// components are collected breadth-first from seeds in descending
// count order (ties lexicographic), making the partition deterministic.
// The sum of Reads across clusters always equals the sum of counts.
func Clusters(counts map[string]int, maxDist int) []Cluster {
	if len(counts) == 0 {
		return nil
	}
	umis := make([]string, 0, len(counts))
	for u := range counts {
		umis = append(umis, u)
	}
	sort.Slice(umis, func(i, j int) bool {
		ci, cj := counts[umis[i]], counts[umis[j]]
		if ci != cj {
			return ci > cj
		}
		return umis[i] < umis[j]
	})

	adj := make([][]int, len(umis))
	for i := 0; i < len(umis); i++ {
		for j := i + 1; j < len(umis); j++ {
			if _, ok := editdist.DistanceWithin(umis[i], umis[j], maxDist); !ok {
				continue
			}
			ci, cj := counts[umis[i]], counts[umis[j]]
			if ci >= 2*cj-1 {
				adj[i] = append(adj[i], j)
			}
			if cj >= 2*ci-1 {
				adj[j] = append(adj[j], i)
			}
		}
	}

	visited := make([]bool, len(umis))
	var clusters []Cluster
	for i := range umis {
		if visited[i] {
			continue
		}
		comp := []int{i}
		visited[i] = true
		for q := 0; q < len(comp); q++ {
			for _, nb := range adj[comp[q]] {
				if !visited[nb] {
					visited[nb] = true
					comp = append(comp, nb)
				}
			}
		}
		cl := Cluster{Representative: umis[i]}
		for _, k := range comp {
			cl.UMIs = append(cl.UMIs, umis[k])
			cl.Reads += counts[umis[k]]
		}
		clusters = append(clusters, cl)
	}
	return clusters
}

// Assign maps every member UMI to its cluster representative.
func Assign(clusters []Cluster) map[string]string {
	m := make(map[string]string)
	for _, cl := range clusters {
		for _, u := range cl.UMIs {
			m[u] = cl.Representative
		}
	}
	return m
}
