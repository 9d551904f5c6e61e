package model

import "sort"

// SortEntries ranks CDR3 search entries by informativeness descending,
// ties broken by cluster size descending. Exact ties keep input order.
func SortEntries(entries []*SearchResultEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		l, r := entries[i], entries[j]
		if l.Info != r.Info {
			return l.Info > r.Info
		}
		return l.Cluster.Size > r.Cluster.Size
	})
}

// SortClustersBySize orders tree-filter clusters by size descending; there
// is no informativeness score on that path.
func SortClustersBySize(clusters []*Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size > clusters[j].Size
	})
}
