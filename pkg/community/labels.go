package community

import (
	"sort"

	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/graph"
)

// buildClusters groups nodes by membership. Clusters are ordered by size
// descending then by smallest member id, and numbered in that order.
func buildClusters(x *graph.Index, membership []int, titles map[string]string, dominance float64) []common.Cluster {
	groups := map[int][]string{}
	for i, c := range membership {
		groups[c] = append(groups[c], x.ID(i))
	}

	clusters := make([]common.Cluster, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		clusters = append(clusters, common.Cluster{Members: members})
	}
	sort.Slice(clusters, func(a, b int) bool {
		if len(clusters[a].Members) != len(clusters[b].Members) {
			return len(clusters[a].Members) > len(clusters[b].Members)
		}
		return clusters[a].Members[0] < clusters[b].Members[0]
	})
	for i := range clusters {
		clusters[i].ID = i
		clusters[i].JobTitleLabel = Label(clusters[i].Members, titles, dominance)
	}
	return clusters
}

// Label returns the most frequent canonical title among members. Ties go to
// the lexicographically smaller title. It returns nil when no member has a
// title or when the top title's share of titled members is below dominance.
func Label(members []string, titles map[string]string, dominance float64) *string {
	counts := map[string]int{}
	titled := 0
	for _, m := range members {
		t := titles[m]
		if t == "" {
			continue
		}
		counts[t]++
		titled++
	}
	if titled == 0 {
		return nil
	}

	best, bestCount := "", 0
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best, bestCount = t, c
		}
	}
	if float64(bestCount)/float64(titled) < dominance {
		return nil
	}
	return &best
}
