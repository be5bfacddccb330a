package ragtool

import "sort"

// rankedList is one contributing ranked list of chunk ids, index 0 is rank 1.
// A query-variant's dense/sparse hybrid hits and the knowledge-graph's
// supporting-chunk list are both rankedLists; only the latter sets isGraph.
type rankedList struct {
	chunkIDs []string
	isGraph  bool
}

// fusionCandidate is one chunk's aggregated score across every contributing
// ranked list.
type fusionCandidate struct {
	chunkID    string
	rrfScore   float64
	listCount  int
	bestRank   int
	fiscalYear int
}

// fuseRankings applies Reciprocal Rank Fusion across multiple ranked chunk-id
// lists: a chunk's score is the sum, over every list it appears in, of
// 1/(k+rank). A knowledge-graph list's contribution is boosted
// multiplicatively by kgBoost before being added in. Ties are broken by (a)
// the number of contributing lists, (b) the smallest best rank, (c) fiscal
// year recency.
func fuseRankings(lists []rankedList, k int, kgBoost float64, fiscalYearByChunk map[string]int) []fusionCandidate {
	if k <= 0 {
		k = 60
	}
	agg := make(map[string]*fusionCandidate)
	order := make([]string, 0)

	for _, list := range lists {
		for i, chunkID := range list.chunkIDs {
			if chunkID == "" {
				continue
			}
			rank := i + 1
			c, ok := agg[chunkID]
			if !ok {
				c = &fusionCandidate{chunkID: chunkID, bestRank: rank, fiscalYear: fiscalYearByChunk[chunkID]}
				agg[chunkID] = c
				order = append(order, chunkID)
			}
			contribution := 1.0 / float64(k+rank)
			if list.isGraph {
				contribution *= kgBoost
			}
			c.rrfScore += contribution
			c.listCount++
			if rank < c.bestRank {
				c.bestRank = rank
			}
		}
	}

	out := make([]fusionCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, *agg[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.rrfScore != b.rrfScore {
			return a.rrfScore > b.rrfScore
		}
		if a.listCount != b.listCount {
			return a.listCount > b.listCount
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		return a.fiscalYear > b.fiscalYear
	})
	return out
}
