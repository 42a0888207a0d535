package search

import (
	"cmp"
	"slices"

	"github.com/poiesic/doccache/core"
)

// Aggregate merges partials into a ranked, deduplicated result.
//
// Hits sharing a content hash collapse into the first one seen, keeping the
// highest raw score among them. Hits whose technology matches technology are
// boosted. Results are ordered by score descending, then content id, then
// hash, and truncated to topN.
func Aggregate(partials []*core.PartialResult, technology string, boost float64, topN int) *core.AggregatedResult {
	considered := 0
	index := make(map[string]int)
	merged := make([]core.SearchHit, 0)

	for _, p := range partials {
		if p == nil {
			continue
		}
		for _, hit := range p.Hits {
			considered++
			if hit.Partition == "" {
				hit.Partition = p.Partition
			}
			if hit.RawScore == 0 {
				hit.RawScore = hit.Score
			}

			key := dedupKey(hit)
			if i, seen := index[key]; seen {
				if hit.RawScore > merged[i].RawScore {
					merged[i].RawScore = hit.RawScore
				}
				continue
			}
			index[key] = len(merged)
			merged = append(merged, hit)
		}
	}

	for i := range merged {
		merged[i].Score = merged[i].RawScore
		if technology != "" && merged[i].Technology == technology {
			merged[i].Score *= boost
		}
	}

	slices.SortFunc(merged, func(a, b core.SearchHit) int {
		return cmp.Or(
			cmp.Compare(b.Score, a.Score),
			cmp.Compare(a.ContentID, b.ContentID),
			cmp.Compare(a.ContentHash, b.ContentHash),
		)
	})
	if topN > 0 && len(merged) > topN {
		merged = merged[:topN]
	}

	return &core.AggregatedResult{
		Results:         merged,
		TotalConsidered: considered,
	}
}

// dedupKey is the content hash, or the content id for hits without one.
func dedupKey(hit core.SearchHit) string {
	if hit.ContentHash != "" {
		return "h:" + hit.ContentHash
	}
	return "id:" + hit.ContentID
}
