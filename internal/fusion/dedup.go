package fusion

// Deduplicator removes near-duplicate items from the fused list. It runs
// before reranking so the reranking budget is never spent on redundant items.
//
// Identity duplicates are already collapsed by fusion grouping; this stage
// catches items that slipped past canonical identity: the same page under
// different URLs, or near-identical titles from different providers.
type Deduplicator struct{}

// NewDeduplicator creates a deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Dedup returns a new slice in fused order minus removed items, plus the
// removal breakdown. The first occurrence (the higher-ranked item) wins.
func (d *Deduplicator) Dedup(results []FusedResult) ([]FusedResult, DedupBreakdown) {
	var breakdown DedupBreakdown
	if len(results) == 0 {
		return []FusedResult{}, breakdown
	}

	seenURL := make(map[string]bool, len(results))
	seenTitle := make(map[string]bool, len(results))
	out := make([]FusedResult, 0, len(results))

	for _, r := range results {
		if r.URL != "" {
			key := NormalizeURL(r.URL)
			if seenURL[key] {
				breakdown.ByURL++
				continue
			}
			seenURL[key] = true
		}

		if title := NormalizeTitle(r.Title); title != "" {
			if seenTitle[title] {
				breakdown.ByTitle++
				continue
			}
			seenTitle[title] = true
		}

		out = append(out, r)
	}

	return out, breakdown
}
