package fusion

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// DefaultAlpha is the hybrid blend weight on normalized RRF. 0.6 favors
// cross-source positional consensus over raw confidence while still letting
// a uniquely high-confidence single-source result surface.
const DefaultAlpha = 0.6

// Algorithm selects the fusion scoring formula.
type Algorithm string

const (
	// AlgorithmHybrid blends normalized RRF with the mean normalized score.
	AlgorithmHybrid Algorithm = "hybrid"

	// AlgorithmPureRRF scores by reciprocal rank alone. Kept as a regression
	// baseline: pure RRF under-uses relevance signal when provider scores
	// cluster in a narrow band.
	AlgorithmPureRRF Algorithm = "pure_rrf"
)

// Engine merges normalized results from all sources into one ranked list.
//
// The hybrid formula, per canonical-identity group, with S the number of
// distinct sources present in the fusion input:
//
//	rrfSum        = Σ_sources 1 / (K + originalRank)
//	normalizedRRF = min(1, rrfSum / (S / K))
//	avgNormScore  = min(1, Σ group norm scores / S)
//	hybrid        = α·normalizedRRF + (1−α)·avgNormScore
//
// Both terms average over ALL retrieved-from sources, not just the group's
// contributors: a source that did not return the item contributes zero to
// both sums. That is what rewards consensus: an item two sources agree on
// outranks a near-equal item only one source saw, even when the single
// source scored its item higher.
type Engine struct {
	// K is the RRF smoothing constant.
	K int

	// Alpha is the blend weight on normalized RRF.
	Alpha float64

	// Algorithm selects hybrid or the pure-RRF baseline.
	Algorithm Algorithm
}

// NewEngine creates a fusion engine with the default hybrid parameters.
func NewEngine() *Engine {
	return &Engine{K: DefaultRRFConstant, Alpha: DefaultAlpha, Algorithm: AlgorithmHybrid}
}

// NewEngineWithParams creates a fusion engine with custom parameters.
// Out-of-range values fall back to defaults.
func NewEngineWithParams(k int, alpha float64, algorithm Algorithm) *Engine {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if alpha < 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	if algorithm != AlgorithmPureRRF {
		algorithm = AlgorithmHybrid
	}
	return &Engine{K: k, Alpha: alpha, Algorithm: algorithm}
}

// Fuse groups results by canonical identity, scores each group, and returns
// the top maxTotal groups with dense 1-based fused ranks. maxTotal <= 0 means
// no truncation.
//
// The output is fully deterministic for a fixed input: grouping uses an
// explicit key-to-index map, and the final sort breaks exact score ties by
// canonical identity, never by map iteration order.
func (e *Engine) Fuse(results []NormalizedResult, maxTotal int) []FusedResult {
	groups := e.Group(results)
	if len(groups) == 0 {
		return []FusedResult{}
	}

	totalSources := countSources(results)

	scored := make([]FusedResult, 0, len(groups))
	for _, g := range groups {
		scored = append(scored, e.resolve(g, totalSources))
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].HybridScore != scored[j].HybridScore {
			return scored[i].HybridScore > scored[j].HybridScore
		}
		return scored[i].Key < scored[j].Key
	})

	if maxTotal > 0 && len(scored) > maxTotal {
		scored = scored[:maxTotal]
	}

	for i := range scored {
		scored[i].FusedRank = i + 1
	}
	return scored
}

// Group accumulates results into fusion groups keyed by canonical identity.
// Group order follows first appearance in the input, so it is deterministic.
func (e *Engine) Group(results []NormalizedResult) []*FusionGroup {
	index := make(map[string]int, len(results))
	var groups []*FusionGroup

	k := e.K
	if k <= 0 {
		k = DefaultRRFConstant
	}

	for _, r := range results {
		key := CanonicalID(r.RawResult)

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, &FusionGroup{Key: key, Representative: r.RawResult})
		}
		g := groups[i]

		g.RRFSum += 1.0 / float64(k+r.Rank)
		g.NormScores = append(g.NormScores, r.NormScore)
		if !contains(g.Sources, r.Source) {
			g.Sources = append(g.Sources, r.Source)
		}

		// The representative carries the richest provider metadata: keep the
		// variant with the highest original score. Ties keep the first seen.
		if r.Score > g.Representative.Score {
			g.Representative = r.RawResult
		}
	}
	return groups
}

// resolve turns one group into a scored FusedResult (rank assigned later).
func (e *Engine) resolve(g *FusionGroup, totalSources int) FusedResult {
	rep := g.Representative

	score := e.score(g, totalSources)

	return FusedResult{
		Key:         g.Key,
		Source:      rep.Source,
		Title:       rep.Title,
		URL:         rep.URL,
		DocID:       rep.DocID,
		Snippet:     rep.Snippet,
		ContentType: rep.ContentType,
		PublishedAt: rep.PublishedAt,
		HybridScore: score,
		SourceCount: g.SourceCount(),
		Sources:     append([]string(nil), g.Sources...),
		Metadata:    rep.Metadata,
	}
}

// score applies the configured algorithm to one group. totalSources is the
// number of distinct sources in the fusion input; it is the denominator of
// both terms, so absent sources count as zero votes.
func (e *Engine) score(g *FusionGroup, totalSources int) float64 {
	k := e.K
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if totalSources <= 0 {
		return 0
	}

	// Upper bound: every queried source ranked the item first. Same-source
	// identity duplicates can push either sum past its bound, hence the
	// clamps.
	maxRRF := float64(totalSources) / float64(k)
	normalizedRRF := g.RRFSum / maxRRF
	if normalizedRRF > 1 {
		normalizedRRF = 1
	}

	if e.Algorithm == AlgorithmPureRRF {
		return normalizedRRF
	}

	var sum float64
	for _, s := range g.NormScores {
		sum += s
	}
	avgNorm := sum / float64(totalSources)
	if avgNorm > 1 {
		avgNorm = 1
	}

	return e.Alpha*normalizedRRF + (1-e.Alpha)*avgNorm
}

// countSources returns the number of distinct sources in the input.
func countSources(results []NormalizedResult) int {
	seen := make(map[string]bool, 4)
	for _, r := range results {
		if !seen[r.Source] {
			seen[r.Source] = true
		}
	}
	return len(seen)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
