package fusion

import (
	"strconv"

	"github.com/nodebench/searchmcp/internal/source"
)

// midpointScore is assigned when a source's scores have zero variance:
// the source expressed no preference, so every item sits in the middle.
const midpointScore = 0.5

// Normalize rescales each source's scores independently with min-max
// normalization so cross-source scores become comparable. Providers emit
// scores on incompatible, often narrow-range scales; without this step the
// fusion engine would have to discard relevance signal and rely on rank
// alone.
//
// The input order is preserved. The original score is kept in the result
// metadata for diagnostics.
func Normalize(results []source.RawResult) []NormalizedResult {
	if len(results) == 0 {
		return []NormalizedResult{}
	}

	type bounds struct {
		min, max float64
		seen     bool
	}
	perSource := make(map[string]bounds)
	for _, r := range results {
		b := perSource[r.Source]
		if !b.seen {
			b = bounds{min: r.Score, max: r.Score, seen: true}
		} else {
			if r.Score < b.min {
				b.min = r.Score
			}
			if r.Score > b.max {
				b.max = r.Score
			}
		}
		perSource[r.Source] = b
	}

	out := make([]NormalizedResult, len(results))
	for i, r := range results {
		b := perSource[r.Source]

		var norm float64
		if b.max == b.min {
			norm = midpointScore
		} else {
			norm = (r.Score - b.min) / (b.max - b.min)
		}

		nr := NormalizedResult{RawResult: r, NormScore: norm}
		nr.Metadata = withDiagnostics(r.Metadata, r.Score, norm)
		out[i] = nr
	}
	return out
}

// withDiagnostics copies the metadata map and adds the score diagnostics.
// The input map is never mutated; upstream slices stay immutable. When the
// booster already stashed the pre-boost provider score it is kept, so
// MetaOriginalScore always means "what the provider said".
func withDiagnostics(meta map[string]string, original, norm float64) map[string]string {
	m := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		m[k] = v
	}
	if _, ok := m[MetaOriginalScore]; !ok {
		m[MetaOriginalScore] = strconv.FormatFloat(original, 'f', -1, 64)
	}
	m[MetaNormScore] = strconv.FormatFloat(norm, 'f', -1, 64)
	return m
}
