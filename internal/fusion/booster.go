package fusion

import (
	"strconv"
	"strings"

	"github.com/nodebench/searchmcp/internal/source"
)

// BoostRule multiplies a source's raw scores when the query carries one of
// the rule's signal terms.
type BoostRule struct {
	// Source is the adapter name the rule applies to.
	Source string

	// Signals are lowercase terms; the rule fires when any appears in the
	// query.
	Signals []string

	// Multiplier rescales the raw score. Values above 1 boost, below 1
	// demote.
	Multiplier float64
}

// DefaultBoostRules returns the static multiplier table. Specialized sources
// get boosted when the query vocabulary matches their domain.
func DefaultBoostRules() []BoostRule {
	return []BoostRule{
		{
			Source:     "filings",
			Signals:    []string{"filing", "filings", "registration", "sec", "10-k", "10-q", "8-k", "prospectus", "patent", "trademark", "regulatory", "compliance"},
			Multiplier: 1.5,
		},
		{
			Source:     "web",
			Signals:    []string{"news", "latest", "recent", "today", "announcement"},
			Multiplier: 1.2,
		},
		{
			Source:     "docstore",
			Signals:    []string{"internal", "memo", "report", "document"},
			Multiplier: 1.3,
		},
	}
}

// Booster applies the static, query-aware multiplier table to raw scores.
type Booster struct {
	rules []BoostRule
}

// NewBooster creates a booster. With no rules it uses DefaultBoostRules.
func NewBooster(rules ...BoostRule) *Booster {
	if len(rules) == 0 {
		rules = DefaultBoostRules()
	}
	return &Booster{rules: rules}
}

// Boost returns a new slice with multipliers applied. It is a deterministic,
// pure rescoring pass: the output count equals the input count and only the
// score changes. When several rules fire for one source their multipliers
// compound. The pre-boost score and the applied factor are stashed in the
// result metadata so downstream diagnostics report what the provider said.
func (b *Booster) Boost(results []source.RawResult, query string) []source.RawResult {
	if len(results) == 0 {
		return []source.RawResult{}
	}

	factors := b.factors(query)

	out := make([]source.RawResult, len(results))
	for i, r := range results {
		if f, ok := factors[r.Source]; ok {
			r.Metadata = withBoostDiagnostics(r.Metadata, r.Score, f)
			r.Score *= f
		}
		out[i] = r
	}
	return out
}

// withBoostDiagnostics records the pre-boost score and the factor in a copy
// of the metadata map. The input map is never mutated.
func withBoostDiagnostics(meta map[string]string, original, factor float64) map[string]string {
	m := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		m[k] = v
	}
	m[MetaOriginalScore] = strconv.FormatFloat(original, 'f', -1, 64)
	m[MetaBoostFactor] = strconv.FormatFloat(factor, 'f', -1, 64)
	return m
}

// factors resolves the per-source multiplier for this query.
func (b *Booster) factors(query string) map[string]float64 {
	lower := strings.ToLower(query)
	factors := make(map[string]float64)
	for _, rule := range b.rules {
		if rule.Multiplier <= 0 {
			continue
		}
		for _, sig := range rule.Signals {
			if strings.Contains(lower, sig) {
				if _, ok := factors[rule.Source]; !ok {
					factors[rule.Source] = 1.0
				}
				factors[rule.Source] *= rule.Multiplier
				break
			}
		}
	}
	return factors
}
