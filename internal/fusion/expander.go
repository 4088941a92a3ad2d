package fusion

import (
	"log/slog"
	"strings"
	"unicode"
)

// QueryType is the lightweight classification of a search query.
type QueryType string

const (
	// QueryTypeKeyword covers short keyword queries that retrieve well as-is.
	QueryTypeKeyword QueryType = "keyword"

	// QueryTypeEntity covers lookups of a named entity (company, person,
	// product, ticker).
	QueryTypeEntity QueryType = "entity"

	// QueryTypeComparative covers "X vs Y" style queries.
	QueryTypeComparative QueryType = "comparative"

	// QueryTypeBroad covers broad informational or question-form queries.
	QueryTypeBroad QueryType = "broad"
)

// Expansion records the expander's decision for one query.
type Expansion struct {
	// Original is the query as received.
	Original string

	// Effective is the query the sources are asked. Equals Original unless
	// expansion applied.
	Effective string

	// Applied reports whether a reformulation replaced the query.
	Applied bool

	// QueryType is the detected classification.
	QueryType QueryType

	// Alternates holds all generated reformulations, best first.
	Alternates []string
}

// Expander classifies queries and produces alternate phrasings for the query
// types that benefit from reformulation. Keyword and entity queries pass
// through unchanged.
type Expander struct {
	logger *slog.Logger
}

// NewExpander creates a query expander.
func NewExpander() *Expander {
	return &Expander{logger: slog.Default()}
}

// Expand classifies the query and, when the type benefits, reformulates it.
// It never fails: any internal error falls back to the original query.
func (e *Expander) Expand(query string) (exp Expansion) {
	exp = Expansion{Original: query, Effective: query, QueryType: QueryTypeKeyword}

	// Expansion is best-effort by contract. A panic here must not take the
	// request down.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("query expansion recovered, using original query",
				slog.Any("panic", r))
			exp = Expansion{Original: query, Effective: query, QueryType: QueryTypeKeyword}
		}
	}()

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return exp
	}

	exp.QueryType = classify(trimmed)

	switch exp.QueryType {
	case QueryTypeComparative:
		exp.Alternates = comparativeAlternates(trimmed)
	case QueryTypeBroad:
		exp.Alternates = broadAlternates(trimmed)
	}

	if len(exp.Alternates) > 0 && exp.Alternates[0] != trimmed {
		exp.Effective = exp.Alternates[0]
		exp.Applied = true
	}

	return exp
}

// questionLeads are phrase prefixes that mark a broad informational query.
var questionLeads = []string{
	"how ", "what ", "why ", "when ", "where ", "who ", "which ",
	"explain ", "describe ", "overview of ",
}

// comparativeMarkers mark a comparative query.
var comparativeMarkers = []string{" vs ", " vs. ", " versus ", " compared to ", "difference between ", "compare "}

// classify buckets the query with cheap lexical heuristics; no NLP model.
func classify(query string) QueryType {
	lower := strings.ToLower(query)

	for _, m := range comparativeMarkers {
		if strings.Contains(lower, m) {
			return QueryTypeComparative
		}
	}

	for _, lead := range questionLeads {
		if strings.HasPrefix(lower, lead) {
			return QueryTypeBroad
		}
	}
	if strings.HasSuffix(strings.TrimSpace(query), "?") {
		return QueryTypeBroad
	}

	terms := strings.Fields(query)
	if len(terms) <= 4 && looksLikeEntity(terms) {
		return QueryTypeEntity
	}
	if len(terms) >= 6 {
		return QueryTypeBroad
	}
	return QueryTypeKeyword
}

// looksLikeEntity reports whether most terms are capitalized or quoted,
// suggesting a named-entity lookup.
func looksLikeEntity(terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	capitalized := 0
	for _, t := range terms {
		r := []rune(strings.Trim(t, `"'`))
		if len(r) > 0 && (unicode.IsUpper(r[0]) || unicode.IsDigit(r[0])) {
			capitalized++
		}
	}
	return capitalized*2 > len(terms)
}

// comparativeAlternates reformulates "X vs Y" queries into forms that
// retrieve better from general web sources.
func comparativeAlternates(query string) []string {
	lower := strings.ToLower(query)
	for _, sep := range []string{" vs ", " vs. ", " versus "} {
		if i := strings.Index(lower, sep); i > 0 {
			left := strings.TrimSpace(query[:i])
			right := strings.TrimSpace(query[i+len(sep):])
			if left == "" || right == "" {
				return nil
			}
			return []string{
				"comparison of " + left + " and " + right,
				left + " compared to " + right + " differences",
			}
		}
	}
	// "compare X and Y" / "difference between X and Y" already read well.
	return nil
}

// broadAlternates strips question scaffolding so the remaining content terms
// carry the full retrieval weight.
func broadAlternates(query string) []string {
	stripped := strings.TrimSuffix(strings.TrimSpace(query), "?")
	lower := strings.ToLower(stripped)

	prefixes := []string{
		"how does ", "how do ", "how to ", "how can ", "how ",
		"what is the ", "what are the ", "what is ", "what are ", "what ",
		"why does ", "why do ", "why is ", "why ",
		"explain ", "describe ", "tell me about ",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			rest := strings.TrimSpace(stripped[len(p):])
			if rest == "" {
				return nil
			}
			// Drop a trailing auxiliary like "work" only when there is
			// enough left to stand alone.
			return []string{rest, rest + " overview"}
		}
	}
	return nil
}
