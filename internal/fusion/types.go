// Package fusion implements the multi-source search pipeline: query expansion
// gating, concurrent retrieval, source boosting, per-source score
// normalization, hybrid rank+score fusion, deduplication, cost-bounded
// reranking, and recency adjustment.
//
// Every stage consumes an immutable input slice and produces a new output
// slice; nothing is shared or mutated across stages, so each stage is
// independently testable and a request carries no cross-request state.
package fusion

import (
	"time"

	"github.com/nodebench/searchmcp/internal/source"
)

// Mode selects a preset of sources and result caps.
type Mode string

const (
	// ModeFast queries only the cheapest sources with small caps.
	ModeFast Mode = "fast"

	// ModeBalanced queries a broader source mix with medium caps.
	ModeBalanced Mode = "balanced"

	// ModeComprehensive queries all sources with the largest caps and
	// implies reranking.
	ModeComprehensive Mode = "comprehensive"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeFast, ModeBalanced, ModeComprehensive:
		return true
	}
	return false
}

// SearchRequest is the caller-facing request.
type SearchRequest struct {
	// Query is the raw query text. Must be non-empty.
	Query string `json:"query"`

	// Mode selects the source preset. Defaults to balanced.
	Mode Mode `json:"mode,omitempty"`

	// Sources overrides the mode's source list when non-empty.
	Sources []string `json:"sources,omitempty"`

	// MaxPerSource caps results per source; 0 uses the mode preset.
	MaxPerSource int `json:"maxPerSource,omitempty"`

	// MaxTotal caps the fused result count; 0 uses the mode preset.
	MaxTotal int `json:"maxTotal,omitempty"`

	// ContentTypes restricts results by provider content type.
	ContentTypes []string `json:"contentTypes,omitempty"`

	// DateFrom/DateTo restrict results by content date.
	DateFrom time.Time `json:"dateFrom,omitempty"`
	DateTo   time.Time `json:"dateTo,omitempty"`

	// EnableReranking forces reranking on or off. When nil, reranking runs
	// only in comprehensive mode.
	EnableReranking *bool `json:"enableReranking,omitempty"`

	// Caller identifies the requesting principal for adapters that need it.
	Caller string `json:"caller,omitempty"`
}

// NormalizedResult is a RawResult plus a per-source min-max normalized score
// in [0,1]. The original score is retained for diagnostics.
type NormalizedResult struct {
	source.RawResult

	// NormScore is the min-max normalized score within this result's source.
	NormScore float64
}

// FusionGroup accumulates cross-source consensus for one canonical identity.
type FusionGroup struct {
	// Key is the canonical identity shared by all contributing results.
	Key string

	// RRFSum is the accumulated reciprocal-rank contribution, one term
	// 1/(K+rank) per contributing source. Always positive.
	RRFSum float64

	// NormScores holds the normalized score from each contributing source.
	NormScores []float64

	// Representative is the contributing result with the highest original
	// score; it carries the richest provider metadata.
	Representative source.RawResult

	// Sources lists the contributing source names in first-seen order.
	Sources []string
}

// SourceCount returns the number of sources that produced this item.
func (g *FusionGroup) SourceCount() int {
	return len(g.Sources)
}

// FusedResult is one fusion group resolved into a ranked item.
type FusedResult struct {
	// Key is the canonical identity of the group.
	Key string `json:"key"`

	// Source is the representative result's source.
	Source string `json:"source"`

	// Title, URL, DocID, Snippet, ContentType and PublishedAt come from the
	// representative result.
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	DocID       string    `json:"docId,omitempty"`
	Snippet     string    `json:"snippet,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	PublishedAt time.Time `json:"publishedAt,omitempty"`

	// HybridScore is the fused score in [0,1].
	HybridScore float64 `json:"hybridScore"`

	// FusedRank is the dense 1-based position after fusion.
	FusedRank int `json:"fusedRank"`

	// SourceCount is the number of sources that produced this item.
	SourceCount int `json:"sourceCount"`

	// Sources lists the contributing source names.
	Sources []string `json:"sources"`

	// Metadata carries the representative's provider metadata plus
	// diagnostic fields (original score, normalized score).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SourceError records a non-fatal per-source failure.
type SourceError struct {
	Source string `json:"source"`
	Err    string `json:"error"`
}

// StageCounts records how many items each pipeline stage saw, for diagnostics.
type StageCounts struct {
	Retrieved  int `json:"retrieved"`
	Fused      int `json:"fused"`
	AfterDedup int `json:"afterDedup"`
	Reranked   int `json:"reranked"`
}

// DedupBreakdown reports duplicates removed per detection stage.
type DedupBreakdown struct {
	ByURL   int `json:"byUrl"`
	ByTitle int `json:"byTitle"`
}

// SearchResponse is the final, immutable pipeline output.
type SearchResponse struct {
	// Results is the final ordered list.
	Results []FusedResult `json:"results"`

	// TotalBeforeFusion is the pre-fusion raw item count across sources.
	TotalBeforeFusion int `json:"totalBeforeFusion"`

	// Mode is the mode the pipeline actually ran with.
	Mode Mode `json:"mode"`

	// SourcesQueried lists the sources that were dispatched. Configured but
	// unavailable sources are absent, not errored.
	SourcesQueried []string `json:"sourcesQueried"`

	// TimingPerSource records wall-clock time per dispatched source,
	// regardless of success.
	TimingPerSource map[string]time.Duration `json:"timingPerSource,omitempty"`

	// TotalTime is the full pipeline latency.
	TotalTime time.Duration `json:"totalTime"`

	// Reranked reports whether the reranker actually ran.
	Reranked bool `json:"reranked"`

	// Errors lists non-fatal per-source failures.
	Errors []SourceError `json:"errors,omitempty"`

	// QueryType is the detected query classification.
	QueryType QueryType `json:"queryType,omitempty"`

	// Expanded reports whether query expansion replaced the query.
	Expanded bool `json:"expanded"`

	// EffectiveQuery is the query the sources were actually asked.
	EffectiveQuery string `json:"effectiveQuery,omitempty"`

	// Stages holds per-stage item counts.
	Stages StageCounts `json:"stages"`

	// DuplicatesRemoved is the dedup stage's removal count.
	DuplicatesRemoved int `json:"duplicatesRemoved"`

	// Dedup breaks the removal count down by detection method.
	Dedup DedupBreakdown `json:"dedup"`
}

// Metadata keys used for diagnostic score preservation.
const (
	// MetaOriginalScore holds the provider-scaled score before boosting
	// and normalization.
	MetaOriginalScore = "original_score"

	// MetaNormScore holds the per-source min-max normalized score.
	MetaNormScore = "normalized_score"

	// MetaBoostFactor holds the compound multiplier applied by the booster.
	MetaBoostFactor = "boost_factor"
)
