package mcp

import (
	"time"

	"github.com/nodebench/searchmcp/internal/fusion"
)

// FusionSearchInput defines the input schema for the fusion_search tool.
type FusionSearchInput struct {
	Query           string   `json:"query" jsonschema:"the search query to execute"`
	Mode            string   `json:"mode,omitempty" jsonschema:"search mode: fast, balanced, or comprehensive (default balanced)"`
	Sources         []string `json:"sources,omitempty" jsonschema:"override the mode's source list, e.g. web, filings, ragindex, vector, docstore"`
	MaxPerSource    int      `json:"max_per_source,omitempty" jsonschema:"cap results per source; 0 uses the mode preset"`
	MaxTotal        int      `json:"max_total,omitempty" jsonschema:"cap fused result count; 0 uses the mode preset"`
	ContentTypes    []string `json:"content_types,omitempty" jsonschema:"restrict results by content type"`
	DateFrom        string   `json:"date_from,omitempty" jsonschema:"restrict to content published on or after this date (YYYY-MM-DD)"`
	DateTo          string   `json:"date_to,omitempty" jsonschema:"restrict to content published on or before this date (YYYY-MM-DD)"`
	EnableReranking *bool    `json:"enable_reranking,omitempty" jsonschema:"force semantic reranking on or off; unset follows the mode"`
}

// QuickSearchInput defines the input schema for the quick_search tool.
type QuickSearchInput struct {
	Query string `json:"query" jsonschema:"the search query to execute"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SourceStatusInput defines the (empty) input schema for the source_status tool.
type SourceStatusInput struct{}

// ResultOutput is one fused result in tool output.
type ResultOutput struct {
	Title       string   `json:"title"`
	URL         string   `json:"url,omitempty"`
	DocID       string   `json:"doc_id,omitempty"`
	Snippet     string   `json:"snippet,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Score       float64  `json:"score"`
	Rank        int      `json:"rank"`
	Sources     []string `json:"sources"`
	SourceCount int      `json:"source_count"`
}

// SourceErrorOutput reports a non-fatal per-source failure in tool output.
type SourceErrorOutput struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// FusionSearchOutput defines the output schema for the fusion_search tool.
type FusionSearchOutput struct {
	Results           []ResultOutput      `json:"results"`
	Mode              string              `json:"mode"`
	SourcesQueried    []string            `json:"sources_queried"`
	TimingMs          map[string]int64    `json:"timing_ms,omitempty"`
	TotalTimeMs       int64               `json:"total_time_ms"`
	Reranked          bool                `json:"reranked"`
	Expanded          bool                `json:"expanded"`
	EffectiveQuery    string              `json:"effective_query,omitempty"`
	DuplicatesRemoved int                 `json:"duplicates_removed"`
	Errors            []SourceErrorOutput `json:"errors,omitempty"`
}

// SourceStatus reports one adapter's availability.
type SourceStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// SourceStatusOutput defines the output schema for the source_status tool.
type SourceStatusOutput struct {
	Sources  []SourceStatus `json:"sources"`
	Reranker bool           `json:"reranker"`
}

// toResultOutput converts one fused result to the tool output shape.
func toResultOutput(r fusion.FusedResult) ResultOutput {
	out := ResultOutput{
		Title:       r.Title,
		URL:         r.URL,
		DocID:       r.DocID,
		Snippet:     r.Snippet,
		ContentType: r.ContentType,
		Score:       r.HybridScore,
		Rank:        r.FusedRank,
		Sources:     r.Sources,
		SourceCount: r.SourceCount,
	}
	if !r.PublishedAt.IsZero() {
		out.PublishedAt = r.PublishedAt.Format(time.RFC3339)
	}
	return out
}

// toFusionOutput converts a pipeline response to the tool output shape.
func toFusionOutput(resp *fusion.SearchResponse) FusionSearchOutput {
	out := FusionSearchOutput{
		Results:           make([]ResultOutput, 0, len(resp.Results)),
		Mode:              string(resp.Mode),
		SourcesQueried:    resp.SourcesQueried,
		TotalTimeMs:       resp.TotalTime.Milliseconds(),
		Reranked:          resp.Reranked,
		Expanded:          resp.Expanded,
		EffectiveQuery:    resp.EffectiveQuery,
		DuplicatesRemoved: resp.DuplicatesRemoved,
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, toResultOutput(r))
	}
	if len(resp.TimingPerSource) > 0 {
		out.TimingMs = make(map[string]int64, len(resp.TimingPerSource))
		for name, d := range resp.TimingPerSource {
			out.TimingMs[name] = d.Milliseconds()
		}
	}
	for _, e := range resp.Errors {
		out.Errors = append(out.Errors, SourceErrorOutput{Source: e.Source, Error: e.Err})
	}
	return out
}
