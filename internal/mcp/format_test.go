package mcp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nodebench/searchmcp/internal/fusion"
)

func sampleResponse() *fusion.SearchResponse {
	return &fusion.SearchResponse{
		Results: []fusion.FusedResult{
			{
				Title:       "Go memory model",
				URL:         "https://example.com/mem",
				Snippet:     "The happens-before relation.",
				HybridScore: 0.91,
				FusedRank:   1,
				Source:      "web",
				Sources:     []string{"web", "ragindex"},
				SourceCount: 2,
				PublishedAt: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			},
			{
				Title:       "Untyped constants",
				DocID:       "doc-7",
				HybridScore: 0.55,
				FusedRank:   2,
				Source:      "docstore",
				Sources:     []string{"docstore"},
				SourceCount: 1,
			},
		},
		Mode:           fusion.ModeFast,
		SourcesQueried: []string{"ragindex", "web"},
		TotalTime:      120 * time.Millisecond,
	}
}

func TestFormatSearchResults_RendersResults(t *testing.T) {
	out := FormatSearchResults("go memory", sampleResponse())

	assert.Contains(t, out, "## Search Results for: go memory")
	assert.Contains(t, out, "[Go memory model](https://example.com/mem)")
	assert.Contains(t, out, "2 sources agree")
	assert.Contains(t, out, "2025-03-10")
	assert.Contains(t, out, "The happens-before relation.")
	assert.Contains(t, out, "2 results from ragindex, web")
	// Result without a URL renders as plain title.
	assert.Contains(t, out, "### 2. Untyped constants")
}

func TestFormatSearchResults_EmptyResponse(t *testing.T) {
	resp := &fusion.SearchResponse{Results: []fusion.FusedResult{}}

	out := FormatSearchResults("nothing", resp)
	assert.Contains(t, out, "No results found.")
}

func TestFormatSearchResults_ShowsSourceErrors(t *testing.T) {
	resp := sampleResponse()
	resp.Errors = []fusion.SourceError{{Source: "filings", Err: "credentials rejected"}}

	out := FormatSearchResults("q", resp)
	assert.Contains(t, out, "**Source errors:**")
	assert.Contains(t, out, "filings: credentials rejected")
}

func TestFormatSearchResults_ShowsExpandedQuery(t *testing.T) {
	resp := sampleResponse()
	resp.Expanded = true
	resp.EffectiveQuery = "golang memory model"

	out := FormatSearchResults("go mem", resp)
	assert.Contains(t, out, "_Query expanded to: golang memory model_")
}

func TestFormatSearchResults_UntitledFallback(t *testing.T) {
	resp := &fusion.SearchResponse{
		Results: []fusion.FusedResult{{HybridScore: 0.5, FusedRank: 1}},
	}

	out := FormatSearchResults("q", resp)
	assert.Contains(t, out, "(untitled)")
	assert.False(t, strings.Contains(out, "### 1. \n"))
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero uses default", 0, 10},
		{"negative uses default", -5, 10},
		{"below min clamps up", 0, 10},
		{"in range passes through", 25, 25},
		{"above max clamps down", 100, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.limit, 10, 1, 50))
		})
	}
}
