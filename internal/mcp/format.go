package mcp

import (
	"fmt"
	"strings"

	"github.com/nodebench/searchmcp/internal/fusion"
)

// FormatSearchResults formats a pipeline response as markdown.
func FormatSearchResults(query string, resp *fusion.SearchResponse) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Search Results for: %s\n\n", query))

	if resp.Expanded && resp.EffectiveQuery != query {
		sb.WriteString(fmt.Sprintf("_Query expanded to: %s_\n\n", resp.EffectiveQuery))
	}

	if len(resp.Results) == 0 {
		sb.WriteString("No results found.\n")
		appendSourceErrors(&sb, resp)
		return sb.String()
	}

	for i, r := range resp.Results {
		formatResult(&sb, i+1, r)
	}

	sb.WriteString(fmt.Sprintf("\n_%d results from %s in %dms_\n",
		len(resp.Results),
		formatSourceList(resp.SourcesQueried),
		resp.TotalTime.Milliseconds()))
	appendSourceErrors(&sb, resp)

	return sb.String()
}

// formatResult formats a single fused result.
func formatResult(sb *strings.Builder, num int, r fusion.FusedResult) {
	title := r.Title
	if title == "" {
		title = "(untitled)"
	}
	if r.URL != "" {
		sb.WriteString(fmt.Sprintf("### %d. [%s](%s)\n", num, title, r.URL))
	} else {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", num, title))
	}

	meta := []string{fmt.Sprintf("score %.3f", r.HybridScore)}
	if r.SourceCount > 1 {
		meta = append(meta, fmt.Sprintf("%d sources agree", r.SourceCount))
	} else if r.Source != "" {
		meta = append(meta, r.Source)
	}
	if !r.PublishedAt.IsZero() {
		meta = append(meta, r.PublishedAt.Format("2006-01-02"))
	}
	sb.WriteString(fmt.Sprintf("_%s_\n\n", strings.Join(meta, " | ")))

	if r.Snippet != "" {
		sb.WriteString(r.Snippet)
		sb.WriteString("\n\n")
	}
}

// appendSourceErrors lists per-source failures at the end of the output.
func appendSourceErrors(sb *strings.Builder, resp *fusion.SearchResponse) {
	if len(resp.Errors) == 0 {
		return
	}
	sb.WriteString("\n**Source errors:**\n")
	for _, e := range resp.Errors {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", e.Source, e.Err))
	}
}

// formatSourceList renders a source name list for the summary line.
func formatSourceList(sources []string) string {
	if len(sources) == 0 {
		return "no sources"
	}
	return strings.Join(sources, ", ")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
