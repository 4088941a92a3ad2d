package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodebench/searchmcp/internal/config"
	"github.com/nodebench/searchmcp/internal/fusion"
	"github.com/nodebench/searchmcp/internal/logging"
	"github.com/nodebench/searchmcp/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode         string
	sources      []string
	limit        int
	contentTypes []string
	dateFrom     string
	dateTo       string
	format       string // "text", "json"
	rerank       bool
	noRerank     bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search all sources and fuse the results",
		Long: `Run one query through the full fusion pipeline from the shell.

Every available source is queried in parallel, per-source scores are
normalized, and results are merged with hybrid Reciprocal Rank Fusion
into one deduplicated ranking.

Examples:
  searchmcp search "solid state battery manufacturers"
  searchmcp search "acme corp" --mode comprehensive
  searchmcp search "lithium patents" --source filings --from 2024-01-01
  searchmcp search "quarterly results" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Mode preset: fast, balanced, comprehensive")
	cmd.Flags().StringSliceVarP(&opts.sources, "source", "s", nil, "Restrict to specific sources (repeatable)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of fused results (0 = mode default)")
	cmd.Flags().StringSliceVarP(&opts.contentTypes, "type", "t", nil, "Filter by content type (e.g. news, filing, document)")
	cmd.Flags().StringVar(&opts.dateFrom, "from", "", "Only results published on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.dateTo, "to", "", "Only results published on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "Force semantic reranking on")
	cmd.Flags().BoolVar(&opts.noRerank, "no-rerank", false, "Force semantic reranking off")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	// CLI logging goes to file so stdout stays clean for results.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if _, cleanup, err := logging.Setup(logCfg); err == nil {
		defer cleanup()
	}

	slog.Info("search_started", slog.String("query", query), slog.String("mode", opts.mode))
	out := output.New(cmd.OutOrStdout())

	req, err := buildRequest(query, opts)
	if err != nil {
		return err
	}

	root, rootErr := config.FindProjectRoot(".")
	if rootErr != nil {
		root, _ = os.Getwd()
	}
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	resp, err := p.orchestrator.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	slog.Info("search_complete",
		slog.Int("results", len(resp.Results)),
		slog.Duration("total_time", resp.TotalTime))

	switch opts.format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		return formatText(out, query, resp)
	}
}

// buildRequest validates CLI flags into a pipeline request.
func buildRequest(query string, opts searchOptions) (fusion.SearchRequest, error) {
	req := fusion.SearchRequest{
		Query:        query,
		Mode:         fusion.Mode(opts.mode),
		Sources:      opts.sources,
		MaxTotal:     opts.limit,
		ContentTypes: opts.contentTypes,
	}

	if opts.mode != "" && !req.Mode.Valid() {
		return req, fmt.Errorf("unknown mode %q (expected fast, balanced, or comprehensive)", opts.mode)
	}
	if opts.rerank && opts.noRerank {
		return req, fmt.Errorf("--rerank and --no-rerank are mutually exclusive")
	}
	if opts.rerank {
		enabled := true
		req.EnableReranking = &enabled
	}
	if opts.noRerank {
		enabled := false
		req.EnableReranking = &enabled
	}

	if opts.dateFrom != "" {
		t, err := time.Parse("2006-01-02", opts.dateFrom)
		if err != nil {
			return req, fmt.Errorf("--from must be formatted YYYY-MM-DD")
		}
		req.DateFrom = t
	}
	if opts.dateTo != "" {
		t, err := time.Parse("2006-01-02", opts.dateTo)
		if err != nil {
			return req, fmt.Errorf("--to must be formatted YYYY-MM-DD")
		}
		req.DateTo = t
	}
	if !req.DateFrom.IsZero() && !req.DateTo.IsZero() && req.DateTo.Before(req.DateFrom) {
		return req, fmt.Errorf("--to must not be before --from")
	}

	return req, nil
}

// formatText outputs fused results in human-readable form.
func formatText(out *output.Writer, query string, resp *fusion.SearchResponse) error {
	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		printSourceErrors(out, resp)
		return nil
	}

	shown := query
	if resp.Expanded && resp.EffectiveQuery != "" {
		shown = resp.EffectiveQuery
		out.Statusf("💡", "Query expanded to %q", resp.EffectiveQuery)
	}

	out.Statusf("🔍", "Found %d results for %q:", len(resp.Results), shown)
	out.Newline()

	for _, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.URL
		}
		out.Statusf("", "%d. %s (score: %.3f)", r.FusedRank, title, r.HybridScore)

		meta := fmt.Sprintf("      %s", strings.Join(r.Sources, ", "))
		if r.SourceCount > 1 {
			meta += fmt.Sprintf(" | %d sources agree", r.SourceCount)
		}
		if !r.PublishedAt.IsZero() {
			meta += " | " + r.PublishedAt.Format("2006-01-02")
		}
		out.Status("", meta)

		if r.URL != "" {
			out.Status("", "      "+r.URL)
		}
		if r.Snippet != "" {
			out.Status("", "      "+firstLine(r.Snippet))
		}
		out.Newline()
	}

	summary := fmt.Sprintf("%d results from %s in %dms",
		len(resp.Results),
		strings.Join(resp.SourcesQueried, ", "),
		resp.TotalTime.Milliseconds())
	if resp.Reranked {
		summary += " (reranked)"
	}
	if resp.DuplicatesRemoved > 0 {
		summary += fmt.Sprintf(", %d duplicates removed", resp.DuplicatesRemoved)
	}
	out.Status("", summary)

	printSourceErrors(out, resp)
	return nil
}

func printSourceErrors(out *output.Writer, resp *fusion.SearchResponse) {
	for _, se := range resp.Errors {
		out.Warningf("%s: %s", se.Source, se.Err)
	}
}

// firstLine returns the first non-empty line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
