package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodebench/searchmcp/internal/config"
	"github.com/nodebench/searchmcp/internal/output"
	"github.com/nodebench/searchmcp/internal/source"
)

func newSourcesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Show configured search sources and their availability",
		Long: `Show every search source the pipeline knows about, whether it is
currently available, and why it might not be.

A source can be unavailable because it has no endpoint configured, its
credentials are missing, its backing service is unreachable, or its
circuit breaker is open after repeated failures. Unavailable sources are
skipped at query time; they never fail a search.`,
		Example: `  searchmcp sources
  searchmcp sources --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSources(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// sourceReport is one row of the sources listing.
type sourceReport struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Hint      string `json:"hint,omitempty"`
}

func runSources(cmd *cobra.Command, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
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

	reports := make([]sourceReport, 0, p.registry.Len())
	for _, name := range p.registry.Names() {
		adapter := p.registry.Get(name)
		report := sourceReport{Name: name}
		if adapter != nil && adapter.IsAvailable() {
			report.Available = true
		} else {
			report.Hint = availabilityHint(name, cfg)
		}
		reports = append(reports, report)
	}

	if jsonOutput {
		payload := struct {
			Sources  []sourceReport `json:"sources"`
			Reranker bool           `json:"reranker"`
		}{Sources: reports, Reranker: p.hasReranker}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	out.Statusf("🔌", "Search sources (%d configured):", len(reports))
	out.Newline()
	for _, r := range reports {
		if r.Available {
			out.Successf("%s", r.Name)
		} else {
			out.Warningf("%s: unavailable", r.Name)
			if r.Hint != "" {
				out.Status("", "      "+r.Hint)
			}
		}
	}

	out.Newline()
	if p.hasReranker {
		out.Success("reranker configured")
	} else {
		out.Dim("reranker not configured (set reranker.endpoint to enable)")
	}

	return nil
}

// availabilityHint explains the most likely reason a source is unavailable.
func availabilityHint(name string, cfg *config.Config) string {
	switch name {
	case "web":
		if cfg.Sources.Web.Endpoint == "" {
			return "set sources.web.endpoint (or SEARCHMCP_WEB_ENDPOINT) to a SearxNG JSON endpoint"
		}
		return "endpoint configured but failing; circuit breaker may be open"
	case "filings":
		if cfg.Sources.Filings.APIKey == "" {
			return "set sources.filings.api_key (or SEARCHMCP_FILINGS_API_KEY)"
		}
		if cfg.Sources.Filings.Endpoint == "" {
			return "set sources.filings.endpoint"
		}
		return "endpoint configured but failing; circuit breaker may be open"
	case "vector":
		host := cfg.Sources.Vector.OllamaHost
		if host == "" {
			host = source.DefaultOllamaHost
		}
		return fmt.Sprintf("embedding service unreachable at %s; is Ollama running?", host)
	case "ragindex":
		return fmt.Sprintf("index could not be opened at %s", cfg.Sources.RAGIndex.Path)
	case "docstore":
		return fmt.Sprintf("database could not be opened at %s", cfg.Sources.Docstore.Path)
	}
	return ""
}
