package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nodebench/searchmcp/internal/config"
	"github.com/nodebench/searchmcp/internal/fusion"
	"github.com/nodebench/searchmcp/internal/source"
	"github.com/nodebench/searchmcp/internal/telemetry"
)

// pipeline bundles everything a command needs to run searches: the adapter
// registry, the fusion orchestrator over it, and the resources to close when
// the command is done.
type pipeline struct {
	registry     *source.Registry
	orchestrator *fusion.Orchestrator
	metrics      *telemetry.QueryMetrics
	hasReranker  bool

	closers []func() error
}

// Close releases all adapter-held resources (index handles, DB connections).
func (p *pipeline) Close() {
	for _, closeFn := range p.closers {
		if err := closeFn(); err != nil {
			slog.Warn("Failed to close adapter resource", slog.String("error", err.Error()))
		}
	}
}

// buildPipeline constructs the full search pipeline from configuration.
//
// Remote adapters (web, filings) are always registered: they report
// themselves unavailable when unconfigured, which keeps 'sources' output
// complete. Local adapters (ragindex, vector, docstore) open files on
// construction; a broken index is logged and skipped rather than failing
// the whole pipeline, so one corrupt store never takes down web search.
func buildPipeline(cfg *config.Config) (*pipeline, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	p := &pipeline{}

	var adapters []source.Adapter

	adapters = append(adapters, source.NewWebAdapter(source.WebConfig{
		Endpoint: cfg.Sources.Web.Endpoint,
		Timeout:  parseDuration(cfg.Sources.Web.Timeout, source.DefaultWebTimeout),
	}))

	adapters = append(adapters, source.NewFilingsAdapter(source.FilingsConfig{
		Endpoint: cfg.Sources.Filings.Endpoint,
		APIKey:   cfg.Sources.Filings.APIKey,
		Timeout:  parseDuration(cfg.Sources.Filings.Timeout, 15*time.Second),
	}))

	if ragindex, err := source.NewRAGIndexAdapter(cfg.Sources.RAGIndex.Path); err != nil {
		slog.Warn("Retrieval index unavailable",
			slog.String("path", cfg.Sources.RAGIndex.Path),
			slog.String("error", err.Error()))
	} else {
		adapters = append(adapters, ragindex)
		p.closers = append(p.closers, ragindex.Close)
	}

	embedder := source.NewOllamaEmbedder(source.OllamaConfig{
		Host:  cfg.Sources.Vector.OllamaHost,
		Model: cfg.Sources.Vector.Model,
	})
	if vector, err := source.NewVectorAdapter(embedder, cfg.Sources.Vector.Path); err != nil {
		slog.Warn("Vector index unavailable",
			slog.String("path", cfg.Sources.Vector.Path),
			slog.String("error", err.Error()))
	} else {
		adapters = append(adapters, vector)
		p.closers = append(p.closers, vector.Close)
	}

	if docstore, err := source.NewDocStoreAdapter(cfg.Sources.Docstore.Path); err != nil {
		slog.Warn("Document store unavailable",
			slog.String("path", cfg.Sources.Docstore.Path),
			slog.String("error", err.Error()))
	} else {
		adapters = append(adapters, docstore)
		p.closers = append(p.closers, docstore.Close)
	}

	if cfg.Sources.CacheSize > 0 {
		ttl := parseDuration(cfg.Sources.CacheTTL, source.DefaultCacheTTL)
		for i, a := range adapters {
			adapters[i] = source.NewCachedAdapter(a, cfg.Sources.CacheSize, ttl)
		}
	}

	p.registry = source.NewRegistry(adapters...)

	opts := []fusion.Option{
		fusion.WithEngine(fusion.NewEngineWithParams(
			cfg.Fusion.RRFConstant,
			cfg.Fusion.Alpha,
			fusion.Algorithm(cfg.Fusion.Algorithm),
		)),
		fusion.WithRecency(recencyFromConfig(cfg.Recency)),
		fusion.WithRerankTopK(cfg.Reranker.TopK),
	}

	if cfg.Reranker.Endpoint != "" {
		reranker, err := fusion.NewHTTPReranker(fusion.HTTPRerankerConfig{
			Endpoint: cfg.Reranker.Endpoint,
			Model:    cfg.Reranker.Model,
			Timeout:  parseDuration(cfg.Reranker.Timeout, 30*time.Second),
		})
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create reranker: %w", err)
		}
		opts = append(opts, fusion.WithReranker(reranker))
		p.hasReranker = true
	}

	p.metrics = telemetry.NewQueryMetrics()
	opts = append(opts, fusion.WithMetrics(p.metrics))

	p.orchestrator = fusion.NewOrchestrator(p.registry, opts...)

	return p, nil
}

func recencyFromConfig(cfg config.RecencyConfig) *fusion.RecencyBiaser {
	b := fusion.NewRecencyBiaser(cfg.Strength)
	if cfg.HorizonDays > 0 {
		b.Horizon = time.Duration(cfg.HorizonDays) * 24 * time.Hour
	}
	return b
}

// parseDuration parses a config duration string, falling back on empty or
// malformed input.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		slog.Warn("Invalid duration in config, using default",
			slog.String("value", s),
			slog.Duration("default", fallback))
		return fallback
	}
	return d
}
