package fusion

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nodebench/searchmcp/internal/errors"
	"github.com/nodebench/searchmcp/internal/source"
	"github.com/nodebench/searchmcp/internal/telemetry"
)

// Orchestrator sequences one pipeline execution:
//
//	expand → parallel retrieve → boost → normalize → fuse → dedup →
//	(optional) rerank(top-K) → recency-bias → final rank assignment
//
// The order is load-bearing: dedup before rerank keeps the reranking budget
// off redundant items, and recency after rerank keeps freshness from masking
// semantic relevance during reranking.
type Orchestrator struct {
	coordinator *Coordinator
	expander    *Expander
	booster     *Booster
	engine      *Engine
	dedup       *Deduplicator
	recency     *RecencyBiaser
	reranker    Reranker
	presets     map[Mode]Preset
	rerankTopK  int
	metrics     *telemetry.QueryMetrics
	logger      *slog.Logger
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithReranker sets the semantic reranking service. Without one, requests
// that ask for reranking fall back to the fused order.
func WithReranker(r Reranker) Option {
	return func(o *Orchestrator) {
		o.reranker = r
	}
}

// WithEngine overrides the fusion engine (custom K, alpha, or the pure-RRF
// baseline).
func WithEngine(e *Engine) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.engine = e
		}
	}
}

// WithBooster overrides the source boost table.
func WithBooster(b *Booster) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.booster = b
		}
	}
}

// WithRecency overrides the recency biaser.
func WithRecency(r *RecencyBiaser) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recency = r
		}
	}
}

// WithPresets overrides the mode presets.
func WithPresets(p map[Mode]Preset) Option {
	return func(o *Orchestrator) {
		if len(p) > 0 {
			o.presets = p
		}
	}
}

// WithRerankTopK overrides the reranking budget.
func WithRerankTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.rerankTopK = k
		}
	}
}

// WithMetrics sets an optional query metrics collector.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator creates a pipeline over the given adapter registry.
func NewOrchestrator(registry *source.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		coordinator: NewCoordinator(registry),
		expander:    NewExpander(),
		booster:     NewBooster(),
		engine:      NewEngine(),
		dedup:       NewDeduplicator(),
		recency:     NewRecencyBiaser(DefaultRecencyStrength),
		presets:     DefaultPresets(),
		rerankTopK:  DefaultRerankTopK,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Search runs the full pipeline for one request. The only hard failure is
// malformed input; everything downstream degrades into a well-formed
// response with per-source errors.
func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, errors.ValidationError("query must not be empty", nil)
	}
	if req.Mode == "" {
		req.Mode = ModeBalanced
	}
	if !req.Mode.Valid() {
		return nil, errors.ValidationError("unknown mode: "+string(req.Mode), nil)
	}

	preset, ok := o.presets[req.Mode]
	if !ok {
		return nil, errors.ValidationError("mode has no preset: "+string(req.Mode), nil)
	}

	sources := req.Sources
	if len(sources) == 0 {
		sources = preset.Sources
	}
	maxPerSource := req.MaxPerSource
	if maxPerSource <= 0 {
		maxPerSource = preset.MaxPerSource
	}
	maxTotal := req.MaxTotal
	if maxTotal <= 0 {
		maxTotal = preset.MaxTotal
	}
	rerank := preset.Rerank
	if req.EnableReranking != nil {
		rerank = *req.EnableReranking
	}

	// Stage 1: expansion gating. Never fails; falls back to the original
	// query on any internal error.
	exp := o.expander.Expand(req.Query)
	if exp.Applied {
		o.logger.Debug("query expanded",
			slog.String("original", exp.Original),
			slog.String("effective", exp.Effective),
			slog.String("query_type", string(exp.QueryType)))
	}

	// Stage 2: concurrent retrieval with all-settled semantics.
	outcome := o.coordinator.Retrieve(ctx, exp.Effective, sources, source.RetrievalOptions{
		MaxResults:   maxPerSource,
		ContentTypes: req.ContentTypes,
		DateFrom:     req.DateFrom,
		DateTo:       req.DateTo,
		Caller:       req.Caller,
	})

	resp := &SearchResponse{
		Results:         []FusedResult{},
		Mode:            req.Mode,
		SourcesQueried:  outcome.SourcesQueried,
		TimingPerSource: outcome.Timing,
		Errors:          outcome.Errors,
		QueryType:       exp.QueryType,
		Expanded:        exp.Applied,
		EffectiveQuery:  exp.Effective,
	}

	// Zero available sources: a valid, expected outcome, not an error.
	if len(outcome.SourcesQueried) == 0 {
		resp.SourcesQueried = []string{}
		resp.TimingPerSource = map[string]time.Duration{}
		resp.TotalTime = time.Since(start)
		o.record(req, exp, resp, time.Since(start))
		return resp, nil
	}

	resp.TotalBeforeFusion = len(outcome.Results)
	resp.Stages.Retrieved = len(outcome.Results)

	// Stages 3-5: pure transformations.
	boosted := o.booster.Boost(outcome.Results, req.Query)
	normalized := Normalize(boosted)
	fused := o.engine.Fuse(normalized, maxTotal)
	resp.Stages.Fused = len(fused)

	// Stage 6: dedup before rerank, so the budget is spent on distinct items.
	deduped, breakdown := o.dedup.Dedup(fused)
	resp.Stages.AfterDedup = len(deduped)
	resp.Dedup = breakdown
	resp.DuplicatesRemoved = breakdown.ByURL + breakdown.ByTitle

	// Stage 7: cost-bounded reranking of the top-K slice.
	results := deduped
	if rerank && o.reranker != nil && len(deduped) > 0 {
		results, resp.Reranked = o.rerankTop(ctx, req.Query, deduped, resp)
	}

	// Stage 8: recency bias last, then dense final ranks.
	results = o.recency.Apply(results)
	for i := range results {
		results[i].FusedRank = i + 1
	}

	resp.Results = results
	resp.TotalTime = time.Since(start)
	o.record(req, exp, resp, resp.TotalTime)

	o.logger.Info("search completed",
		slog.String("mode", string(req.Mode)),
		slog.Int("sources", len(resp.SourcesQueried)),
		slog.Int("results", len(results)),
		slog.Bool("reranked", resp.Reranked),
		slog.Duration("total", resp.TotalTime))

	return resp, nil
}

// rerankTop submits the top-K slice to the reranker and concatenates the
// untouched tail. A reranker failure is recoverable: the pre-rerank order is
// kept and the error surfaced in the response.
func (o *Orchestrator) rerankTop(ctx context.Context, query string, results []FusedResult, resp *SearchResponse) ([]FusedResult, bool) {
	k := o.rerankTopK
	if k <= 0 {
		k = DefaultRerankTopK
	}
	if k > len(results) {
		k = len(results)
	}

	head := results[:k]
	tail := results[k:]

	reranked, err := o.reranker.Rerank(ctx, query, head, k)
	if err != nil {
		o.logger.Warn("rerank failed, keeping fused order",
			slog.String("error", err.Error()))
		resp.Errors = append(resp.Errors, SourceError{Source: "reranker", Err: err.Error()})
		return results, false
	}
	resp.Stages.Reranked = len(reranked)

	// The reranker reorders but does not rescore. Reassign the head's score
	// set to the new order so the recency re-sort respects the reranked
	// order and head items keep outranking the untouched tail.
	for i := range reranked {
		if i < len(head) {
			reranked[i].HybridScore = head[i].HybridScore
		}
	}

	out := make([]FusedResult, 0, len(reranked)+len(tail))
	out = append(out, reranked...)
	out = append(out, tail...)
	return out, true
}

// record feeds the optional metrics collector.
func (o *Orchestrator) record(req SearchRequest, exp Expansion, resp *SearchResponse, latency time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.Record(telemetry.QueryEvent{
		Query:          req.Query,
		QueryType:      telemetry.QueryType(exp.QueryType),
		Mode:           telemetry.Mode(req.Mode),
		SourcesQueried: len(resp.SourcesQueried),
		ResultCount:    len(resp.Results),
		Reranked:       resp.Reranked,
		Latency:        latency,
		Timestamp:      time.Now(),
	})
}
