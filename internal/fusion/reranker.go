package fusion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// DefaultRerankTopK is the reranking budget: the maximum number of fused
// results submitted to the reranker per request. Items beyond the budget
// keep their fused order.
const DefaultRerankTopK = 20

// Reranker refines the order of a bounded candidate slice using a semantic
// scoring service. It is an external collaborator: the pipeline treats it as
// a black box and falls back to the pre-rerank order when it fails.
type Reranker interface {
	// Rerank returns the candidates reordered by relevance to the query.
	// desiredCount caps the returned slice; 0 returns all candidates.
	Rerank(ctx context.Context, query string, candidates []FusedResult, desiredCount int) ([]FusedResult, error)
}

// NoopReranker returns candidates unchanged. Used when no reranking service
// is configured.
type NoopReranker struct{}

// Rerank returns the candidates in their existing order.
func (NoopReranker) Rerank(_ context.Context, _ string, candidates []FusedResult, desiredCount int) ([]FusedResult, error) {
	out := append([]FusedResult(nil), candidates...)
	if desiredCount > 0 && desiredCount < len(out) {
		out = out[:desiredCount]
	}
	return out, nil
}

var _ Reranker = NoopReranker{}

// HTTP reranker defaults.
const (
	DefaultRerankerTimeout = 30 * time.Second
	DefaultRerankerModel   = "reranker-small"
)

// HTTPRerankerConfig configures the cross-encoder reranking service client.
type HTTPRerankerConfig struct {
	// Endpoint is the scoring service base URL.
	Endpoint string

	// Model is the reranker model alias.
	Model string

	// Timeout bounds one rerank call.
	Timeout time.Duration
}

// HTTPReranker scores query-candidate pairs against a cross-encoder service
// over HTTP. Cross-encoders jointly encode the pair, which is more accurate
// than bi-encoder similarity but much more expensive, hence the top-K budget
// upstream.
type HTTPReranker struct {
	client *http.Client
	config HTTPRerankerConfig
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a reranker client. Defaults are applied for any
// zero-valued config field except Endpoint, which is required.
func NewHTTPReranker(cfg HTTPRerankerConfig) (*HTTPReranker, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("reranker endpoint is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankerModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRerankerTimeout
	}
	return &HTTPReranker{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}, nil
}

// rerankRequest is the scoring service request body.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k,omitempty"`
}

// rerankResponse is the scoring service response body.
type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Rerank submits the candidates and reorders them by the returned scores.
// Candidates the service omits are appended after the scored ones in their
// original order, so a partial response never loses items.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []FusedResult, desiredCount int) ([]FusedResult, error) {
	if len(candidates) == 0 {
		return []FusedResult{}, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = rerankDocument(c)
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: docs,
		TopK:      desiredCount,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.Endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute rerank request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("rerank service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	// Highest score first; index ties keep service order.
	sort.SliceStable(parsed.Results, func(i, j int) bool {
		return parsed.Results[i].Score > parsed.Results[j].Score
	})

	taken := make([]bool, len(candidates))
	out := make([]FusedResult, 0, len(candidates))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(candidates) || taken[res.Index] {
			continue
		}
		taken[res.Index] = true
		out = append(out, candidates[res.Index])
	}
	for i, c := range candidates {
		if !taken[i] {
			out = append(out, c)
		}
	}

	if desiredCount > 0 && desiredCount < len(out) {
		out = out[:desiredCount]
	}
	return out, nil
}

// rerankDocument builds the text the cross-encoder scores for one candidate.
func rerankDocument(c FusedResult) string {
	if c.Snippet == "" {
		return c.Title
	}
	return c.Title + "\n" + c.Snippet
}
