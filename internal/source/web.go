package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nodebench/searchmcp/internal/errors"
)

// DefaultWebTimeout bounds a single web search request.
const DefaultWebTimeout = 10 * time.Second

// WebConfig configures the web metasearch adapter.
type WebConfig struct {
	// Endpoint is a SearxNG-compatible JSON search endpoint.
	// Empty leaves the adapter unavailable.
	Endpoint string
	Timeout  time.Duration
}

// WebAdapter queries a SearxNG-compatible metasearch instance.
// A circuit breaker marks the source unavailable after repeated failures
// so a dead endpoint stops eating the retrieval budget.
type WebAdapter struct {
	endpoint string
	client   *http.Client
	breaker  *errors.CircuitBreaker
	retry    errors.RetryConfig
}

var _ Adapter = (*WebAdapter)(nil)

// NewWebAdapter creates a web search adapter.
func NewWebAdapter(cfg WebConfig) *WebAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultWebTimeout
	}
	return &WebAdapter{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker:  errors.NewCircuitBreaker("web"),
		retry:    errors.DefaultRetryConfig(),
	}
}

// Name returns the stable source identifier.
func (a *WebAdapter) Name() string { return "web" }

// IsAvailable reports whether the adapter is configured and the endpoint
// has not tripped the circuit breaker.
func (a *WebAdapter) IsAvailable() bool {
	return a.endpoint != "" && a.breaker.Allow()
}

// Search queries the metasearch endpoint.
func (a *WebAdapter) Search(ctx context.Context, query string, opts RetrievalOptions) ([]RawResult, error) {
	if a.endpoint == "" {
		return nil, errors.New(errors.ErrCodeSourceUnavailable, "web endpoint not configured", nil)
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
	}
	if opts.MaxResults > 0 {
		params.Set("max_results", strconv.Itoa(opts.MaxResults))
	}
	if len(opts.ContentTypes) > 0 {
		// SearxNG categories map 1:1 onto our content types for this source.
		params.Set("categories", strings.Join(opts.ContentTypes, ","))
	}
	reqURL := a.endpoint + "?" + params.Encode()

	var parsed searxResponse
	err := a.breaker.Execute(func() error {
		return errors.Retry(ctx, a.retry, func() error {
			return a.fetch(ctx, reqURL, &parsed)
		})
	})
	if err != nil {
		if err == errors.ErrCircuitOpen {
			return nil, errors.New(errors.ErrCodeSourceUnavailable, "web endpoint circuit open", err)
		}
		return nil, errors.SourceError("web", "web search failed", err)
	}

	results := make([]RawResult, 0, len(parsed.Results))
	for i, hit := range parsed.Results {
		if opts.MaxResults > 0 && len(results) >= opts.MaxResults {
			break
		}
		r := RawResult{
			Source:      "web",
			Title:       hit.Title,
			URL:         hit.URL,
			Snippet:     hit.Content,
			ContentType: contentTypeFromCategory(hit.Category),
			Rank:        i + 1,
			Score:       hit.Score,
		}
		if hit.PublishedDate != "" {
			if t, perr := parseWebDate(hit.PublishedDate); perr == nil {
				r.PublishedAt = t
			}
		}
		if hit.Engine != "" {
			r.Metadata = map[string]string{"engine": hit.Engine}
		}
		if !dateInRange(r.PublishedAt, opts.DateFrom, opts.DateTo) {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// fetch executes one GET against the endpoint and decodes the response.
func (a *WebAdapter) fetch(ctx context.Context, reqURL string, out *searxResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("web search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("web search returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing web search response: %w", err)
	}
	return nil
}

// parseWebDate accepts the date formats SearxNG engines commonly emit.
func parseWebDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %s", s)
}

// contentTypeFromCategory maps SearxNG categories onto our content types.
func contentTypeFromCategory(category string) string {
	switch category {
	case "news":
		return "news"
	case "":
		return "web"
	default:
		return category
	}
}

// dateInRange checks the timestamp against an optional window.
// Undated results pass; the pipeline handles their ordering.
func dateInRange(t, from, to time.Time) bool {
	if t.IsZero() {
		return true
	}
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

// SearxNG JSON API structures.
type searxResponse struct {
	Query     string         `json:"query"`
	Results   []searxHit     `json:"results"`
	Infoboxes []searxInfobox `json:"infoboxes"`
}

type searxHit struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Engine        string  `json:"engine"`
	Category      string  `json:"category"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"publishedDate"`
}

type searxInfobox struct {
	Infobox string `json:"infobox"`
	Content string `json:"content"`
}
