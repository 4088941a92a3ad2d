package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nodebench/searchmcp/internal/errors"
)

// DefaultFilingsTimeout bounds a single filings API request.
const DefaultFilingsTimeout = 15 * time.Second

// FilingsConfig configures the regulatory filings adapter.
type FilingsConfig struct {
	Endpoint string
	// APIKey authenticates against the filings provider.
	// Empty leaves the adapter unavailable.
	APIKey  string
	Timeout time.Duration
}

// FilingsAdapter searches a regulatory filings full-text API.
// The provider requires an API key, so the adapter reports itself
// unavailable rather than failing when none is configured.
type FilingsAdapter struct {
	endpoint string
	apiKey   string
	client   *http.Client
	breaker  *errors.CircuitBreaker
}

var _ Adapter = (*FilingsAdapter)(nil)

// NewFilingsAdapter creates a filings search adapter.
func NewFilingsAdapter(cfg FilingsConfig) *FilingsAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultFilingsTimeout
	}
	return &FilingsAdapter{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		breaker:  errors.NewCircuitBreaker("filings"),
	}
}

// Name returns the stable source identifier.
func (a *FilingsAdapter) Name() string { return "filings" }

// IsAvailable reports whether credentials are configured.
func (a *FilingsAdapter) IsAvailable() bool {
	return a.apiKey != "" && a.endpoint != "" && a.breaker.Allow()
}

// Search queries the filings full-text endpoint.
func (a *FilingsAdapter) Search(ctx context.Context, query string, opts RetrievalOptions) ([]RawResult, error) {
	if a.apiKey == "" {
		return nil, errors.New(errors.ErrCodeSourceUnavailable, "filings API key not configured", nil).
			WithSuggestion("set sources.filings.api_key in your config")
	}

	params := url.Values{"q": {query}}
	if opts.MaxResults > 0 {
		params.Set("limit", strconv.Itoa(opts.MaxResults))
	}
	if !opts.DateFrom.IsZero() {
		params.Set("date_from", opts.DateFrom.Format("2006-01-02"))
	}
	if !opts.DateTo.IsZero() {
		params.Set("date_to", opts.DateTo.Format("2006-01-02"))
	}
	reqURL := a.endpoint + "?" + params.Encode()

	var parsed filingsResponse
	err := a.breaker.Execute(func() error {
		return a.fetch(ctx, reqURL, &parsed)
	})
	if err != nil {
		if err == errors.ErrCircuitOpen {
			return nil, errors.New(errors.ErrCodeSourceUnavailable, "filings endpoint circuit open", err)
		}
		return nil, errors.SourceError("filings", "filings search failed", err)
	}

	results := make([]RawResult, 0, len(parsed.Filings))
	for i, f := range parsed.Filings {
		if opts.MaxResults > 0 && len(results) >= opts.MaxResults {
			break
		}
		r := RawResult{
			Source:      "filings",
			Title:       filingTitle(f),
			URL:         f.DocumentURL,
			DocID:       f.AccessionNumber,
			Snippet:     f.Excerpt,
			ContentType: "filing",
			Rank:        i + 1,
		}
		if f.FiledAt != "" {
			if t, perr := time.Parse("2006-01-02", f.FiledAt); perr == nil {
				r.PublishedAt = t
			}
		}
		if f.Company != "" || f.FormType != "" {
			r.Metadata = map[string]string{}
			if f.Company != "" {
				r.Metadata["company"] = f.Company
			}
			if f.FormType != "" {
				r.Metadata["form_type"] = f.FormType
			}
		}
		// The API scores nothing, so rank position carries relevance.
		if total := len(parsed.Filings); total > 1 {
			r.Score = 1.0 - float64(i)/float64(total-1)*0.9
		} else {
			r.Score = 1.0
		}
		results = append(results, r)
	}
	return results, nil
}

func (a *FilingsAdapter) fetch(ctx context.Context, reqURL string, out *filingsResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("filings request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("filings API rejected credentials (HTTP %d)", resp.StatusCode)
	default:
		return fmt.Errorf("filings API returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing filings response: %w", err)
	}
	return nil
}

// filingTitle builds a human title when the API gives structured fields
// instead of one.
func filingTitle(f filingHit) string {
	if f.Title != "" {
		return f.Title
	}
	if f.Company != "" && f.FormType != "" {
		return f.Company + " " + f.FormType
	}
	if f.Company != "" {
		return f.Company
	}
	return f.AccessionNumber
}

type filingsResponse struct {
	Total   int         `json:"total"`
	Filings []filingHit `json:"filings"`
}

type filingHit struct {
	AccessionNumber string `json:"accession_number"`
	Title           string `json:"title"`
	Company         string `json:"company"`
	FormType        string `json:"form_type"`
	FiledAt         string `json:"filed_at"`
	Excerpt         string `json:"excerpt"`
	DocumentURL     string `json:"document_url"`
}
