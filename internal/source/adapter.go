// Package source defines the adapter contract for search providers and the
// reference adapter implementations (web search, filings, in-process indices).
// Each adapter wraps one provider and owns its own timeout and retry policy;
// the fusion pipeline never retries on an adapter's behalf.
package source

import (
	"context"
	"sort"
	"time"
)

// RawResult is a provider-scoped search hit. Rank and Score are in the
// provider's own scale and are not comparable across sources until the
// pipeline normalizes them.
type RawResult struct {
	// Source is the adapter name that produced this result.
	Source string

	// Title is the result title as reported by the provider.
	Title string

	// URL is the public URL, if the provider has one.
	URL string

	// DocID is the internal document identifier for providers without URLs
	// (document stores, internal indices).
	DocID string

	// Snippet is a short content excerpt, if available.
	Snippet string

	// ContentType is the provider's content classification
	// (e.g. "web", "news", "filing", "document").
	ContentType string

	// PublishedAt is the content timestamp; zero when unknown.
	PublishedAt time.Time

	// Rank is the 1-based position within this provider's result list.
	Rank int

	// Score is the provider-scaled relevance score.
	Score float64

	// Metadata carries free-form provider fields for diagnostics.
	Metadata map[string]string
}

// RetrievalOptions configures a single adapter call.
type RetrievalOptions struct {
	// MaxResults caps the number of results the adapter may return.
	MaxResults int

	// ContentTypes restricts results to these types; empty means all.
	ContentTypes []string

	// DateFrom/DateTo restrict results by content date when the provider
	// supports it. Zero values mean unbounded.
	DateFrom time.Time
	DateTo   time.Time

	// Caller identifies the requesting principal for adapters that need it
	// (quota accounting, per-tenant indices). The pipeline itself ignores it.
	Caller string
}

// Adapter is the uniform capability every search provider exposes.
// Implementations must not panic; failures are returned as errors.
type Adapter interface {
	// Name returns the stable source identifier (e.g. "web", "filings").
	Name() string

	// IsAvailable reports whether the adapter is configured and usable
	// (credentials present, index opened). Unavailable adapters are skipped
	// before dispatch, not treated as errors.
	IsAvailable() bool

	// Search executes the query. The adapter owns time-boxing: it must
	// return within its own timeout and honor ctx cancellation.
	Search(ctx context.Context, query string, opts RetrievalOptions) ([]RawResult, error)
}

// Registry owns the adapter set for one pipeline instance.
// It is constructed once and read-only afterwards; there is no global
// mutable adapter registry.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry from the given adapters.
// Later adapters with duplicate names replace earlier ones.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		if a != nil {
			m[a.Name()] = a
		}
	}
	return &Registry{adapters: m}
}

// Get returns the adapter with the given name, or nil.
func (r *Registry) Get(name string) Adapter {
	return r.adapters[name]
}

// Names returns all registered adapter names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available returns the names of adapters that report IsAvailable,
// in sorted order.
func (r *Registry) Available() []string {
	var names []string
	for name, a := range r.adapters {
		if a.IsAvailable() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.adapters)
}
