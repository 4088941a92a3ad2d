package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache defaults.
const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Minute
)

// CachedAdapter wraps an Adapter with a TTL-bounded LRU cache so repeated
// queries skip the backend entirely. Errors are never cached.
type CachedAdapter struct {
	inner Adapter
	cache *expirable.LRU[string, []RawResult]
}

var _ Adapter = (*CachedAdapter)(nil)

// NewCachedAdapter wraps inner with caching.
func NewCachedAdapter(inner Adapter, size int, ttl time.Duration) *CachedAdapter {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedAdapter{
		inner: inner,
		cache: expirable.NewLRU[string, []RawResult](size, nil, ttl),
	}
}

// Name returns the inner adapter's identifier.
func (c *CachedAdapter) Name() string { return c.inner.Name() }

// IsAvailable defers to the inner adapter.
func (c *CachedAdapter) IsAvailable() bool { return c.inner.IsAvailable() }

// Inner returns the wrapped adapter.
func (c *CachedAdapter) Inner() Adapter { return c.inner }

// Search returns cached results when the same query and options were seen
// within the TTL, otherwise calls through and caches the outcome.
func (c *CachedAdapter) Search(ctx context.Context, query string, opts RetrievalOptions) ([]RawResult, error) {
	key := c.cacheKey(query, opts)

	if results, ok := c.cache.Get(key); ok {
		// Copy so callers mutating ranks do not poison the cache.
		out := make([]RawResult, len(results))
		copy(out, results)
		return out, nil
	}

	results, err := c.inner.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	stored := make([]RawResult, len(results))
	copy(stored, results)
	c.cache.Add(key, stored)
	return results, nil
}

// Purge drops all cached entries.
func (c *CachedAdapter) Purge() {
	c.cache.Purge()
}

// cacheKey folds the query and every option that affects results into a
// stable hash.
func (c *CachedAdapter) cacheKey(query string, opts RetrievalOptions) string {
	var b strings.Builder
	b.WriteString(query)
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(opts.MaxResults))
	b.WriteByte(0)
	b.WriteString(strings.Join(opts.ContentTypes, ","))
	b.WriteByte(0)
	if !opts.DateFrom.IsZero() {
		b.WriteString(opts.DateFrom.Format(time.RFC3339))
	}
	b.WriteByte(0)
	if !opts.DateTo.IsZero() {
		b.WriteString(opts.DateTo.Format(time.RFC3339))
	}
	b.WriteByte(0)
	// Per-tenant adapters return caller-scoped results; sharing entries
	// across callers would leak them.
	b.WriteString(opts.Caller)
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}
