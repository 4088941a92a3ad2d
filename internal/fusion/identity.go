package fusion

import (
	"strings"
	"unicode"

	"github.com/nodebench/searchmcp/internal/source"
)

// CanonicalID returns the identity key used to recognize "the same item"
// across sources: the normalized URL, else the internal document id, else a
// provider-local key. It is a pure function of the result's fields, so the
// same input always yields the same key.
func CanonicalID(r source.RawResult) string {
	if r.URL != "" {
		return "url:" + NormalizeURL(r.URL)
	}
	if r.DocID != "" {
		return "doc:" + r.DocID
	}
	// Provider-local fallback: no stable id, so scope the normalized title
	// to the source.
	return "local:" + r.Source + ":" + NormalizeTitle(r.Title)
}

// NormalizeURL canonicalizes a URL for identity comparison: scheme and
// leading "www." are dropped, the host is lowercased, and fragments,
// tracking parameters, and trailing slashes are stripped.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)

	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(strings.ToLower(u), prefix) {
			u = u[len(prefix):]
			break
		}
	}
	u = strings.TrimPrefix(u, "www.")

	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i] + normalizeQueryParams(u[i+1:])
	}

	// Lowercase the host portion only; paths may be case-sensitive.
	if i := strings.IndexByte(u, '/'); i >= 0 {
		u = strings.ToLower(u[:i]) + u[i:]
	} else {
		u = strings.ToLower(u)
	}

	return strings.TrimSuffix(u, "/")
}

// normalizeQueryParams drops tracking parameters and returns the remaining
// query string prefixed with "?", or "" when nothing is left.
func normalizeQueryParams(query string) string {
	var kept []string
	for _, pair := range strings.Split(query, "&") {
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		key = strings.ToLower(key)
		if strings.HasPrefix(key, "utm_") || key == "ref" || key == "fbclid" || key == "gclid" {
			continue
		}
		if pair != "" {
			kept = append(kept, pair)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "?" + strings.Join(kept, "&")
}

// NormalizeTitle lowercases a title and strips punctuation and extra
// whitespace, for near-duplicate detection and provider-local identity.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
