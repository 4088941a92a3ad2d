package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *WebAdapter) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewWebAdapter(WebConfig{Endpoint: srv.URL})
}

func TestWebAdapter_Search(t *testing.T) {
	var gotQuery string
	_, adapter := newWebServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"query": "go concurrency",
			"results": [
				{"url": "https://example.com/a", "title": "First", "content": "snippet a", "engine": "ddg", "score": 4.2, "publishedDate": "2025-06-01T00:00:00Z"},
				{"url": "https://example.com/b", "title": "Second", "content": "snippet b", "category": "news"}
			]
		}`))
	})

	results, err := adapter.Search(context.Background(), "go concurrency", RetrievalOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "go concurrency", gotQuery)
	assert.Equal(t, "web", results[0].Source)
	assert.Equal(t, "First", results[0].Title)
	assert.Equal(t, "https://example.com/a", results[0].URL)
	assert.Equal(t, 1, results[0].Rank)
	assert.InDelta(t, 4.2, results[0].Score, 1e-9)
	assert.Equal(t, 2025, results[0].PublishedAt.Year())
	assert.Equal(t, map[string]string{"engine": "ddg"}, results[0].Metadata)

	assert.Equal(t, "news", results[1].ContentType)
	assert.Equal(t, 2, results[1].Rank)
}

func TestWebAdapter_ContentTypesSentAsCategories(t *testing.T) {
	var gotCategories string
	_, adapter := newWebServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotCategories = r.URL.Query().Get("categories")
		_, _ = w.Write([]byte(`{"results": []}`))
	})

	_, err := adapter.Search(context.Background(), "q", RetrievalOptions{
		ContentTypes: []string{"news", "science"},
	})
	require.NoError(t, err)
	assert.Equal(t, "news,science", gotCategories)
}

func TestWebAdapter_MaxResultsCapsOutput(t *testing.T) {
	_, adapter := newWebServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [
			{"url": "u1", "title": "a"},
			{"url": "u2", "title": "b"},
			{"url": "u3", "title": "c"}
		]}`))
	})

	results, err := adapter.Search(context.Background(), "q", RetrievalOptions{MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestWebAdapter_DateRangeFiltersResults(t *testing.T) {
	_, adapter := newWebServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [
			{"url": "old", "title": "old", "publishedDate": "2020-01-15"},
			{"url": "new", "title": "new", "publishedDate": "2025-02-10"},
			{"url": "undated", "title": "undated"}
		]}`))
	})

	results, err := adapter.Search(context.Background(), "q", RetrievalOptions{
		DateFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "new", results[0].URL)
	// Undated results pass the filter.
	assert.Equal(t, "undated", results[1].URL)
}

func TestWebAdapter_ServerErrorReturnsSourceError(t *testing.T) {
	_, adapter := newWebServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	adapter.retry.MaxRetries = 0

	_, err := adapter.Search(context.Background(), "q", RetrievalOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_202")
}

func TestWebAdapter_NoEndpointIsUnavailable(t *testing.T) {
	adapter := NewWebAdapter(WebConfig{})
	assert.False(t, adapter.IsAvailable())

	_, err := adapter.Search(context.Background(), "q", RetrievalOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_201")
}

func TestWebAdapter_Name(t *testing.T) {
	assert.Equal(t, "web", NewWebAdapter(WebConfig{}).Name())
}
