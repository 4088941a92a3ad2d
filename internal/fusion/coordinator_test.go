package fusion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodebench/searchmcp/internal/source"
)

func TestCoordinator_AllSettled(t *testing.T) {
	web := &stubAdapter{name: "web", available: true, results: []source.RawResult{
		{Title: "w1", URL: "https://example.com/w1", Score: 0.9},
		{Title: "w2", URL: "https://example.com/w2", Score: 0.8},
	}}
	vector := &stubAdapter{name: "vector", available: true, err: errors.New("index corrupt")}
	filings := &stubAdapter{name: "filings", available: false}

	c := NewCoordinator(source.NewRegistry(web, vector, filings))
	outcome := c.Retrieve(context.Background(), "test", []string{"web", "vector", "filings"}, source.RetrievalOptions{})

	assert.Equal(t, []string{"vector", "web"}, outcome.SourcesQueried)
	assert.Equal(t, []string{"filings"}, outcome.Unavailable)

	require.Len(t, outcome.Errors, 1)
	assert.Equal(t, "vector", outcome.Errors[0].Source)
	assert.Contains(t, outcome.Errors[0].Err, "index corrupt")

	// The failing source contributes nothing; the healthy one is untouched.
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "web", outcome.Results[0].Source)
	assert.Equal(t, 1, outcome.Results[0].Rank)
	assert.Equal(t, 2, outcome.Results[1].Rank)

	assert.Contains(t, outcome.Timing, "web")
	assert.Contains(t, outcome.Timing, "vector")
	assert.NotContains(t, outcome.Timing, "filings")
}

func TestCoordinator_ResultOrderDeterministic(t *testing.T) {
	// The slow source sorts first by name; its results must still come
	// first, regardless of goroutine completion order.
	slow := &stubAdapter{name: "alpha", available: true, delay: 30 * time.Millisecond, results: []source.RawResult{
		{Title: "slow hit", Score: 0.5},
	}}
	fast := &stubAdapter{name: "beta", available: true, results: []source.RawResult{
		{Title: "fast hit", Score: 0.9},
	}}

	c := NewCoordinator(source.NewRegistry(slow, fast))
	outcome := c.Retrieve(context.Background(), "test", []string{"beta", "alpha"}, source.RetrievalOptions{})

	assert.Equal(t, []string{"alpha", "beta"}, outcome.SourcesQueried)
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "alpha", outcome.Results[0].Source)
	assert.Equal(t, "beta", outcome.Results[1].Source)
}

func TestCoordinator_DuplicateNamesDispatchedOnce(t *testing.T) {
	web := &stubAdapter{name: "web", available: true, results: []source.RawResult{
		{Title: "w1", Score: 0.9},
	}}

	c := NewCoordinator(source.NewRegistry(web))
	outcome := c.Retrieve(context.Background(), "test", []string{"web", "web", ""}, source.RetrievalOptions{})

	assert.Equal(t, 1, web.calls)
	assert.Equal(t, []string{"web"}, outcome.SourcesQueried)
	assert.Len(t, outcome.Results, 1)
}

func TestCoordinator_UnknownSourceIsUnavailable(t *testing.T) {
	c := NewCoordinator(source.NewRegistry())
	outcome := c.Retrieve(context.Background(), "test", []string{"nope"}, source.RetrievalOptions{})

	assert.Empty(t, outcome.SourcesQueried)
	assert.Equal(t, []string{"nope"}, outcome.Unavailable)
	assert.Empty(t, outcome.Results)
	assert.Empty(t, outcome.Errors)
	assert.NotNil(t, outcome.Timing)
}

func TestCoordinator_OptionsPassedThrough(t *testing.T) {
	web := &stubAdapter{name: "web", available: true, results: []source.RawResult{
		{Title: "w1", Score: 0.9},
		{Title: "w2", Score: 0.8},
		{Title: "w3", Score: 0.7},
	}}

	c := NewCoordinator(source.NewRegistry(web))
	outcome := c.Retrieve(context.Background(), "test", []string{"web"}, source.RetrievalOptions{MaxResults: 2})

	assert.Len(t, outcome.Results, 2)
}

func TestDedupeNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupeNames([]string{"a", "b", "a", "", "b"}))
	assert.Nil(t, dedupeNames(nil))
}
