package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedup_ByURL(t *testing.T) {
	d := NewDeduplicator()

	in := []FusedResult{
		{Key: "k1", Title: "First Take", URL: "https://example.com/a?utm_source=x"},
		{Key: "k2", Title: "Second Take", URL: "https://www.example.com/a/"},
		{Key: "k3", Title: "Other Page", URL: "https://example.com/b"},
	}

	out, breakdown := d.Dedup(in)
	require.Len(t, out, 2)
	assert.Equal(t, "k1", out[0].Key)
	assert.Equal(t, "k3", out[1].Key)
	assert.Equal(t, 1, breakdown.ByURL)
	assert.Equal(t, 0, breakdown.ByTitle)
}

func TestDedup_ByTitle(t *testing.T) {
	d := NewDeduplicator()

	in := []FusedResult{
		{Key: "k1", Title: "Quarterly Earnings Report", URL: "https://a.example.com/report"},
		{Key: "k2", Title: "Quarterly Earnings Report!", URL: "https://b.example.com/mirror"},
		{Key: "k3", Title: "Quarterly Earnings Report", DocID: "d9"},
	}

	out, breakdown := d.Dedup(in)
	require.Len(t, out, 1)
	assert.Equal(t, "k1", out[0].Key)
	assert.Equal(t, 0, breakdown.ByURL)
	assert.Equal(t, 2, breakdown.ByTitle)
}

func TestDedup_FirstOccurrenceWins(t *testing.T) {
	d := NewDeduplicator()

	in := []FusedResult{
		{Key: "high", Title: "Same Page", URL: "https://example.com/x", HybridScore: 0.9},
		{Key: "low", Title: "Same Page", URL: "http://example.com/x", HybridScore: 0.4},
	}

	out, _ := d.Dedup(in)
	require.Len(t, out, 1)
	assert.Equal(t, "high", out[0].Key)
	assert.InDelta(t, 0.9, out[0].HybridScore, 1e-9)
}

func TestDedup_UntitledAndUnlinkedKept(t *testing.T) {
	d := NewDeduplicator()

	in := []FusedResult{
		{Key: "k1"},
		{Key: "k2"},
	}

	out, breakdown := d.Dedup(in)
	assert.Len(t, out, 2)
	assert.Equal(t, DedupBreakdown{}, breakdown)
}

func TestDedup_Empty(t *testing.T) {
	d := NewDeduplicator()
	out, breakdown := d.Dedup(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Equal(t, DedupBreakdown{}, breakdown)
}
