package fusion

import (
	"sort"
	"time"
)

// Recency defaults: a moderate penalty that fine-tunes the order without
// letting freshness override consensus or semantic relevance.
const (
	DefaultRecencyStrength = 0.15
	DefaultRecencyHorizon  = 365 * 24 * time.Hour
)

// RecencyBiaser nudges the final order by content age. It runs last in the
// pipeline, after reranking, so freshness fine-tunes rather than overrides
// the upstream signals.
//
// The adjustment is a bounded multiplier 1 − strength·min(1, age/horizon):
// monotonic in age, so older content is never lifted above otherwise-equal
// newer content, and capped at strength so no item loses more than that
// fraction of its score. Undated content is left unadjusted.
type RecencyBiaser struct {
	// Strength is the maximum score fraction an item can lose to age,
	// in [0,1].
	Strength float64

	// Horizon is the age at which the penalty saturates.
	Horizon time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// NewRecencyBiaser creates a biaser with the given strength. Out-of-range
// strengths fall back to the default.
func NewRecencyBiaser(strength float64) *RecencyBiaser {
	if strength < 0 || strength > 1 {
		strength = DefaultRecencyStrength
	}
	return &RecencyBiaser{
		Strength: strength,
		Horizon:  DefaultRecencyHorizon,
		now:      time.Now,
	}
}

// Apply returns a new slice re-sorted by the age-adjusted score. The stored
// hybrid scores are not modified: the adjustment is recomputed from the
// immutable hybrid score each time, so applying the biaser again yields the
// same order.
func (b *RecencyBiaser) Apply(results []FusedResult) []FusedResult {
	if len(results) == 0 {
		return []FusedResult{}
	}

	if b.Strength == 0 {
		return append([]FusedResult(nil), results...)
	}

	now := b.now()
	type pair struct {
		result   FusedResult
		adjusted float64
	}
	pairs := make([]pair, len(results))
	for i, r := range results {
		pairs[i] = pair{result: r, adjusted: r.HybridScore * b.multiplier(now, r.PublishedAt)}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].adjusted != pairs[j].adjusted {
			return pairs[i].adjusted > pairs[j].adjusted
		}
		return pairs[i].result.Key < pairs[j].result.Key
	})

	out := make([]FusedResult, len(pairs))
	for i, p := range pairs {
		out[i] = p.result
	}
	return out
}

// multiplier computes the bounded age penalty for one timestamp.
func (b *RecencyBiaser) multiplier(now, published time.Time) float64 {
	if published.IsZero() || b.Horizon <= 0 {
		return 1
	}
	age := now.Sub(published)
	if age <= 0 {
		return 1
	}
	frac := float64(age) / float64(b.Horizon)
	if frac > 1 {
		frac = 1
	}
	return 1 - b.Strength*frac
}
