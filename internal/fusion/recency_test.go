package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecency_FresherWinsOnEqualScore(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	b := NewRecencyBiaser(DefaultRecencyStrength)
	b.now = fixedClock(now)

	in := []FusedResult{
		{Key: "old", HybridScore: 0.8, PublishedAt: now.AddDate(0, -10, 0)},
		{Key: "new", HybridScore: 0.8, PublishedAt: now.AddDate(0, 0, -7)},
	}

	out := b.Apply(in)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].Key)
	assert.Equal(t, "old", out[1].Key)

	// Stored scores stay untouched; the adjustment is transient.
	assert.InDelta(t, 0.8, out[0].HybridScore, 1e-9)
	assert.InDelta(t, 0.8, out[1].HybridScore, 1e-9)
}

func TestRecency_FineTunesNotOverrides(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	b := NewRecencyBiaser(DefaultRecencyStrength)
	b.now = fixedClock(now)

	// A clearly better old result holds its position: the penalty is
	// bounded by strength.
	in := []FusedResult{
		{Key: "strong-old", HybridScore: 0.9, PublishedAt: now.AddDate(-3, 0, 0)},
		{Key: "weak-new", HybridScore: 0.5, PublishedAt: now},
	}

	out := b.Apply(in)
	assert.Equal(t, "strong-old", out[0].Key)
}

func TestRecency_UndatedUnadjusted(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	b := NewRecencyBiaser(0.5)
	b.now = fixedClock(now)

	in := []FusedResult{
		{Key: "dated", HybridScore: 0.8, PublishedAt: now.AddDate(-2, 0, 0)},
		{Key: "undated", HybridScore: 0.7},
	}

	// dated: 0.8·(1−0.5) = 0.4; undated keeps 0.7 and moves ahead.
	out := b.Apply(in)
	assert.Equal(t, "undated", out[0].Key)
}

func TestRecency_PenaltySaturatesAtHorizon(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	b := NewRecencyBiaser(0.5)
	b.now = fixedClock(now)

	twoYears := b.multiplier(now, now.AddDate(-2, 0, 0))
	tenYears := b.multiplier(now, now.AddDate(-10, 0, 0))
	assert.InDelta(t, 0.5, twoYears, 1e-9)
	assert.InDelta(t, twoYears, tenYears, 1e-9)
}

func TestRecency_FutureDateUnpenalized(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	b := NewRecencyBiaser(0.5)
	b.now = fixedClock(now)

	assert.InDelta(t, 1.0, b.multiplier(now, now.AddDate(0, 0, 1)), 1e-9)
}

func TestRecency_ZeroStrengthPreservesOrder(t *testing.T) {
	b := &RecencyBiaser{Strength: 0, Horizon: DefaultRecencyHorizon, now: time.Now}

	in := []FusedResult{
		{Key: "a", HybridScore: 0.2, PublishedAt: time.Now()},
		{Key: "b", HybridScore: 0.9, PublishedAt: time.Now().AddDate(-5, 0, 0)},
	}

	out := b.Apply(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Key)
	assert.Equal(t, "b", out[1].Key)
}

func TestRecency_Idempotent(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	b := NewRecencyBiaser(DefaultRecencyStrength)
	b.now = fixedClock(now)

	in := []FusedResult{
		{Key: "a", HybridScore: 0.81, PublishedAt: now.AddDate(0, -11, 0)},
		{Key: "b", HybridScore: 0.80, PublishedAt: now},
		{Key: "c", HybridScore: 0.78, PublishedAt: now.AddDate(0, -1, 0)},
	}

	once := b.Apply(in)
	twice := b.Apply(once)
	assert.Equal(t, once, twice)
}

func TestNewRecencyBiaser_OutOfRangeFallsBack(t *testing.T) {
	assert.InDelta(t, DefaultRecencyStrength, NewRecencyBiaser(-0.1).Strength, 1e-9)
	assert.InDelta(t, DefaultRecencyStrength, NewRecencyBiaser(1.5).Strength, 1e-9)
	assert.InDelta(t, 0.3, NewRecencyBiaser(0.3).Strength, 1e-9)
}

func TestRecency_Empty(t *testing.T) {
	b := NewRecencyBiaser(DefaultRecencyStrength)
	out := b.Apply(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
