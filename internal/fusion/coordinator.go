package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nodebench/searchmcp/internal/source"
)

// RetrievalOutcome is the joined result of one concurrent fan-out.
type RetrievalOutcome struct {
	// Results holds all raw results, grouped by source in sorted source
	// order. Within a source the provider's order is preserved.
	Results []source.RawResult

	// SourcesQueried lists the sources that were actually dispatched.
	SourcesQueried []string

	// Unavailable lists configured sources skipped before dispatch.
	Unavailable []string

	// Timing records per-source wall-clock time, success or not.
	Timing map[string]time.Duration

	// Errors records per-source failures. A failed source contributes zero
	// results and never aborts the others.
	Errors []SourceError
}

// Coordinator fans a query out to the requested adapters concurrently and
// joins the results with all-settled semantics.
type Coordinator struct {
	registry *source.Registry
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator over the given adapter registry.
func NewCoordinator(registry *source.Registry) *Coordinator {
	return &Coordinator{
		registry: registry,
		logger:   slog.Default(),
	}
}

// Retrieve dispatches the query to every named source that is available.
// Unavailable sources are recorded, not errored. Each adapter call runs in
// its own goroutine; an adapter failure produces an error entry and zero
// results for that source only. The join is bounded by the adapters' own
// timeouts; the coordinator adds no timeout of its own.
//
// The returned result order is deterministic: sources in sorted name order,
// each source's results in provider order. Goroutine completion order never
// leaks into the output.
func (c *Coordinator) Retrieve(ctx context.Context, query string, sources []string, opts source.RetrievalOptions) RetrievalOutcome {
	outcome := RetrievalOutcome{
		Timing: make(map[string]time.Duration),
	}

	// Availability check before dispatch.
	var dispatch []source.Adapter
	for _, name := range dedupeNames(sources) {
		a := c.registry.Get(name)
		if a == nil || !a.IsAvailable() {
			outcome.Unavailable = append(outcome.Unavailable, name)
			continue
		}
		dispatch = append(dispatch, a)
	}
	sort.Slice(dispatch, func(i, j int) bool { return dispatch[i].Name() < dispatch[j].Name() })
	sort.Strings(outcome.Unavailable)

	if len(dispatch) == 0 {
		return outcome
	}

	type slot struct {
		results []source.RawResult
		err     error
		elapsed time.Duration
	}
	slots := make([]slot, len(dispatch))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range dispatch {
		g.Go(func() error {
			start := time.Now()
			results, err := a.Search(gctx, query, opts)
			slots[i] = slot{results: results, err: err, elapsed: time.Since(start)}
			// Errors are collected per slot, never returned to the group:
			// one failing adapter must not cancel the siblings.
			return nil
		})
	}
	// Errors never propagate, so Wait only reflects ctx state.
	_ = g.Wait()

	// Join in sorted source order so arrival order cannot leak downstream.
	for i, a := range dispatch {
		name := a.Name()
		outcome.SourcesQueried = append(outcome.SourcesQueried, name)
		outcome.Timing[name] = slots[i].elapsed

		if err := slots[i].err; err != nil {
			c.logger.Warn("source failed",
				slog.String("source", name),
				slog.Duration("elapsed", slots[i].elapsed),
				slog.String("error", err.Error()))
			outcome.Errors = append(outcome.Errors, SourceError{
				Source: name,
				Err:    fmt.Sprintf("%v", err),
			})
			continue
		}

		for rank, r := range slots[i].results {
			// The adapter's list order is authoritative for originalRank.
			r.Source = name
			r.Rank = rank + 1
			outcome.Results = append(outcome.Results, r)
		}
	}

	return outcome
}

// dedupeNames removes duplicate source names, preserving first occurrence.
func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
