package fusion

import (
	"context"
	"time"

	"github.com/nodebench/searchmcp/internal/source"
)

// stubAdapter is a scriptable in-memory source for pipeline tests.
type stubAdapter struct {
	name      string
	available bool
	results   []source.RawResult
	err       error
	delay     time.Duration
	calls     int
}

func (s *stubAdapter) Name() string      { return s.name }
func (s *stubAdapter) IsAvailable() bool { return s.available }

func (s *stubAdapter) Search(ctx context.Context, _ string, opts source.RetrievalOptions) ([]source.RawResult, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := append([]source.RawResult(nil), s.results...)
	if opts.MaxResults > 0 && len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out, nil
}

var _ source.Adapter = (*stubAdapter)(nil)

func rawResult(src, title, url string, rank int, score float64) source.RawResult {
	return source.RawResult{
		Source: src,
		Title:  title,
		URL:    url,
		Rank:   rank,
		Score:  score,
	}
}

func normResult(src, title, url string, rank int, score, norm float64) NormalizedResult {
	return NormalizedResult{
		RawResult: rawResult(src, title, url, rank, score),
		NormScore: norm,
	}
}
