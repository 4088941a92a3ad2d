// Package telemetry collects local query pattern metrics for the fusion
// pipeline. All data stays in process; nothing is reported externally.
package telemetry

import (
	"sync"
	"time"
)

// QueryType mirrors the pipeline's query classification for counting.
type QueryType string

// Mode mirrors the pipeline's search mode for counting.
type Mode string

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP50   LatencyBucket = "p50"   // <50ms
	BucketP200  LatencyBucket = "p200"  // 50-200ms
	BucketP500  LatencyBucket = "p500"  // 200-500ms
	BucketP2000 LatencyBucket = "p2000" // 500ms-2s
	BucketSlow  LatencyBucket = "slow"  // >=2s
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 50:
		return BucketP50
	case ms < 200:
		return BucketP200
	case ms < 500:
		return BucketP500
	case ms < 2000:
		return BucketP2000
	default:
		return BucketSlow
	}
}

// QueryEvent represents one completed pipeline execution.
type QueryEvent struct {
	Query          string
	QueryType      QueryType
	Mode           Mode
	SourcesQueried int
	ResultCount    int
	Reranked       bool
	Latency        time.Duration
	Timestamp      time.Time
}

// IsZeroResult returns true if this query returned no results.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// QueryMetrics accumulates query events in memory.
type QueryMetrics struct {
	mu sync.RWMutex

	total       int64
	zeroResults int64
	reranked    int64
	byType      map[QueryType]int64
	byMode      map[Mode]int64
	byLatency   map[LatencyBucket]int64
	zeroBuffer  *CircularBuffer[string]
	since       time.Time
}

// NewQueryMetrics creates an empty metrics collector.
func NewQueryMetrics() *QueryMetrics {
	return &QueryMetrics{
		byType:     make(map[QueryType]int64),
		byMode:     make(map[Mode]int64),
		byLatency:  make(map[LatencyBucket]int64),
		zeroBuffer: NewCircularBuffer[string](100),
		since:      time.Now(),
	}
}

// Record adds one query event.
func (m *QueryMetrics) Record(e QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.byType[e.QueryType]++
	m.byMode[e.Mode]++
	m.byLatency[LatencyToBucket(e.Latency)]++
	if e.Reranked {
		m.reranked++
	}
	if e.IsZeroResult() {
		m.zeroResults++
		m.zeroBuffer.Add(e.Query)
	}
}

// Snapshot is an immutable view of the collected metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	RerankedCount       int64                   `json:"reranked_count"`
	QueryTypeCounts     map[QueryType]int64     `json:"query_type_counts"`
	ModeCounts          map[Mode]int64          `json:"mode_counts"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Snapshot returns a copy of the current metrics.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &Snapshot{
		TotalQueries:        m.total,
		ZeroResultCount:     m.zeroResults,
		RerankedCount:       m.reranked,
		QueryTypeCounts:     make(map[QueryType]int64, len(m.byType)),
		ModeCounts:          make(map[Mode]int64, len(m.byMode)),
		LatencyDistribution: make(map[LatencyBucket]int64, len(m.byLatency)),
		ZeroResultQueries:   m.zeroBuffer.Items(),
		Since:               m.since,
	}
	for k, v := range m.byType {
		s.QueryTypeCounts[k] = v
	}
	for k, v := range m.byMode {
		s.ModeCounts[k] = v
	}
	for k, v := range m.byLatency {
		s.LatencyDistribution[k] = v
	}
	return s
}
