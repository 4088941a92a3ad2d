package profiling

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// churn burns CPU and allocates so the profiles have something to record.
func churn() {
	queries := []string{
		"golang vs rust performance",
		"acme corp sec filings",
		"vector database comparison",
	}
	for range 2000 {
		for _, q := range queries {
			sum := sha256.Sum256([]byte(q))
			_ = append([]byte(nil), sum[:]...)
		}
	}
}

func profileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func TestProfiler_StartCPU(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.prof")

	p := NewProfiler()
	cleanup, err := p.StartCPU(path)
	require.NoError(t, err)

	churn()
	cleanup()

	assert.Greater(t, profileSize(t, path), int64(0))
}

func TestProfiler_StartCPU_BadPath(t *testing.T) {
	p := NewProfiler()
	_, err := p.StartCPU(filepath.Join(t.TempDir(), "missing", "cpu.prof"))
	assert.Error(t, err)
}

func TestProfiler_StartTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.out")

	p := NewProfiler()
	cleanup, err := p.StartTrace(path)
	require.NoError(t, err)

	churn()
	cleanup()

	assert.Greater(t, profileSize(t, path), int64(0))
}

func TestProfiler_WriteHeap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")

	p := NewProfiler()
	require.NoError(t, p.WriteHeap(path))
	assert.Greater(t, profileSize(t, path), int64(0))
}

func TestProfiler_WriteAllocs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allocs.prof")
	churn()

	p := NewProfiler()
	require.NoError(t, p.WriteAllocs(path))
	assert.Greater(t, profileSize(t, path), int64(0))
}

func TestProfiler_WriteGoroutine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goroutine.prof")

	p := NewProfiler()
	require.NoError(t, p.WriteGoroutine(path))
	assert.Greater(t, profileSize(t, path), int64(0))
}

func TestMemStats(t *testing.T) {
	stats := MemStats()
	assert.Greater(t, stats.Alloc, uint64(0))
	assert.Greater(t, stats.TotalAlloc, uint64(0))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.bytes))
		})
	}
}
