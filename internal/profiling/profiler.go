// Package profiling exposes the runtime's CPU, heap, and trace profiles
// behind the CLI's --profile-* flags.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Profiler owns the files backing the long-running profiles (CPU, trace).
// Snapshot profiles open and close their file per call.
type Profiler struct {
	cpuFile   *os.File
	traceFile *os.File
}

// NewProfiler returns an idle profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPU begins CPU profiling into path. The cleanup stops the profile
// and closes the file; the CLI defers it around the whole command run so
// the profile covers retrieval, fusion, and rendering.
func (p *Profiler) StartCPU(path string) (cleanup func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}

	p.cpuFile = f
	return func() {
		pprof.StopCPUProfile()
		_ = p.cpuFile.Close()
		p.cpuFile = nil
	}, nil
}

// StartTrace begins execution tracing into path. Useful for seeing the
// fan-out of concurrent source calls; cleanup stops the trace.
func (p *Profiler) StartTrace(path string) (cleanup func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := trace.Start(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start trace: %w", err)
	}

	p.traceFile = f
	return func() {
		trace.Stop()
		_ = p.traceFile.Close()
		p.traceFile = nil
	}, nil
}

// WriteHeap writes a live-object heap snapshot to path, forcing a GC first
// so the snapshot reflects reachable memory.
func (p *Profiler) WriteHeap(path string) error {
	return writeSnapshot(path, "heap", func(f *os.File) error {
		runtime.GC()
		return pprof.WriteHeapProfile(f)
	})
}

// WriteAllocs writes the cumulative allocations profile to path.
func (p *Profiler) WriteAllocs(path string) error {
	return writeSnapshot(path, "allocs", func(f *os.File) error {
		runtime.GC()
		return pprof.Lookup("allocs").WriteTo(f, 0)
	})
}

// WriteGoroutine dumps every goroutine's stack to path.
func (p *Profiler) WriteGoroutine(path string) error {
	return writeSnapshot(path, "goroutine", func(f *os.File) error {
		return pprof.Lookup("goroutine").WriteTo(f, 1)
	})
}

// WriteBlock writes the blocking profile to path.
func (p *Profiler) WriteBlock(path string) error {
	return writeSnapshot(path, "block", func(f *os.File) error {
		return pprof.Lookup("block").WriteTo(f, 0)
	})
}

// writeSnapshot handles the open-write-close dance shared by all
// point-in-time profiles.
func writeSnapshot(path, kind string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s profile file: %w", kind, err)
	}
	defer func() { _ = f.Close() }()

	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s profile: %w", kind, err)
	}
	return nil
}

// MemStats returns the runtime's current memory statistics.
func MemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

// FormatBytes renders a byte count for status output.
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
