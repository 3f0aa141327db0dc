// Package metrics tracks latencies and outcome counters for the reply pipeline.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// LatencyTracker keeps the most recent samples in a ring buffer and reports
// percentiles over them.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	total   int64
}

// NewLatencyTracker creates a tracker holding windowSize samples.
func NewLatencyTracker(windowSize int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &LatencyTracker{samples: make([]time.Duration, windowSize)}
}

// Record adds a sample, overwriting the oldest once the window is full.
func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.samples[lt.next] = d
	lt.next++
	if lt.next == len(lt.samples) {
		lt.next = 0
		lt.full = true
	}
	lt.total++
}

// Since records the time elapsed since start.
func (lt *LatencyTracker) Since(start time.Time) {
	lt.Record(time.Since(start))
}

// Stats computes statistics over the current window.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	n := lt.next
	if lt.full {
		n = len(lt.samples)
	}
	window := make([]time.Duration, n)
	copy(window, lt.samples[:n])
	total := lt.total
	lt.mu.Unlock()

	if n == 0 {
		return LatencyStats{Count: total}
	}
	slices.Sort(window)

	var sum time.Duration
	for _, d := range window {
		sum += d
	}
	return LatencyStats{
		Count:   total,
		Samples: n,
		Min:     window[0],
		Max:     window[n-1],
		Avg:     sum / time.Duration(n),
		P50:     percentile(window, 0.50),
		P95:     percentile(window, 0.95),
		P99:     percentile(window, 0.99),
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// LatencyStats holds latency statistics.
type LatencyStats struct {
	Count   int64         `json:"count"`
	Samples int           `json:"samples"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Avg     time.Duration `json:"avg"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
}

// ToMap renders the stats in milliseconds for JSON responses.
func (s LatencyStats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"count":       s.Count,
		"sample_size": s.Samples,
		"min_ms":      ms(s.Min),
		"max_ms":      ms(s.Max),
		"avg_ms":      ms(s.Avg),
		"p50_ms":      ms(s.P50),
		"p95_ms":      ms(s.P95),
		"p99_ms":      ms(s.P99),
	}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	v atomic.Int64
}

func (c *Counter) Inc()         { c.v.Add(1) }
func (c *Counter) Value() int64 { return c.v.Load() }

// Registry groups the trackers and counters exposed on /api/metrics.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
	counters map[string]*Counter
	window   int
}

// NewRegistry creates a registry whose trackers hold windowSize samples.
func NewRegistry(windowSize int) *Registry {
	return &Registry{
		trackers: make(map[string]*LatencyTracker),
		counters: make(map[string]*Counter),
		window:   windowSize,
	}
}

// Latency returns the tracker for name, creating it on first use.
func (r *Registry) Latency(name string) *LatencyTracker {
	r.mu.RLock()
	t, ok := r.trackers[name]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.trackers[name]; !ok {
		t = NewLatencyTracker(r.window)
		r.trackers[name] = t
	}
	return t
}

// Counter returns the counter for name, creating it on first use.
func (r *Registry) Counter(name string) *Counter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; !ok {
		c = &Counter{}
		r.counters[name] = c
	}
	return c
}

// Snapshot renders every tracker and counter.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latency := make(map[string]any, len(r.trackers))
	for name, t := range r.trackers {
		latency[name] = t.Stats().ToMap()
	}
	counters := make(map[string]int64, len(r.counters))
	for name, c := range r.counters {
		counters[name] = c.Value()
	}
	return map[string]any{
		"latency":  latency,
		"counters": counters,
	}
}
