package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyTrackerStats(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Stats()
	assert.Equal(t, int64(100), s.Count)
	assert.Equal(t, 100, s.Samples)
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 100*time.Millisecond, s.Max)
	assert.Equal(t, 50*time.Millisecond, s.P50)
	assert.Equal(t, 95*time.Millisecond, s.P95)
	assert.Equal(t, 99*time.Millisecond, s.P99)
}

func TestLatencyTrackerWindowDropsOldest(t *testing.T) {
	lt := NewLatencyTracker(3)
	for _, ms := range []int{500, 1, 2, 3} {
		lt.Record(time.Duration(ms) * time.Millisecond)
	}

	s := lt.Stats()
	assert.Equal(t, int64(4), s.Count)
	assert.Equal(t, 3, s.Samples)
	assert.Equal(t, 3*time.Millisecond, s.Max)
}

func TestLatencyTrackerEmpty(t *testing.T) {
	s := NewLatencyTracker(10).Stats()
	assert.Zero(t, s.Samples)
	assert.Equal(t, 0.0, s.ToMap()["p99_ms"])
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry(10)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Counter("webhook_received").Inc()
			r.Latency("ai_fallback").Record(2 * time.Millisecond)
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	counters, ok := snap["counters"].(map[string]int64)
	require.True(t, ok)
	assert.Equal(t, int64(20), counters["webhook_received"])

	latency, ok := snap["latency"].(map[string]any)
	require.True(t, ok)
	ai, ok := latency["ai_fallback"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(20), ai["count"])
	assert.Equal(t, 2.0, ai["p50_ms"])
}
