// Package stats provides the bounded rolling-window statistics primitive
// used for response-time tracking.
package stats

import (
	"math"
	"sort"
	"sync"
)

// DefaultWindowSize is the sample capacity used when none is configured.
const DefaultWindowSize = 10000

// PercentileTracker keeps a bounded FIFO window of numeric samples and
// computes order statistics from a full sort on read. Reads are O(n log n),
// which is acceptable because the window is bounded and reads are rare
// relative to writes.
type PercentileTracker struct {
	mu       sync.Mutex
	samples  []float64
	next     int
	capacity int
}

// NewPercentileTracker creates a tracker holding at most capacity samples.
// Non-positive capacities fall back to DefaultWindowSize.
func NewPercentileTracker(capacity int) *PercentileTracker {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &PercentileTracker{
		samples:  make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Add appends a sample, evicting the oldest one once the window is full.
func (t *PercentileTracker) Add(value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) < t.capacity {
		t.samples = append(t.samples, value)
		return
	}
	// Window full: overwrite the oldest slot in ring order.
	t.samples[t.next] = value
	t.next = (t.next + 1) % t.capacity
}

// Count returns the number of samples currently in the window.
func (t *PercentileTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// Clear empties the window.
func (t *PercentileTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = t.samples[:0]
	t.next = 0
}

// P50 returns the 50th percentile of the current window, 0 when empty.
func (t *PercentileTracker) P50() float64 { return t.Percentile(0.50) }

// P95 returns the 95th percentile of the current window, 0 when empty.
func (t *PercentileTracker) P95() float64 { return t.Percentile(0.95) }

// P99 returns the 99th percentile of the current window, 0 when empty.
func (t *PercentileTracker) P99() float64 { return t.Percentile(0.99) }

// Percentile returns the p-th percentile (p in [0,1]) using the index
// ceil(n*p)-1, clamped to [0, n-1]. Returns 0 for an empty window.
func (t *PercentileTracker) Percentile(p float64) float64 {
	sorted := t.sortedSamples()
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(n)*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// Min returns the smallest sample in the window, 0 when empty.
func (t *PercentileTracker) Min() float64 {
	sorted := t.sortedSamples()
	if len(sorted) == 0 {
		return 0
	}
	return sorted[0]
}

// Max returns the largest sample in the window, 0 when empty.
func (t *PercentileTracker) Max() float64 {
	sorted := t.sortedSamples()
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)-1]
}

// Mean returns the arithmetic mean of the window, 0 when empty.
func (t *PercentileTracker) Mean() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range t.samples {
		sum += v
	}
	return sum / float64(len(t.samples))
}

func (t *PercentileTracker) sortedSamples() []float64 {
	t.mu.Lock()
	sorted := make([]float64, len(t.samples))
	copy(sorted, t.samples)
	t.mu.Unlock()

	sort.Float64s(sorted)
	return sorted
}
