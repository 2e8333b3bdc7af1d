package stats_test

import (
	"testing"

	"github.com/ethosengine/stewardnet/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileTracker_KnownSampleSet(t *testing.T) {
	tracker := stats.NewPercentileTracker(100)
	for v := 10.0; v <= 100.0; v += 10.0 {
		tracker.Add(v)
	}

	// n=10, index = ceil(n*p)-1
	assert.Equal(t, 10, tracker.Count())
	assert.Equal(t, 50.0, tracker.P50())  // ceil(5)-1 = 4
	assert.Equal(t, 100.0, tracker.P95()) // ceil(9.5)-1 = 9
	assert.Equal(t, 100.0, tracker.P99()) // ceil(9.9)-1 = 9
	assert.Equal(t, 10.0, tracker.Min())
	assert.Equal(t, 100.0, tracker.Max())
	assert.Equal(t, 55.0, tracker.Mean())
}

func TestPercentileTracker_Empty(t *testing.T) {
	tracker := stats.NewPercentileTracker(10)

	assert.Equal(t, 0, tracker.Count())
	assert.Equal(t, 0.0, tracker.P50())
	assert.Equal(t, 0.0, tracker.P95())
	assert.Equal(t, 0.0, tracker.P99())
	assert.Equal(t, 0.0, tracker.Min())
	assert.Equal(t, 0.0, tracker.Max())
	assert.Equal(t, 0.0, tracker.Mean())
}

func TestPercentileTracker_FIFOEviction(t *testing.T) {
	tracker := stats.NewPercentileTracker(3)

	tracker.Add(1)
	tracker.Add(2)
	tracker.Add(3)
	require.Equal(t, 3, tracker.Count())

	// Capacity exceeded: oldest (1) is evicted first.
	tracker.Add(100)
	assert.Equal(t, 3, tracker.Count())
	assert.Equal(t, 2.0, tracker.Min())
	assert.Equal(t, 100.0, tracker.Max())

	tracker.Add(200)
	assert.Equal(t, 3.0, tracker.Min())
}

func TestPercentileTracker_CountBounded(t *testing.T) {
	const capacity = 50
	tracker := stats.NewPercentileTracker(capacity)

	for i := 0; i < 200; i++ {
		tracker.Add(float64(i))
		want := i + 1
		if want > capacity {
			want = capacity
		}
		require.Equal(t, want, tracker.Count())
	}

	// Only the newest 50 samples remain.
	assert.Equal(t, 150.0, tracker.Min())
	assert.Equal(t, 199.0, tracker.Max())
}

func TestPercentileTracker_SingleSample(t *testing.T) {
	tracker := stats.NewPercentileTracker(10)
	tracker.Add(42)

	assert.Equal(t, 42.0, tracker.P50())
	assert.Equal(t, 42.0, tracker.P99())
	assert.Equal(t, 42.0, tracker.Mean())
}

func TestPercentileTracker_Clear(t *testing.T) {
	tracker := stats.NewPercentileTracker(10)
	tracker.Add(1)
	tracker.Add(2)

	tracker.Clear()

	assert.Equal(t, 0, tracker.Count())
	assert.Equal(t, 0.0, tracker.P95())

	// Usable again after clearing.
	tracker.Add(7)
	assert.Equal(t, 7.0, tracker.P50())
}
