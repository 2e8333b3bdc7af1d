// Package collector owns the local node's performance bookkeeping: operation
// counters, latency windows per operation class, resource gauges, uptime
// accounting and the derived health score.
package collector

import (
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/model"
	"github.com/ethosengine/stewardnet/internal/stats"
)

// Config holds collector configuration. The health-score weights are a
// tunable policy, not a fixed law; defaults match the network-wide
// convention of 40/30/20/10.
type Config struct {
	WindowSize int

	UptimeWeight   float64
	ErrorWeight    float64
	ResourceWeight float64
	WorkloadWeight float64
}

// DefaultConfig returns the standard collector configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:     stats.DefaultWindowSize,
		UptimeWeight:   0.4,
		ErrorWeight:    0.3,
		ResourceWeight: 0.2,
		WorkloadWeight: 0.1,
	}
}

// Collector records local operation outcomes and exposes point-in-time
// snapshots. All recording operations are synchronous and serialized behind
// one mutex so concurrent callers never lose counter updates. State is never
// persisted; it is reconstructed fresh at process start.
type Collector struct {
	cfg    Config
	clock  clock.Clock
	logger *zap.Logger

	mu sync.Mutex

	startTime time.Time

	queriesProcessed     int64
	mutationsProcessed   int64
	validationsProcessed int64
	failedOperations     int64

	queryTimes      *stats.PercentileTracker
	mutationTimes   *stats.PercentileTracker
	validationTimes *stats.PercentileTracker

	cpuPercent    float64
	memoryPercent float64
	diskPercent   float64

	downtime []model.DowntimeInterval

	replicationRunning   int
	replicationQueued    int
	replicationCompleted int
}

// New creates a collector whose uptime clock starts now.
func New(cfg Config, clk clock.Clock, logger *zap.Logger) *Collector {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = stats.DefaultWindowSize
	}
	return &Collector{
		cfg:             cfg,
		clock:           clk,
		logger:          logger,
		startTime:       clk.Now(),
		queryTimes:      stats.NewPercentileTracker(cfg.WindowSize),
		mutationTimes:   stats.NewPercentileTracker(cfg.WindowSize),
		validationTimes: stats.NewPercentileTracker(cfg.WindowSize),
	}
}

// RecordQuery records one query outcome and its duration in milliseconds.
func (c *Collector) RecordQuery(durationMs float64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queryTimes.Add(durationMs)
	c.queriesProcessed++
	if !success {
		c.failedOperations++
	}
}

// RecordMutation records one mutation outcome and its duration in milliseconds.
func (c *Collector) RecordMutation(durationMs float64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mutationTimes.Add(durationMs)
	c.mutationsProcessed++
	if !success {
		c.failedOperations++
	}
}

// RecordValidation records one validation outcome and its duration in
// milliseconds.
func (c *Collector) RecordValidation(durationMs float64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.validationTimes.Add(durationMs)
	c.validationsProcessed++
	if !success {
		c.failedOperations++
	}
}

// UpdateResourceUsage overwrites the resource gauges. Values are clamped to
// [0,100]; the collector does not sample the OS itself, an external
// telemetry source pushes these in.
func (c *Collector) UpdateResourceUsage(cpuPercent, memoryPercent, diskPercent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cpuPercent = clampPercent(cpuPercent)
	c.memoryPercent = clampPercent(memoryPercent)
	c.diskPercent = clampPercent(diskPercent)
}

// RecordDowntime appends an outage interval ending now.
func (c *Collector) RecordDowntime(reason string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := c.clock.Now()
	c.downtime = append(c.downtime, model.DowntimeInterval{
		Start:  end.Add(-duration).UnixMilli(),
		End:    end.UnixMilli(),
		Reason: reason,
	})

	c.logger.Warn("Recorded downtime",
		zap.String("reason", reason),
		zap.Duration("duration", duration))
}

// SetReplicationWorkload overwrites the replication workload gauges.
func (c *Collector) SetReplicationWorkload(running, queued, completed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.replicationRunning = running
	c.replicationQueued = queued
	c.replicationCompleted = completed
}

// Snapshot returns a point-in-time copy of all collector state, including
// the derived uptime, error rate and health score.
func (c *Collector) Snapshot() model.LocalMetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	downtime := make([]model.DowntimeInterval, len(c.downtime))
	copy(downtime, c.downtime)

	return model.LocalMetricsSnapshot{
		QueriesProcessed:     c.queriesProcessed,
		MutationsProcessed:   c.mutationsProcessed,
		ValidationsProcessed: c.validationsProcessed,
		FailedOperations:     c.failedOperations,

		QueryLatency:      trackerStats(c.queryTimes),
		MutationLatency:   trackerStats(c.mutationTimes),
		ValidationLatency: trackerStats(c.validationTimes),

		CPUPercent:    c.cpuPercent,
		MemoryPercent: c.memoryPercent,
		DiskPercent:   c.diskPercent,

		StartTime:     c.startTime.UnixMilli(),
		Downtime:      downtime,
		UptimePercent: c.uptimePercentLocked(),

		ReplicationTasksRunning:   c.replicationRunning,
		ReplicationTasksQueued:    c.replicationQueued,
		ReplicationTasksCompleted: c.replicationCompleted,

		ErrorRatePercent: c.errorRatePercentLocked(),
		HealthScore:      c.healthScoreLocked(),
	}
}

// HealthScore returns the derived 0-100 health score.
func (c *Collector) HealthScore() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthScoreLocked()
}

// UptimePercent returns the derived uptime percentage.
func (c *Collector) UptimePercent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uptimePercentLocked()
}

// GetMetricsForReport projects the snapshot into the wire shape consumed by
// the periodic reporter, converting the error rate to a 0-1 fraction.
func (c *Collector) GetMetricsForReport() model.LocalMetricsReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	totalOps := c.queriesProcessed + c.mutationsProcessed + c.validationsProcessed
	elapsed := c.clock.Since(c.startTime).Seconds()
	opsPerSecond := 0.0
	if elapsed > 0 {
		opsPerSecond = float64(totalOps) / elapsed
	}

	return model.LocalMetricsReport{
		UptimePercent: c.uptimePercentLocked(),
		LatencyP50Ms:  c.queryTimes.P50(),
		LatencyP95Ms:  c.queryTimes.P95(),
		LatencyP99Ms:  c.queryTimes.P99(),
		ErrorRate:     c.errorRatePercentLocked() / 100,

		CPUPercent:    c.cpuPercent,
		MemoryPercent: c.memoryPercent,
		OpsPerSecond:  opsPerSecond,

		OperationsProcessed:     totalOps,
		ReplicationTasksRunning: c.replicationRunning,
		HealthScore:             c.healthScoreLocked(),
	}
}

// Cores reports the local core count for the computation section of the
// published metrics.
func (c *Collector) Cores() int {
	return runtime.NumCPU()
}

func (c *Collector) uptimePercentLocked() float64 {
	elapsed := c.clock.Since(c.startTime)
	if elapsed <= 0 {
		return 100
	}
	var total time.Duration
	for _, d := range c.downtime {
		total += time.Duration(d.End-d.Start) * time.Millisecond
	}
	pct := (elapsed - total).Seconds() / elapsed.Seconds() * 100
	return clampPercent(pct)
}

func (c *Collector) errorRatePercentLocked() float64 {
	total := c.queriesProcessed + c.mutationsProcessed + c.validationsProcessed
	if total == 0 {
		return 0
	}
	return float64(c.failedOperations) / float64(total) * 100
}

func (c *Collector) healthScoreLocked() float64 {
	uptime := c.uptimePercentLocked()
	errorRate := c.errorRatePercentLocked()

	resource := c.cpuPercent
	if c.memoryPercent > resource {
		resource = c.memoryPercent
	}

	workload := 100.0
	if c.replicationRunning > 0 {
		workload = 50
	}

	score := uptime*c.cfg.UptimeWeight +
		(100-errorRate)*c.cfg.ErrorWeight +
		(100-resource)*c.cfg.ResourceWeight +
		workload*c.cfg.WorkloadWeight
	return clampPercent(score)
}

func trackerStats(t *stats.PercentileTracker) model.OperationStats {
	return model.OperationStats{
		P50:   t.P50(),
		P95:   t.P95(),
		P99:   t.P99(),
		Min:   t.Min(),
		Max:   t.Max(),
		Mean:  t.Mean(),
		Count: t.Count(),
	}
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
