// Package reporter periodically publishes the local node's metrics to the
// network metrics store, deriving reputation ratings from observed health.
package reporter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/aggregator"
	"github.com/ethosengine/stewardnet/internal/collector"
	"github.com/ethosengine/stewardnet/internal/metrics"
	"github.com/ethosengine/stewardnet/internal/model"
)

// Config carries the reporting schedule and the node's declared identity.
// The declared fields are operator-supplied facts the collector cannot
// observe, forwarded verbatim in every report.
type Config struct {
	PeerID         string
	Interval       time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	StorageCapacityBytes int64
	StorageUsedBytes     int64
	DeclaredMbps         float64
	CurrentMbps          float64
	StewardTier          int
	PricePerGB           float64
}

// DefaultConfig returns the standard reporting schedule.
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Minute,
		BackoffInitial: time.Second,
		BackoffMax:     30 * time.Minute,
	}
}

// Stats is a snapshot of the reporter's publishing history.
type Stats struct {
	Enabled           bool    `json:"enabled"`
	ReportsAttempted  int64   `json:"reports_attempted"`
	ReportsSuccessful int64   `json:"reports_successful"`
	ReportsFailed     int64   `json:"reports_failed"`
	SuccessRate       float64 `json:"success_rate"`
	LastReportTime    int64   `json:"last_report_time,omitempty"`
	NextReportTime    int64   `json:"next_report_time,omitempty"`
	LastError         string  `json:"last_error,omitempty"`
}

// Reporter publishes local metrics on a fixed interval, backing off
// exponentially while the metrics store is unreachable.
type Reporter struct {
	cfg        Config
	collector  *collector.Collector
	aggregator *aggregator.Aggregator
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	enabled bool
	cancel  context.CancelFunc
	backoff time.Duration

	reportsAttempted  int64
	reportsSuccessful int64
	reportsFailed     int64
	lastReportTime    int64
	nextReportTime    int64
	lastError         string
}

// New creates a reporter. The metrics argument may be nil.
func New(cfg Config, col *collector.Collector, agg *aggregator.Aggregator, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *Reporter {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = def.BackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	return &Reporter{
		cfg:        cfg,
		collector:  col,
		aggregator: agg,
		clock:      clk,
		logger:     logger,
		metrics:    m,
		backoff:    cfg.BackoffInitial,
	}
}

// Enable starts periodic reporting. The first report is sent synchronously
// before the loop starts so a freshly enabled node is visible to the
// network immediately. Enabling an enabled reporter is a no-op.
func (r *Reporter) Enable(ctx context.Context) {
	r.mu.Lock()
	if r.enabled {
		r.mu.Unlock()
		return
	}
	r.enabled = true
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.logger.Info("Metrics reporting enabled",
		zap.String("peer_id", r.cfg.PeerID),
		zap.Duration("interval", r.cfg.Interval))

	delay := r.cfg.Interval
	if err := r.ReportNow(loopCtx); err != nil {
		delay = r.nextBackoff()
	}
	go r.loop(loopCtx, delay)
}

// Disable stops periodic reporting. Disabling a disabled reporter is a
// no-op.
func (r *Reporter) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	r.enabled = false
	r.cancel()
	r.cancel = nil
	r.nextReportTime = 0

	r.logger.Info("Metrics reporting disabled", zap.String("peer_id", r.cfg.PeerID))
}

func (r *Reporter) loop(ctx context.Context, initialDelay time.Duration) {
	delay := initialDelay
	for {
		r.setNextReportTime(delay)
		timer := r.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := r.ReportNow(ctx); err != nil {
			delay = r.nextBackoff()
			r.logger.Warn("Metrics report failed",
				zap.String("peer_id", r.cfg.PeerID),
				zap.Duration("retry_in", delay),
				zap.Error(err))
		} else {
			delay = r.cfg.Interval
		}
	}
}

// ReportNow assembles and publishes one report immediately, independent of
// the schedule. A successful report resets the retry backoff.
func (r *Reporter) ReportNow(ctx context.Context) error {
	r.mu.Lock()
	r.reportsAttempted++
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.ReportsAttempted.Inc()
	}

	report := r.BuildReport()
	res := r.aggregator.ReportMetrics(ctx, report)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !res.Success {
		r.reportsFailed++
		r.lastError = res.Error
		if r.metrics != nil {
			r.metrics.ReportsFailed.Inc()
		}
		return errors.New(res.Error)
	}

	r.reportsSuccessful++
	r.lastReportTime = r.clock.Now().UnixMilli()
	r.lastError = ""
	r.backoff = r.cfg.BackoffInitial
	if r.metrics != nil {
		r.metrics.ReportsSuccessful.Inc()
		r.metrics.ReportBackoffSeconds.Set(0)
		r.metrics.LocalHealthScore.Set(report.Health.UptimePercent)
	}
	return nil
}

// BuildReport projects the local collector state into the network-visible
// peer metrics record, attaching declared identity and derived reputation.
func (r *Reporter) BuildReport() model.PeerMetrics {
	local := r.collector.GetMetricsForReport()
	now := r.clock.Now().UnixMilli()

	reliability := reliabilityRating(local.UptimePercent)
	speed := speedRating(local.LatencyP95Ms)

	return model.PeerMetrics{
		PeerID: r.cfg.PeerID,
		Health: model.HealthMetrics{
			UptimePercent: local.UptimePercent,
			Available:     true,
			LatencyP50Ms:  local.LatencyP50Ms,
			LatencyP95Ms:  local.LatencyP95Ms,
			LatencyP99Ms:  local.LatencyP99Ms,
			ErrorRate:     local.ErrorRate,
			SLACompliant:  local.UptimePercent >= 95 && local.ErrorRate < 0.05,
		},
		Storage: model.StorageMetrics{
			CapacityBytes: r.cfg.StorageCapacityBytes,
			UsedBytes:     r.cfg.StorageUsedBytes,
			FreeBytes:     r.cfg.StorageCapacityBytes - r.cfg.StorageUsedBytes,
		},
		Bandwidth: model.BandwidthMetrics{
			DeclaredMbps: r.cfg.DeclaredMbps,
			CurrentMbps:  r.cfg.CurrentMbps,
		},
		Computation: model.ComputationMetrics{
			Cores:         r.collector.Cores(),
			CPUPercent:    local.CPUPercent,
			MemoryPercent: local.MemoryPercent,
			OpsPerSecond:  local.OpsPerSecond,
		},
		Reputation: model.ReputationMetrics{
			ReliabilityRating: reliability,
			SpeedRating:       speed,
			ReputationScore:   reputationScore(reliability, speed, local.ErrorRate),
		},
		Economic: model.EconomicMetrics{
			StewardTier: r.cfg.StewardTier,
			PricePerGB:  r.cfg.PricePerGB,
		},
		LastUpdated: now,
	}
}

// GetStats returns the reporter's publishing history.
func (r *Reporter) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	rate := 0.0
	if r.reportsAttempted > 0 {
		rate = float64(r.reportsSuccessful) / float64(r.reportsAttempted) * 100
	}
	return Stats{
		Enabled:           r.enabled,
		ReportsAttempted:  r.reportsAttempted,
		ReportsSuccessful: r.reportsSuccessful,
		ReportsFailed:     r.reportsFailed,
		SuccessRate:       rate,
		LastReportTime:    r.lastReportTime,
		NextReportTime:    r.nextReportTime,
		LastError:         r.lastError,
	}
}

// nextBackoff doubles the retry backoff, capped at the maximum, and
// returns the new delay. The first retry after a reset waits twice the
// initial backoff.
func (r *Reporter) nextBackoff() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backoff *= 2
	if r.backoff > r.cfg.BackoffMax {
		r.backoff = r.cfg.BackoffMax
	}
	if r.metrics != nil {
		r.metrics.ReportBackoffSeconds.Set(r.backoff.Seconds())
	}
	return r.backoff
}

func (r *Reporter) setNextReportTime(delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextReportTime = r.clock.Now().Add(delay).UnixMilli()
}

// reliabilityRating buckets uptime into a 0-100 rating.
func reliabilityRating(uptimePercent float64) float64 {
	switch {
	case uptimePercent >= 99:
		return 95
	case uptimePercent >= 95:
		return 85
	case uptimePercent >= 90:
		return 70
	default:
		return 50
	}
}

// speedRating buckets p95 latency into a 0-100 rating.
func speedRating(latencyP95Ms float64) float64 {
	switch {
	case latencyP95Ms < 100:
		return 100
	case latencyP95Ms < 250:
		return 90
	case latencyP95Ms < 500:
		return 75
	case latencyP95Ms < 1000:
		return 50
	default:
		return 25
	}
}

// reputationScore combines the ratings into a 0-100 composite, penalized
// by the error rate with a small bonus for near-error-free operation.
func reputationScore(reliability, speed, errorRate float64) float64 {
	score := (reliability*0.5 + speed*0.3) / 0.8
	score -= errorRate * 100
	if errorRate < 0.01 {
		score += 5
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
