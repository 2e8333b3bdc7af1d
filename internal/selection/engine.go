// Package selection picks the best-performing custodian for a content item
// by combining commitment records with network-visible peer metrics.
package selection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/aggregator"
	"github.com/ethosengine/stewardnet/internal/metrics"
	"github.com/ethosengine/stewardnet/internal/model"
	"github.com/ethosengine/stewardnet/internal/registry"
)

// Config tunes the scoring formula and the result cache. The tier bonus is
// an additive term already scaled to its weight (max 0.05); rescaling it to
// a separately-weighted [0,1] score is a behavior change, not a bug fix.
type Config struct {
	CacheTTL time.Duration

	HealthWeight         float64
	LatencyWeight        float64
	BandwidthWeight      float64
	SpecializationWeight float64
	TierBonuses          [4]float64

	MinUptimePercent float64
	LatencyBestMs    float64
	LatencyWorstMs   float64
}

// DefaultConfig returns the network-standard scoring configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:             2 * time.Minute,
		HealthWeight:         0.40,
		LatencyWeight:        0.30,
		BandwidthWeight:      0.15,
		SpecializationWeight: 0.10,
		TierBonuses:          [4]float64{0.0125, 0.025, 0.0375, 0.05},
		MinUptimePercent:     50,
		LatencyBestMs:        50,
		LatencyWorstMs:       2000,
	}
}

// Statistics is a snapshot of the engine's running counters.
type Statistics struct {
	SelectionsAttempted  int64   `json:"selections_attempted"`
	SelectionsSuccessful int64   `json:"selections_successful"`
	CacheHits            int64   `json:"cache_hits"`
	CacheMisses          int64   `json:"cache_misses"`
	SuccessRate          float64 `json:"success_rate"`
}

type cachedScore struct {
	score    model.CustodianScore
	cachedAt time.Time
}

// Engine scores committed custodians and caches selection results per
// content item for a short TTL.
type Engine struct {
	cfg        Config
	registry   *registry.Registry
	aggregator *aggregator.Aggregator
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu    sync.Mutex
	cache map[string]cachedScore

	selectionsAttempted  int64
	selectionsSuccessful int64
	cacheHits            int64
	cacheMisses          int64
}

// New creates a selection engine. The metrics argument may be nil.
func New(cfg Config, reg *registry.Registry, agg *aggregator.Aggregator, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	return &Engine{
		cfg:        cfg,
		registry:   reg,
		aggregator: agg,
		clock:      clk,
		logger:     logger,
		metrics:    m,
		cache:      make(map[string]cachedScore),
	}
}

// SelectBestCustodian returns the highest-scoring committed custodian for
// the content, or nil when no commitments exist or no candidate survives
// scoring. Ties go to the first candidate seen in commitment order; that
// tie-break is arbitrary but deterministic. Results are cached per content
// for the TTL; nil results are never cached.
func (e *Engine) SelectBestCustodian(ctx context.Context, contentID string) *model.CustodianScore {
	started := e.clock.Now()

	e.mu.Lock()
	e.selectionsAttempted++
	if entry, ok := e.cache[contentID]; ok && e.clock.Now().Sub(entry.cachedAt) < e.cfg.CacheTTL {
		e.cacheHits++
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.SelectionsAttempted.Inc()
			e.metrics.SelectionCacheHits.Inc()
		}
		score := entry.score
		return &score
	}
	e.cacheMisses++
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.SelectionsAttempted.Inc()
		e.metrics.SelectionCacheMisses.Inc()
	}

	commitments := e.registry.GetCommitmentsForContent(ctx, contentID)
	if len(commitments) == 0 {
		e.logger.Debug("No commitments for content", zap.String("content_id", contentID))
		return nil
	}

	var best *model.CustodianScore
	for i := range commitments {
		c := commitments[i]
		peerMetrics := e.aggregator.GetMetrics(ctx, c.CustodianID)
		score := e.scoreCandidate(&c, peerMetrics)
		if score == nil {
			continue
		}
		// Strictly greater keeps the first-seen candidate on ties.
		if best == nil || score.FinalScore > best.FinalScore {
			best = score
		}
	}

	if best == nil {
		return nil
	}

	e.mu.Lock()
	e.cache[contentID] = cachedScore{score: *best, cachedAt: e.clock.Now()}
	e.selectionsSuccessful++
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.SelectionsSuccessful.Inc()
		e.metrics.SelectionDuration.Observe(e.clock.Now().Sub(started).Seconds())
	}

	e.logger.Debug("Selected custodian",
		zap.String("content_id", contentID),
		zap.String("custodian_id", best.CustodianID),
		zap.Float64("final_score", best.FinalScore))

	return best
}

// ScoreAllCustodians scores every known peer, committed or not, descending
// by final score. Returns an empty slice on any upstream failure.
func (e *Engine) ScoreAllCustodians(ctx context.Context) []model.CustodianScore {
	peers := e.aggregator.GetAllMetrics(ctx)

	scores := make([]model.CustodianScore, 0, len(peers))
	for i := range peers {
		score := e.scoreCandidate(nil, &peers[i])
		if score == nil {
			continue
		}
		score.CustodianID = peers[i].PeerID
		scores = append(scores, *score)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].FinalScore > scores[j].FinalScore
	})
	return scores
}

// GetTopCustodians returns up to limit peers from ScoreAllCustodians.
// Non-positive limits fall back to 10.
func (e *Engine) GetTopCustodians(ctx context.Context, limit int) []model.CustodianScore {
	if limit <= 0 {
		limit = 10
	}
	scores := e.ScoreAllCustodians(ctx)
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores
}

// ClearCache drops every cached selection result.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cachedScore)
}

// GetStatistics returns the engine's running counters. The success rate is
// 0 before the first attempt.
func (e *Engine) GetStatistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	rate := 0.0
	if e.selectionsAttempted > 0 {
		rate = float64(e.selectionsSuccessful) / float64(e.selectionsAttempted) * 100
	}
	return Statistics{
		SelectionsAttempted:  e.selectionsAttempted,
		SelectionsSuccessful: e.selectionsSuccessful,
		CacheHits:            e.cacheHits,
		CacheMisses:          e.cacheMisses,
		SuccessRate:          rate,
	}
}

// scoreCandidate scores one custodian against its peer metrics. Candidates
// with missing metrics, uptime below the floor, a cleared availability flag
// or a zero final score contribute nothing.
func (e *Engine) scoreCandidate(c *model.Commitment, m *model.PeerMetrics) *model.CustodianScore {
	if m == nil || !m.Health.Available || m.Health.UptimePercent < e.cfg.MinUptimePercent {
		return nil
	}

	breakdown := model.ScoreBreakdown{
		Health:         e.healthScore(m.Health.UptimePercent),
		Latency:        e.latencyScore(m.Health.LatencyP95Ms),
		Bandwidth:      e.bandwidthScore(m.BandwidthUtilizationPercent()),
		Specialization: e.specializationScore(m.Reputation.SpecializationBonus),
		TierBonus:      e.tierBonus(m.Economic.StewardTier),
	}

	final := (breakdown.Health*e.cfg.HealthWeight +
		breakdown.Latency*e.cfg.LatencyWeight +
		breakdown.Bandwidth*e.cfg.BandwidthWeight +
		breakdown.Specialization*e.cfg.SpecializationWeight +
		breakdown.TierBonus) * 100
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}
	if final <= 0 {
		return nil
	}

	score := &model.CustodianScore{
		HealthPercent:        m.Health.UptimePercent,
		LatencyP95Ms:         m.Health.LatencyP95Ms,
		BandwidthUtilization: m.BandwidthUtilizationPercent(),
		SpecializationBonus:  m.Reputation.SpecializationBonus,
		FinalScore:           final,
		Breakdown:            breakdown,
	}
	if c != nil {
		score.CustodianID = c.CustodianID
		commitment := *c
		score.Commitment = &commitment
	}
	return score
}

func (e *Engine) healthScore(uptimePercent float64) float64 {
	if uptimePercent < e.cfg.MinUptimePercent {
		return 0
	}
	s := uptimePercent / 100
	if s > 1 {
		s = 1
	}
	return s
}

func (e *Engine) latencyScore(p95Ms float64) float64 {
	switch {
	case p95Ms < e.cfg.LatencyBestMs:
		return 1
	case p95Ms > e.cfg.LatencyWorstMs:
		return 0
	default:
		return 1 - (p95Ms-e.cfg.LatencyBestMs)/(e.cfg.LatencyWorstMs-e.cfg.LatencyBestMs)
	}
}

func (e *Engine) bandwidthScore(utilizationPercent float64) float64 {
	switch {
	case utilizationPercent > 95:
		return 0
	case utilizationPercent > 80:
		return 0.25
	case utilizationPercent > 50:
		return 0.75
	default:
		return 1
	}
}

func (e *Engine) specializationScore(bonus float64) float64 {
	s := bonus * 10
	if s > 1 {
		s = 1
	}
	if s < 0 {
		s = 0
	}
	return s
}

func (e *Engine) tierBonus(tier int) float64 {
	if tier < 1 || tier > len(e.cfg.TierBonuses) {
		return 0
	}
	return e.cfg.TierBonuses[tier-1]
}
