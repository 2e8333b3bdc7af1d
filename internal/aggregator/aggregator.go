// Package aggregator fetches and caches network-wide peer metrics and
// derives alerts and improvement recommendations from them.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/breaker"
	"github.com/ethosengine/stewardnet/internal/client"
	"github.com/ethosengine/stewardnet/internal/model"
)

// CircuitName guards every remote call made by the aggregator.
const CircuitName = "metrics-aggregator"

// DefaultCacheTTL bounds how stale a cached metrics read may be.
const DefaultCacheTTL = 5 * time.Minute

// Alert thresholds. A peer trips each rule independently.
const (
	memoryWarningPercent      = 80
	latencyWarningMs          = 1000
	uptimeCriticalPercent     = 95
	errorRateCritical         = 0.05
	storageUtilizationPercent = 90
)

// Recommendation thresholds.
const (
	spareBandwidthPercent  = 50
	spareComputePercent    = 50
	promotionUptimePercent = 99
	lowSpecializationBonus = 0.05
	revenuePerHundredMbps  = 500
)

// ReportResult reports the outcome of publishing one peer's metrics.
type ReportResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Presence is an optional liveness source consulted before handing out
// metrics; peers it reports dead are marked unavailable.
type Presence interface {
	IsAlive(peerID string) bool
}

type peerEntry struct {
	metrics   model.PeerMetrics
	fetchedAt time.Time
}

type allEntry struct {
	peers     []model.PeerMetrics
	fetchedAt time.Time
}

// Aggregator is the cached view of network-wide peer metrics.
type Aggregator struct {
	store    client.RemoteStore
	breaker  *breaker.CircuitBreaker
	presence Presence
	clock    clock.Clock
	logger   *zap.Logger
	ttl      time.Duration

	mu        sync.RWMutex
	peerCache map[string]peerEntry
	allCache  *allEntry
}

// New creates an aggregator. presence may be nil; non-positive ttl falls
// back to DefaultCacheTTL.
func New(store client.RemoteStore, cb *breaker.CircuitBreaker, presence Presence, ttl time.Duration, clk clock.Clock, logger *zap.Logger) *Aggregator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cb.Register(CircuitName, breaker.DefaultConfig())
	return &Aggregator{
		store:     store,
		breaker:   cb,
		presence:  presence,
		clock:     clk,
		logger:    logger,
		ttl:       ttl,
		peerCache: make(map[string]peerEntry),
	}
}

// GetMetrics returns the named peer's metrics, nil on any failure. Results
// are cached per peer for the TTL; failures never populate the cache.
func (a *Aggregator) GetMetrics(ctx context.Context, peerID string) *model.PeerMetrics {
	a.mu.RLock()
	entry, cached := a.peerCache[peerID]
	a.mu.RUnlock()

	if cached && a.clock.Now().Sub(entry.fetchedAt) < a.ttl {
		m := entry.metrics
		a.applyPresence(&m)
		return &m
	}

	res := a.call(ctx, model.OpPeerMetricsGet, model.PeerMetricsGetRequest{PeerID: peerID})
	if !res.Success {
		return nil
	}
	var decoded model.PeerMetricsGetResponse
	if !a.decode(res, model.OpPeerMetricsGet, &decoded) || decoded.Metrics == nil {
		return nil
	}

	a.mu.Lock()
	a.peerCache[peerID] = peerEntry{metrics: *decoded.Metrics, fetchedAt: a.clock.Now()}
	a.mu.Unlock()

	m := *decoded.Metrics
	a.applyPresence(&m)
	return &m
}

// GetAllMetrics returns the whole-network metrics snapshot, empty on any
// failure. The snapshot occupies a single cache slot with the same TTL
// discipline as per-peer reads.
func (a *Aggregator) GetAllMetrics(ctx context.Context) []model.PeerMetrics {
	a.mu.RLock()
	entry := a.allCache
	a.mu.RUnlock()

	if entry != nil && a.clock.Now().Sub(entry.fetchedAt) < a.ttl {
		return a.withPresence(entry.peers)
	}

	res := a.call(ctx, model.OpPeerMetricsAll, nil)
	if !res.Success {
		return nil
	}
	var decoded model.PeerMetricsAllResponse
	if !a.decode(res, model.OpPeerMetricsAll, &decoded) {
		return nil
	}

	a.mu.Lock()
	a.allCache = &allEntry{peers: decoded.Peers, fetchedAt: a.clock.Now()}
	a.mu.Unlock()

	return a.withPresence(decoded.Peers)
}

// ReportMetrics publishes one peer's metrics to the network store. On
// success both caches are invalidated so the report is never masked by a
// stale cached read.
func (a *Aggregator) ReportMetrics(ctx context.Context, m model.PeerMetrics) ReportResult {
	res := a.call(ctx, model.OpPeerMetricsReport, model.PeerMetricsReportRequest{Metrics: m})
	if !res.Success {
		return ReportResult{Success: false, Error: res.Error}
	}

	a.ClearCache()
	a.logger.Debug("Peer metrics reported", zap.String("peer_id", m.PeerID))
	return ReportResult{Success: true}
}

// GetRankedByHealth returns up to limit peers, best uptime first.
func (a *Aggregator) GetRankedByHealth(ctx context.Context, limit int) []model.PeerMetrics {
	return a.ranked(ctx, limit, func(m *model.PeerMetrics) float64 {
		return m.Health.UptimePercent
	})
}

// GetRankedBySpeed returns up to limit peers, best speed rating first.
func (a *Aggregator) GetRankedBySpeed(ctx context.Context, limit int) []model.PeerMetrics {
	return a.ranked(ctx, limit, func(m *model.PeerMetrics) float64 {
		return m.Reputation.SpeedRating
	})
}

// GetRankedByReputation returns up to limit peers, best reputation first.
func (a *Aggregator) GetRankedByReputation(ctx context.Context, limit int) []model.PeerMetrics {
	return a.ranked(ctx, limit, func(m *model.PeerMetrics) float64 {
		return m.Reputation.ReputationScore
	})
}

// GetAvailableCustodians returns peers that are available, at or above 95%
// uptime and SLA compliant.
func (a *Aggregator) GetAvailableCustodians(ctx context.Context) []model.PeerMetrics {
	var available []model.PeerMetrics
	for _, m := range a.GetAllMetrics(ctx) {
		if m.Health.Available && m.Health.UptimePercent >= uptimeCriticalPercent && m.Health.SLACompliant {
			available = append(available, m)
		}
	}
	return available
}

// GetAlerts evaluates every peer against the independent threshold rules
// and returns zero or more alerts per peer.
func (a *Aggregator) GetAlerts(ctx context.Context) []model.Alert {
	var alerts []model.Alert
	for _, m := range a.GetAllMetrics(ctx) {
		alerts = append(alerts, peerAlerts(&m)...)
	}
	return alerts
}

// GetRecommendations derives improvement opportunities for every peer.
func (a *Aggregator) GetRecommendations(ctx context.Context) []model.Recommendation {
	var recs []model.Recommendation
	for _, m := range a.GetAllMetrics(ctx) {
		recs = append(recs, peerRecommendations(&m)...)
	}
	return recs
}

// ClearCache drops both cache entries unconditionally.
func (a *Aggregator) ClearCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peerCache = make(map[string]peerEntry)
	a.allCache = nil
}

func (a *Aggregator) ranked(ctx context.Context, limit int, key func(*model.PeerMetrics) float64) []model.PeerMetrics {
	if limit <= 0 {
		limit = 10
	}
	peers := a.GetAllMetrics(ctx)
	ranked := make([]model.PeerMetrics, len(peers))
	copy(ranked, peers)

	sort.SliceStable(ranked, func(i, j int) bool {
		return key(&ranked[i]) > key(&ranked[j])
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func (a *Aggregator) applyPresence(m *model.PeerMetrics) {
	if a.presence != nil && !a.presence.IsAlive(m.PeerID) {
		m.Health.Available = false
	}
}

func (a *Aggregator) withPresence(peers []model.PeerMetrics) []model.PeerMetrics {
	out := make([]model.PeerMetrics, len(peers))
	copy(out, peers)
	for i := range out {
		a.applyPresence(&out[i])
	}
	return out
}

func (a *Aggregator) decode(res breaker.Result, op string, into interface{}) bool {
	raw, ok := res.Data.(json.RawMessage)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, into); err != nil {
		a.logger.Warn("Failed to decode aggregator response",
			zap.String("op", op),
			zap.Error(err))
		return false
	}
	return true
}

func (a *Aggregator) call(ctx context.Context, op string, payload interface{}) breaker.Result {
	res := a.breaker.Execute(ctx, CircuitName, func(ctx context.Context) (interface{}, error) {
		resp, err := a.store.Call(ctx, op, payload)
		if err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, errors.New(resp.Error)
		}
		return resp.Data, nil
	})

	if !res.Success {
		a.logger.Debug("Aggregator call degraded",
			zap.String("op", op),
			zap.Bool("circuit_open", res.CircuitOpen),
			zap.String("error", res.Error))
	}
	return res
}

func peerAlerts(m *model.PeerMetrics) []model.Alert {
	var alerts []model.Alert

	if m.Computation.MemoryPercent > memoryWarningPercent {
		alerts = append(alerts, model.Alert{
			PeerID:     m.PeerID,
			Severity:   model.SeverityWarning,
			Category:   model.AlertCategoryResource,
			Message:    fmt.Sprintf("memory usage at %.1f%%", m.Computation.MemoryPercent),
			Suggestion: "reduce concurrent replication work or add memory",
		})
	}
	if m.Health.LatencyP95Ms > latencyWarningMs {
		alerts = append(alerts, model.Alert{
			PeerID:     m.PeerID,
			Severity:   model.SeverityWarning,
			Category:   model.AlertCategoryPerformance,
			Message:    fmt.Sprintf("p95 latency at %.0fms", m.Health.LatencyP95Ms),
			Suggestion: "check network path and local load",
		})
	}
	if m.Health.UptimePercent < uptimeCriticalPercent {
		alerts = append(alerts, model.Alert{
			PeerID:     m.PeerID,
			Severity:   model.SeverityCritical,
			Category:   model.AlertCategoryReliability,
			Message:    fmt.Sprintf("uptime at %.1f%%, below the 95%% floor", m.Health.UptimePercent),
			Suggestion: "investigate restarts and connectivity drops",
		})
	}
	if m.Health.ErrorRate > errorRateCritical {
		alerts = append(alerts, model.Alert{
			PeerID:     m.PeerID,
			Severity:   model.SeverityCritical,
			Category:   model.AlertCategoryError,
			Message:    fmt.Sprintf("error rate at %.1f%%", m.Health.ErrorRate*100),
			Suggestion: "inspect recent failed operations",
		})
	}
	if m.StorageUtilizationPercent() > storageUtilizationPercent {
		alerts = append(alerts, model.Alert{
			PeerID:     m.PeerID,
			Severity:   model.SeverityCritical,
			Category:   model.AlertCategoryStorage,
			Message:    fmt.Sprintf("storage %.1f%% full", m.StorageUtilizationPercent()),
			Suggestion: "expand capacity or shed commitments before writes fail",
		})
	}
	if !m.Health.SLACompliant {
		alerts = append(alerts, model.Alert{
			PeerID:     m.PeerID,
			Severity:   model.SeverityCritical,
			Category:   model.AlertCategorySLA,
			Message:    "SLA not met",
			Suggestion: "bring the error rate back under the agreed threshold",
		})
	}
	return alerts
}

func peerRecommendations(m *model.PeerMetrics) []model.Recommendation {
	var recs []model.Recommendation

	if m.BandwidthUtilizationPercent() < spareBandwidthPercent {
		availableMbps := m.Bandwidth.DeclaredMbps - m.Bandwidth.CurrentMbps
		recs = append(recs, model.Recommendation{
			PeerID:           m.PeerID,
			Category:         model.RecommendationBandwidth,
			Opportunity:      fmt.Sprintf("%.0f Mbps of declared bandwidth is idle and could serve more content", availableMbps),
			PotentialRevenue: availableMbps / 100 * revenuePerHundredMbps,
		})
	}
	if m.Computation.CPUPercent < spareComputePercent {
		recs = append(recs, model.Recommendation{
			PeerID:      m.PeerID,
			Category:    model.RecommendationCompute,
			Opportunity: "spare compute is available for validation or erasure-coding work",
		})
	}
	if m.Economic.StewardTier < 4 && m.Health.UptimePercent >= promotionUptimePercent {
		recs = append(recs, model.Recommendation{
			PeerID:      m.PeerID,
			Category:    model.RecommendationTierPromotion,
			Opportunity: fmt.Sprintf("uptime qualifies for promotion beyond tier %d", m.Economic.StewardTier),
		})
	}
	if m.Reputation.SpecializationBonus < lowSpecializationBonus {
		recs = append(recs, model.Recommendation{
			PeerID:      m.PeerID,
			Category:    model.RecommendationSpecialization,
			Opportunity: "specializing in a content domain would raise the selection bonus",
		})
	}
	return recs
}
