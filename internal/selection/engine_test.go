package selection

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/aggregator"
	"github.com/ethosengine/stewardnet/internal/breaker"
	"github.com/ethosengine/stewardnet/internal/client"
	"github.com/ethosengine/stewardnet/internal/client/clienttest"
	"github.com/ethosengine/stewardnet/internal/model"
	"github.com/ethosengine/stewardnet/internal/registry"
)

type engineFixture struct {
	engine *Engine
	store  *clienttest.FakeStore
	clock  *clock.Mock
}

func newEngineFixture(t *testing.T, commitments map[string][]model.Commitment, peers map[string]model.PeerMetrics) *engineFixture {
	t.Helper()

	store := &clienttest.FakeStore{}
	store.Handler = func(op string, payload interface{}) (*client.Response, error) {
		switch op {
		case model.OpCommitmentsForContent:
			req := payload.(model.CommitmentsForContentRequest)
			return clienttest.OK(model.CommitmentListResponse{Commitments: commitments[req.ContentID]}), nil
		case model.OpPeerMetricsGet:
			req := payload.(model.PeerMetricsGetRequest)
			if m, ok := peers[req.PeerID]; ok {
				return clienttest.OK(model.PeerMetricsGetResponse{Metrics: &m}), nil
			}
			return clienttest.OK(model.PeerMetricsGetResponse{}), nil
		case model.OpPeerMetricsAll:
			all := make([]model.PeerMetrics, 0, len(peers))
			for _, m := range peers {
				all = append(all, m)
			}
			return clienttest.OK(model.PeerMetricsAllResponse{Peers: all}), nil
		default:
			t.Fatalf("unexpected op %q", op)
			return nil, nil
		}
	}

	clk := clock.NewMock()
	logger := zap.NewNop()
	cb := breaker.New(clk, logger, nil)
	reg := registry.New(store, cb, clk, logger)
	agg := aggregator.New(store, cb, nil, 0, clk, logger)
	eng := New(DefaultConfig(), reg, agg, clk, logger, nil)

	return &engineFixture{engine: eng, store: store, clock: clk}
}

func commitmentFor(custodianID, contentID string) model.Commitment {
	return model.Commitment{
		ID:                  "commit-" + custodianID,
		CustodianID:         custodianID,
		ContentID:           contentID,
		ReplicationStrategy: model.StrategyFullReplica,
		IsActive:            true,
	}
}

func solidPeer(peerID string, uptime, latencyP95 float64) model.PeerMetrics {
	return model.PeerMetrics{
		PeerID: peerID,
		Health: model.HealthMetrics{
			UptimePercent: uptime,
			Available:     true,
			LatencyP95Ms:  latencyP95,
			SLACompliant:  true,
		},
		Bandwidth: model.BandwidthMetrics{DeclaredMbps: 100, CurrentMbps: 30},
		Reputation: model.ReputationMetrics{
			SpecializationBonus: 0.05,
		},
		Economic: model.EconomicMetrics{StewardTier: 2},
	}
}

func TestSelectBestCustodianPrefersHigherUptime(t *testing.T) {
	f := newEngineFixture(t,
		map[string][]model.Commitment{
			"content-1": {commitmentFor("peer-a", "content-1"), commitmentFor("peer-b", "content-1")},
		},
		map[string]model.PeerMetrics{
			"peer-a": solidPeer("peer-a", 90, 120),
			"peer-b": solidPeer("peer-b", 99, 120),
		})

	best := f.engine.SelectBestCustodian(context.Background(), "content-1")
	require.NotNil(t, best)
	assert.Equal(t, "peer-b", best.CustodianID)
	require.NotNil(t, best.Commitment)
	assert.Equal(t, "commit-peer-b", best.Commitment.ID)
	assert.Greater(t, best.FinalScore, 0.0)
	assert.LessOrEqual(t, best.FinalScore, 100.0)
}

func TestSelectBestCustodianScoreComposition(t *testing.T) {
	peer := solidPeer("peer-a", 100, 40) // latency under the best threshold
	peer.Bandwidth = model.BandwidthMetrics{DeclaredMbps: 100, CurrentMbps: 10}
	peer.Reputation.SpecializationBonus = 0.1
	peer.Economic.StewardTier = 4

	f := newEngineFixture(t,
		map[string][]model.Commitment{"content-1": {commitmentFor("peer-a", "content-1")}},
		map[string]model.PeerMetrics{"peer-a": peer})

	best := f.engine.SelectBestCustodian(context.Background(), "content-1")
	require.NotNil(t, best)

	// Every component at its maximum: 0.40 + 0.30 + 0.15 + 0.10 + 0.05,
	// clamped to 100.
	assert.InDelta(t, 1.0, best.Breakdown.Health, 1e-9)
	assert.InDelta(t, 1.0, best.Breakdown.Latency, 1e-9)
	assert.InDelta(t, 1.0, best.Breakdown.Bandwidth, 1e-9)
	assert.InDelta(t, 1.0, best.Breakdown.Specialization, 1e-9)
	assert.InDelta(t, 0.05, best.Breakdown.TierBonus, 1e-9)
	assert.InDelta(t, 100.0, best.FinalScore, 1e-9)
}

func TestSelectBestCustodianSkipsLowUptime(t *testing.T) {
	f := newEngineFixture(t,
		map[string][]model.Commitment{
			"content-1": {commitmentFor("peer-a", "content-1"), commitmentFor("peer-b", "content-1")},
		},
		map[string]model.PeerMetrics{
			"peer-a": solidPeer("peer-a", 40, 100), // below the uptime floor
			"peer-b": solidPeer("peer-b", 60, 100),
		})

	best := f.engine.SelectBestCustodian(context.Background(), "content-1")
	require.NotNil(t, best)
	assert.Equal(t, "peer-b", best.CustodianID)
}

func TestSelectBestCustodianSkipsUnavailable(t *testing.T) {
	down := solidPeer("peer-a", 99, 100)
	down.Health.Available = false

	f := newEngineFixture(t,
		map[string][]model.Commitment{"content-1": {commitmentFor("peer-a", "content-1")}},
		map[string]model.PeerMetrics{"peer-a": down})

	assert.Nil(t, f.engine.SelectBestCustodian(context.Background(), "content-1"))
}

func TestSelectBestCustodianNoCommitments(t *testing.T) {
	f := newEngineFixture(t, nil, nil)

	assert.Nil(t, f.engine.SelectBestCustodian(context.Background(), "content-1"))
	// Nil results are not cached, so the next call goes back to the store.
	assert.Nil(t, f.engine.SelectBestCustodian(context.Background(), "content-1"))
	assert.Equal(t, 2, f.store.CallCount(model.OpCommitmentsForContent))

	stats := f.engine.GetStatistics()
	assert.Equal(t, int64(2), stats.SelectionsAttempted)
	assert.Equal(t, int64(0), stats.SelectionsSuccessful)
	assert.Equal(t, 0.0, stats.SuccessRate)
}

func TestSelectBestCustodianMissingMetricsSkipped(t *testing.T) {
	f := newEngineFixture(t,
		map[string][]model.Commitment{
			"content-1": {commitmentFor("ghost", "content-1"), commitmentFor("peer-b", "content-1")},
		},
		map[string]model.PeerMetrics{
			"peer-b": solidPeer("peer-b", 97, 200),
		})

	best := f.engine.SelectBestCustodian(context.Background(), "content-1")
	require.NotNil(t, best)
	assert.Equal(t, "peer-b", best.CustodianID)
}

func TestSelectBestCustodianCaching(t *testing.T) {
	f := newEngineFixture(t,
		map[string][]model.Commitment{"content-1": {commitmentFor("peer-a", "content-1")}},
		map[string]model.PeerMetrics{"peer-a": solidPeer("peer-a", 99, 100)})

	first := f.engine.SelectBestCustodian(context.Background(), "content-1")
	require.NotNil(t, first)
	assert.Equal(t, 1, f.store.CallCount(model.OpCommitmentsForContent))

	// Within the TTL the cached result is returned without refetching.
	f.clock.Add(time.Minute)
	second := f.engine.SelectBestCustodian(context.Background(), "content-1")
	require.NotNil(t, second)
	assert.Equal(t, first.CustodianID, second.CustodianID)
	assert.Equal(t, 1, f.store.CallCount(model.OpCommitmentsForContent))

	// Past the TTL the selection is recomputed.
	f.clock.Add(2 * time.Minute)
	third := f.engine.SelectBestCustodian(context.Background(), "content-1")
	require.NotNil(t, third)
	assert.Equal(t, 2, f.store.CallCount(model.OpCommitmentsForContent))

	stats := f.engine.GetStatistics()
	assert.Equal(t, int64(3), stats.SelectionsAttempted)
	assert.Equal(t, int64(2), stats.SelectionsSuccessful)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
}

func TestClearCacheForcesRefetch(t *testing.T) {
	f := newEngineFixture(t,
		map[string][]model.Commitment{"content-1": {commitmentFor("peer-a", "content-1")}},
		map[string]model.PeerMetrics{"peer-a": solidPeer("peer-a", 99, 100)})

	require.NotNil(t, f.engine.SelectBestCustodian(context.Background(), "content-1"))
	f.engine.ClearCache()
	require.NotNil(t, f.engine.SelectBestCustodian(context.Background(), "content-1"))
	assert.Equal(t, 2, f.store.CallCount(model.OpCommitmentsForContent))
}

func TestScoreAllCustodiansSortedDescending(t *testing.T) {
	f := newEngineFixture(t, nil,
		map[string]model.PeerMetrics{
			"peer-a": solidPeer("peer-a", 85, 500),
			"peer-b": solidPeer("peer-b", 99, 80),
			"peer-c": solidPeer("peer-c", 92, 300),
		})

	scores := f.engine.ScoreAllCustodians(context.Background())
	require.Len(t, scores, 3)
	assert.Equal(t, "peer-b", scores[0].CustodianID)
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].FinalScore, scores[i].FinalScore)
	}
	// Scores from the full-network scan carry no commitment context.
	assert.Nil(t, scores[0].Commitment)
}

func TestGetTopCustodiansLimit(t *testing.T) {
	peers := map[string]model.PeerMetrics{
		"peer-a": solidPeer("peer-a", 85, 500),
		"peer-b": solidPeer("peer-b", 99, 80),
		"peer-c": solidPeer("peer-c", 92, 300),
	}
	f := newEngineFixture(t, nil, peers)

	top := f.engine.GetTopCustodians(context.Background(), 2)
	require.Len(t, top, 2)
	assert.Equal(t, "peer-b", top[0].CustodianID)

	// Non-positive limits fall back to the default of 10.
	assert.Len(t, f.engine.GetTopCustodians(context.Background(), 0), 3)
}

func TestLatencyScoreBounds(t *testing.T) {
	f := newEngineFixture(t, nil, nil)

	assert.Equal(t, 1.0, f.engine.latencyScore(20))
	assert.Equal(t, 0.0, f.engine.latencyScore(2500))
	assert.InDelta(t, 0.5, f.engine.latencyScore(1025), 1e-9)
}

func TestBandwidthScoreBuckets(t *testing.T) {
	f := newEngineFixture(t, nil, nil)

	assert.Equal(t, 1.0, f.engine.bandwidthScore(40))
	assert.Equal(t, 0.75, f.engine.bandwidthScore(60))
	assert.Equal(t, 0.25, f.engine.bandwidthScore(90))
	assert.Equal(t, 0.0, f.engine.bandwidthScore(99))
}
