// Package gossip tracks peer liveness over a memberlist cluster. It is a
// best-effort overlay on top of the reported metrics: a peer the cluster
// has watched leave is treated as dead regardless of what it last reported.
package gossip

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/metrics"
)

// Config holds gossip protocol configuration.
type Config struct {
	Enabled        bool
	BindAddr       string
	BindPort       int
	SeedPeers      []string
	GossipInterval time.Duration
	ProbeTimeout   time.Duration
	ProbeInterval  time.Duration
}

// nodeMeta is the identity record each member advertises to the cluster.
type nodeMeta struct {
	PeerID      string  `json:"peer_id"`
	StewardTier int     `json:"steward_tier,omitempty"`
	HealthScore float64 `json:"health_score"`
	Timestamp   int64   `json:"timestamp"`
}

// Presence joins the gossip cluster and answers liveness queries. Peers
// never seen by the cluster pass as alive; only a peer the cluster watched
// leave is reported dead.
type Presence struct {
	config  Config
	members *memberlist.Memberlist
	peerID  string
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	meta nodeMeta
	left map[string]bool
}

// New joins the gossip cluster described by cfg. Seed peers that cannot be
// reached are logged and skipped; a cluster of one is valid.
func New(cfg Config, peerID string, logger *zap.Logger, m *metrics.Metrics) (*Presence, error) {
	p := &Presence{
		config:  cfg,
		peerID:  peerID,
		logger:  logger,
		metrics: m,
		meta: nodeMeta{
			PeerID:    peerID,
			Timestamp: time.Now().Unix(),
		},
		left: make(map[string]bool),
	}

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = peerID
	if cfg.BindAddr != "" {
		mlConfig.BindAddr = cfg.BindAddr
	}
	mlConfig.BindPort = cfg.BindPort
	if cfg.GossipInterval > 0 {
		mlConfig.GossipInterval = cfg.GossipInterval
	}
	if cfg.ProbeTimeout > 0 {
		mlConfig.ProbeTimeout = cfg.ProbeTimeout
	}
	if cfg.ProbeInterval > 0 {
		mlConfig.ProbeInterval = cfg.ProbeInterval
	}
	mlConfig.Delegate = p
	mlConfig.Events = &eventDelegate{presence: p}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	p.members = ml

	if len(cfg.SeedPeers) > 0 {
		if _, err := ml.Join(cfg.SeedPeers); err != nil {
			logger.Warn("Failed to join some seed peers", zap.Error(err))
		}
	}

	if m != nil {
		m.GossipMembers.Set(float64(ml.NumMembers()))
	}
	return p, nil
}

// IsAlive reports whether the cluster considers the peer reachable. Only
// peers the cluster watched leave or fail are marked dead; unknown peers
// pass.
func (p *Presence) IsAlive(peerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.left[peerID]
}

// Members returns the peer IDs currently visible in the cluster.
func (p *Presence) Members() []string {
	nodes := p.members.Members()
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.Name)
	}
	return ids
}

// NumMembers returns the current cluster size, including the local node.
func (p *Presence) NumMembers() int {
	return p.members.NumMembers()
}

// UpdateLocalHealth refreshes the health advertised in the local node's
// metadata.
func (p *Presence) UpdateLocalHealth(healthScore float64, stewardTier int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta.HealthScore = healthScore
	p.meta.StewardTier = stewardTier
	p.meta.Timestamp = time.Now().Unix()
}

// Shutdown leaves the cluster and stops gossiping.
func (p *Presence) Shutdown() error {
	return p.members.Shutdown()
}

// NodeMeta implements memberlist.Delegate.
func (p *Presence) NodeMeta(limit int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, _ := json.Marshal(p.meta)
	if len(data) > limit {
		return data[:limit]
	}
	return data
}

// NotifyMsg implements memberlist.Delegate.
func (p *Presence) NotifyMsg(data []byte) {
	var meta nodeMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		p.logger.Warn("Failed to unmarshal gossip message", zap.Error(err))
		return
	}

	p.logger.Debug("Received peer metadata",
		zap.String("peer_id", meta.PeerID),
		zap.Float64("health_score", meta.HealthScore))
}

// GetBroadcasts implements memberlist.Delegate.
func (p *Presence) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

// LocalState implements memberlist.Delegate.
func (p *Presence) LocalState(join bool) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, _ := json.Marshal(p.meta)
	return data
}

// MergeRemoteState implements memberlist.Delegate.
func (p *Presence) MergeRemoteState(buf []byte, join bool) {}

// publishMemberCount updates the member gauge. Join events fire for the
// local node while memberlist is still being created, before p.members is
// set.
func (p *Presence) publishMemberCount() {
	if p.metrics == nil || p.members == nil {
		return
	}
	p.metrics.GossipMembers.Set(float64(p.members.NumMembers()))
}

func (p *Presence) markJoined(peerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.left, peerID)
}

func (p *Presence) markLeft(peerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.left[peerID] = true
}

// eventDelegate translates memberlist events into the presence ledger.
type eventDelegate struct {
	presence *Presence
}

// NotifyJoin implements memberlist.EventDelegate.
func (d *eventDelegate) NotifyJoin(node *memberlist.Node) {
	d.presence.markJoined(node.Name)
	d.presence.logger.Info("Peer joined",
		zap.String("peer_id", node.Name),
		zap.String("addr", node.Addr.String()))
	d.presence.publishMemberCount()
}

// NotifyLeave implements memberlist.EventDelegate.
func (d *eventDelegate) NotifyLeave(node *memberlist.Node) {
	d.presence.markLeft(node.Name)
	d.presence.logger.Info("Peer left",
		zap.String("peer_id", node.Name))
	d.presence.publishMemberCount()
}

// NotifyUpdate implements memberlist.EventDelegate.
func (d *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	d.presence.logger.Debug("Peer updated",
		zap.String("peer_id", node.Name))
}
