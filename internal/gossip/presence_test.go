package gossip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsAliveDefaultsToTrue(t *testing.T) {
	p := &Presence{left: make(map[string]bool), logger: zap.NewNop()}

	// No gossip evidence about a peer means it passes as alive.
	assert.True(t, p.IsAlive("never-seen"))

	p.markLeft("peer-1")
	assert.False(t, p.IsAlive("peer-1"))

	// Rejoining clears the departure.
	p.markJoined("peer-1")
	assert.True(t, p.IsAlive("peer-1"))
}

func TestSingleNodeCluster(t *testing.T) {
	p, err := New(Config{BindAddr: "127.0.0.1", BindPort: 0}, "peer-local", zap.NewNop(), nil)
	require.NoError(t, err)
	defer p.Shutdown()

	assert.Equal(t, 1, p.NumMembers())
	require.Len(t, p.Members(), 1)
	assert.Equal(t, "peer-local", p.Members()[0])
	assert.True(t, p.IsAlive("peer-local"))
}

func TestNodeMetaRespectsLimit(t *testing.T) {
	p := &Presence{left: make(map[string]bool), logger: zap.NewNop()}
	p.meta = nodeMeta{PeerID: "peer-with-a-reasonably-long-identifier", HealthScore: 87.5}

	full := p.NodeMeta(1024)
	assert.Greater(t, len(full), 8)

	truncated := p.NodeMeta(8)
	assert.Len(t, truncated, 8)
}
