package registry_test

import (
	"context"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/breaker"
	"github.com/ethosengine/stewardnet/internal/client"
	"github.com/ethosengine/stewardnet/internal/client/clienttest"
	"github.com/ethosengine/stewardnet/internal/model"
	"github.com/ethosengine/stewardnet/internal/registry"
)

const dayMs = int64(24 * 60 * 60 * 1000)

func newRegistry(t *testing.T, store *clienttest.FakeStore) (*registry.Registry, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	cb := breaker.New(mock, zap.NewNop(), nil)
	return registry.New(store, cb, mock, zap.NewNop()), mock
}

func commitmentsHandler(commitments []model.Commitment) func(string, interface{}) (*client.Response, error) {
	return func(op string, payload interface{}) (*client.Response, error) {
		return clienttest.OK(model.CommitmentListResponse{Commitments: commitments}), nil
	}
}

func TestRegistry_GetCommitmentsForContent(t *testing.T) {
	store := &clienttest.FakeStore{Handler: commitmentsHandler([]model.Commitment{
		{ID: "c1", ContentID: "content-1", CustodianID: "peer-a"},
		{ID: "c2", ContentID: "content-1", CustodianID: "peer-b"},
	})}
	reg, _ := newRegistry(t, store)

	commitments := reg.GetCommitmentsForContent(context.Background(), "content-1")

	require.Len(t, commitments, 2)
	assert.Equal(t, "peer-a", commitments[0].CustodianID)
	assert.Equal(t, []string{model.OpCommitmentsForContent}, store.Calls())
}

func TestRegistry_ReadsDegradeToEmpty(t *testing.T) {
	store := &clienttest.FakeStore{Handler: func(op string, payload interface{}) (*client.Response, error) {
		return clienttest.Reject("projection unavailable"), nil
	}}
	reg, _ := newRegistry(t, store)
	ctx := context.Background()

	assert.Empty(t, reg.GetCommitmentsForContent(ctx, "content-1"))
	assert.Empty(t, reg.GetCommitmentsByCustodian(ctx, "peer-a"))
	assert.Empty(t, reg.GetExpiringCommitments(ctx, "peer-a", 7))
	assert.Equal(t, 0, reg.GetActiveCommitmentCount(ctx, "peer-a"))
	assert.Equal(t, int64(0), reg.GetTotalCommittedStorage(ctx, "peer-a"))
	assert.False(t, reg.IsCommittedTo(ctx, "peer-a", "content-1"))
}

func TestRegistry_CreateCommitment(t *testing.T) {
	var sent model.Commitment
	store := &clienttest.FakeStore{Handler: func(op string, payload interface{}) (*client.Response, error) {
		req := payload.(model.CreateCommitmentRequest)
		sent = req.Commitment
		return clienttest.OK(model.CreateCommitmentResponse{CommitmentID: sent.ID}), nil
	}}
	reg, mock := newRegistry(t, store)

	res := reg.CreateCommitment(context.Background(), "peer-a", "content-1",
		model.StrategyFullReplica, 1<<30, 100, 0)

	require.True(t, res.Success)
	assert.NotEmpty(t, res.CommitmentID)
	assert.True(t, sent.IsActive)
	assert.Equal(t, int64(1<<30), sent.StorageAllocated)
	// Default expiry is 30 days out.
	assert.Equal(t, mock.Now().UnixMilli()+30*dayMs, sent.ExpiresAt)
}

func TestRegistry_CreateCommitmentRejected(t *testing.T) {
	store := &clienttest.FakeStore{Handler: func(op string, payload interface{}) (*client.Response, error) {
		return clienttest.Reject("custodian already committed"), nil
	}}
	reg, _ := newRegistry(t, store)

	res := reg.CreateCommitment(context.Background(), "peer-a", "content-1",
		model.StrategyThreshold, 0, 0, 14)

	assert.False(t, res.Success)
	assert.Equal(t, "custodian already committed", res.Error)
}

func TestRegistry_RenewAndRevoke(t *testing.T) {
	var renewedTo int64
	store := &clienttest.FakeStore{Handler: func(op string, payload interface{}) (*client.Response, error) {
		if op == model.OpRenewCommitment {
			renewedTo = payload.(model.RenewCommitmentRequest).NewExpiresAt
		}
		return clienttest.OK(nil), nil
	}}
	reg, mock := newRegistry(t, store)

	res := reg.RenewCommitment(context.Background(), "c1", 10)
	require.True(t, res.Success)
	assert.Equal(t, mock.Now().UnixMilli()+10*dayMs, renewedTo)

	res = reg.RevokeCommitment(context.Background(), "c1")
	require.True(t, res.Success)
	assert.Equal(t, "c1", res.CommitmentID)
}

func TestRegistry_GetExpiringCommitments(t *testing.T) {
	store := &clienttest.FakeStore{}
	reg, mock := newRegistry(t, store)
	now := mock.Now().UnixMilli()

	store.Handler = commitmentsHandler([]model.Commitment{
		{ID: "soon", IsActive: true, ExpiresAt: now + 2*dayMs},
		{ID: "later", IsActive: true, ExpiresAt: now + 30*dayMs},
		{ID: "revoked", IsActive: false, ExpiresAt: now + 2*dayMs},
	})

	expiring := reg.GetExpiringCommitments(context.Background(), "peer-a", 7)

	require.Len(t, expiring, 1)
	assert.Equal(t, "soon", expiring[0].ID)
}

func TestRegistry_CustodianAggregations(t *testing.T) {
	store := &clienttest.FakeStore{Handler: commitmentsHandler([]model.Commitment{
		{ID: "c1", CustodianID: "peer-a", IsActive: true, StorageAllocated: 100},
		{ID: "c2", CustodianID: "peer-a", IsActive: true, StorageAllocated: 250},
		{ID: "c3", CustodianID: "peer-a", IsActive: false, StorageAllocated: 999},
	})}
	reg, _ := newRegistry(t, store)
	ctx := context.Background()

	assert.Equal(t, 2, reg.GetActiveCommitmentCount(ctx, "peer-a"))
	assert.Equal(t, int64(350), reg.GetTotalCommittedStorage(ctx, "peer-a"))
}

func TestRegistry_IsCommittedTo(t *testing.T) {
	store := &clienttest.FakeStore{Handler: commitmentsHandler([]model.Commitment{
		{ID: "c1", CustodianID: "peer-a", ContentID: "content-1", IsActive: true},
		{ID: "c2", CustodianID: "peer-b", ContentID: "content-1", IsActive: false},
	})}
	reg, _ := newRegistry(t, store)
	ctx := context.Background()

	assert.True(t, reg.IsCommittedTo(ctx, "peer-a", "content-1"))
	assert.False(t, reg.IsCommittedTo(ctx, "peer-b", "content-1"))
}

func TestRegistry_CircuitOpenDegrades(t *testing.T) {
	failures := 0
	store := &clienttest.FakeStore{Handler: func(op string, payload interface{}) (*client.Response, error) {
		failures++
		return nil, context.DeadlineExceeded
	}}
	reg, _ := newRegistry(t, store)
	ctx := context.Background()

	// Trip the registry circuit.
	for i := 0; i < 5; i++ {
		reg.GetCommitmentsForContent(ctx, "content-1")
	}
	require.Equal(t, 5, failures)

	// Open circuit: the store is no longer asked, reads stay empty.
	assert.Empty(t, reg.GetCommitmentsForContent(ctx, "content-1"))
	assert.Equal(t, 5, failures)
}
