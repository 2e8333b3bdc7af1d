// Package registry queries and mutates peer-to-content commitment records
// on the remote store. Every read degrades to an empty or zero result on
// failure so the selection engine keeps functioning, with a reduced
// candidate pool, while the network layer is unhealthy.
package registry

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/breaker"
	"github.com/ethosengine/stewardnet/internal/client"
	"github.com/ethosengine/stewardnet/internal/model"
)

// CircuitName guards every remote call made by the registry.
const CircuitName = "commitment-registry"

const (
	defaultExpirationDays = 30
	defaultExtensionDays  = 30
	defaultExpiringWindow = 7
	msPerDay              = 24 * 60 * 60 * 1000
)

// MutationResult reports the outcome of a commitment mutation. Remote
// rejections surface their reason in Error instead of an exception.
type MutationResult struct {
	Success      bool   `json:"success"`
	CommitmentID string `json:"commitment_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Registry is the commitment store client.
type Registry struct {
	store   client.RemoteStore
	breaker *breaker.CircuitBreaker
	clock   clock.Clock
	logger  *zap.Logger
}

// New creates a registry whose remote calls run under the given breaker.
func New(store client.RemoteStore, cb *breaker.CircuitBreaker, clk clock.Clock, logger *zap.Logger) *Registry {
	cb.Register(CircuitName, breaker.DefaultConfig())
	return &Registry{
		store:   store,
		breaker: cb,
		clock:   clk,
		logger:  logger,
	}
}

// GetCommitmentsForContent returns every commitment for the given content,
// or an empty list on any remote failure.
func (r *Registry) GetCommitmentsForContent(ctx context.Context, contentID string) []model.Commitment {
	return r.fetchCommitments(ctx, model.OpCommitmentsForContent,
		model.CommitmentsForContentRequest{ContentID: contentID})
}

// GetCommitmentsByCustodian returns every commitment held by the given
// custodian, or an empty list on any remote failure.
func (r *Registry) GetCommitmentsByCustodian(ctx context.Context, custodianID string) []model.Commitment {
	return r.fetchCommitments(ctx, model.OpCommitmentsByCustodian,
		model.CommitmentsByCustodianRequest{CustodianID: custodianID})
}

// CreateCommitment volunteers a custodian to serve the given content.
// Non-positive expirationDays falls back to 30.
func (r *Registry) CreateCommitment(
	ctx context.Context,
	custodianID, contentID string,
	strategy model.ReplicationStrategy,
	storageBytes int64,
	bandwidthMbps float64,
	expirationDays int,
) MutationResult {
	if expirationDays <= 0 {
		expirationDays = defaultExpirationDays
	}
	now := r.clock.Now().UnixMilli()

	commitment := model.Commitment{
		ID:                  uuid.NewString(),
		CustodianID:         custodianID,
		ContentID:           contentID,
		ReplicationStrategy: strategy,
		CreatedAt:           now,
		ExpiresAt:           now + int64(expirationDays)*msPerDay,
		IsActive:            true,
		StorageAllocated:    storageBytes,
		BandwidthAllocated:  bandwidthMbps,
	}

	res := r.call(ctx, model.OpCreateCommitment, model.CreateCommitmentRequest{Commitment: commitment})
	if !res.Success {
		return MutationResult{Success: false, Error: res.Error}
	}

	var created model.CreateCommitmentResponse
	if raw, ok := res.Data.(json.RawMessage); ok {
		if err := json.Unmarshal(raw, &created); err != nil {
			r.logger.Warn("Failed to decode create commitment response", zap.Error(err))
		}
	}
	if created.CommitmentID == "" {
		created.CommitmentID = commitment.ID
	}

	r.logger.Info("Commitment created",
		zap.String("commitment_id", created.CommitmentID),
		zap.String("custodian_id", custodianID),
		zap.String("content_id", contentID))

	return MutationResult{Success: true, CommitmentID: created.CommitmentID}
}

// RenewCommitment extends a commitment's expiry. Non-positive extensionDays
// falls back to 30.
func (r *Registry) RenewCommitment(ctx context.Context, commitmentID string, extensionDays int) MutationResult {
	if extensionDays <= 0 {
		extensionDays = defaultExtensionDays
	}
	newExpiresAt := r.clock.Now().UnixMilli() + int64(extensionDays)*msPerDay

	res := r.call(ctx, model.OpRenewCommitment, model.RenewCommitmentRequest{
		CommitmentID: commitmentID,
		NewExpiresAt: newExpiresAt,
	})
	if !res.Success {
		return MutationResult{Success: false, Error: res.Error}
	}
	return MutationResult{Success: true, CommitmentID: commitmentID}
}

// RevokeCommitment deactivates a commitment. The record stays in the
// network's append-only history.
func (r *Registry) RevokeCommitment(ctx context.Context, commitmentID string) MutationResult {
	res := r.call(ctx, model.OpRevokeCommitment, model.RevokeCommitmentRequest{CommitmentID: commitmentID})
	if !res.Success {
		return MutationResult{Success: false, Error: res.Error}
	}
	return MutationResult{Success: true, CommitmentID: commitmentID}
}

// GetExpiringCommitments returns the custodian's active commitments expiring
// within the given window. Non-positive withinDays falls back to 7.
func (r *Registry) GetExpiringCommitments(ctx context.Context, custodianID string, withinDays int) []model.Commitment {
	if withinDays <= 0 {
		withinDays = defaultExpiringWindow
	}
	cutoff := r.clock.Now().UnixMilli() + int64(withinDays)*msPerDay

	var expiring []model.Commitment
	for _, c := range r.GetCommitmentsByCustodian(ctx, custodianID) {
		if c.IsActive && c.ExpiresAt < cutoff {
			expiring = append(expiring, c)
		}
	}
	return expiring
}

// GetActiveCommitmentCount returns the custodian's active commitment count,
// 0 on any remote failure.
func (r *Registry) GetActiveCommitmentCount(ctx context.Context, custodianID string) int {
	count := 0
	for _, c := range r.GetCommitmentsByCustodian(ctx, custodianID) {
		if c.IsActive {
			count++
		}
	}
	return count
}

// GetTotalCommittedStorage returns the bytes the custodian has promised
// across active commitments, 0 on any remote failure.
func (r *Registry) GetTotalCommittedStorage(ctx context.Context, custodianID string) int64 {
	var total int64
	for _, c := range r.GetCommitmentsByCustodian(ctx, custodianID) {
		if c.IsActive {
			total += c.StorageAllocated
		}
	}
	return total
}

// IsCommittedTo reports whether the custodian holds an active commitment
// for the content, false on any remote failure.
func (r *Registry) IsCommittedTo(ctx context.Context, custodianID, contentID string) bool {
	for _, c := range r.GetCommitmentsForContent(ctx, contentID) {
		if c.IsActive && c.CustodianID == custodianID {
			return true
		}
	}
	return false
}

func (r *Registry) fetchCommitments(ctx context.Context, op string, payload interface{}) []model.Commitment {
	res := r.call(ctx, op, payload)
	if !res.Success {
		return nil
	}

	raw, ok := res.Data.(json.RawMessage)
	if !ok {
		return nil
	}
	var list model.CommitmentListResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		r.logger.Warn("Failed to decode commitment list",
			zap.String("op", op),
			zap.Error(err))
		return nil
	}
	return list.Commitments
}

// call runs one remote operation under the registry circuit, flattening
// transport errors and rejections into the breaker result.
func (r *Registry) call(ctx context.Context, op string, payload interface{}) breaker.Result {
	res := r.breaker.Execute(ctx, CircuitName, func(ctx context.Context) (interface{}, error) {
		resp, err := r.store.Call(ctx, op, payload)
		if err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, errors.New(resp.Error)
		}
		return resp.Data, nil
	})

	if !res.Success {
		r.logger.Debug("Registry call degraded",
			zap.String("op", op),
			zap.Bool("circuit_open", res.CircuitOpen),
			zap.String("error", res.Error))
	}
	return res
}
