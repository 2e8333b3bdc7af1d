// Package handler provides HTTP request handlers for the operator API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/aggregator"
	"github.com/ethosengine/stewardnet/internal/breaker"
	"github.com/ethosengine/stewardnet/internal/httperrors"
	"github.com/ethosengine/stewardnet/internal/model"
	"github.com/ethosengine/stewardnet/internal/registry"
	"github.com/ethosengine/stewardnet/internal/reporter"
	"github.com/ethosengine/stewardnet/internal/selection"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	selection    *selection.Engine
	aggregator   *aggregator.Aggregator
	registry     *registry.Registry
	reporter     *reporter.Reporter
	breaker      *breaker.CircuitBreaker
	errorHandler *httperrors.Handler
	logger       *zap.Logger
	timeout      time.Duration
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	sel *selection.Engine,
	agg *aggregator.Aggregator,
	reg *registry.Registry,
	rep *reporter.Reporter,
	cb *breaker.CircuitBreaker,
	errorHandler *httperrors.Handler,
	logger *zap.Logger,
	timeout time.Duration,
) *Handlers {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handlers{
		selection:    sel,
		aggregator:   agg,
		registry:     reg,
		reporter:     rep,
		breaker:      cb,
		errorHandler: errorHandler,
		logger:       logger,
		timeout:      timeout,
	}
}

// SelectCustodian handles GET /v1/custodians/select/{content_id}.
func (h *Handlers) SelectCustodian(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	contentID := mux.Vars(r)["content_id"]

	ctx, cancel := h.requestContext(r)
	defer cancel()

	best := h.selection.SelectBestCustodian(ctx, contentID)
	if best == nil {
		h.errorHandler.WriteErrorResponse(w, http.StatusNotFound, httperrors.ErrorCodeNoCustodian,
			"no suitable custodian for content", requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, best)
}

// TopCustodians handles GET /v1/custodians/top.
func (h *Handlers) TopCustodians(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	limit := queryInt(r, "limit", 0)
	h.writeJSONResponse(w, http.StatusOK, h.selection.GetTopCustodians(ctx, limit))
}

// AllScores handles GET /v1/custodians/scores.
func (h *Handlers) AllScores(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	h.writeJSONResponse(w, http.StatusOK, h.selection.ScoreAllCustodians(ctx))
}

// AvailableCustodians handles GET /v1/custodians/available.
func (h *Handlers) AvailableCustodians(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	h.writeJSONResponse(w, http.StatusOK, h.aggregator.GetAvailableCustodians(ctx))
}

// Rankings handles GET /v1/rankings/{field}.
func (h *Handlers) Rankings(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	field := mux.Vars(r)["field"]
	limit := queryInt(r, "limit", 0)

	ctx, cancel := h.requestContext(r)
	defer cancel()

	var ranked []model.PeerMetrics
	switch field {
	case "health":
		ranked = h.aggregator.GetRankedByHealth(ctx, limit)
	case "speed":
		ranked = h.aggregator.GetRankedBySpeed(ctx, limit)
	case "reputation":
		ranked = h.aggregator.GetRankedByReputation(ctx, limit)
	default:
		h.errorHandler.WriteValidationError(w, "unknown ranking field: "+field, requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, ranked)
}

// PeerMetrics handles GET /v1/peers/{peer_id}/metrics.
func (h *Handlers) PeerMetrics(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	peerID := mux.Vars(r)["peer_id"]

	ctx, cancel := h.requestContext(r)
	defer cancel()

	m := h.aggregator.GetMetrics(ctx, peerID)
	if m == nil {
		h.errorHandler.WriteErrorResponse(w, http.StatusNotFound, httperrors.ErrorCodePeerNotFound,
			"no metrics for peer", requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, m)
}

// Alerts handles GET /v1/alerts.
func (h *Handlers) Alerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	h.writeJSONResponse(w, http.StatusOK, h.aggregator.GetAlerts(ctx))
}

// Recommendations handles GET /v1/recommendations.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	h.writeJSONResponse(w, http.StatusOK, h.aggregator.GetRecommendations(ctx))
}

// createCommitmentRequest is the POST /v1/commitments payload.
type createCommitmentRequest struct {
	CustodianID    string                    `json:"custodian_id"`
	ContentID      string                    `json:"content_id"`
	Strategy       model.ReplicationStrategy `json:"strategy"`
	StorageBytes   int64                     `json:"storage_bytes"`
	BandwidthMbps  float64                   `json:"bandwidth_mbps"`
	ExpirationDays int                       `json:"expiration_days"`
}

// CreateCommitment handles POST /v1/commitments.
func (h *Handlers) CreateCommitment(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	var req createCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body: "+err.Error(), requestID)
		return
	}
	if req.CustodianID == "" || req.ContentID == "" {
		h.errorHandler.WriteValidationError(w, "custodian_id and content_id are required", requestID)
		return
	}
	if req.Strategy == "" {
		req.Strategy = model.StrategyFullReplica
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res := h.registry.CreateCommitment(ctx, req.CustodianID, req.ContentID,
		req.Strategy, req.StorageBytes, req.BandwidthMbps, req.ExpirationDays)
	h.writeMutationResponse(w, res, http.StatusCreated, requestID)
}

// renewCommitmentRequest is the POST /v1/commitments/{commitment_id}/renew payload.
type renewCommitmentRequest struct {
	ExtensionDays int `json:"extension_days"`
}

// RenewCommitment handles POST /v1/commitments/{commitment_id}/renew.
func (h *Handlers) RenewCommitment(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	commitmentID := mux.Vars(r)["commitment_id"]

	var req renewCommitmentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.errorHandler.WriteValidationError(w, "invalid request body: "+err.Error(), requestID)
			return
		}
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res := h.registry.RenewCommitment(ctx, commitmentID, req.ExtensionDays)
	h.writeMutationResponse(w, res, http.StatusOK, requestID)
}

// RevokeCommitment handles DELETE /v1/commitments/{commitment_id}.
func (h *Handlers) RevokeCommitment(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	commitmentID := mux.Vars(r)["commitment_id"]

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res := h.registry.RevokeCommitment(ctx, commitmentID)
	h.writeMutationResponse(w, res, http.StatusOK, requestID)
}

// ContentCommitments handles GET /v1/commitments/content/{content_id}.
func (h *Handlers) ContentCommitments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	contentID := mux.Vars(r)["content_id"]
	h.writeJSONResponse(w, http.StatusOK, h.registry.GetCommitmentsForContent(ctx, contentID))
}

// CustodianCommitments handles GET /v1/commitments/custodian/{custodian_id}.
func (h *Handlers) CustodianCommitments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	custodianID := mux.Vars(r)["custodian_id"]
	if queryInt(r, "expiring_within_days", 0) > 0 {
		days := queryInt(r, "expiring_within_days", 0)
		h.writeJSONResponse(w, http.StatusOK, h.registry.GetExpiringCommitments(ctx, custodianID, days))
		return
	}
	h.writeJSONResponse(w, http.StatusOK, h.registry.GetCommitmentsByCustodian(ctx, custodianID))
}

// EnableReporting handles POST /v1/reporting/enable.
func (h *Handlers) EnableReporting(w http.ResponseWriter, r *http.Request) {
	// The reporting loop must outlive this request.
	h.reporter.Enable(context.Background())
	h.writeJSONResponse(w, http.StatusOK, h.reporter.GetStats())
}

// DisableReporting handles POST /v1/reporting/disable.
func (h *Handlers) DisableReporting(w http.ResponseWriter, r *http.Request) {
	h.reporter.Disable()
	h.writeJSONResponse(w, http.StatusOK, h.reporter.GetStats())
}

// statsResponse aggregates per-component statistics for GET /v1/stats.
type statsResponse struct {
	Selection selection.Statistics     `json:"selection"`
	Reporter  reporter.Stats           `json:"reporter"`
	Circuits  map[string]breaker.Stats `json:"circuits"`
}

// Stats handles GET /v1/stats.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	circuits := make(map[string]breaker.Stats)
	for _, name := range h.breaker.Names() {
		if stats := h.breaker.GetStats(name); stats != nil {
			circuits[name] = *stats
		}
	}

	h.writeJSONResponse(w, http.StatusOK, statsResponse{
		Selection: h.selection.GetStatistics(),
		Reporter:  h.reporter.GetStats(),
		Circuits:  circuits,
	})
}

// ClearCaches handles POST /v1/caches/clear.
func (h *Handlers) ClearCaches(w http.ResponseWriter, r *http.Request) {
	h.selection.ClearCache()
	h.aggregator.ClearCache()
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handlers) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *Handlers) writeMutationResponse(w http.ResponseWriter, res registry.MutationResult, okStatus int, requestID string) {
	if !res.Success {
		h.errorHandler.WriteErrorResponse(w, http.StatusBadGateway, httperrors.ErrorCodeServiceDegraded,
			res.Error, requestID)
		return
	}
	h.writeJSONResponse(w, okStatus, res)
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
