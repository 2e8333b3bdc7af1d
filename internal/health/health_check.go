// Package health provides liveness and readiness probe handlers.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/breaker"
	"github.com/ethosengine/stewardnet/internal/collector"
)

// HealthChecker provides health check endpoints.
type HealthChecker struct {
	breaker   *breaker.CircuitBreaker
	collector *collector.Collector
	logger    *zap.Logger

	// A node whose own health drops below this is not a useful custodian.
	minHealthScore float64
}

// HealthStatus represents the health status response.
type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   int64             `json:"timestamp"`
	HealthScore float64           `json:"health_score,omitempty"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(cb *breaker.CircuitBreaker, col *collector.Collector, minHealthScore float64, logger *zap.Logger) *HealthChecker {
	if minHealthScore <= 0 {
		minHealthScore = 25
	}
	return &HealthChecker{
		breaker:        cb,
		collector:      col,
		logger:         logger,
		minHealthScore: minHealthScore,
	}
}

// LivenessHandler handles liveness probe requests.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ReadinessHandler handles readiness probe requests. The node is ready when
// at least one backend circuit is not open and its own health score is
// above the floor. Open circuits degrade reads to empty results, so a
// single open circuit is reported but does not fail readiness.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	names := h.breaker.Names()
	openCircuits := 0
	for _, name := range names {
		state, ok := h.breaker.GetState(name)
		if !ok {
			continue
		}
		checks["circuit:"+name] = string(state)
		if state == breaker.StateOpen {
			openCircuits++
		}
	}
	if len(names) > 0 && openCircuits == len(names) {
		ready = false
	}

	healthScore := h.collector.HealthScore()
	if healthScore < h.minHealthScore {
		checks["local_health"] = "below floor"
		ready = false
	} else {
		checks["local_health"] = "ok"
	}

	status := HealthStatus{
		Timestamp:   time.Now().Unix(),
		HealthScore: healthScore,
		Checks:      checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		status.Status = "ready"
		w.WriteHeader(http.StatusOK)
	} else {
		status.Status = "not_ready"
		w.WriteHeader(http.StatusServiceUnavailable)
		h.logger.Warn("Readiness check failed",
			zap.Int("open_circuits", openCircuits),
			zap.Float64("health_score", healthScore))
	}
	json.NewEncoder(w).Encode(status)
}
