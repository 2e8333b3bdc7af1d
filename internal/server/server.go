// Package server provides the operator HTTP server and the Prometheus
// metrics endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/config"
	"github.com/ethosengine/stewardnet/internal/handler"
	"github.com/ethosengine/stewardnet/internal/health"
	"github.com/ethosengine/stewardnet/internal/httperrors"
	"github.com/ethosengine/stewardnet/internal/middleware"
)

// Server represents the operator HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.HealthChecker
	errorHandler *httperrors.Handler
	logger       *zap.Logger
	cfg          config.AdminConfig
}

// NewServer creates a new operator HTTP server.
func NewServer(cfg config.AdminConfig, handlers *handler.Handlers, healthCheck *health.HealthChecker, errorHandler *httperrors.Handler, logger *zap.Logger) *Server {
	router := mux.NewRouter()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		healthCheck:  healthCheck,
		errorHandler: errorHandler,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
	}

	if s.cfg.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(s.cfg.RequestsPerSecond, s.cfg.BurstSize, s.logger)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Custodian selection
	v1.HandleFunc("/custodians/select/{content_id}", s.handlers.SelectCustodian).Methods(http.MethodGet)
	v1.HandleFunc("/custodians/top", s.handlers.TopCustodians).Methods(http.MethodGet)
	v1.HandleFunc("/custodians/scores", s.handlers.AllScores).Methods(http.MethodGet)
	v1.HandleFunc("/custodians/available", s.handlers.AvailableCustodians).Methods(http.MethodGet)

	// Network metrics
	v1.HandleFunc("/rankings/{field}", s.handlers.Rankings).Methods(http.MethodGet)
	v1.HandleFunc("/peers/{peer_id}/metrics", s.handlers.PeerMetrics).Methods(http.MethodGet)
	v1.HandleFunc("/alerts", s.handlers.Alerts).Methods(http.MethodGet)
	v1.HandleFunc("/recommendations", s.handlers.Recommendations).Methods(http.MethodGet)

	// Commitment management
	v1.HandleFunc("/commitments", s.handlers.CreateCommitment).Methods(http.MethodPost)
	v1.HandleFunc("/commitments/{commitment_id}/renew", s.handlers.RenewCommitment).Methods(http.MethodPost)
	v1.HandleFunc("/commitments/{commitment_id}", s.handlers.RevokeCommitment).Methods(http.MethodDelete)
	v1.HandleFunc("/commitments/content/{content_id}", s.handlers.ContentCommitments).Methods(http.MethodGet)
	v1.HandleFunc("/commitments/custodian/{custodian_id}", s.handlers.CustodianCommitments).Methods(http.MethodGet)

	// Node administration
	v1.HandleFunc("/reporting/enable", s.handlers.EnableReporting).Methods(http.MethodPost)
	v1.HandleFunc("/reporting/disable", s.handlers.DisableReporting).Methods(http.MethodPost)
	v1.HandleFunc("/stats", s.handlers.Stats).Methods(http.MethodGet)
	v1.HandleFunc("/caches/clear", s.handlers.ClearCaches).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, httperrors.ErrorCodeInvalidRequest, "endpoint not found", requestID)
	})

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, httperrors.ErrorCodeInvalidRequest, "method not allowed", requestID)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("Starting operator HTTP server", zap.Int("port", s.cfg.Port))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down operator HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the http.Handler for the server, for tests.
func (s *Server) GetHandler() http.Handler {
	return s.router
}
