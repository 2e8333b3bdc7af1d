package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/collector"
	"github.com/ethosengine/stewardnet/internal/metrics"
)

// MetricsServer serves Prometheus metrics via HTTP.
type MetricsServer struct {
	httpServer *http.Server
	metrics    *metrics.Metrics
	collector  *collector.Collector
	logger     *zap.Logger
	stopChan   chan struct{}
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(port int, m *metrics.Metrics, col *collector.Collector, logger *zap.Logger) *MetricsServer {
	httpMux := http.NewServeMux()

	ms := &MetricsServer{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      httpMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		metrics:   m,
		collector: col,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}

	httpMux.Handle("/metrics", promhttp.Handler())

	return ms
}

// Start starts the metrics server and the gauge refresh loop.
func (s *MetricsServer) Start() error {
	s.logger.Info("Starting metrics server", zap.String("addr", s.httpServer.Addr))

	go s.refreshGauges()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the metrics server.
func (s *MetricsServer) Stop() error {
	s.logger.Info("Stopping metrics server")

	close(s.stopChan)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	return nil
}

// refreshGauges periodically publishes slow-moving local gauges.
func (s *MetricsServer) refreshGauges() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.metrics.LocalHealthScore.Set(s.collector.HealthScore())
		case <-s.stopChan:
			return
		}
	}
}
