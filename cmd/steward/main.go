package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ethosengine/stewardnet/internal/aggregator"
	"github.com/ethosengine/stewardnet/internal/breaker"
	"github.com/ethosengine/stewardnet/internal/client"
	"github.com/ethosengine/stewardnet/internal/collector"
	"github.com/ethosengine/stewardnet/internal/config"
	"github.com/ethosengine/stewardnet/internal/gossip"
	"github.com/ethosengine/stewardnet/internal/handler"
	"github.com/ethosengine/stewardnet/internal/health"
	"github.com/ethosengine/stewardnet/internal/httperrors"
	"github.com/ethosengine/stewardnet/internal/metrics"
	"github.com/ethosengine/stewardnet/internal/registry"
	"github.com/ethosengine/stewardnet/internal/reporter"
	"github.com/ethosengine/stewardnet/internal/selection"
	"github.com/ethosengine/stewardnet/internal/server"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("peer_id", cfg.Peer.PeerID),
		zap.String("remote", cfg.Remote.BaseURL),
		zap.Int("admin_port", cfg.Admin.Port))

	clk := clock.New()
	m := metrics.New(cfg.Peer.PeerID)

	cb := breaker.New(clk, logger, m)
	store := client.NewHTTPRemoteStore(cfg.Remote.BaseURL, cfg.Remote.Timeout, logger, m)

	var presence *gossip.Presence
	if cfg.Gossip.Enabled {
		presence, err = gossip.New(gossip.Config{
			Enabled:        cfg.Gossip.Enabled,
			BindAddr:       cfg.Gossip.BindAddr,
			BindPort:       cfg.Gossip.BindPort,
			SeedPeers:      cfg.Gossip.SeedPeers,
			GossipInterval: cfg.Gossip.GossipInterval,
			ProbeTimeout:   cfg.Gossip.ProbeTimeout,
			ProbeInterval:  cfg.Gossip.ProbeInterval,
		}, cfg.Peer.PeerID, logger, m)
		if err != nil {
			logger.Error("Failed to initialize gossip, continuing without presence", zap.Error(err))
		} else {
			defer presence.Shutdown()
			logger.Info("Gossip presence initialized", zap.Int("members", presence.NumMembers()))
		}
	}

	reg := registry.New(store, cb, clk, logger)

	// A nil *gossip.Presence must not reach the aggregator as a non-nil
	// interface.
	var liveness aggregator.Presence
	if presence != nil {
		liveness = presence
	}
	agg := aggregator.New(store, cb, liveness, cfg.Aggregator.CacheTTL, clk, logger)

	col := collector.New(collector.Config{
		WindowSize:     cfg.Collector.WindowSize,
		UptimeWeight:   cfg.Collector.UptimeWeight,
		ErrorWeight:    cfg.Collector.ErrorWeight,
		ResourceWeight: cfg.Collector.ResourceWeight,
		WorkloadWeight: cfg.Collector.WorkloadWeight,
	}, clk, logger)

	selCfg := selection.DefaultConfig()
	selCfg.CacheTTL = cfg.Selection.CacheTTL
	selCfg.MinUptimePercent = cfg.Selection.MinUptimePercent
	eng := selection.New(selCfg, reg, agg, clk, logger, m)

	rep := reporter.New(reporter.Config{
		PeerID:               cfg.Peer.PeerID,
		Interval:             cfg.Reporter.Interval,
		BackoffInitial:       cfg.Reporter.BackoffInitial,
		BackoffMax:           cfg.Reporter.BackoffMax,
		StorageCapacityBytes: cfg.Peer.StorageCapacityBytes,
		StorageUsedBytes:     cfg.Peer.StorageUsedBytes,
		DeclaredMbps:         cfg.Peer.DeclaredMbps,
		CurrentMbps:          cfg.Peer.CurrentMbps,
		StewardTier:          cfg.Peer.StewardTier,
		PricePerGB:           cfg.Peer.PricePerGB,
	}, col, agg, clk, logger, m)

	if cfg.Reporter.Enabled {
		rep.Enable(context.Background())
		defer rep.Disable()
	}

	if cfg.Metrics.Enabled {
		metricsServer := server.NewMetricsServer(cfg.Metrics.Port, m, col, logger)
		if err := metricsServer.Start(); err != nil {
			logger.Fatal("Failed to start metrics server", zap.Error(err))
		}
		defer metricsServer.Stop()
	}

	errorHandler := httperrors.NewHandler(logger)
	handlers := handler.NewHandlers(eng, agg, reg, rep, cb, errorHandler, logger, cfg.Admin.RequestTimeout)
	healthCheck := health.NewHealthChecker(cb, col, 0, logger)

	srv := server.NewServer(cfg.Admin, handlers, healthCheck, errorHandler, logger)
	srv.SetupRoutes()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Admin.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Steward node starting", zap.String("peer_id", cfg.Peer.PeerID))
	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to serve", zap.Error(err))
	}
}

// initLogger initializes the zap logger from config.
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
