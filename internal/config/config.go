package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PeerConfig identifies the local node and its declared resources.
type PeerConfig struct {
	PeerID               string  `yaml:"peer_id"`
	StorageCapacityBytes int64   `yaml:"storage_capacity_bytes"`
	StorageUsedBytes     int64   `yaml:"storage_used_bytes"`
	DeclaredMbps         float64 `yaml:"declared_mbps"`
	CurrentMbps          float64 `yaml:"current_mbps"`
	StewardTier          int     `yaml:"steward_tier"`
	PricePerGB           float64 `yaml:"price_per_gb"`
}

// RemoteConfig holds the remote metrics/commitment store configuration.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// BreakerConfig tunes the circuit breaker state machine.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	SuccessThreshold int           `yaml:"success_threshold"`
	FailureWindow    time.Duration `yaml:"failure_window"`
}

// CollectorConfig tunes local metrics collection.
type CollectorConfig struct {
	WindowSize     int     `yaml:"window_size"`
	UptimeWeight   float64 `yaml:"uptime_weight"`
	ErrorWeight    float64 `yaml:"error_weight"`
	ResourceWeight float64 `yaml:"resource_weight"`
	WorkloadWeight float64 `yaml:"workload_weight"`
}

// AggregatorConfig tunes network metrics caching.
type AggregatorConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// SelectionConfig tunes custodian selection.
type SelectionConfig struct {
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	MinUptimePercent float64       `yaml:"min_uptime_percent"`
}

// ReporterConfig tunes periodic metrics reporting.
type ReporterConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
}

// GossipConfig holds gossip protocol configuration.
type GossipConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BindAddr       string        `yaml:"bind_addr"`
	BindPort       int           `yaml:"bind_port"`
	SeedPeers      []string      `yaml:"seed_peers"`
	GossipInterval time.Duration `yaml:"gossip_interval"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	ProbeInterval  time.Duration `yaml:"probe_interval"`
}

// AdminConfig holds the operator HTTP API configuration.
type AdminConfig struct {
	Port              int           `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RateLimitEnabled  bool          `yaml:"rate_limit_enabled"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for the steward node.
type Config struct {
	Peer       PeerConfig       `yaml:"peer"`
	Remote     RemoteConfig     `yaml:"remote"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Collector  CollectorConfig  `yaml:"collector"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Selection  SelectionConfig  `yaml:"selection"`
	Reporter   ReporterConfig   `yaml:"reporter"`
	Gossip     GossipConfig     `yaml:"gossip"`
	Admin      AdminConfig      `yaml:"admin"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoadConfig loads configuration from a file.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 10 * time.Second
	}

	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.ResetTimeout == 0 {
		cfg.Breaker.ResetTimeout = 30 * time.Second
	}
	if cfg.Breaker.SuccessThreshold == 0 {
		cfg.Breaker.SuccessThreshold = 3
	}
	if cfg.Breaker.FailureWindow == 0 {
		cfg.Breaker.FailureWindow = 60 * time.Second
	}

	if cfg.Collector.WindowSize == 0 {
		cfg.Collector.WindowSize = 10000
	}
	if cfg.Collector.UptimeWeight == 0 {
		cfg.Collector.UptimeWeight = 0.4
	}
	if cfg.Collector.ErrorWeight == 0 {
		cfg.Collector.ErrorWeight = 0.3
	}
	if cfg.Collector.ResourceWeight == 0 {
		cfg.Collector.ResourceWeight = 0.2
	}
	if cfg.Collector.WorkloadWeight == 0 {
		cfg.Collector.WorkloadWeight = 0.1
	}

	if cfg.Aggregator.CacheTTL == 0 {
		cfg.Aggregator.CacheTTL = 5 * time.Minute
	}

	if cfg.Selection.CacheTTL == 0 {
		cfg.Selection.CacheTTL = 2 * time.Minute
	}
	if cfg.Selection.MinUptimePercent == 0 {
		cfg.Selection.MinUptimePercent = 50
	}

	if cfg.Reporter.Interval == 0 {
		cfg.Reporter.Interval = 5 * time.Minute
	}
	if cfg.Reporter.BackoffInitial == 0 {
		cfg.Reporter.BackoffInitial = time.Second
	}
	if cfg.Reporter.BackoffMax == 0 {
		cfg.Reporter.BackoffMax = 30 * time.Minute
	}

	if cfg.Gossip.BindPort == 0 {
		cfg.Gossip.BindPort = 7946
	}

	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Admin.ReadTimeout == 0 {
		cfg.Admin.ReadTimeout = 10 * time.Second
	}
	if cfg.Admin.WriteTimeout == 0 {
		cfg.Admin.WriteTimeout = 10 * time.Second
	}
	if cfg.Admin.IdleTimeout == 0 {
		cfg.Admin.IdleTimeout = 60 * time.Second
	}
	if cfg.Admin.ShutdownTimeout == 0 {
		cfg.Admin.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Admin.RequestTimeout == 0 {
		cfg.Admin.RequestTimeout = 10 * time.Second
	}
	if cfg.Admin.RequestsPerSecond == 0 {
		cfg.Admin.RequestsPerSecond = 100
	}
	if cfg.Admin.BurstSize == 0 {
		cfg.Admin.BurstSize = 200
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Peer.PeerID == "" {
		return fmt.Errorf("peer.peer_id is required")
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if c.Admin.Port < 1 || c.Admin.Port > 65535 {
		return fmt.Errorf("admin.port must be between 1 and 65535")
	}
	if c.Peer.StewardTier < 0 || c.Peer.StewardTier > 4 {
		return fmt.Errorf("peer.steward_tier must be between 0 and 4")
	}
	if c.Selection.MinUptimePercent < 0 || c.Selection.MinUptimePercent > 100 {
		return fmt.Errorf("selection.min_uptime_percent must be between 0 and 100")
	}
	return nil
}
