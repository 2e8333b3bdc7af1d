package model

// HealthMetrics captures a peer's availability and responsiveness.
type HealthMetrics struct {
	UptimePercent float64 `json:"uptime_percent"`
	Available     bool    `json:"available"`
	LatencyP50Ms  float64 `json:"latency_p50_ms"`
	LatencyP95Ms  float64 `json:"latency_p95_ms"`
	LatencyP99Ms  float64 `json:"latency_p99_ms"`
	// ErrorRate is a 0-1 fraction, not a percentage.
	ErrorRate    float64 `json:"error_rate"`
	SLACompliant bool    `json:"sla_compliant"`
}

// StorageMetrics captures a peer's storage capacity and usage.
type StorageMetrics struct {
	CapacityBytes int64            `json:"capacity_bytes"`
	UsedBytes     int64            `json:"used_bytes"`
	FreeBytes     int64            `json:"free_bytes"`
	ByDomain      map[string]int64 `json:"by_domain,omitempty"`
}

// BandwidthMetrics captures a peer's declared and observed bandwidth in Mbps.
type BandwidthMetrics struct {
	DeclaredMbps float64            `json:"declared_mbps"`
	CurrentMbps  float64            `json:"current_mbps"`
	PeakMbps     float64            `json:"peak_mbps"`
	AverageMbps  float64            `json:"average_mbps"`
	ByDomain     map[string]float64 `json:"by_domain,omitempty"`
}

// ComputationMetrics captures a peer's compute resources.
type ComputationMetrics struct {
	Cores         int     `json:"cores"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	OpsPerSecond  float64 `json:"ops_per_second"`
}

// ReputationMetrics captures a peer's standing in the network.
type ReputationMetrics struct {
	ReliabilityRating float64 `json:"reliability_rating"`
	SpeedRating       float64 `json:"speed_rating"`
	// ReputationScore is a 0-100 composite of reliability and speed.
	ReputationScore float64 `json:"reputation_score"`
	// SpecializationBonus is in [0, 0.1].
	SpecializationBonus   float64 `json:"specialization_bonus"`
	CommitmentFulfillment float64 `json:"commitment_fulfillment"`
}

// EconomicMetrics captures a peer's economic standing.
type EconomicMetrics struct {
	StewardTier       int     `json:"steward_tier"`
	PricePerGB        float64 `json:"price_per_gb"`
	TotalEarnings     float64 `json:"total_earnings"`
	ActiveCommitments int     `json:"active_commitments"`
}

// PeerMetrics is the network-visible metrics record for a single peer,
// published by the peer's own reporter and read back by the aggregator.
type PeerMetrics struct {
	PeerID      string             `json:"peer_id"`
	Health      HealthMetrics      `json:"health"`
	Storage     StorageMetrics     `json:"storage"`
	Bandwidth   BandwidthMetrics   `json:"bandwidth"`
	Computation ComputationMetrics `json:"computation"`
	Reputation  ReputationMetrics  `json:"reputation"`
	Economic    EconomicMetrics    `json:"economic"`
	FirstSeen   int64              `json:"first_seen"`
	LastUpdated int64              `json:"last_updated"`
}

// StorageUtilizationPercent returns used capacity as a percentage,
// 0 when capacity is unknown.
func (m *PeerMetrics) StorageUtilizationPercent() float64 {
	if m.Storage.CapacityBytes <= 0 {
		return 0
	}
	return float64(m.Storage.UsedBytes) / float64(m.Storage.CapacityBytes) * 100
}

// BandwidthUtilizationPercent returns current bandwidth as a percentage of
// declared bandwidth, 100 when nothing was declared (nothing is spare).
func (m *PeerMetrics) BandwidthUtilizationPercent() float64 {
	if m.Bandwidth.DeclaredMbps <= 0 {
		return 100
	}
	return m.Bandwidth.CurrentMbps / m.Bandwidth.DeclaredMbps * 100
}
