package model

// ScoreBreakdown holds the normalized sub-scores behind a final score.
// Health, Latency, Bandwidth and Specialization are in [0,1] before
// weighting; TierBonus is already scaled (max 0.05) and added directly.
type ScoreBreakdown struct {
	Health         float64 `json:"health"`
	Latency        float64 `json:"latency"`
	Bandwidth      float64 `json:"bandwidth"`
	Specialization float64 `json:"specialization"`
	TierBonus      float64 `json:"tier_bonus"`
}

// CustodianScore is an ephemeral scoring of one custodian, derived from a
// commitment (when scoring candidates for a content item) and the peer's
// latest network-visible metrics. It is never persisted.
type CustodianScore struct {
	CustodianID string `json:"custodian_id"`
	// Commitment is nil when the peer was scored outside a content
	// context (ScoreAllCustodians).
	Commitment           *Commitment `json:"commitment,omitempty"`
	HealthPercent        float64     `json:"health_percent"`
	LatencyP95Ms         float64     `json:"latency_p95_ms"`
	BandwidthUtilization float64     `json:"bandwidth_utilization"`
	SpecializationBonus  float64     `json:"specialization_bonus"`
	// FinalScore is in [0,100].
	FinalScore float64        `json:"final_score"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
}
