package model

// AlertSeverity classifies how urgent an alert is.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert categories emitted by the aggregator's threshold rules.
const (
	AlertCategoryResource    = "resource"
	AlertCategoryPerformance = "performance"
	AlertCategoryReliability = "reliability"
	AlertCategoryError       = "error"
	AlertCategoryStorage     = "storage"
	AlertCategorySLA         = "sla"
)

// Alert is a threshold violation derived from one peer's metrics.
type Alert struct {
	PeerID     string        `json:"peer_id"`
	Severity   AlertSeverity `json:"severity"`
	Category   string        `json:"category"`
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion"`
}

// Recommendation categories emitted by the aggregator's opportunity rules.
const (
	RecommendationBandwidth      = "bandwidth"
	RecommendationCompute        = "compute"
	RecommendationTierPromotion  = "tier_promotion"
	RecommendationSpecialization = "specialization"
)

// Recommendation is an improvement opportunity derived from one peer's
// metrics, with an optional revenue estimate for spare bandwidth.
type Recommendation struct {
	PeerID           string  `json:"peer_id"`
	Category         string  `json:"category"`
	Opportunity      string  `json:"opportunity"`
	PotentialRevenue float64 `json:"potential_revenue,omitempty"`
}
