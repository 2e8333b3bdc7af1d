package model

// ReplicationStrategy identifies how a custodian replicates committed content.
type ReplicationStrategy string

const (
	StrategyFullReplica  ReplicationStrategy = "full_replica"
	StrategyThreshold    ReplicationStrategy = "threshold"
	StrategyErasureCoded ReplicationStrategy = "erasure_coded"
)

// Commitment is a time-bounded promise by a custodian to serve a piece of
// content. Commitments are append-only on the network side: renewal extends
// ExpiresAt, revocation flips IsActive, nothing is physically deleted.
// At most one active commitment exists per (custodian, content) pair.
type Commitment struct {
	ID                  string              `json:"id"`
	CustodianID         string              `json:"custodian_id"`
	Endpoint            string              `json:"endpoint"`
	ContentID           string              `json:"content_id"`
	Domain              string              `json:"domain"`
	Epic                string              `json:"epic"`
	ReplicationStrategy ReplicationStrategy `json:"replication_strategy"`
	StrategyParams      map[string]string   `json:"strategy_params,omitempty"`
	CreatedAt           int64               `json:"created_at"`
	ExpiresAt           int64               `json:"expires_at"`
	IsActive            bool                `json:"is_active"`
	StorageAllocated    int64               `json:"storage_allocated"`
	BandwidthAllocated  float64             `json:"bandwidth_allocated"`
	StewardTier         int                 `json:"steward_tier"`
}
