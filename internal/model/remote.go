package model

// Logical operation names understood by the remote metrics/commitment store.
const (
	OpCommitmentsForContent  = "commitments_for_content"
	OpCommitmentsByCustodian = "commitments_by_custodian"
	OpCreateCommitment       = "create_commitment"
	OpRenewCommitment        = "renew_commitment"
	OpRevokeCommitment       = "revoke_commitment"
	OpPeerMetricsGet         = "peer_metrics_get"
	OpPeerMetricsAll         = "peer_metrics_all"
	OpPeerMetricsReport      = "peer_metrics_report"
)

// Typed payloads for each remote operation. Nothing past the client
// boundary handles untyped maps.

type CommitmentsForContentRequest struct {
	ContentID string `json:"content_id"`
}

type CommitmentsByCustodianRequest struct {
	CustodianID string `json:"custodian_id"`
}

type CommitmentListResponse struct {
	Commitments []Commitment `json:"commitments"`
}

type CreateCommitmentRequest struct {
	Commitment Commitment `json:"commitment"`
}

type CreateCommitmentResponse struct {
	CommitmentID string `json:"commitment_id"`
}

type RenewCommitmentRequest struct {
	CommitmentID string `json:"commitment_id"`
	NewExpiresAt int64  `json:"new_expires_at"`
}

type RevokeCommitmentRequest struct {
	CommitmentID string `json:"commitment_id"`
}

type PeerMetricsGetRequest struct {
	PeerID string `json:"peer_id"`
}

type PeerMetricsGetResponse struct {
	Metrics *PeerMetrics `json:"metrics"`
}

type PeerMetricsAllResponse struct {
	Peers []PeerMetrics `json:"peers"`
}

type PeerMetricsReportRequest struct {
	Metrics PeerMetrics `json:"metrics"`
}
