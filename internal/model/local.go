package model

// OperationStats summarizes the latency distribution of one operation class.
type OperationStats struct {
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// DowntimeInterval records one observed outage window in Unix milliseconds.
type DowntimeInterval struct {
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
	Reason string `json:"reason"`
}

// LocalMetricsSnapshot is a point-in-time copy of the local collector's
// state. It is owned exclusively by the collector, reconstructed fresh at
// process start, and handed out by value so callers cannot mutate it.
type LocalMetricsSnapshot struct {
	QueriesProcessed     int64 `json:"queries_processed"`
	MutationsProcessed   int64 `json:"mutations_processed"`
	ValidationsProcessed int64 `json:"validations_processed"`
	FailedOperations     int64 `json:"failed_operations"`

	QueryLatency      OperationStats `json:"query_latency"`
	MutationLatency   OperationStats `json:"mutation_latency"`
	ValidationLatency OperationStats `json:"validation_latency"`

	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`

	StartTime     int64              `json:"start_time"`
	Downtime      []DowntimeInterval `json:"downtime"`
	UptimePercent float64            `json:"uptime_percent"`

	ReplicationTasksRunning   int `json:"replication_tasks_running"`
	ReplicationTasksQueued    int `json:"replication_tasks_queued"`
	ReplicationTasksCompleted int `json:"replication_tasks_completed"`

	// ErrorRatePercent is failed operations over total operations, 0-100.
	ErrorRatePercent float64 `json:"error_rate_percent"`
	HealthScore      float64 `json:"health_score"`
}

// LocalMetricsReport is the collector snapshot projected into the wire
// shape the periodic reporter publishes: health, computation and operation
// counts, with the error rate converted to a 0-1 fraction.
type LocalMetricsReport struct {
	UptimePercent float64 `json:"uptime_percent"`
	LatencyP50Ms  float64 `json:"latency_p50_ms"`
	LatencyP95Ms  float64 `json:"latency_p95_ms"`
	LatencyP99Ms  float64 `json:"latency_p99_ms"`
	ErrorRate     float64 `json:"error_rate"`

	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	OpsPerSecond  float64 `json:"ops_per_second"`

	OperationsProcessed     int64   `json:"operations_processed"`
	ReplicationTasksRunning int     `json:"replication_tasks_running"`
	HealthScore             float64 `json:"health_score"`
}
