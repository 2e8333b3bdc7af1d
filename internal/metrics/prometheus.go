// Package metrics defines the Prometheus instruments exported by a steward
// node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a steward node.
type Metrics struct {
	// Selection engine metrics
	SelectionsAttempted  prometheus.Counter
	SelectionsSuccessful prometheus.Counter
	SelectionCacheHits   prometheus.Counter
	SelectionCacheMisses prometheus.Counter
	SelectionDuration    prometheus.Histogram

	// Circuit breaker metrics
	CircuitTransitions   *prometheus.CounterVec
	CircuitShortCircuits *prometheus.CounterVec

	// Periodic reporter metrics
	ReportsAttempted     prometheus.Counter
	ReportsSuccessful    prometheus.Counter
	ReportsFailed        prometheus.Counter
	ReportBackoffSeconds prometheus.Gauge

	// Remote store metrics
	RemoteCallsTotal *prometheus.CounterVec

	// Local node metrics
	LocalHealthScore prometheus.Gauge
	GossipMembers    prometheus.Gauge
}

// New creates and registers all Prometheus metrics for the given peer.
func New(peerID string) *Metrics {
	labels := prometheus.Labels{"peer_id": peerID}

	return &Metrics{
		SelectionsAttempted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "steward",
			Subsystem:   "selection",
			Name:        "attempts_total",
			Help:        "Total number of custodian selection attempts",
			ConstLabels: labels,
		}),
		SelectionsSuccessful: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "steward",
			Subsystem:   "selection",
			Name:        "successes_total",
			Help:        "Total number of selections that produced a custodian",
			ConstLabels: labels,
		}),
		SelectionCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "steward",
			Subsystem:   "selection",
			Name:        "cache_hits_total",
			Help:        "Total number of selection result cache hits",
			ConstLabels: labels,
		}),
		SelectionCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "steward",
			Subsystem:   "selection",
			Name:        "cache_misses_total",
			Help:        "Total number of selection result cache misses",
			ConstLabels: labels,
		}),
		SelectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "steward",
			Subsystem:   "selection",
			Name:        "duration_seconds",
			Help:        "Histogram of custodian selection durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		CircuitTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "steward",
			Subsystem:   "breaker",
			Name:        "transitions_total",
			Help:        "Total number of circuit state transitions",
			ConstLabels: labels,
		}, []string{"circuit", "state"}),
		CircuitShortCircuits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "steward",
			Subsystem:   "breaker",
			Name:        "short_circuits_total",
			Help:        "Total number of calls rejected by an open circuit",
			ConstLabels: labels,
		}, []string{"circuit"}),
		ReportsAttempted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "steward",
			Subsystem:   "reporter",
			Name:        "attempts_total",
			Help:        "Total number of metrics report attempts",
			ConstLabels: labels,
		}),
		ReportsSuccessful: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "steward",
			Subsystem:   "reporter",
			Name:        "successes_total",
			Help:        "Total number of successful metrics reports",
			ConstLabels: labels,
		}),
		ReportsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "steward",
			Subsystem:   "reporter",
			Name:        "failures_total",
			Help:        "Total number of failed metrics reports",
			ConstLabels: labels,
		}),
		ReportBackoffSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "steward",
			Subsystem:   "reporter",
			Name:        "backoff_seconds",
			Help:        "Current report retry backoff in seconds",
			ConstLabels: labels,
		}),
		RemoteCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "steward",
			Subsystem:   "remote",
			Name:        "calls_total",
			Help:        "Total number of remote store calls by operation and outcome",
			ConstLabels: labels,
		}, []string{"op", "outcome"}),
		LocalHealthScore: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "steward",
			Subsystem:   "node",
			Name:        "health_score",
			Help:        "Derived 0-100 health score of the local node",
			ConstLabels: labels,
		}),
		GossipMembers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "steward",
			Subsystem:   "gossip",
			Name:        "members_total",
			Help:        "Number of peers currently visible in the gossip cluster",
			ConstLabels: labels,
		}),
	}
}
