package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inv_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inv_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inv_allocations_total",
			Help: "Allocation protocol outcomes by operation",
		},
		[]string{"operation", "outcome"},
	)

	LockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inv_event_lock_wait_seconds",
			Help:    "Time spent waiting for a per-event lock",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		},
	)

	LockRegistrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inv_event_locks",
			Help: "Number of per-event locks currently registered",
		},
	)

	HoldsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inv_holds_reclaimed_total",
			Help: "Expired holds deleted by the sweeper",
		},
	)

	SweepFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inv_sweep_failures_total",
			Help: "Expired holds the sweeper failed to delete",
		},
	)

	OutboxPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inv_outbox_published_total",
			Help: "Outbox records relayed to the broker",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inv_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inv_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
