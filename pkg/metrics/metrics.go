package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easylesson_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	// InviteTransitions counts invite state transitions (created|accepted|rejected).
	InviteTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easylesson_invite_transitions_total",
			Help: "Total number of workspace invite state transitions",
		},
		[]string{"transition"},
	)

	// ElementBatchSize observes the number of elements per batch save request.
	ElementBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "easylesson_element_batch_size",
			Help:    "Number of board elements per batch save",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "easylesson_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
