// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts recipe API calls by endpoint and outcome
	// ("success", "http_error", "transport_error", "decode_error").
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrecipe_upstream_requests_total",
			Help: "Total number of recipe API requests",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartrecipe_upstream_request_duration_seconds",
			Help:    "Duration of recipe API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Aggregations counts workflow runs by mode and outcome.
	Aggregations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrecipe_aggregations_total",
			Help: "Total number of recipe aggregation requests",
		},
		[]string{"mode", "outcome"},
	)

	DetailFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartrecipe_detail_fetch_failures_total",
			Help: "Recipes dropped from custom results because their detail fetch failed",
		},
	)

	// SessionOps counts session store operations by backend, op and result.
	SessionOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrecipe_session_operations_total",
			Help: "Total number of session store operations",
		},
		[]string{"store", "op", "result"},
	)
)
