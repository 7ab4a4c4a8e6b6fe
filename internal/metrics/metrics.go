// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes.
const (
	OutcomeAssigned   = "assigned"
	OutcomeUnassigned = "unassigned"
	OutcomeFailed     = "failed"
)

var (
	// HTTPRequestsTotal counts handled HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// DispatchRequestsTotal counts dispatches by outcome.
	DispatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_requests_total",
			Help: "Total number of dispatch requests by outcome.",
		},
		[]string{"outcome"},
	)

	// DispatchStageDuration observes how long each dispatch stage takes.
	DispatchStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_stage_duration_seconds",
			Help:    "Duration of dispatch pipeline stages.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// DispatchCandidates observes how many employees matched a task.
	DispatchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_matched_candidates",
			Help:    "Number of employees matched per dispatch.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// AssistantQueriesTotal counts assistant queries by caller role and outcome.
	AssistantQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_queries_total",
			Help: "Total number of assistant queries by role and outcome.",
		},
		[]string{"role", "outcome"},
	)
)
