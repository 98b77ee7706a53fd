// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconciliationsTotal tracks reconciliation runs by status
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconciliation runs by status",
		},
		[]string{"status"},
	)

	// ReconcileDuration tracks reconciliation duration in seconds
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// ContactsTotal tracks contact writes by operation (created, updated, create_failed)
	ContactsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "contacts",
			Name:      "operations_total",
			Help:      "Total number of contact writes by operation",
		},
		[]string{"operation"},
	)

	// CandidatesDropped tracks candidates removed before matching
	CandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "candidates",
			Name:      "dropped_total",
			Help:      "Total number of candidate contacts dropped by reason",
		},
		[]string{"reason"},
	)

	// MatchScores tracks the score of accepted matches
	MatchScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "match_score",
			Help:      "Similarity score of accepted matches",
			Buckets:   []float64{0.75, 0.8, 0.85, 0.9, 0.95, 0.99, 1},
		},
	)

	// VerifierRequestsTotal tracks email verification calls
	VerifierRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "verifier",
			Name:      "requests_total",
			Help:      "Total number of email verification requests",
		},
		[]string{"status_code"},
	)

	// VerifierRequestDuration tracks email verification call duration
	VerifierRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "verifier",
			Name:      "request_duration_seconds",
			Help:      "Duration of email verification requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// MessagesProcessed tracks consumed extraction messages
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "consumer",
			Name:      "messages_processed_total",
			Help:      "Total number of extraction messages processed",
		},
		[]string{"status"},
	)

	// LeadLockContention tracks lock acquisitions that found the lead busy
	LeadLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "lock",
			Name:      "contention_total",
			Help:      "Total number of lead lock acquisitions that were already held",
		},
	)
)
