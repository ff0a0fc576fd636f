package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_client_requests_total",
			Help: "Total number of ledger API calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	LedgerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_client_request_duration_seconds",
			Help:    "Duration of ledger API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	WorkflowActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pledge_workflow_actions_total",
			Help: "Workflow actions by kind and result (completed, cancelled, rejected, invalid)",
		},
		[]string{"action", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_http_requests_total",
			Help: "Requests served by the sandbox ledger",
		},
		[]string{"method", "route", "status"},
	)

	OverdueEntriesMarked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandbox_overdue_entries_marked_total",
			Help: "Schedule entries moved to OVERDUE by the nightly job",
		},
	)
)
