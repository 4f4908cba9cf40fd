// Package metrics holds the Prometheus instruments for batch ingestion and
// the loan lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "staffloan"

// Batch kinds.
const (
	BatchPayments = "payments"
	BatchLoans    = "loans"
)

// Row outcomes.
const (
	OutcomeCreated             = "created"
	OutcomeRepaid              = "repaid"
	OutcomeSkippedUnknownStaff = "skipped_unknown_staff"
	OutcomeSkippedNoActiveLoan = "skipped_no_active_loan"
)

// Run results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

var (
	BatchRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_rows_total",
		Help:      "Rows processed from uploaded batches, by outcome.",
	}, []string{"batch", "outcome"})

	BatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_runs_total",
		Help:      "Batch uploads processed, by result.",
	}, []string{"batch", "result"})

	LoanRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loan_requests_total",
		Help:      "Staff loan requests, by tenure tier.",
	}, []string{"tenure_tier"})

	LoanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loan_transitions_total",
		Help:      "Loan status transitions, by target status.",
	}, []string{"to"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route template, method and status code.",
	}, []string{"route", "method", "code"})
)
