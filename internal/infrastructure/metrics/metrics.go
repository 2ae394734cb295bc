package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Account metrics
	AccountsOpened   prometheus.Counter
	AccountDecisions *prometheus.CounterVec

	// Transaction metrics
	TransactionsSubmitted *prometheus.CounterVec
	TransactionDecisions  *prometheus.CounterVec
	DecisionDuration      prometheus.Histogram
	DecisionErrors        *prometheus.CounterVec
	ApprovedAmount        prometheus.Histogram

	// Transfer metrics
	TransfersSubmitted prometheus.Counter
	CreditRetries      prometheus.Counter
	TransferFaults     prometheus.Counter
	FaultedTransfers   prometheus.Gauge

	// Concurrency metrics
	LockWaitDuration prometheus.Histogram
	LockTimeouts     prometheus.Counter

	// Event metrics
	EventsPublished     *prometheus.CounterVec
	EventPublishErrors  prometheus.Counter
	OutboxEventsDeleted prometheus.Counter

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Account metrics
		AccountsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_accounts_opened_total",
			Help: "Total number of account open requests",
		}),
		AccountDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_account_decisions_total",
				Help: "Account decisions by resulting status",
			},
			[]string{"status"},
		),

		// Transaction metrics
		TransactionsSubmitted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_transactions_submitted_total",
				Help: "Plain transactions submitted by type",
			},
			[]string{"type"},
		),
		TransactionDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_transaction_decisions_total",
				Help: "Transaction decisions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		DecisionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bankledger_decision_duration_seconds",
			Help:    "Duration of approval engine decisions",
			Buckets: prometheus.DefBuckets,
		}),
		DecisionErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_decision_errors_total",
				Help: "Decision failures by error type",
			},
			[]string{"error_type"},
		),
		ApprovedAmount: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bankledger_approved_amount",
			Help:    "Amounts of approved transactions",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),

		// Transfer metrics
		TransfersSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_transfers_submitted_total",
			Help: "Total number of transfers submitted",
		}),
		CreditRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_transfer_credit_retries_total",
			Help: "Transfer credit attempts that were retried",
		}),
		TransferFaults: f.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_transfer_faults_total",
			Help: "Transfers flagged after the credit could not be applied",
		}),
		FaultedTransfers: f.NewGauge(prometheus.GaugeOpts{
			Name: "bankledger_faulted_transfers",
			Help: "Transfers currently held with a fault flag",
		}),

		// Concurrency metrics
		LockWaitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bankledger_lock_wait_seconds",
			Help:    "Time spent waiting for account locks",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		LockTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_lock_timeouts_total",
			Help: "Lock acquisitions that timed out",
		}),

		// Event metrics
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_events_published_total",
				Help: "Outbox events published by type",
			},
			[]string{"event_type"},
		),
		EventPublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_event_publish_errors_total",
			Help: "Outbox events that failed to publish",
		}),
		OutboxEventsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_outbox_events_deleted_total",
			Help: "Published outbox events removed by cleanup",
		}),

		// Rate limiting metrics
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_rate_limit_hits_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"path"},
		),
	}
}
