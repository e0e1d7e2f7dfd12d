package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/pointledger/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	EntriesAppended   *prometheus.CounterVec
	PointsMoved       *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec
	LimitRejections   *prometheus.CounterVec
	IdempotentReplays *prometheus.CounterVec

	// Reversal metrics
	Reversals        prometheus.Counter
	ReversalFailures *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
	OutboxPurged    prometheus.Counter

	// TxRetries counts retried ledger transactions by SQLSTATE.
	TxRetries *prometheus.CounterVec

	// LedgerConsistent is 1 when the last integrity check passed.
	LedgerConsistent prometheus.Gauge
}

// New creates and registers all Prometheus metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all Prometheus metrics and registers them with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Ledger metrics
		EntriesAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointledger_entries_appended_total",
				Help: "Total number of ledger entries appended by kind",
			},
			[]string{"kind"},
		),
		PointsMoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointledger_points_total",
				Help: "Total points recorded by entry kind",
			},
			[]string{"kind"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pointledger_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointledger_operation_errors_total",
				Help: "Total number of failed ledger operations by type",
			},
			[]string{"operation", "error_type"},
		),
		LimitRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointledger_limit_rejections_total",
				Help: "Total number of requests rejected by a daily limit",
			},
			[]string{"kind"},
		),
		IdempotentReplays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointledger_idempotent_replays_total",
				Help: "Total number of operations answered from a previous commit",
			},
			[]string{"operation"},
		),

		// Reversal metrics
		Reversals: factory.NewCounter(prometheus.CounterOpts{
			Name: "pointledger_reversals_total",
			Help: "Total number of entries reversed",
		}),
		ReversalFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointledger_reversal_failures_total",
				Help: "Total number of rejected reversals by reason",
			},
			[]string{"reason"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pointledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointledger_rate_limit_hits_total",
				Help: "Total requests rejected by the rate limiter",
			},
			[]string{"path"},
		),

		// Outbox metrics
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "pointledger_outbox_published_total",
			Help: "Total outbox events delivered",
		}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pointledger_outbox_failures_total",
			Help: "Total outbox delivery failures",
		}),
		OutboxPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "pointledger_outbox_purged_total",
			Help: "Total published outbox events deleted by cleanup",
		}),

		TxRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointledger_tx_retries_total",
				Help: "Total ledger transactions retried after a transient conflict",
			},
			[]string{"sqlstate"},
		),

		LedgerConsistent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pointledger_ledger_consistent",
			Help: "1 when the last ledger consistency check passed, 0 otherwise",
		}),
	}
}

// ErrorLabel maps an operation error to a low-cardinality label value.
func ErrorLabel(err error) string {
	if err == nil {
		return "none"
	}
	return domain.ErrorCode(err)
}
