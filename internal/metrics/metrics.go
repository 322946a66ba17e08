package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for RequestsTotal
const (
	OutcomeOK       = "ok"
	OutcomeZero     = "zero"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	// ============================================
	// Claim operations
	// ============================================
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_oracle_requests_total",
			Help: "Total number of claim operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claim_oracle_request_duration_seconds",
			Help:    "Claim operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SignaturesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claim_oracle_signatures_issued_total",
		Help: "Total number of claim signatures issued",
	})

	// ============================================
	// Contract reads
	// ============================================
	ChainReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_oracle_chain_reads_total",
			Help: "Total number of claim contract reads",
		},
		[]string{"method", "status"},
	)

	ChainReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claim_oracle_chain_read_duration_seconds",
			Help:    "Claim contract read duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ============================================
	// Side channels (audit log, events)
	// ============================================
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claim_oracle_audit_write_failures_total",
		Help: "Total number of issuance audit records that failed to persist",
	})

	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claim_oracle_event_publish_failures_total",
		Help: "Total number of authorization events that failed to publish",
	})

	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claim_oracle_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})
)
