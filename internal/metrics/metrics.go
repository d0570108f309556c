package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters and gauges, partitioned by currency where it matters.

var (
	// Group builder
	GroupsCommittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "groups",
		Name:      "committed_total",
		Help:      "Total transaction groups committed",
	}, []string{"kind"})

	GroupsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "groups",
		Name:      "rejected_total",
		Help:      "Total group builds rejected before commit",
	}, []string{"kind", "reason"})

	IdempotentReplaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "groups",
		Name:      "idempotent_replays_total",
		Help:      "Total builds answered from an existing group",
	}, []string{"kind"})

	CommitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledger",
		Subsystem: "groups",
		Name:      "commit_duration_seconds",
		Help:      "Group build and commit duration",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind"})

	// Reconciler
	ObservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "reconciler",
		Name:      "observations_total",
		Help:      "Total blockchain observations processed",
	}, []string{"currency", "outcome"})

	StrangeTxTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "reconciler",
		Name:      "strange_transactions_total",
		Help:      "Total observations quarantined as strange",
	}, []string{"currency"})

	// Background jobs
	DeferredFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "scheduler",
		Name:      "deferred_fired_total",
		Help:      "Total deferred intents fired",
	}, []string{"outcome"})

	DeferredWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledger",
		Subsystem: "scheduler",
		Name:      "deferred_waiting",
		Help:      "Current number of waiting deferred records",
	})

	RebalancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "liquidity",
		Name:      "rebalances_total",
		Help:      "Total liquidity rebalance transfers submitted",
	}, []string{"currency"})

	LiquidityBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ledger",
		Subsystem: "liquidity",
		Name:      "pool_balance",
		Help:      "Latest observed liquidity pool balance",
	}, []string{"currency", "kind"})

	// Auditor
	AuditRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "auditor",
		Name:      "runs_total",
		Help:      "Total invariant audit passes",
	})

	InvariantViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "auditor",
		Name:      "violations_total",
		Help:      "Total invariant violations detected",
	}, []string{"invariant", "currency"})

	OperationsSuspended = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledger",
		Subsystem: "auditor",
		Name:      "operations_suspended",
		Help:      "Whether new group commits are suspended (0 or 1)",
	})

	AlertsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "alerts",
		Name:      "published_total",
		Help:      "Total operator alerts published",
	}, []string{"reason"})
)
